package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leasingbot_backend/internal/adapters"
	"leasingbot_backend/internal/appointments"
	"leasingbot_backend/internal/calendar"
	"leasingbot_backend/internal/catalog"
	"leasingbot_backend/internal/events"
	"leasingbot_backend/internal/followups"
	apphttp "leasingbot_backend/internal/http"
	"leasingbot_backend/internal/http/router"
	"leasingbot_backend/internal/leads"
	"leasingbot_backend/internal/metrics"
	"leasingbot_backend/internal/webhook"
	"leasingbot_backend/internal/whatsapp"
	"leasingbot_backend/platform/config"
	"leasingbot_backend/platform/db"
	"leasingbot_backend/platform/logger"
	"leasingbot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Outbound gateways
	whatsappClient := whatsapp.NewClient(cfg, log)
	calendarClient := calendar.NewClient(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	catalogModule := catalog.NewModule(pool, val)

	appointmentsModule := appointments.NewModule(
		pool,
		adapters.CalendarAdapter{Client: calendarClient},
		eventBus,
		val,
		log,
		cfg.GetCalendarTimeout(),
	)

	// Followups subscribe to appointment lifecycle events (not HTTP-driven)
	followupsModule := followups.NewModule(pool, log, cfg.GetLocation(), cfg.GetEveningReminderHour(), cfg.GetMorningReminderHour())
	followupsModule.RegisterHandlers(eventBus)

	leadsModule := leads.NewModule(pool, leads.Deps{
		Catalog: adapters.UnitCatalog{Catalog: catalogModule.Service()},
		Booker:  adapters.TourBooker{Appointments: appointmentsModule.Service()},
		Sender:  whatsappClient,
		Nudges:  followupsModule.Service(),
		Bus:     eventBus,
	}, cfg, cfg.GetLocation(), log)

	webhookModule := webhook.NewModule(leadsModule.Service(), val)
	metricsModule := metrics.NewModule(pool, log, cfg.GetLocation())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			catalogModule,
			leadsModule,
			appointmentsModule,
			followupsModule,
			webhookModule,
			metricsModule,
		},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

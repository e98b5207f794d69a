package main

import (
	"context"
	"errors"
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
	"leasingbot_backend/internal/leads"
	"leasingbot_backend/internal/metrics"
	"leasingbot_backend/internal/scheduler"
	"leasingbot_backend/internal/whatsapp"
	"leasingbot_backend/platform/config"
	"leasingbot_backend/platform/db"
	"leasingbot_backend/platform/logger"
	"leasingbot_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	whatsappClient := whatsapp.NewClient(cfg, log)
	calendarClient := calendar.NewClient(cfg, log)

	// The abandoned-lead sweep runs the same funnel wiring as the API so
	// any stage change it triggers behaves identically.
	catalogModule := catalog.NewModule(pool, val)
	appointmentsModule := appointments.NewModule(
		pool,
		adapters.CalendarAdapter{Client: calendarClient},
		eventBus,
		val,
		log,
		cfg.GetCalendarTimeout(),
	)
	followupsModule := followups.NewModule(pool, log, cfg.GetLocation(), cfg.GetEveningReminderHour(), cfg.GetMorningReminderHour())
	followupsModule.RegisterHandlers(eventBus)

	leadsModule := leads.NewModule(pool, leads.Deps{
		Catalog: adapters.UnitCatalog{Catalog: catalogModule.Service()},
		Booker:  adapters.TourBooker{Appointments: appointmentsModule.Service()},
		Sender:  whatsappClient,
		Nudges:  followupsModule.Service(),
		Bus:     eventBus,
	}, cfg, cfg.GetLocation(), log)

	metricsModule := metrics.NewModule(pool, log, cfg.GetLocation())

	dispatcher, err := scheduler.NewFollowupDispatcher(cfg, cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize followup dispatcher", "error", err)
		panic("failed to initialize followup dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()

	cronJobs, err := scheduler.NewCronJobs(cfg.GetLocation(), metricsModule.Service(), leadsModule.Service(), cfg.GetAbandonedLeadDelay(), log)
	if err != nil {
		log.Error("failed to initialize cron jobs", "error", err)
		panic("failed to initialize cron jobs: " + err.Error())
	}
	cronJobs.Start()
	defer cronJobs.Stop()

	worker, err := scheduler.NewWorker(cfg, cfg, pool, whatsappClient, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	_ = g.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

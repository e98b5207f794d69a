// Package appointments provides the tour appointment module.
package appointments

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/internal/appointments/handler"
	"leasingbot_backend/internal/appointments/repository"
	"leasingbot_backend/internal/appointments/service"
	"leasingbot_backend/internal/events"
	apphttp "leasingbot_backend/internal/http"
	"leasingbot_backend/platform/logger"
	"leasingbot_backend/platform/validator"
)

// Module is the appointments bounded context module implementing
// http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the appointments module.
func NewModule(pool *pgxpool.Pool, calendar service.Calendar, bus events.Bus, val *validator.Validator, log *logger.Logger, calendarTimeout time.Duration) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, calendar, bus, log, calendarTimeout)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "appointments"
}

// Service returns the service layer for wiring into other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts appointment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/appointments"))
	m.handler.RegisterHooks(ctx.Hooks)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

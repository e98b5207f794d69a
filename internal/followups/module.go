// Package followups provides the followup scheduling module.
package followups

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/internal/events"
	"leasingbot_backend/internal/followups/handler"
	"leasingbot_backend/internal/followups/repository"
	"leasingbot_backend/internal/followups/service"
	apphttp "leasingbot_backend/internal/http"
	"leasingbot_backend/platform/logger"
)

// Module is the followups bounded context module implementing
// http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the followups module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger, loc *time.Location, eveningHour, morningHour int) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log, loc, eveningHour, morningHour)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followups"
}

// Service returns the service layer for wiring into other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the task store for the dispatcher.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts followup routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/followups"))
}

// RegisterHandlers subscribes the scheduler to lead and appointment
// lifecycle events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadStageChanged{}.EventName(), events.HandlerFunc(m.service.Handle))
	bus.Subscribe(events.AppointmentScheduled{}.EventName(), events.HandlerFunc(m.service.Handle))
	bus.Subscribe(events.AppointmentCanceled{}.EventName(), events.HandlerFunc(m.service.Handle))
	bus.Subscribe(events.AppointmentCompleted{}.EventName(), events.HandlerFunc(m.service.Handle))
	bus.Subscribe(events.AppointmentNoShow{}.EventName(), events.HandlerFunc(m.service.Handle))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

// Package metrics provides the daily funnel metrics module.
package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leasingbot_backend/internal/http"
	"leasingbot_backend/internal/metrics/handler"
	"leasingbot_backend/internal/metrics/repository"
	"leasingbot_backend/internal/metrics/service"
	"leasingbot_backend/platform/logger"
)

// Module is the metrics bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the metrics module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger, loc *time.Location) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log, loc)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "metrics"
}

// Service returns the service layer for the nightly job.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts metrics routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/metrics"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

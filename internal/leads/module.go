// Package leads provides the lead qualification funnel module.
package leads

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/internal/events"
	apphttp "leasingbot_backend/internal/http"
	"leasingbot_backend/internal/leads/handler"
	"leasingbot_backend/internal/leads/ports"
	"leasingbot_backend/internal/leads/repository"
	"leasingbot_backend/internal/leads/service"
	"leasingbot_backend/internal/matching"
	"leasingbot_backend/platform/config"
	"leasingbot_backend/platform/logger"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// Deps are the cross-module collaborators the funnel needs. They are
// interfaces so wiring stays in cmd.
type Deps struct {
	Catalog ports.UnitCatalog
	Booker  ports.TourBooker
	Sender  ports.MessageSender
	Nudges  ports.NudgeScheduler
	Bus     events.Bus
}

// NewModule creates and initializes the leads module.
func NewModule(pool *pgxpool.Pool, deps Deps, cfg config.MatchingConfig, loc *time.Location, log *logger.Logger) *Module {
	repo := repository.New(pool)
	policy := matching.Policy{
		StrictRooms: cfg.GetRoomPolicyStrict(),
		MaxResults:  cfg.GetMaxRecommendations(),
	}
	svc := service.New(repo, deps.Catalog, deps.Booker, deps.Sender, deps.Nudges, deps.Bus, log, policy, loc)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for wiring into the webhook and
// scheduler entrypoints.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

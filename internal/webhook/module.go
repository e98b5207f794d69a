// Package webhook provides the inbound channel webhook module.
package webhook

import (
	apphttp "leasingbot_backend/internal/http"
	leadsservice "leasingbot_backend/internal/leads/service"
	"leasingbot_backend/internal/webhook/handler"
	"leasingbot_backend/platform/validator"
)

// Module is the webhook module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the webhook module.
func NewModule(leads *leadsservice.Service, val *validator.Validator) *Module {
	return &Module{handler: handler.New(leads, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the inbound hook on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterHooks(ctx.Hooks)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

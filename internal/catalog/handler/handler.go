package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leasingbot_backend/internal/catalog/service"
	"leasingbot_backend/internal/catalog/transport"
	"leasingbot_backend/platform/httpkit"
	"leasingbot_backend/platform/validator"
)

// Handler handles HTTP requests for the catalog.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid unit id"
)

// New creates a new catalog handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the catalog routes.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/properties", h.ListProperties)
	g.POST("/properties", h.CreateProperty)
	g.GET("/units/available", h.ListAvailableUnits)
	g.POST("/units", h.CreateUnit)
	g.POST("/units/:id/hold", h.HoldUnit)
	g.POST("/units/:id/release", h.ReleaseUnit)
	g.POST("/units/:id/rent", h.RentUnit)
}

// ListProperties retrieves all properties.
// GET /api/v1/catalog/properties
func (h *Handler) ListProperties(c *gin.Context) {
	result, err := h.svc.ListProperties(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateProperty registers a property.
// POST /api/v1/catalog/properties
func (h *Handler) CreateProperty(c *gin.Context) {
	var req transport.CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateProperty(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// ListAvailableUnits retrieves the available units.
// GET /api/v1/catalog/units/available
func (h *Handler) ListAvailableUnits(c *gin.Context) {
	result, err := h.svc.ListAvailableUnits(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateUnit registers a unit under a property.
// POST /api/v1/catalog/units
func (h *Handler) CreateUnit(c *gin.Context) {
	var req transport.CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreateUnit(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// HoldUnit provisionally reserves a unit.
// POST /api/v1/catalog/units/:id/hold
func (h *Handler) HoldUnit(c *gin.Context) {
	h.transition(c, h.svc.Hold)
}

// ReleaseUnit returns a held unit to the available pool.
// POST /api/v1/catalog/units/:id/release
func (h *Handler) ReleaseUnit(c *gin.Context) {
	h.transition(c, h.svc.Release)
}

// RentUnit finalizes a hold into a rental.
// POST /api/v1/catalog/units/:id/rent
func (h *Handler) RentUnit(c *gin.Context) {
	h.transition(c, h.svc.MarkRented)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	if err := fn(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leasingbot_backend/internal/appointments/service"
	"leasingbot_backend/internal/appointments/transport"
	"leasingbot_backend/platform/httpkit"
	"leasingbot_backend/platform/validator"
)

// Handler handles HTTP requests for appointments, including the calendar
// callback endpoint.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the operator-facing appointment routes.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/:id", h.GetAppointment)
	g.POST("/:id/cancel", h.CancelAppointment)
}

// RegisterHooks mounts the calendar callback route on the verify-token
// gated group.
func (h *Handler) RegisterHooks(g *gin.RouterGroup) {
	g.POST("/calendar/events", h.CalendarCallback)
}

// GetAppointment retrieves one appointment.
// GET /api/v1/appointments/:id
func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return
	}
	appt, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAppointmentResponse(appt))
}

// CancelAppointment cancels an appointment. Repeated cancels succeed.
// POST /api/v1/appointments/:id/cancel
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "canceled"})
}

// CalendarCallback applies an event status change reported by the
// external calendar.
// POST /api/v1/hooks/calendar/events
func (h *Handler) CalendarCallback(c *gin.Context) {
	var req transport.CalendarCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Status {
	case "completed":
		err = h.svc.HandleCompleted(ctx, req.ExternalEventID, req.EndTime)
	case "no_show":
		err = h.svc.HandleNoShow(ctx, req.ExternalEventID)
	case "canceled":
		err = h.svc.HandleExternalCancel(ctx, req.ExternalEventID)
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "applied"})
}

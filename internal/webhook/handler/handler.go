package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	leadsservice "leasingbot_backend/internal/leads/service"
	"leasingbot_backend/internal/webhook/transport"
	"leasingbot_backend/platform/httpkit"
	"leasingbot_backend/platform/validator"
)

// Handler receives classified inbound messages from the channel
// integration and feeds them into the funnel.
type Handler struct {
	leads *leadsservice.Service
	val   *validator.Validator
}

func New(leads *leadsservice.Service, val *validator.Validator) *Handler {
	return &Handler{leads: leads, val: val}
}

// RegisterHooks mounts the inbound route on the verify-token gated group.
func (h *Handler) RegisterHooks(g *gin.RouterGroup) {
	g.POST("/whatsapp/messages", h.InboundMessage)
}

// InboundMessage processes one classified inbound message.
// POST /api/v1/hooks/whatsapp/messages
func (h *Handler) InboundMessage(c *gin.Context) {
	var req transport.InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	ev, err := req.Event.ToDomainEvent()
	if httpkit.HandleError(c, err) {
		return
	}

	result, err := h.leads.ProcessInbound(c.Request.Context(), req.Phone, req.Name, req.Text, ev)
	if httpkit.HandleError(c, err) {
		return
	}

	replies := result.Replies
	if replies == nil {
		replies = []string{}
	}
	httpkit.OK(c, transport.InboundMessageResponse{
		LeadID:    result.LeadID,
		Stage:     string(result.Stage),
		Duplicate: result.Duplicate,
		Replies:   replies,
	})
}

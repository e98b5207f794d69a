package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leasingbot_backend/internal/leads/service"
	"leasingbot_backend/internal/leads/transport"
	"leasingbot_backend/platform/httpkit"
)

// Handler exposes the read side of the funnel for operators.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the lead routes.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/:id", h.GetLead)
	g.GET("/:id/conversation", h.GetConversation)
	g.GET("", h.GetLeadByPhone)
}

// GetLead retrieves one lead by ID.
// GET /api/v1/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}
	lead, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// GetLeadByPhone retrieves one lead by phone number.
// GET /api/v1/leads?phone=...
func (h *Handler) GetLeadByPhone(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		httpkit.Error(c, http.StatusBadRequest, "phone query parameter is required", nil)
		return
	}
	lead, err := h.svc.GetByPhone(c.Request.Context(), phone)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// GetConversation retrieves the lead's conversation history.
// GET /api/v1/leads/:id/conversation
func (h *Handler) GetConversation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	entries, err := h.svc.Conversation(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToConversationResponse(entries))
}

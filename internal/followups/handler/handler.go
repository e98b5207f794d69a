package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leasingbot_backend/internal/followups/repository"
	"leasingbot_backend/internal/followups/service"
	"leasingbot_backend/platform/httpkit"
)

// Handler exposes the followup task history for operators.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the followup routes.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("", h.ListForLead)
}

type followupResponse struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        uuid.UUID  `json:"leadId"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	MessageType   string     `json:"messageType"`
	Content       string     `json:"content"`
	SendAt        time.Time  `json:"sendAt"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	ErrorMessage  *string    `json:"errorMessage,omitempty"`
}

// ListForLead retrieves a lead's followup tasks, newest first.
// GET /api/v1/followups?leadId=...
func (h *Handler) ListForLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Query("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "leadId query parameter is required", nil)
		return
	}
	tasks, err := h.svc.ListForLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponses(tasks))
}

func toResponses(tasks []repository.Followup) []followupResponse {
	out := make([]followupResponse, 0, len(tasks))
	for _, f := range tasks {
		out = append(out, followupResponse{
			ID:            f.ID,
			LeadID:        f.LeadID,
			AppointmentID: f.AppointmentID,
			MessageType:   string(f.MessageType),
			Content:       f.Content,
			SendAt:        f.SendAt,
			Status:        string(f.Status),
			Attempts:      f.Attempts,
			SentAt:        f.SentAt,
			ErrorMessage:  f.ErrorMessage,
		})
	}
	return out
}

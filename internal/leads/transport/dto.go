// Package transport defines the HTTP request/response shapes for the leads
// module, keeping wire formats out of the domain.
package transport

import (
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/leads/repository"
)

// LeadResponse is the lead aggregate as exposed over HTTP.
type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	Phone           string     `json:"phone"`
	Name            string     `json:"name"`
	Email           *string    `json:"email,omitempty"`
	Stage           string     `json:"stage"`
	HasPayslips     *bool      `json:"hasPayslips,omitempty"`
	CanPayDeposit   *bool      `json:"canPayDeposit,omitempty"`
	MoveInDate      *string    `json:"moveInDate,omitempty"`
	Rooms           *int       `json:"rooms,omitempty"`
	Budget          *int       `json:"budget,omitempty"`
	NeedsParking    *bool      `json:"needsParking,omitempty"`
	PreferredArea   *string    `json:"preferredArea,omitempty"`
	FloorMin        *int       `json:"preferredFloorMin,omitempty"`
	FloorMax        *int       `json:"preferredFloorMax,omitempty"`
	NeedsFurnished  *bool      `json:"needsFurnished,omitempty"`
	PetOwner        *bool      `json:"petOwner,omitempty"`
	SkippedFields   []string   `json:"skippedFields"`
	Source          string     `json:"source"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastInteraction time.Time  `json:"lastInteraction"`
}

// ConversationEntryResponse is one logged exchange.
type ConversationEntryResponse struct {
	ID        uuid.UUID      `json:"id"`
	Direction string         `json:"direction"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ToLeadResponse maps the persistence model to the wire shape.
func ToLeadResponse(l repository.Lead) LeadResponse {
	resp := LeadResponse{
		ID:              l.ID,
		Phone:           l.Phone,
		Name:            l.Name,
		Email:           l.Email,
		Stage:           string(l.Stage),
		HasPayslips:     l.HasPayslips,
		CanPayDeposit:   l.CanPayDeposit,
		Rooms:           l.Rooms,
		Budget:          l.Budget,
		NeedsParking:    l.NeedsParking,
		PreferredArea:   l.PreferredArea,
		FloorMin:        l.FloorMin,
		FloorMax:        l.FloorMax,
		NeedsFurnished:  l.NeedsFurnished,
		PetOwner:        l.PetOwner,
		SkippedFields:   l.SkippedFields,
		Source:          l.Source,
		CreatedAt:       l.CreatedAt,
		LastInteraction: l.LastInteraction,
	}
	if resp.SkippedFields == nil {
		resp.SkippedFields = []string{}
	}
	if l.MoveInDate != nil {
		s := l.MoveInDate.Format("2006-01-02")
		resp.MoveInDate = &s
	}
	return resp
}

// ToConversationResponse maps logged entries to the wire shape.
func ToConversationResponse(entries []repository.ConversationEntry) []ConversationEntryResponse {
	out := make([]ConversationEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ConversationEntryResponse{
			ID:        e.ID,
			Direction: string(e.Direction),
			Content:   e.Content,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

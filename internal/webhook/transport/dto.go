// Package transport defines the inbound webhook payloads and their
// mapping onto funnel events.
package transport

import (
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/leads/domain"
	"leasingbot_backend/platform/apperr"
)

// InboundMessageRequest is one structured event from the channel. The
// channel integration classifies the lead's free-text reply before it
// reaches us; Text carries the original message for the conversation log.
type InboundMessageRequest struct {
	Phone string       `json:"phone" validate:"required"`
	Name  string       `json:"name"`
	Text  string       `json:"text"`
	Event InboundEvent `json:"event" validate:"required"`
}

// InboundEvent is the classified payload. Exactly the fields matching
// Type are read; the rest are ignored.
type InboundEvent struct {
	Type string `json:"type" validate:"required,oneof=contact gate_answer profile_answer profile_skip unit_selected"`

	// gate_answer
	Gate       string  `json:"gate,omitempty"`
	Positive   *bool   `json:"positive,omitempty"`
	MoveInDate *string `json:"moveInDate,omitempty"`

	// profile_answer / profile_skip
	Field     string  `json:"field,omitempty"`
	IntValue  *int    `json:"intValue,omitempty"`
	BoolValue *bool   `json:"boolValue,omitempty"`
	TextValue *string `json:"textValue,omitempty"`

	// unit_selected
	UnitID *uuid.UUID `json:"unitId,omitempty"`
	Slot   *time.Time `json:"slot,omitempty"`
}

const dateFormat = "2006-01-02"

// ToDomainEvent maps the wire payload onto a funnel event.
func (e InboundEvent) ToDomainEvent() (domain.Event, error) {
	switch e.Type {
	case "contact":
		return domain.Contact{}, nil

	case "gate_answer":
		gate := domain.Gate(e.Gate)
		if !domain.IsKnownGate(gate) {
			return nil, apperr.Validation("unknown gate")
		}
		if e.Positive == nil {
			return nil, apperr.Validation("gate answer requires positive flag")
		}
		ev := domain.GateAnswer{Gate: gate, Positive: *e.Positive}
		if e.MoveInDate != nil {
			d, err := time.Parse(dateFormat, *e.MoveInDate)
			if err != nil {
				return nil, apperr.Validation("moveInDate must be YYYY-MM-DD")
			}
			ev.MoveInDate = &d
		}
		return ev, nil

	case "profile_answer":
		field := domain.ProfileField(e.Field)
		if !domain.IsKnownProfileField(field) {
			return nil, apperr.Validation("unknown profile field")
		}
		return domain.ProfileAnswer{
			Field: field,
			Int:   e.IntValue,
			Bool:  e.BoolValue,
			Text:  e.TextValue,
		}, nil

	case "profile_skip":
		field := domain.ProfileField(e.Field)
		if !domain.IsKnownProfileField(field) {
			return nil, apperr.Validation("unknown profile field")
		}
		return domain.ProfileSkip{Field: field}, nil

	case "unit_selected":
		if e.UnitID == nil || e.Slot == nil {
			return nil, apperr.Validation("unit selection requires unitId and slot")
		}
		return domain.UnitSelected{UnitID: *e.UnitID, Slot: *e.Slot}, nil

	default:
		return nil, apperr.Validation("unknown event type")
	}
}

// InboundMessageResponse reports what processing did.
type InboundMessageResponse struct {
	LeadID    uuid.UUID `json:"leadId"`
	Stage     string    `json:"stage"`
	Duplicate bool      `json:"duplicate"`
	Replies   []string  `json:"replies"`
}

// Package ports defines the interfaces the leads funnel requires from
// other modules. The funnel only knows about the data it needs, shaped the
// way it wants; concrete implementations are wired in at startup.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/matching"
)

// UnitCatalog provides the read-only unit snapshot the matcher runs
// against, plus single-unit lookups for rendering recommendations.
type UnitCatalog interface {
	AvailableUnitsSnapshot(ctx context.Context) ([]matching.Unit, error)
	UnitSnapshot(ctx context.Context, unitID uuid.UUID) (matching.Unit, error)
}

// BookTourParams carries everything needed to book a tour for a lead.
type BookTourParams struct {
	LeadID    uuid.UUID
	LeadPhone string
	LeadName  string
	UnitID    uuid.UUID
	Slot      time.Time
}

// TourBooking is the confirmed booking as the funnel sees it.
type TourBooking struct {
	AppointmentID uuid.UUID
	ScheduledTime time.Time
}

// TourBooker books and cancels tours. Propose replaces any prior active
// appointment for the lead; failures surface as errors the funnel maps to
// a booking-failed transition.
type TourBooker interface {
	Propose(ctx context.Context, params BookTourParams) (TourBooking, error)
}

// MessageSender delivers outbound messages on the lead's channel.
type MessageSender interface {
	SendText(ctx context.Context, phone, body string) error
}

// NudgeScheduler queues a re-engagement message for an idle lead. The
// delivery pipeline owns sending and retries; scheduling an identical
// nudge while one is still queued is a no-op.
type NudgeScheduler interface {
	ScheduleNudge(ctx context.Context, leadID uuid.UUID, content string) (created bool, err error)
}

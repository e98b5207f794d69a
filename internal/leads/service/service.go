// Package service drives the lead qualification funnel: it loads the lead,
// runs the stage machine, persists accepted transitions and executes the
// prescribed effects (questions, matching, booking, notifications).
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/events"
	"leasingbot_backend/internal/leads/domain"
	"leasingbot_backend/internal/leads/ports"
	"leasingbot_backend/internal/leads/repository"
	"leasingbot_backend/internal/matching"
	"leasingbot_backend/platform/apperr"
	"leasingbot_backend/platform/logger"
	"leasingbot_backend/platform/phone"
)

// Store is the lead persistence surface the funnel needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetByPhone(ctx context.Context, phone string) (repository.Lead, error)
	Create(ctx context.Context, params repository.CreateParams) (repository.Lead, error)
	SaveState(ctx context.Context, id uuid.UUID, state domain.LeadState) error
	TouchLastInteraction(ctx context.Context, id uuid.UUID) error
	ListIdleInStage(ctx context.Context, stage domain.Stage, cutoff time.Time) ([]repository.Lead, error)
	AppendConversation(ctx context.Context, leadID uuid.UUID, direction repository.Direction, content string, metadata map[string]any) error
	LastUserMessage(ctx context.Context, leadID uuid.UUID) (string, error)
	ListConversation(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.ConversationEntry, error)
}

type Service struct {
	repo    Store
	catalog ports.UnitCatalog
	booker  ports.TourBooker
	sender  ports.MessageSender
	nudges  ports.NudgeScheduler
	bus     events.Bus
	log     *logger.Logger
	policy  matching.Policy
	loc     *time.Location
	locks   *leadLocks
}

func New(repo Store, catalog ports.UnitCatalog, booker ports.TourBooker, sender ports.MessageSender, nudges ports.NudgeScheduler, bus events.Bus, log *logger.Logger, policy matching.Policy, loc *time.Location) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		booker:  booker,
		sender:  sender,
		nudges:  nudges,
		bus:     bus,
		log:     log,
		policy:  policy,
		loc:     loc,
		locks:   newLeadLocks(),
	}
}

// InboundResult reports what processing one inbound event did.
type InboundResult struct {
	LeadID    uuid.UUID
	Stage     domain.Stage
	Duplicate bool
	Replies   []string
}

// ProcessInbound handles one structured event from the channel for the
// given phone number. The whole exchange runs under the lead's lock, so
// concurrent events for one lead serialize.
func (s *Service) ProcessInbound(ctx context.Context, rawPhone, name, text string, ev domain.Event) (InboundResult, error) {
	normalized := phone.NormalizeE164(rawPhone)
	if normalized == "" {
		return InboundResult{}, apperr.Validation("phone number is required")
	}

	release := s.locks.acquire(normalized)
	defer release()

	lead, err := s.getOrCreate(ctx, normalized, name)
	if err != nil {
		return InboundResult{}, err
	}
	ctx = context.WithValue(ctx, logger.LeadIDKey, lead.ID.String())

	// The channel occasionally redelivers; an inbound message identical to
	// the previous one is absorbed without re-running the funnel.
	if text != "" {
		last, err := s.repo.LastUserMessage(ctx, lead.ID)
		if err != nil {
			return InboundResult{}, err
		}
		if last == text {
			if err := s.repo.TouchLastInteraction(ctx, lead.ID); err != nil {
				return InboundResult{}, err
			}
			return InboundResult{LeadID: lead.ID, Stage: lead.Stage, Duplicate: true}, nil
		}
		if err := s.repo.AppendConversation(ctx, lead.ID, repository.DirectionUser, text, map[string]any{"event": ev.Name()}); err != nil {
			return InboundResult{}, err
		}
	}

	stage, replies, err := s.advance(ctx, &lead, ev)
	if err != nil {
		return InboundResult{}, err
	}
	return InboundResult{LeadID: lead.ID, Stage: stage, Replies: replies}, nil
}

func (s *Service) getOrCreate(ctx context.Context, normalizedPhone, name string) (repository.Lead, error) {
	lead, err := s.repo.GetByPhone(ctx, normalizedPhone)
	if err == nil {
		return lead, nil
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		return repository.Lead{}, err
	}

	lead, err = s.repo.Create(ctx, repository.CreateParams{Phone: normalizedPhone, Name: name, Source: "whatsapp"})
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindConflict {
		// Lost the insert race to a concurrent first message.
		return s.repo.GetByPhone(ctx, normalizedPhone)
	}
	return lead, err
}

// advance runs one machine step, persists the result and executes effects.
// Effects raised by effect execution (matching outcome, booking results)
// recurse through the same path, so the lead row always reflects the last
// accepted transition before any message goes out.
func (s *Service) advance(ctx context.Context, lead *repository.Lead, ev domain.Event) (domain.Stage, []string, error) {
	state := lead.State()
	next, effects, err := domain.Advance(state, ev)
	if err != nil {
		var invalid *domain.InvalidTransitionError
		if errors.As(err, &invalid) {
			return "", nil, apperr.Wrap(apperr.KindConflict, "event not valid in current stage", err)
		}
		return "", nil, err
	}

	if err := s.repo.SaveState(ctx, lead.ID, next); err != nil {
		return "", nil, err
	}
	if next.Stage != state.Stage {
		s.log.StageTransition(lead.ID.String(), string(state.Stage), string(next.Stage))
		s.bus.Publish(ctx, events.LeadStageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Phone:     lead.Phone,
			From:      string(state.Stage),
			To:        string(next.Stage),
		})
	}
	applyState(lead, next)

	replies := make([]string, 0, len(effects))
	for _, effect := range effects {
		out, err := s.execute(ctx, lead, effect)
		if err != nil {
			return "", nil, err
		}
		replies = append(replies, out...)
	}
	return lead.Stage, replies, nil
}

func (s *Service) execute(ctx context.Context, lead *repository.Lead, effect domain.Effect) ([]string, error) {
	switch e := effect.(type) {
	case domain.AskGate:
		return s.reply(ctx, lead, gateQuestion(e.Gate))
	case domain.AskProfile:
		return s.reply(ctx, lead, profileQuestion(e.Field))
	case domain.NotifyGateFailed:
		return s.reply(ctx, lead, msgGateFailed)
	case domain.RunMatching:
		return s.runMatching(ctx, lead)
	case domain.NotifyNoFit:
		return s.reply(ctx, lead, msgNoFit)
	case domain.NotifyFutureFit:
		return s.reply(ctx, lead, msgFutureFit)
	case domain.BookTour:
		return s.bookTour(ctx, lead, e)
	case domain.NotifyTourBooked:
		// Confirmation is rendered by bookTour with the actual slot.
		return nil, nil
	default:
		return nil, apperr.Internal("unhandled effect").WithOp("leads.execute")
	}
}

// runMatching snapshots the catalog, ranks it against the profile and
// feeds the routing outcome back through the machine.
func (s *Service) runMatching(ctx context.Context, lead *repository.Lead) ([]string, error) {
	units, err := s.catalog.AvailableUnitsSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	result := matching.Match(lead.State(), units, s.policy)

	routing := domain.RoutingMatched
	switch result.Outcome {
	case matching.OutcomeNoFit:
		routing = domain.RoutingNoFit
	case matching.OutcomeFutureFit:
		routing = domain.RoutingFutureFit
	}

	_, replies, err := s.advance(ctx, lead, domain.MatchResolved{Routing: routing})
	if err != nil {
		return nil, err
	}

	if result.Outcome == matching.OutcomeMatched {
		out, err := s.reply(ctx, lead, renderRecommendations(result.Units))
		if err != nil {
			return nil, err
		}
		replies = append(replies, out...)
	}
	return replies, nil
}

func (s *Service) bookTour(ctx context.Context, lead *repository.Lead, e domain.BookTour) ([]string, error) {
	booking, err := s.booker.Propose(ctx, ports.BookTourParams{
		LeadID:    lead.ID,
		LeadPhone: lead.Phone,
		LeadName:  lead.Name,
		UnitID:    e.UnitID,
		Slot:      e.Slot,
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("tour booking failed", "error", err)
		_, replies, advErr := s.advance(ctx, lead, domain.BookingFailed{})
		if advErr != nil {
			return nil, advErr
		}
		out, sendErr := s.reply(ctx, lead, msgBookingFailed)
		if sendErr != nil {
			return nil, sendErr
		}
		return append(replies, out...), nil
	}

	_, replies, err := s.advance(ctx, lead, domain.BookingConfirmed{AppointmentID: booking.AppointmentID})
	if err != nil {
		return nil, err
	}
	out, err := s.reply(ctx, lead, renderTourBooked(booking.ScheduledTime, s.loc))
	if err != nil {
		return nil, err
	}
	return append(replies, out...), nil
}

// reply sends one outbound message and logs it. Send failures are logged
// but do not abort the funnel; the state transition already happened.
func (s *Service) reply(ctx context.Context, lead *repository.Lead, body string) ([]string, error) {
	if err := s.sender.SendText(ctx, lead.Phone, body); err != nil {
		s.log.DeliveryEvent(lead.Phone, "funnel_reply", false, err.Error())
		return nil, nil
	}
	s.log.DeliveryEvent(lead.Phone, "funnel_reply", true, "")
	if err := s.repo.AppendConversation(ctx, lead.ID, repository.DirectionBot, body, nil); err != nil {
		return nil, err
	}
	return []string{body}, nil
}

func applyState(lead *repository.Lead, state domain.LeadState) {
	lead.Stage = state.Stage
	lead.HasPayslips = state.HasPayslips
	lead.CanPayDeposit = state.CanPayDeposit
	lead.MoveInDate = state.MoveInDate
	lead.Rooms = state.Profile.Rooms
	lead.Budget = state.Profile.Budget
	lead.NeedsParking = state.Profile.NeedsParking
	lead.PreferredArea = state.Profile.PreferredArea
	lead.FloorMin = state.Profile.FloorMin
	lead.FloorMax = state.Profile.FloorMax
	lead.NeedsFurnished = state.Profile.NeedsFurnished
	lead.PetOwner = state.Profile.PetOwner
	skipped := make([]string, 0, len(state.Profile.Skipped))
	for f := range state.Profile.Skipped {
		skipped = append(skipped, string(f))
	}
	lead.SkippedFields = skipped
}

// Get returns one lead by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByPhone returns one lead by normalized phone.
func (s *Service) GetByPhone(ctx context.Context, rawPhone string) (repository.Lead, error) {
	return s.repo.GetByPhone(ctx, phone.NormalizeE164(rawPhone))
}

// Conversation returns the lead's logged exchanges, oldest first.
func (s *Service) Conversation(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.ConversationEntry, error) {
	return s.repo.ListConversation(ctx, leadID, limit)
}

// NudgeAbandoned queues re-engagement messages for qualified leads idle
// since before the cutoff. Each lead is handled under its lock so the
// sweep cannot interleave with an inbound message. Returns the number of
// nudges queued.
func (s *Service) NudgeAbandoned(ctx context.Context, idleFor time.Duration) (int, error) {
	cutoff := time.Now().Add(-idleFor)
	leads, err := s.repo.ListIdleInStage(ctx, domain.StageQualified, cutoff)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, lead := range leads {
		created, err := s.nudgeOne(ctx, lead)
		if err != nil {
			s.log.Warn("abandoned lead nudge failed", "lead_id", lead.ID.String(), "error", err)
			continue
		}
		if created {
			queued++
		}
	}
	return queued, nil
}

func (s *Service) nudgeOne(ctx context.Context, lead repository.Lead) (bool, error) {
	release := s.locks.acquire(lead.Phone)
	defer release()

	// Re-check under the lock: an inbound message may have just landed.
	fresh, err := s.repo.GetByID(ctx, lead.ID)
	if err != nil {
		return false, err
	}
	if fresh.Stage != domain.StageQualified || fresh.LastInteraction.After(lead.LastInteraction) {
		return false, nil
	}

	body := renderNudge(fresh.Name, fresh.Rooms, fresh.Budget)
	created, err := s.nudges.ScheduleNudge(ctx, fresh.ID, body)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	// Touching the idle clock keeps the next sweep from queueing another
	// nudge for the same silence.
	return true, s.repo.TouchLastInteraction(ctx, fresh.ID)
}

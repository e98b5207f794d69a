package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/events"
	"leasingbot_backend/internal/leads/domain"
	"leasingbot_backend/internal/leads/ports"
	"leasingbot_backend/internal/leads/repository"
	"leasingbot_backend/internal/matching"
	"leasingbot_backend/platform/apperr"
	"leasingbot_backend/platform/logger"
)

type fakeStore struct {
	byPhone map[string]repository.Lead
	byID    map[uuid.UUID]repository.Lead
	log     []repository.ConversationEntry
	idle    []repository.Lead
	touched int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byPhone: make(map[string]repository.Lead),
		byID:    make(map[uuid.UUID]repository.Lead),
	}
}

func (f *fakeStore) put(lead repository.Lead) {
	f.byPhone[lead.Phone] = lead
	f.byID[lead.ID] = lead
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.byID[id]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeStore) GetByPhone(_ context.Context, phone string) (repository.Lead, error) {
	lead, ok := f.byPhone[phone]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (repository.Lead, error) {
	if _, exists := f.byPhone[params.Phone]; exists {
		return repository.Lead{}, apperr.Conflict("lead already exists")
	}
	lead := repository.Lead{
		ID:              uuid.New(),
		Phone:           params.Phone,
		Name:            params.Name,
		Stage:           domain.StageNew,
		Source:          params.Source,
		CreatedAt:       time.Now(),
		LastInteraction: time.Now(),
	}
	f.put(lead)
	return lead, nil
}

func (f *fakeStore) SaveState(_ context.Context, id uuid.UUID, state domain.LeadState) error {
	lead, ok := f.byID[id]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	lead.Stage = state.Stage
	lead.HasPayslips = state.HasPayslips
	lead.CanPayDeposit = state.CanPayDeposit
	lead.MoveInDate = state.MoveInDate
	lead.Rooms = state.Profile.Rooms
	lead.Budget = state.Profile.Budget
	lead.LastInteraction = time.Now()
	f.put(lead)
	return nil
}

func (f *fakeStore) TouchLastInteraction(_ context.Context, id uuid.UUID) error {
	f.touched++
	lead, ok := f.byID[id]
	if ok {
		lead.LastInteraction = time.Now()
		f.put(lead)
	}
	return nil
}

func (f *fakeStore) ListIdleInStage(_ context.Context, stage domain.Stage, _ time.Time) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0, len(f.idle))
	for _, lead := range f.idle {
		if lead.Stage == stage {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendConversation(_ context.Context, leadID uuid.UUID, direction repository.Direction, content string, metadata map[string]any) error {
	f.log = append(f.log, repository.ConversationEntry{
		ID:        uuid.New(),
		LeadID:    leadID,
		Direction: direction,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) LastUserMessage(_ context.Context, leadID uuid.UUID) (string, error) {
	for i := len(f.log) - 1; i >= 0; i-- {
		if f.log[i].LeadID == leadID && f.log[i].Direction == repository.DirectionUser {
			return f.log[i].Content, nil
		}
	}
	return "", nil
}

func (f *fakeStore) ListConversation(_ context.Context, leadID uuid.UUID, _ int) ([]repository.ConversationEntry, error) {
	out := make([]repository.ConversationEntry, 0, len(f.log))
	for _, entry := range f.log {
		if entry.LeadID == leadID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	units []matching.Unit
}

func (f *fakeCatalog) AvailableUnitsSnapshot(context.Context) ([]matching.Unit, error) {
	return f.units, nil
}

func (f *fakeCatalog) UnitSnapshot(_ context.Context, unitID uuid.UUID) (matching.Unit, error) {
	for _, u := range f.units {
		if u.ID == unitID {
			return u, nil
		}
	}
	return matching.Unit{}, apperr.NotFound("unit not found")
}

type fakeBooker struct {
	fail     bool
	booked   []ports.BookTourParams
	bookedID uuid.UUID
}

func (f *fakeBooker) Propose(_ context.Context, params ports.BookTourParams) (ports.TourBooking, error) {
	if f.fail {
		return ports.TourBooking{}, apperr.Unavailable("calendar booking failed")
	}
	f.booked = append(f.booked, params)
	f.bookedID = uuid.New()
	return ports.TourBooking{AppointmentID: f.bookedID, ScheduledTime: params.Slot}, nil
}

type fakeSender struct {
	fail bool
	sent []string
}

func (f *fakeSender) SendText(_ context.Context, _ string, body string) error {
	if f.fail {
		return apperr.Unavailable("gateway down")
	}
	f.sent = append(f.sent, body)
	return nil
}

type fakeNudges struct {
	created   bool
	scheduled []uuid.UUID
}

func (f *fakeNudges) ScheduleNudge(_ context.Context, leadID uuid.UUID, _ string) (bool, error) {
	f.scheduled = append(f.scheduled, leadID)
	return f.created, nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type funnelFixture struct {
	svc     *Service
	store   *fakeStore
	catalog *fakeCatalog
	booker  *fakeBooker
	sender  *fakeSender
	nudges  *fakeNudges
	bus     *recordingBus
}

func newFunnelFixture(t *testing.T) *funnelFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	f := &funnelFixture{
		store:   newFakeStore(),
		catalog: &fakeCatalog{},
		booker:  &fakeBooker{},
		sender:  &fakeSender{},
		nudges:  &fakeNudges{created: true},
		bus:     &recordingBus{},
	}
	f.svc = New(f.store, f.catalog, f.booker, f.sender, f.nudges, f.bus, logger.New("test"), matching.Policy{MaxResults: 3}, loc)
	return f
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// qualifiedLead seeds a lead one profile answer short of qualification.
func (f *funnelFixture) collectingLead(phone string) repository.Lead {
	moveIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	area := "מרכז"
	lead := repository.Lead{
		ID:              uuid.New(),
		Phone:           phone,
		Name:            "דנה",
		Stage:           domain.StageCollectingProfile,
		HasPayslips:     boolPtr(true),
		CanPayDeposit:   boolPtr(true),
		MoveInDate:      &moveIn,
		Rooms:           intPtr(3),
		Budget:          intPtr(6000),
		NeedsParking:    boolPtr(false),
		PreferredArea:   &area,
		FloorMin:        intPtr(1),
		FloorMax:        intPtr(10),
		NeedsFurnished:  boolPtr(false),
		LastInteraction: time.Now(),
	}
	f.store.put(lead)
	return lead
}

func TestProcessInboundCreatesLeadAndAsksFirstGate(t *testing.T) {
	f := newFunnelFixture(t)

	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "דנה", "היי", domain.Contact{})
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if res.Stage != domain.StageGatePayslips {
		t.Fatalf("stage = %q, want %q", res.Stage, domain.StageGatePayslips)
	}
	if len(res.Replies) != 1 || !strings.Contains(res.Replies[0], "תלושי שכר") {
		t.Fatalf("replies = %v, want payslips question", res.Replies)
	}

	lead, err := f.store.GetByPhone(context.Background(), "+972501234567")
	if err != nil {
		t.Fatalf("lead not stored under normalized phone: %v", err)
	}
	if lead.Stage != domain.StageGatePayslips {
		t.Fatalf("stored stage = %q", lead.Stage)
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("published %d events, want 1 stage change", len(f.bus.published))
	}
}

func TestProcessInboundRejectsEmptyPhone(t *testing.T) {
	f := newFunnelFixture(t)

	_, err := f.svc.ProcessInbound(context.Background(), "", "", "", domain.Contact{})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestProcessInboundAbsorbsRedeliveredMessage(t *testing.T) {
	f := newFunnelFixture(t)

	first, err := f.svc.ProcessInbound(context.Background(), "0501234567", "דנה", "היי", domain.Contact{})
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	entries := len(f.store.log)
	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "דנה", "היי", domain.Contact{})
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !res.Duplicate {
		t.Fatal("redelivered message not flagged as duplicate")
	}
	if res.Stage != first.Stage {
		t.Fatalf("stage moved on duplicate: %q", res.Stage)
	}
	if len(f.store.log) != entries {
		t.Fatalf("conversation grew on duplicate: %d -> %d", entries, len(f.store.log))
	}
}

func TestProcessInboundRejectsOutOfOrderEvent(t *testing.T) {
	f := newFunnelFixture(t)

	if _, err := f.svc.ProcessInbound(context.Background(), "0501234567", "דנה", "היי", domain.Contact{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Deposit answer while the payslips gate is active.
	_, err := f.svc.ProcessInbound(context.Background(), "0501234567", "", "כן",
		domain.GateAnswer{Gate: domain.GateDeposit, Positive: true})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestQualificationRunsMatchingAndRecommends(t *testing.T) {
	f := newFunnelFixture(t)
	f.collectingLead("+972501234567")
	f.catalog.units = []matching.Unit{
		{ID: uuid.New(), PropertyName: "מגדל הים", UnitNumber: "12", Price: 5800, Rooms: 3, Floor: 4},
		{ID: uuid.New(), PropertyName: "מגדל הים", UnitNumber: "31", Price: 7200, Rooms: 4, Floor: 8},
	}

	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "", "אין חיות",
		domain.ProfileAnswer{Field: domain.FieldPetOwner, Bool: boolPtr(false)})
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if res.Stage != domain.StageQualified {
		t.Fatalf("stage = %q, want %q", res.Stage, domain.StageQualified)
	}
	if len(res.Replies) != 1 || !strings.Contains(res.Replies[0], "דירה 12") {
		t.Fatalf("replies = %v, want recommendation containing the in-budget unit", res.Replies)
	}
	if strings.Contains(res.Replies[0], "דירה 31") {
		t.Fatal("over-budget unit was recommended")
	}
}

func TestQualificationWithNoEligibleUnitsRoutesNoFit(t *testing.T) {
	f := newFunnelFixture(t)
	f.collectingLead("+972501234567")
	f.catalog.units = []matching.Unit{
		{ID: uuid.New(), PropertyName: "מגדל הים", UnitNumber: "31", Price: 7200, Rooms: 4, Floor: 8},
	}

	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "", "אין חיות",
		domain.ProfileAnswer{Field: domain.FieldPetOwner, Bool: boolPtr(false)})
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if res.Stage != domain.StageNoFit {
		t.Fatalf("stage = %q, want %q", res.Stage, domain.StageNoFit)
	}
	if len(res.Replies) != 1 || !strings.Contains(res.Replies[0], "אין כרגע דירה") {
		t.Fatalf("replies = %v, want no-fit notice", res.Replies)
	}
}

func TestUnitSelectedBooksTour(t *testing.T) {
	f := newFunnelFixture(t)
	lead := f.collectingLead("+972501234567")
	lead.Stage = domain.StageQualified
	f.store.put(lead)

	unitID := uuid.New()
	slot := time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC)
	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "", "דירה 12 ביום חמישי",
		domain.UnitSelected{UnitID: unitID, Slot: slot})
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if res.Stage != domain.StageTourScheduled {
		t.Fatalf("stage = %q, want %q", res.Stage, domain.StageTourScheduled)
	}
	if len(f.booker.booked) != 1 || f.booker.booked[0].UnitID != unitID {
		t.Fatalf("booker calls = %+v", f.booker.booked)
	}
	if len(res.Replies) != 1 || !strings.Contains(res.Replies[0], "הסיור נקבע") {
		t.Fatalf("replies = %v, want confirmation", res.Replies)
	}
}

func TestBookingFailureReturnsLeadToQualified(t *testing.T) {
	f := newFunnelFixture(t)
	lead := f.collectingLead("+972501234567")
	lead.Stage = domain.StageQualified
	f.store.put(lead)
	f.booker.fail = true

	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "", "דירה 12",
		domain.UnitSelected{UnitID: uuid.New(), Slot: time.Now().Add(48 * time.Hour)})
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if res.Stage != domain.StageQualified {
		t.Fatalf("stage = %q, want %q after failed booking", res.Stage, domain.StageQualified)
	}
	if len(res.Replies) != 1 || !strings.Contains(res.Replies[0], "משהו השתבש") {
		t.Fatalf("replies = %v, want booking failure notice", res.Replies)
	}
}

func TestSendFailureDoesNotAbortTransition(t *testing.T) {
	f := newFunnelFixture(t)
	f.sender.fail = true

	res, err := f.svc.ProcessInbound(context.Background(), "0501234567", "דנה", "היי", domain.Contact{})
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}
	if res.Stage != domain.StageGatePayslips {
		t.Fatalf("stage = %q, transition must survive a send failure", res.Stage)
	}
	if len(res.Replies) != 0 {
		t.Fatalf("replies = %v, want none when delivery failed", res.Replies)
	}
}

func TestNudgeAbandonedQueuesAndTouches(t *testing.T) {
	f := newFunnelFixture(t)
	lead := f.collectingLead("+972501234567")
	lead.Stage = domain.StageQualified
	lead.LastInteraction = time.Now().Add(-6 * time.Hour)
	f.store.put(lead)
	f.store.idle = []repository.Lead{lead}

	queued, err := f.svc.NudgeAbandoned(context.Background(), 4*time.Hour)
	if err != nil {
		t.Fatalf("NudgeAbandoned: %v", err)
	}
	if queued != 1 {
		t.Fatalf("queued = %d, want 1", queued)
	}
	if len(f.nudges.scheduled) != 1 || f.nudges.scheduled[0] != lead.ID {
		t.Fatalf("scheduled = %v", f.nudges.scheduled)
	}
	if f.store.touched != 1 {
		t.Fatalf("touched = %d, want 1", f.store.touched)
	}
}

func TestNudgeAbandonedSkipsLeadsThatMovedOn(t *testing.T) {
	f := newFunnelFixture(t)
	lead := f.collectingLead("+972501234567")
	lead.Stage = domain.StageQualified
	lead.LastInteraction = time.Now().Add(-6 * time.Hour)
	f.store.idle = []repository.Lead{lead}

	// The stored row advanced since the sweep listed it.
	lead.Stage = domain.StageTourScheduled
	f.store.put(lead)

	queued, err := f.svc.NudgeAbandoned(context.Background(), 4*time.Hour)
	if err != nil {
		t.Fatalf("NudgeAbandoned: %v", err)
	}
	if queued != 0 {
		t.Fatalf("queued = %d, want 0", queued)
	}
	if len(f.nudges.scheduled) != 0 {
		t.Fatalf("scheduled = %v, want none", f.nudges.scheduled)
	}
}

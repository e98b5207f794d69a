package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/appointments/repository"
	"leasingbot_backend/internal/events"
	"leasingbot_backend/platform/apperr"
	"leasingbot_backend/platform/logger"
)

type fakeStore struct {
	active    map[uuid.UUID]repository.Appointment
	byID      map[uuid.UUID]repository.Appointment
	deleted   []uuid.UUID
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		active: make(map[uuid.UUID]repository.Appointment),
		byID:   make(map[uuid.UUID]repository.Appointment),
	}
}

func (f *fakeStore) CreatePending(_ context.Context, params repository.CreatePendingParams) (repository.Appointment, error) {
	if f.createErr != nil {
		return repository.Appointment{}, f.createErr
	}
	if _, ok := f.active[params.LeadID]; ok {
		return repository.Appointment{}, apperr.Conflict("lead already has an active appointment")
	}
	appt := repository.Appointment{
		ID:              uuid.New(),
		LeadID:          params.LeadID,
		UnitID:          &params.UnitID,
		ScheduledTime:   params.ScheduledTime,
		DurationMinutes: params.DurationMinutes,
		Status:          repository.StatusPending,
	}
	f.active[params.LeadID] = appt
	f.byID[appt.ID] = appt
	return appt, nil
}

func (f *fakeStore) Promote(_ context.Context, id uuid.UUID, externalEventID string) (repository.Appointment, error) {
	appt, ok := f.byID[id]
	if !ok || appt.Status != repository.StatusPending {
		return repository.Appointment{}, apperr.Conflict("appointment is not pending")
	}
	appt.Status = repository.StatusScheduled
	appt.ExternalEventID = &externalEventID
	f.byID[id] = appt
	f.active[appt.LeadID] = appt
	return appt, nil
}

func (f *fakeStore) DeletePending(_ context.Context, id uuid.UUID) error {
	if appt, ok := f.byID[id]; ok && appt.Status == repository.StatusPending {
		delete(f.byID, id)
		delete(f.active, appt.LeadID)
		f.deleted = append(f.deleted, id)
	}
	return nil
}

func (f *fakeStore) CancelActiveForLead(_ context.Context, leadID uuid.UUID) (*repository.Appointment, error) {
	appt, ok := f.active[leadID]
	if !ok {
		return nil, nil
	}
	appt.Status = repository.StatusCanceled
	f.byID[appt.ID] = appt
	delete(f.active, leadID)
	return &appt, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Appointment, error) {
	appt, ok := f.byID[id]
	if !ok {
		return repository.Appointment{}, apperr.NotFound("appointment not found")
	}
	return appt, nil
}

func (f *fakeStore) GetByExternalEventID(_ context.Context, externalEventID string) (repository.Appointment, error) {
	for _, appt := range f.byID {
		if appt.ExternalEventID != nil && *appt.ExternalEventID == externalEventID {
			return appt, nil
		}
	}
	return repository.Appointment{}, apperr.NotFound("appointment not found")
}

func (f *fakeStore) GetActiveByLead(_ context.Context, leadID uuid.UUID) (repository.Appointment, error) {
	appt, ok := f.active[leadID]
	if !ok {
		return repository.Appointment{}, apperr.NotFound("no active appointment for lead")
	}
	return appt, nil
}

func (f *fakeStore) Transition(_ context.Context, id uuid.UUID, from []repository.Status, to repository.Status) (repository.Appointment, error) {
	appt, ok := f.byID[id]
	if !ok {
		return repository.Appointment{}, apperr.NotFound("appointment not found")
	}
	allowed := false
	for _, s := range from {
		if appt.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return repository.Appointment{}, apperr.Conflict("appointment status does not allow this transition")
	}
	appt.Status = to
	f.byID[id] = appt
	if to == repository.StatusScheduled || to == repository.StatusPending {
		f.active[appt.LeadID] = appt
	} else {
		delete(f.active, appt.LeadID)
	}
	return appt, nil
}

type fakeCalendar struct {
	created   []CalendarEvent
	canceled  []string
	createErr error
	nextID    int
}

func (f *fakeCalendar) CreateEvent(_ context.Context, event CalendarEvent) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, event)
	f.nextID++
	return fmt.Sprintf("evt-%d", f.nextID), nil
}

func (f *fakeCalendar) CancelEvent(_ context.Context, externalEventID string) error {
	f.canceled = append(f.canceled, externalEventID)
	return nil
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

func newTestService(store Store, cal Calendar, bus events.Bus) *Service {
	return New(store, cal, bus, logger.New("development"), time.Second)
}

func TestProposeBooksAndPublishes(t *testing.T) {
	store := newFakeStore()
	cal := &fakeCalendar{}
	bus := &recordingBus{}
	svc := newTestService(store, cal, bus)

	leadID := uuid.New()
	slot := time.Now().Add(48 * time.Hour)

	appt, err := svc.Propose(context.Background(), ProposeParams{
		LeadID:    leadID,
		LeadPhone: "+972501234567",
		LeadName:  "Dana",
		UnitID:    uuid.New(),
		Slot:      slot,
	})
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	if appt.Status != repository.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", appt.Status)
	}
	if appt.ExternalEventID == nil {
		t.Fatal("expected external event id after promotion")
	}
	if len(cal.created) != 1 {
		t.Fatalf("calendar events created = %d, want 1", len(cal.created))
	}

	var scheduled *events.AppointmentScheduled
	for _, ev := range bus.published {
		if e, ok := ev.(events.AppointmentScheduled); ok {
			scheduled = &e
		}
	}
	if scheduled == nil {
		t.Fatal("expected AppointmentScheduled event")
	}
	if !scheduled.ScheduledTime.Equal(slot) {
		t.Errorf("scheduled time = %v, want %v", scheduled.ScheduledTime, slot)
	}
}

func TestProposeReplacesPriorActiveAppointment(t *testing.T) {
	store := newFakeStore()
	cal := &fakeCalendar{}
	bus := &recordingBus{}
	svc := newTestService(store, cal, bus)

	leadID := uuid.New()
	first, err := svc.Propose(context.Background(), ProposeParams{
		LeadID: leadID, LeadName: "Dana", UnitID: uuid.New(), Slot: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("first Propose: %v", err)
	}

	second, err := svc.Propose(context.Background(), ProposeParams{
		LeadID: leadID, LeadName: "Dana", UnitID: uuid.New(), Slot: time.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("second Propose: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a new appointment row")
	}

	prior, err := store.GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if prior.Status != repository.StatusCanceled {
		t.Errorf("prior status = %s, want canceled", prior.Status)
	}
	if len(cal.canceled) != 1 || cal.canceled[0] != *first.ExternalEventID {
		t.Errorf("expected calendar cancel of %s, got %v", *first.ExternalEventID, cal.canceled)
	}

	cancelEvents := 0
	for _, ev := range bus.published {
		if _, ok := ev.(events.AppointmentCanceled); ok {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Errorf("AppointmentCanceled events = %d, want 1", cancelEvents)
	}
}

func TestProposeRollsBackOnCalendarFailure(t *testing.T) {
	store := newFakeStore()
	cal := &fakeCalendar{createErr: errors.New("calendar down")}
	bus := &recordingBus{}
	svc := newTestService(store, cal, bus)

	leadID := uuid.New()
	_, err := svc.Propose(context.Background(), ProposeParams{
		LeadID: leadID, LeadName: "Dana", UnitID: uuid.New(), Slot: time.Now().Add(24 * time.Hour),
	})
	if err == nil {
		t.Fatal("expected error when calendar fails")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUnavailable {
		t.Fatalf("error kind = %v, want unavailable", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("pending rows deleted = %d, want 1", len(store.deleted))
	}
	if _, err := store.GetActiveByLead(context.Background(), leadID); err == nil {
		t.Error("expected no active appointment after rollback")
	}
	for _, ev := range bus.published {
		if _, ok := ev.(events.AppointmentScheduled); ok {
			t.Error("AppointmentScheduled must not fire on rollback")
		}
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	store := newFakeStore()
	cal := &fakeCalendar{}
	bus := &recordingBus{}
	svc := newTestService(store, cal, bus)

	appt, err := svc.Propose(context.Background(), ProposeParams{
		LeadID: uuid.New(), LeadName: "Dana", UnitID: uuid.New(), Slot: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("second Cancel should be a no-op, got: %v", err)
	}

	cancelEvents := 0
	for _, ev := range bus.published {
		if _, ok := ev.(events.AppointmentCanceled); ok {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Errorf("AppointmentCanceled events = %d, want 1", cancelEvents)
	}
}

func TestHandleCompletedPublishesEndTime(t *testing.T) {
	store := newFakeStore()
	cal := &fakeCalendar{}
	bus := &recordingBus{}
	svc := newTestService(store, cal, bus)

	appt, err := svc.Propose(context.Background(), ProposeParams{
		LeadID: uuid.New(), LeadName: "Dana", UnitID: uuid.New(), Slot: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if err := svc.HandleCompleted(context.Background(), *appt.ExternalEventID, nil); err != nil {
		t.Fatalf("HandleCompleted: %v", err)
	}
	// A repeated callback must not transition again.
	if err := svc.HandleCompleted(context.Background(), *appt.ExternalEventID, nil); err != nil {
		t.Fatalf("repeated HandleCompleted: %v", err)
	}

	var completed *events.AppointmentCompleted
	count := 0
	for _, ev := range bus.published {
		if e, ok := ev.(events.AppointmentCompleted); ok {
			completed = &e
			count++
		}
	}
	if count != 1 {
		t.Fatalf("AppointmentCompleted events = %d, want 1", count)
	}
	wantEnd := appt.ScheduledTime.Add(time.Duration(appt.DurationMinutes) * time.Minute)
	if !completed.EndTime.Equal(wantEnd) {
		t.Errorf("end time = %v, want %v", completed.EndTime, wantEnd)
	}
}

func TestHandleNoShowRequiresScheduled(t *testing.T) {
	store := newFakeStore()
	cal := &fakeCalendar{}
	bus := &recordingBus{}
	svc := newTestService(store, cal, bus)

	appt, err := svc.Propose(context.Background(), ProposeParams{
		LeadID: uuid.New(), LeadName: "Dana", UnitID: uuid.New(), Slot: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	err = svc.HandleNoShow(context.Background(), *appt.ExternalEventID)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("expected conflict for no-show on canceled appointment, got %v", err)
	}
}

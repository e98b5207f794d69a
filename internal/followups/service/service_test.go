package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leasingbot_backend/internal/events"
	"leasingbot_backend/internal/followups/repository"
	"leasingbot_backend/platform/logger"
)

type fakeStore struct {
	tasks []repository.Followup
}

func pendingKey(f repository.CreateParams) string {
	key := f.LeadID.String() + "|" + string(f.MessageType) + "|"
	if f.AppointmentID != nil {
		key += f.AppointmentID.String()
	}
	return key
}

func (s *fakeStore) InsertAll(_ context.Context, params []repository.CreateParams) (int, error) {
	pending := make(map[string]bool)
	for _, t := range s.tasks {
		if t.Status == repository.StatusPending {
			pending[pendingKey(repository.CreateParams{
				LeadID: t.LeadID, AppointmentID: t.AppointmentID, MessageType: t.MessageType,
			})] = true
		}
	}

	created := 0
	for _, p := range params {
		if pending[pendingKey(p)] {
			continue
		}
		s.tasks = append(s.tasks, repository.Followup{
			ID:            uuid.New(),
			LeadID:        p.LeadID,
			AppointmentID: p.AppointmentID,
			MessageType:   p.MessageType,
			Content:       p.Content,
			SendAt:        p.SendAt,
			Status:        repository.StatusPending,
		})
		pending[pendingKey(p)] = true
		created++
	}
	return created, nil
}

func (s *fakeStore) CancelPendingForAppointment(_ context.Context, appointmentID uuid.UUID) (int, error) {
	canceled := 0
	for i, t := range s.tasks {
		if t.AppointmentID != nil && *t.AppointmentID == appointmentID && t.Status == repository.StatusPending {
			s.tasks[i].Status = repository.StatusCanceled
			canceled++
		}
	}
	return canceled, nil
}

func (s *fakeStore) CancelPendingNudges(_ context.Context, leadID uuid.UUID) (int, error) {
	canceled := 0
	for i, t := range s.tasks {
		if t.LeadID == leadID && t.MessageType == repository.TypeAbandonedLead && t.Status == repository.StatusPending {
			s.tasks[i].Status = repository.StatusCanceled
			canceled++
		}
	}
	return canceled, nil
}

func (s *fakeStore) ListForLead(_ context.Context, leadID uuid.UUID) ([]repository.Followup, error) {
	out := make([]repository.Followup, 0)
	for _, t := range s.tasks {
		if t.LeadID == leadID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) pendingCount() int {
	n := 0
	for _, t := range s.tasks {
		if t.Status == repository.StatusPending {
			n++
		}
	}
	return n
}

func (s *fakeStore) byType(mt repository.MessageType) *repository.Followup {
	for i, t := range s.tasks {
		if t.MessageType == mt {
			return &s.tasks[i]
		}
	}
	return nil
}

func newTestService(store *fakeStore, now time.Time) *Service {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		panic(err)
	}
	svc := New(store, logger.New("development"), loc, 19, 9)
	svc.now = func() time.Time { return now }
	return svc
}

func TestScheduleForAppointmentCreatesThreeReminders(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	svc := newTestService(store, now)

	scheduled := time.Date(2026, 3, 4, 14, 0, 0, 0, loc)
	leadID, apptID := uuid.New(), uuid.New()

	created, err := svc.ScheduleForAppointment(context.Background(), leadID, apptID, scheduled)
	if err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}

	wantTimes := map[repository.MessageType]time.Time{
		repository.TypeEveningBefore: time.Date(2026, 3, 3, 19, 0, 0, 0, loc),
		repository.TypeMorningOf:     time.Date(2026, 3, 4, 9, 0, 0, 0, loc),
		repository.TypeThreeHours:    time.Date(2026, 3, 4, 11, 0, 0, 0, loc),
	}
	for mt, want := range wantTimes {
		task := store.byType(mt)
		if task == nil {
			t.Fatalf("missing %s task", mt)
		}
		if !task.SendAt.Equal(want) {
			t.Errorf("%s send_at = %v, want %v", mt, task.SendAt, want)
		}
		if task.Content == "" {
			t.Errorf("%s has empty content", mt)
		}
	}
}

func TestScheduleForAppointmentSkipsPastDueReminders(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	// Evening-before (today 19:00) has already passed.
	now := time.Date(2026, 3, 3, 20, 0, 0, 0, loc)
	svc := newTestService(store, now)

	scheduled := time.Date(2026, 3, 4, 10, 0, 0, 0, loc)
	created, err := svc.ScheduleForAppointment(context.Background(), uuid.New(), uuid.New(), scheduled)
	if err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if store.byType(repository.TypeEveningBefore) != nil {
		t.Error("evening-before reminder must be skipped when its time passed")
	}
	if store.byType(repository.TypeMorningOf) == nil || store.byType(repository.TypeThreeHours) == nil {
		t.Error("morning-of and three-hours reminders expected")
	}
}

func TestScheduleForAppointmentSkipsMorningAfterStart(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	svc := newTestService(store, now)

	// Tour at 08:00: the 09:00 morning reminder would land after the tour.
	scheduled := time.Date(2026, 3, 4, 8, 0, 0, 0, loc)
	if _, err := svc.ScheduleForAppointment(context.Background(), uuid.New(), uuid.New(), scheduled); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}
	if store.byType(repository.TypeMorningOf) != nil {
		t.Error("morning-of reminder must not land after the tour starts")
	}
}

func TestScheduleForAppointmentIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	svc := newTestService(store, now)

	leadID, apptID := uuid.New(), uuid.New()
	scheduled := time.Date(2026, 3, 4, 14, 0, 0, 0, loc)

	if _, err := svc.ScheduleForAppointment(context.Background(), leadID, apptID, scheduled); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	created, err := svc.ScheduleForAppointment(context.Background(), leadID, apptID, scheduled)
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if created != 0 {
		t.Errorf("second schedule created %d tasks, want 0", created)
	}
	if store.pendingCount() != 3 {
		t.Errorf("pending tasks = %d, want 3", store.pendingCount())
	}
}

func TestCancelForAppointmentIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	svc := newTestService(store, now)

	leadID, apptID := uuid.New(), uuid.New()
	scheduled := time.Date(2026, 3, 4, 14, 0, 0, 0, loc)
	if _, err := svc.ScheduleForAppointment(context.Background(), leadID, apptID, scheduled); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := svc.CancelForAppointment(context.Background(), apptID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if store.pendingCount() != 0 {
		t.Fatalf("pending tasks = %d after cancel, want 0", store.pendingCount())
	}
	if err := svc.CancelForAppointment(context.Background(), apptID); err != nil {
		t.Fatalf("second cancel should be a no-op, got: %v", err)
	}
}

func TestHandleNoShowCancelsRemindersAndQueuesFollowup(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 4, 14, 30, 0, 0, loc)
	svc := newTestService(store, now)

	leadID, apptID := uuid.New(), uuid.New()
	store.InsertAll(context.Background(), []repository.CreateParams{{
		LeadID:        leadID,
		AppointmentID: &apptID,
		MessageType:   repository.TypeThreeHours,
		Content:       "reminder",
		SendAt:        now.Add(time.Hour),
	}})

	err := svc.Handle(context.Background(), events.AppointmentNoShow{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: apptID,
		LeadID:        leadID,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	reminder := store.byType(repository.TypeThreeHours)
	if reminder.Status != repository.StatusCanceled {
		t.Errorf("reminder status = %s, want canceled", reminder.Status)
	}
	noShow := store.byType(repository.TypeNoShow)
	if noShow == nil {
		t.Fatal("expected a no-show followup task")
	}
	if !noShow.SendAt.Equal(now.Add(noShowDelay)) {
		t.Errorf("no-show send_at = %v, want %v", noShow.SendAt, now.Add(noShowDelay))
	}
}

func TestStageChangeCancelsPendingNudgeOnly(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	svc := newTestService(store, now)

	leadID, apptID := uuid.New(), uuid.New()
	if _, err := svc.ScheduleNudge(context.Background(), leadID, "hi"); err != nil {
		t.Fatalf("ScheduleNudge: %v", err)
	}
	scheduled := time.Date(2026, 3, 4, 14, 0, 0, 0, loc)
	if _, err := svc.ScheduleForAppointment(context.Background(), leadID, apptID, scheduled); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	err := svc.Handle(context.Background(), events.LeadStageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		From:      "collecting_profile",
		To:        "qualified",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	nudge := store.byType(repository.TypeAbandonedLead)
	if nudge.Status != repository.StatusCanceled {
		t.Errorf("nudge status = %s, want canceled", nudge.Status)
	}
	if store.pendingCount() != 3 {
		t.Errorf("pending tasks = %d, want the 3 reminders untouched", store.pendingCount())
	}
}

func TestScheduleNudgeDeduplicates(t *testing.T) {
	store := &fakeStore{}
	loc, _ := time.LoadLocation("Asia/Jerusalem")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	svc := newTestService(store, now)

	leadID := uuid.New()
	created, err := svc.ScheduleNudge(context.Background(), leadID, "hi")
	if err != nil || !created {
		t.Fatalf("first nudge: created=%v err=%v", created, err)
	}
	created, err = svc.ScheduleNudge(context.Background(), leadID, "hi again")
	if err != nil {
		t.Fatalf("second nudge: %v", err)
	}
	if created {
		t.Error("second nudge must not create a task while one is pending")
	}
}

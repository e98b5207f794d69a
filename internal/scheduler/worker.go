package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/internal/followups/repository"
	"leasingbot_backend/platform/apperr"
	"leasingbot_backend/platform/config"
	"leasingbot_backend/platform/logger"
)

// MessageSender delivers one outbound message; the WhatsApp client
// satisfies it.
type MessageSender interface {
	SendText(ctx context.Context, phone, body string) error
}

// Store is the persistence surface the worker needs, implemented by
// repository.Repository.
type Store interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (repository.Followup, string, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ReturnPending(ctx context.Context, id uuid.UUID, reason string) error
}

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	repo        Store
	sender      MessageSender
	log         *logger.Logger
	maxAttempts int
}

func NewWorker(cfg config.SchedulerConfig, fcfg config.FollowupConfig, pool *pgxpool.Pool, sender MessageSender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		repo:        repository.New(pool),
		sender:      sender,
		log:         log,
		maxAttempts: fcfg.GetFollowupMaxAttempts(),
	}

	mux.HandleFunc(TaskFollowupDue, w.handleFollowupDue)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleFollowupDue delivers one claimed task. The status re-check right
// before sending closes the race with a cancellation that landed between
// claim and delivery.
func (w *Worker) handleFollowupDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupDuePayload(task)
	if err != nil {
		return err
	}

	followupID, err := uuid.Parse(payload.FollowupID)
	if err != nil {
		return err
	}

	f, phone, err := w.repo.GetDelivery(ctx, followupID)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
			return nil
		}
		return err
	}
	if f.Status != repository.StatusPending {
		return nil
	}

	if err := w.sender.SendText(ctx, phone, f.Content); err != nil {
		w.log.DeliveryEvent(phone, string(f.MessageType), false, err.Error())
		return w.recordFailure(ctx, f, err)
	}

	w.log.DeliveryEvent(phone, string(f.MessageType), true, "")
	if err := w.repo.MarkSent(ctx, f.ID); err != nil {
		w.log.DatabaseError("followups.mark_sent", err)
		return err
	}
	return nil
}

// recordFailure decides between another try and giving up. Permanent
// gateway rejections and exhausted attempts finalize the task; anything
// else goes back in the queue to resurface after the visibility window.
func (w *Worker) recordFailure(ctx context.Context, f repository.Followup, sendErr error) error {
	var appErr *apperr.Error
	permanent := errors.As(sendErr, &appErr) && appErr.Kind == apperr.KindBadRequest

	if permanent || (w.maxAttempts > 0 && f.Attempts >= w.maxAttempts) {
		return w.repo.MarkFailed(ctx, f.ID, sendErr.Error())
	}
	return w.repo.ReturnPending(ctx, f.ID, sendErr.Error())
}

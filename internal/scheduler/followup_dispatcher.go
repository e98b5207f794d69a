package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/internal/followups/repository"
	"leasingbot_backend/platform/config"
	"leasingbot_backend/platform/logger"
)

const (
	claimBatchSize = 50
	// A claimed task invisible to later polls for this long; if the
	// worker dies before finishing it, the task resurfaces.
	claimVisibility = 2 * time.Minute
)

// FollowupDispatcher polls the followups table for due tasks and hands
// them to the asynq queue. Claiming uses row locks, so several dispatcher
// replicas can run against the same database.
type FollowupDispatcher struct {
	client       *asynq.Client
	queue        string
	repo         *repository.Repository
	log          *logger.Logger
	pollInterval time.Duration
	maxAttempts  int
}

func NewFollowupDispatcher(cfg config.SchedulerConfig, fcfg config.FollowupConfig, pool *pgxpool.Pool, log *logger.Logger) (*FollowupDispatcher, error) {
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

	poll := fcfg.GetFollowupPollInterval()
	if poll <= 0 {
		poll = 30 * time.Second
	}

	return &FollowupDispatcher{
		client:       asynq.NewClient(opt),
		queue:        queue,
		repo:         repository.New(pool),
		log:          log,
		pollInterval: poll,
		maxAttempts:  fcfg.GetFollowupMaxAttempts(),
	}, nil
}

func (d *FollowupDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *FollowupDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		claimed, err := d.repo.ClaimDue(ctx, time.Now(), claimBatchSize, claimVisibility)
		if err != nil {
			d.log.Warn("followup claim failed", "error", err)
			continue
		}
		if len(claimed) == 0 {
			continue
		}

		for _, f := range claimed {
			if d.maxAttempts > 0 && f.Attempts > d.maxAttempts {
				if err := d.repo.MarkFailed(ctx, f.ID, "max delivery attempts exceeded"); err != nil {
					d.log.DatabaseError("followups.mark_failed", err)
				}
				continue
			}

			task, err := NewFollowupDueTask(FollowupDuePayload{FollowupID: f.ID.String()})
			if err != nil {
				d.log.Warn("followup task build failed", "followup_id", f.ID.String(), "error", err)
				continue
			}

			// Retries live in the task row's attempt counter, so asynq
			// itself never retries.
			_, err = d.client.EnqueueContext(ctx, task, asynq.Queue(d.queue), asynq.MaxRetry(0))
			if err != nil {
				d.log.Warn("followup enqueue failed", "followup_id", f.ID.String(), "error", err)
				if retErr := d.repo.ReturnPending(ctx, f.ID, "enqueue failed: "+err.Error()); retErr != nil {
					d.log.DatabaseError("followups.return_pending", retErr)
				}
			}
		}
	}
}

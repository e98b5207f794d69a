package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"leasingbot_backend/internal/metrics/repository"
	"leasingbot_backend/platform/logger"
)

const (
	metricsRollupSpec = "55 23 * * *"
	abandonedSpec     = "0 * * * *"

	cronJobTimeout = 5 * time.Minute
)

// MetricsRoller recomputes the daily funnel numbers; the metrics service
// satisfies it.
type MetricsRoller interface {
	RollupToday(ctx context.Context) (repository.DailyMetrics, error)
}

// AbandonedNudger queues re-engagement messages for leads that went
// quiet mid-funnel; the leads service satisfies it.
type AbandonedNudger interface {
	NudgeAbandoned(ctx context.Context, idleFor time.Duration) (int, error)
}

// CronJobs owns the recurring maintenance work: the nightly metrics
// rollup and the hourly abandoned-lead sweep. All schedules run in the
// business timezone.
type CronJobs struct {
	cron    *cron.Cron
	log     *logger.Logger
	metrics MetricsRoller
	nudger  AbandonedNudger
	idleFor time.Duration
}

func NewCronJobs(loc *time.Location, metrics MetricsRoller, nudger AbandonedNudger, idleFor time.Duration, log *logger.Logger) (*CronJobs, error) {
	j := &CronJobs{
		cron:    cron.New(cron.WithLocation(loc)),
		log:     log,
		metrics: metrics,
		nudger:  nudger,
		idleFor: idleFor,
	}

	if _, err := j.cron.AddFunc(metricsRollupSpec, j.runMetricsRollup); err != nil {
		return nil, err
	}
	if _, err := j.cron.AddFunc(abandonedSpec, j.runAbandonedSweep); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *CronJobs) Start() {
	j.cron.Start()
	j.log.Info("cron jobs started",
		"metrics_rollup", metricsRollupSpec,
		"abandoned_sweep", abandonedSpec,
	)
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (j *CronJobs) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("cron jobs stopped")
}

func (j *CronJobs) runMetricsRollup() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	m, err := j.metrics.RollupToday(ctx)
	if err != nil {
		j.log.Error("daily metrics rollup failed", "error", err)
		return
	}
	j.log.Info("daily metrics rollup complete",
		"date", m.MetricDate.Format("2006-01-02"),
		"total_inquiries", m.TotalInquiries,
		"qualified_leads", m.QualifiedLeads,
		"tours_scheduled", m.ToursScheduled,
		"tours_completed", m.ToursCompleted,
	)
}

func (j *CronJobs) runAbandonedSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	nudged, err := j.nudger.NudgeAbandoned(ctx, j.idleFor)
	if err != nil {
		j.log.Error("abandoned lead sweep failed", "error", err)
		return
	}
	if nudged > 0 {
		j.log.Info("abandoned lead sweep complete", "nudged", nudged)
	}
}

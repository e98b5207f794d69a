// Package service computes the daily funnel rollup.
package service

import (
	"context"
	"time"

	"leasingbot_backend/internal/metrics/repository"
	"leasingbot_backend/platform/logger"
)

// Store is the persistence surface the service needs, implemented by
// repository.Repository.
type Store interface {
	CountsForDay(ctx context.Context, start, end time.Time) (repository.Counts, error)
	Upsert(ctx context.Context, date time.Time, counts repository.Counts, rateQualified, rateScheduled float64) (repository.DailyMetrics, error)
	GetByDate(ctx context.Context, date time.Time) (repository.DailyMetrics, error)
	ListRange(ctx context.Context, from, to time.Time) ([]repository.DailyMetrics, error)
}

type Service struct {
	repo Store
	log  *logger.Logger
	loc  *time.Location
}

func New(repo Store, log *logger.Logger, loc *time.Location) *Service {
	return &Service{repo: repo, log: log, loc: loc}
}

// Rollup recomputes and stores the metrics for the local calendar day
// containing the given time. Re-running a day overwrites the prior row
// with the same result.
func (s *Service) Rollup(ctx context.Context, day time.Time) (repository.DailyMetrics, error) {
	local := day.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	counts, err := s.repo.CountsForDay(ctx, start, end)
	if err != nil {
		return repository.DailyMetrics{}, err
	}

	rolled, err := s.repo.Upsert(ctx, start,
		counts,
		rate(counts.QualifiedLeads, counts.TotalInquiries),
		rate(counts.ToursScheduled, counts.QualifiedLeads),
	)
	if err != nil {
		return repository.DailyMetrics{}, err
	}

	s.log.Info("daily metrics rolled up",
		"date", start.Format("2006-01-02"),
		"total_inquiries", counts.TotalInquiries,
		"qualified_leads", counts.QualifiedLeads,
		"tours_scheduled", counts.ToursScheduled,
		"tours_completed", counts.ToursCompleted,
	)
	return rolled, nil
}

// RollupToday recomputes today's row; the nightly job runs this just
// before midnight.
func (s *Service) RollupToday(ctx context.Context) (repository.DailyMetrics, error) {
	return s.Rollup(ctx, time.Now())
}

// GetByDate returns the rollup for one local calendar day.
func (s *Service) GetByDate(ctx context.Context, day time.Time) (repository.DailyMetrics, error) {
	local := day.In(s.loc)
	return s.repo.GetByDate(ctx, time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc))
}

// ListRange returns the stored rollups between two days inclusive.
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]repository.DailyMetrics, error) {
	return s.repo.ListRange(ctx, from, to)
}

// rate divides num by denom as a ratio, returning 0 when the denominator
// is zero instead of propagating a division error into the report.
func rate(num, denom int) float64 {
	if denom <= 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/platform/apperr"
)

// Counts are the raw funnel tallies for one day.
type Counts struct {
	TotalInquiries int
	QualifiedLeads int
	ToursScheduled int
	ToursCompleted int
}

// DailyMetrics is one persisted rollup row.
type DailyMetrics struct {
	ID                      uuid.UUID
	MetricDate              time.Time
	TotalInquiries          int
	QualifiedLeads          int
	ToursScheduled          int
	ToursCompleted          int
	ConversionRateQualified float64
	ConversionRateScheduled float64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountsForDay tallies funnel activity inside [start, end). Qualified
// counts leads created in the window that got past every gate; scheduled
// counts appointments created in the window that the calendar confirmed;
// completed counts appointments concluded in the window.
func (r *Repository) CountsForDay(ctx context.Context, start, end time.Time) (Counts, error) {
	var c Counts
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM leads
				WHERE created_at >= $1 AND created_at < $2),
			(SELECT count(*) FROM leads
				WHERE created_at >= $1 AND created_at < $2
				  AND stage IN ('qualified', 'scheduling_in_progress', 'tour_scheduled', 'no_fit', 'future_fit')),
			(SELECT count(*) FROM appointments
				WHERE created_at >= $1 AND created_at < $2 AND status <> 'pending'),
			(SELECT count(*) FROM appointments
				WHERE updated_at >= $1 AND updated_at < $2 AND status = 'completed')
	`, start, end).Scan(&c.TotalInquiries, &c.QualifiedLeads, &c.ToursScheduled, &c.ToursCompleted)
	return c, err
}

// Upsert writes the rollup for one date, replacing any prior row for the
// same date so re-running a day is safe.
func (r *Repository) Upsert(ctx context.Context, date time.Time, counts Counts, rateQualified, rateScheduled float64) (DailyMetrics, error) {
	var m DailyMetrics
	err := r.pool.QueryRow(ctx, `
		INSERT INTO metrics_daily (
			id, metric_date, total_inquiries, qualified_leads, tours_scheduled,
			tours_completed, conversion_rate_qualified, conversion_rate_scheduled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (metric_date) DO UPDATE SET
			total_inquiries = EXCLUDED.total_inquiries,
			qualified_leads = EXCLUDED.qualified_leads,
			tours_scheduled = EXCLUDED.tours_scheduled,
			tours_completed = EXCLUDED.tours_completed,
			conversion_rate_qualified = EXCLUDED.conversion_rate_qualified,
			conversion_rate_scheduled = EXCLUDED.conversion_rate_scheduled,
			updated_at = now()
		RETURNING id, metric_date, total_inquiries, qualified_leads, tours_scheduled,
			tours_completed, conversion_rate_qualified, conversion_rate_scheduled,
			created_at, updated_at
	`, uuid.New(), date, counts.TotalInquiries, counts.QualifiedLeads, counts.ToursScheduled,
		counts.ToursCompleted, rateQualified, rateScheduled,
	).Scan(
		&m.ID, &m.MetricDate, &m.TotalInquiries, &m.QualifiedLeads, &m.ToursScheduled,
		&m.ToursCompleted, &m.ConversionRateQualified, &m.ConversionRateScheduled,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// GetByDate returns the rollup for one date.
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (DailyMetrics, error) {
	var m DailyMetrics
	err := r.pool.QueryRow(ctx, `
		SELECT id, metric_date, total_inquiries, qualified_leads, tours_scheduled,
			tours_completed, conversion_rate_qualified, conversion_rate_scheduled,
			created_at, updated_at
		FROM metrics_daily
		WHERE metric_date = $1
	`, date).Scan(
		&m.ID, &m.MetricDate, &m.TotalInquiries, &m.QualifiedLeads, &m.ToursScheduled,
		&m.ToursCompleted, &m.ConversionRateQualified, &m.ConversionRateScheduled,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DailyMetrics{}, apperr.NotFound("no metrics for date")
	}
	return m, err
}

// ListRange returns rollups for [from, to], oldest first.
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]DailyMetrics, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, metric_date, total_inquiries, qualified_leads, tours_scheduled,
			tours_completed, conversion_rate_qualified, conversion_rate_scheduled,
			created_at, updated_at
		FROM metrics_daily
		WHERE metric_date >= $1 AND metric_date <= $2
		ORDER BY metric_date ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DailyMetrics, 0)
	for rows.Next() {
		var m DailyMetrics
		if err := rows.Scan(
			&m.ID, &m.MetricDate, &m.TotalInquiries, &m.QualifiedLeads, &m.ToursScheduled,
			&m.ToursCompleted, &m.ConversionRateQualified, &m.ConversionRateScheduled,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

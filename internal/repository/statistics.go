package repository

import (
	"context"
	"database/sql"

	"queuedesk/internal/models"
)

const statisticColumns = `
	SELECT id, to_char(date, 'YYYY-MM-DD'), service_id, total_served, avg_wait_time, created_at, updated_at
	FROM daily_statistics`

func scanStatistic(row interface{ Scan(...any) error }, st *models.DailyStatistic) error {
	return row.Scan(&st.ID, &st.Date, &st.ServiceID, &st.TotalServed, &st.AvgWaitTime, &st.CreatedAt, &st.UpdatedAt)
}

func (s *PostgresStore) GetDailyStatistic(ctx context.Context, date, serviceID string) (*models.DailyStatistic, error) {
	if !isUUID(serviceID) {
		return nil, nil
	}
	st := &models.DailyStatistic{}
	err := scanStatistic(s.q.QueryRowContext(ctx,
		statisticColumns+` WHERE date = $1::date AND service_id = $2`, date, serviceID), st)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to get daily statistic")
	}
	return st, nil
}

func (s *PostgresStore) SaveDailyStatistic(ctx context.Context, st *models.DailyStatistic) error {
	query := `
		INSERT INTO daily_statistics (id, date, service_id, total_served, avg_wait_time, created_at, updated_at)
		VALUES ($1, $2::date, $3, $4, $5, $6, $6)
		ON CONFLICT (date, service_id) DO UPDATE
		SET total_served = EXCLUDED.total_served,
		    avg_wait_time = EXCLUDED.avg_wait_time,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := s.q.QueryRowContext(ctx, query,
		st.ID,
		st.Date,
		st.ServiceID,
		st.TotalServed,
		st.AvgWaitTime,
		st.UpdatedAt,
	).Scan(&st.ID, &st.CreatedAt)
	return translate(err, "failed to save daily statistic")
}

func (s *PostgresStore) ListDailyStatistics(ctx context.Context, fromDate, toDate, serviceID string) ([]models.DailyStatistic, error) {
	query := statisticColumns + ` WHERE date >= $1::date AND date <= $2::date`
	args := []any{fromDate, toDate}
	if serviceID != "" {
		if !isUUID(serviceID) {
			return []models.DailyStatistic{}, nil
		}
		query += ` AND service_id = $3`
		args = append(args, serviceID)
	}
	query += ` ORDER BY date, service_id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "failed to list daily statistics")
	}
	defer rows.Close()

	stats := []models.DailyStatistic{}
	for rows.Next() {
		var st models.DailyStatistic
		if err := scanStatistic(rows, &st); err != nil {
			return nil, translate(err, "failed to scan daily statistic")
		}
		stats = append(stats, st)
	}
	return stats, translate(rows.Err(), "failed to list daily statistics")
}

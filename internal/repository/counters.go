package repository

import (
	"context"
	"database/sql"

	"queuedesk/internal/models"
)

const counterColumns = `
	SELECT c.id, c.name, c.room_number, c.service_id, s.name, c.created_at
	FROM counters c
	JOIN services s ON s.id = c.service_id`

func scanCounter(row interface{ Scan(...any) error }, c *models.Counter) error {
	return row.Scan(&c.ID, &c.Name, &c.RoomNumber, &c.ServiceID, &c.ServiceName, &c.CreatedAt)
}

func (s *PostgresStore) CreateCounter(ctx context.Context, counter *models.Counter) error {
	query := `
		INSERT INTO counters (id, name, room_number, service_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q.ExecContext(ctx, query,
		counter.ID,
		counter.Name,
		counter.RoomNumber,
		counter.ServiceID,
		counter.CreatedAt,
	)
	return translate(err, "failed to create counter")
}

func (s *PostgresStore) GetCounter(ctx context.Context, id string) (*models.Counter, error) {
	if !isUUID(id) {
		return nil, nil
	}
	counter := &models.Counter{}
	err := scanCounter(s.q.QueryRowContext(ctx, counterColumns+` WHERE c.id = $1`, id), counter)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to get counter")
	}
	return counter, nil
}

func (s *PostgresStore) ListCounters(ctx context.Context, serviceID string) ([]models.Counter, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if serviceID == "" {
		rows, err = s.q.QueryContext(ctx, counterColumns+` ORDER BY s.name, c.name`)
	} else {
		if !isUUID(serviceID) {
			return []models.Counter{}, nil
		}
		rows, err = s.q.QueryContext(ctx, counterColumns+` WHERE c.service_id = $1 ORDER BY c.name`, serviceID)
	}
	if err != nil {
		return nil, translate(err, "failed to list counters")
	}
	defer rows.Close()

	counters := []models.Counter{}
	for rows.Next() {
		var counter models.Counter
		if err := scanCounter(rows, &counter); err != nil {
			return nil, translate(err, "failed to scan counter")
		}
		counters = append(counters, counter)
	}
	return counters, translate(rows.Err(), "failed to list counters")
}

func (s *PostgresStore) DeleteCounter(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM counters WHERE id = $1`, id)
	if err != nil {
		return false, translate(err, "failed to delete counter")
	}
	return rowsAffected(res, "failed to delete counter")
}

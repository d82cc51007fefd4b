package repository

import (
	"context"
	"database/sql"

	"queuedesk/internal/models"
)

func (s *PostgresStore) CreateService(ctx context.Context, service *models.Service) error {
	query := `INSERT INTO services (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := s.q.ExecContext(ctx, query, service.ID, service.Name, service.CreatedAt)
	return translate(err, "failed to create service")
}

func (s *PostgresStore) GetService(ctx context.Context, id string) (*models.Service, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return s.getService(ctx, `SELECT id, name, created_at FROM services WHERE id = $1`, id)
}

func (s *PostgresStore) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	return s.getService(ctx, `SELECT id, name, created_at FROM services WHERE name = $1`, name)
}

func (s *PostgresStore) getService(ctx context.Context, query string, arg string) (*models.Service, error) {
	service := &models.Service{}
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&service.ID, &service.Name, &service.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to get service")
	}
	return service, nil
}

func (s *PostgresStore) ListServices(ctx context.Context) ([]models.Service, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, created_at FROM services ORDER BY name`)
	if err != nil {
		return nil, translate(err, "failed to list services")
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		var service models.Service
		if err := rows.Scan(&service.ID, &service.Name, &service.CreatedAt); err != nil {
			return nil, translate(err, "failed to scan service")
		}
		services = append(services, service)
	}
	return services, translate(rows.Err(), "failed to list services")
}

func (s *PostgresStore) DeleteService(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return false, translate(err, "failed to delete service")
	}
	return rowsAffected(res, "failed to delete service")
}

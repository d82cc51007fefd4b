package repository

import (
	"context"
	"database/sql"

	"queuedesk/internal/models"
)

// UpsertUser records the identity seen at the boundary. Name, email and role
// follow the latest token.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role
		RETURNING created_at`

	err := s.q.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, string(user.Role)).
		Scan(&user.CreatedAt)
	return translate(err, "failed to upsert user")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	var email sql.NullString
	query := `SELECT id, name, email, role, created_at FROM users WHERE id = $1`

	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&email,
		&user.Role,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to get user")
	}
	user.Email = email.String
	return user, nil
}

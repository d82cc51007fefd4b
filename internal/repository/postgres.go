package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"queuedesk/internal/database"
	apperrors "queuedesk/internal/errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on top of lib/pq. Inside WithinTx the same
// type is bound to the *sql.Tx.
type PostgresStore struct {
	db   *database.DB
	q    querier
	inTx bool
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &PostgresStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockKey takes a transaction-scoped advisory lock. Outside a transaction
// the lock is released as soon as the statement ends.
func (s *PostgresStore) LockKey(ctx context.Context, key string) error {
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Constraint names come from the migrations.
var uniqueViolations = map[string]error{
	"services_name_key":                   apperrors.ErrServiceExists,
	"tickets_one_active_per_user_idx":     apperrors.ErrActiveTicketExists,
	"tickets_one_serving_per_counter_idx": apperrors.ErrCounterBusy,
	"tickets_service_id_ticket_number_key": apperrors.New(apperrors.ErrConflict,
		"Ticket number already issued"),
	"users_email_key": apperrors.New(apperrors.ErrConflict, "Email is already used by another user"),
}

var foreignKeyViolations = map[string]error{
	"counters_service_id_fkey":         apperrors.ErrServiceNotFound,
	"tickets_service_id_fkey":          apperrors.ErrServiceNotFound,
	"tickets_counter_id_fkey":          apperrors.ErrCounterNotFound,
	"daily_statistics_service_id_fkey": apperrors.ErrServiceNotFound,
}

// translate maps constraint violations to domain errors and wraps the rest.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if domain, ok := uniqueViolations[pqErr.Constraint]; ok {
				return domain
			}
			return apperrors.New(apperrors.ErrConflict, "Record already exists")
		case "23503":
			if domain, ok := foreignKeyViolations[pqErr.Constraint]; ok {
				return domain
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rowsAffected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// isUUID guards uuid columns: a malformed id cannot match a row, and sending
// it would abort the surrounding transaction.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

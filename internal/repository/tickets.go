package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"queuedesk/internal/models"

	"github.com/lib/pq"
)

const ticketColumns = `
	SELECT t.id, t.ticket_number, t.service_id, t.user_id, t.counter_id, t.status,
	       t.created_at, t.updated_at, t.served_at,
	       u.name, s.name, COALESCE(c.name, ''), COALESCE(c.room_number, '')
	FROM tickets t
	JOIN users u ON u.id = t.user_id
	JOIN services s ON s.id = t.service_id
	LEFT JOIN counters c ON c.id = t.counter_id`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	var (
		t         models.Ticket
		counterID sql.NullString
		servedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.TicketNumber,
		&t.ServiceID,
		&t.UserID,
		&counterID,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&servedAt,
		&t.CustomerName,
		&t.ServiceName,
		&t.CounterName,
		&t.RoomNumber,
	)
	if err != nil {
		return nil, err
	}
	if counterID.Valid {
		t.CounterID = &counterID.String
	}
	if servedAt.Valid {
		ts := servedAt.Time
		t.ServedAt = &ts
	}
	return &t, nil
}

func (s *PostgresStore) queryTicket(ctx context.Context, op, query string, args ...any) (*models.Ticket, error) {
	t, err := scanTicket(s.q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, op)
	}
	return t, nil
}

func (s *PostgresStore) queryTickets(ctx context.Context, op, query string, args ...any) ([]models.Ticket, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, op)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, translate(err, op)
		}
		tickets = append(tickets, *t)
	}
	return tickets, translate(rows.Err(), op)
}

func (s *PostgresStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (id, ticket_number, service_id, user_id, counter_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.q.ExecContext(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.ServiceID,
		ticket.UserID,
		ticket.CounterID,
		string(ticket.Status),
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return translate(err, "failed to create ticket")
}

func (s *PostgresStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	if !isUUID(id) {
		return nil, nil
	}
	return s.queryTicket(ctx, "failed to get ticket", ticketColumns+` WHERE t.id = $1`, id)
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $2, counter_id = $3, updated_at = $4, served_at = $5
		WHERE id = $1`

	res, err := s.q.ExecContext(ctx, query,
		ticket.ID,
		string(ticket.Status),
		ticket.CounterID,
		ticket.UpdatedAt,
		ticket.ServedAt,
	)
	if err != nil {
		return translate(err, "failed to update ticket")
	}
	ok, err := rowsAffected(res, "failed to update ticket")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to update ticket: %s no longer exists", ticket.ID)
	}
	return nil
}

func (s *PostgresStore) ActiveTicketForUser(ctx context.Context, userID string) (*models.Ticket, error) {
	return s.queryTicket(ctx, "failed to get active ticket",
		ticketColumns+` WHERE t.user_id = $1 AND t.status <> 'served' ORDER BY t.created_at DESC, t.seq DESC LIMIT 1`,
		userID)
}

func (s *PostgresStore) LatestTicketForService(ctx context.Context, serviceID string, from, to time.Time) (*models.Ticket, error) {
	return s.queryTicket(ctx, "failed to get latest ticket",
		ticketColumns+`
		WHERE t.service_id = $1 AND t.created_at >= $2 AND t.created_at < $3
		ORDER BY t.created_at DESC, t.seq DESC LIMIT 1`,
		serviceID, from, to)
}

func (s *PostgresStore) ServingTicketForCounter(ctx context.Context, counterID string) (*models.Ticket, error) {
	if !isUUID(counterID) {
		return nil, nil
	}
	return s.queryTicket(ctx, "failed to get serving ticket",
		ticketColumns+` WHERE t.counter_id = $1 AND t.status = 'serving' FOR UPDATE OF t`,
		counterID)
}

func (s *PostgresStore) NextTicket(ctx context.Context, serviceID string, status models.TicketStatus) (*models.Ticket, error) {
	return s.queryTicket(ctx, "failed to get next ticket",
		ticketColumns+`
		WHERE t.service_id = $1 AND t.status = $2
		ORDER BY t.created_at, t.seq
		LIMIT 1
		FOR UPDATE OF t`,
		serviceID, string(status))
}

func (s *PostgresStore) ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	var (
		conds []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("t.status = ANY($%d)", len(args)))
	}
	if filter.ServiceID != "" {
		if !isUUID(filter.ServiceID) {
			return []models.Ticket{}, nil
		}
		args = append(args, filter.ServiceID)
		conds = append(conds, fmt.Sprintf("t.service_id = $%d", len(args)))
	}

	query := ticketColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY t.created_at, t.seq"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return s.queryTickets(ctx, "failed to list tickets", query, args...)
}

const waitMinutesExpr = `GREATEST(0, FLOOR(EXTRACT(EPOCH FROM (t.served_at - t.created_at)) / 60))`

func (s *PostgresStore) ServedStats(ctx context.Context, from, to time.Time) ([]models.ServiceDayStat, error) {
	query := `
		SELECT s.id, s.name, COUNT(t.id), COALESCE(AVG(` + waitMinutesExpr + `), 0)
		FROM services s
		LEFT JOIN tickets t
		       ON t.service_id = s.id AND t.status = 'served'
		      AND t.served_at >= $1 AND t.served_at < $2
		GROUP BY s.id, s.name
		ORDER BY s.name`

	rows, err := s.q.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, translate(err, "failed to aggregate served tickets")
	}
	defer rows.Close()

	stats := []models.ServiceDayStat{}
	for rows.Next() {
		var st models.ServiceDayStat
		if err := rows.Scan(&st.ServiceID, &st.ServiceName, &st.ServedCount, &st.AvgWaitTime); err != nil {
			return nil, translate(err, "failed to scan served stats")
		}
		stats = append(stats, st)
	}
	return stats, translate(rows.Err(), "failed to aggregate served tickets")
}

func (s *PostgresStore) HourlyServed(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.HourlyStat, error) {
	query := `
		SELECT to_char(served_at AT TIME ZONE $3, 'HH24') AS hour, COUNT(*)
		FROM tickets
		WHERE status = 'served' AND served_at >= $1 AND served_at < $2
		GROUP BY hour
		ORDER BY hour`

	rows, err := s.q.QueryContext(ctx, query, from, to, zoneName(loc))
	if err != nil {
		return nil, translate(err, "failed to aggregate hourly stats")
	}
	defer rows.Close()

	stats := []models.HourlyStat{}
	for rows.Next() {
		var st models.HourlyStat
		if err := rows.Scan(&st.Hour, &st.Count); err != nil {
			return nil, translate(err, "failed to scan hourly stats")
		}
		stats = append(stats, st)
	}
	return stats, translate(rows.Err(), "failed to aggregate hourly stats")
}

// zoneName returns an IANA name Postgres understands.
func zoneName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" {
		return "UTC"
	}
	return loc.String()
}

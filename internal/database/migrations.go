package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createServicesTable,
		createCountersTable,
		createTicketsTable,
		createTicketsIndexes,
		createDailyStatisticsTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name VARCHAR(255) NOT NULL DEFAULT '',
    email VARCHAR(255) UNIQUE,
    role VARCHAR(20) NOT NULL DEFAULT 'customer',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (role IN ('customer', 'counter_staff', 'admin'))
);`

const createServicesTable = `
CREATE TABLE IF NOT EXISTS services (
    id UUID PRIMARY KEY,
    name VARCHAR(255) UNIQUE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createCountersTable = `
CREATE TABLE IF NOT EXISTS counters (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    room_number VARCHAR(50) NOT NULL,
    service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    ticket_number VARCHAR(32) NOT NULL,
    service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    counter_id UUID REFERENCES counters(id) ON DELETE SET NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'virtual',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    served_at TIMESTAMPTZ,

    UNIQUE(service_id, ticket_number),
    CHECK (status IN ('virtual', 'physical', 'serving', 'served', 'missed'))
);`

// One active ticket per user, one serving ticket per counter.
const createTicketsIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS tickets_one_active_per_user_idx
ON tickets (user_id) WHERE status <> 'served';
CREATE UNIQUE INDEX IF NOT EXISTS tickets_one_serving_per_counter_idx
ON tickets (counter_id) WHERE status = 'serving';
CREATE INDEX IF NOT EXISTS tickets_queue_idx
ON tickets (service_id, status, created_at, seq);
CREATE INDEX IF NOT EXISTS tickets_served_at_idx
ON tickets (served_at) WHERE served_at IS NOT NULL;`

const createDailyStatisticsTable = `
CREATE TABLE IF NOT EXISTS daily_statistics (
    id UUID PRIMARY KEY,
    date DATE NOT NULL,
    service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
    total_served INTEGER NOT NULL DEFAULT 0,
    avg_wait_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(date, service_id)
);`

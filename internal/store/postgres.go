package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
	id                     TEXT PRIMARY KEY,
	total_trips            INTEGER NOT NULL DEFAULT 0,
	total_distance_km      DOUBLE PRECISION NOT NULL DEFAULT 0,
	average_speed          DOUBLE PRECISION NOT NULL DEFAULT 0,
	consistency_score      TEXT NOT NULL DEFAULT 'Unknown',
	time_of_day_score      TEXT NOT NULL DEFAULT 'Unknown',
	hard_braking_score     TEXT NOT NULL DEFAULT 'Unknown',
	speed_adherence_score  TEXT NOT NULL DEFAULT 'Unknown',
	overall_classification TEXT NOT NULL DEFAULT 'Unknown',
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trips (
	id                         TEXT PRIMARY KEY,
	vehicle_id                 TEXT NOT NULL REFERENCES vehicles(id),
	start_time                 TIMESTAMPTZ NOT NULL,
	end_time                   TIMESTAMPTZ NOT NULL,
	start_geohash              TEXT NOT NULL,
	end_geohash                TEXT NOT NULL,
	locations                  JSONB NOT NULL,
	speeds                     JSONB NOT NULL,
	average_speed              DOUBLE PRECISION NOT NULL,
	max_speed                  DOUBLE PRECISION NOT NULL,
	distance_km                DOUBLE PRECISION NOT NULL,
	hard_brake_count           INTEGER NOT NULL,
	speed_adherence_percentage DOUBLE PRECISION NOT NULL,
	hard_braking_score         TEXT NOT NULL,
	speed_adherence_score      TEXT NOT NULL,
	overall_score              TEXT NOT NULL,
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS trips_vehicle_start_idx ON trips (vehicle_id, start_time);

CREATE TABLE IF NOT EXISTS api_clients (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	secret_hash TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	revoked_at  TIMESTAMPTZ
);
`

// Postgres keeps trips and vehicle aggregates. Trips are written in a single
// statement; vehicle aggregates are rewritten inside a transaction that holds
// the vehicle row lock.
type Postgres struct {
	db db.TxQuerier
}

func NewPostgres(q db.TxQuerier) *Postgres {
	return &Postgres{db: q}
}

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

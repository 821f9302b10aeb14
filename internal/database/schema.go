package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the transit dataset DDL. Statements are idempotent so Migrate
// can run on every startup.
//
// Note: stop_times and shapes deliberately have no foreign keys; the loader
// enforces references in-process so a replace can insert in bulk without
// per-row constraint checks on the two largest tables.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS feeds (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		source_url TEXT NOT NULL,
		feed_version TEXT NOT NULL DEFAULT '',
		downloaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		status TEXT NOT NULL DEFAULT 'importing',
		agencies_imported INT NOT NULL DEFAULT 0,
		stops_imported INT NOT NULL DEFAULT 0,
		routes_imported INT NOT NULL DEFAULT 0,
		shapes_imported INT NOT NULL DEFAULT 0,
		trips_imported INT NOT NULL DEFAULT 0,
		stop_times_imported INT NOT NULL DEFAULT 0,
		calendars_imported INT NOT NULL DEFAULT 0,
		calendar_dates_imported INT NOT NULL DEFAULT 0,
		transfers_imported INT NOT NULL DEFAULT 0,
		frequencies_imported INT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS agencies (
		agency_id TEXT PRIMARY KEY,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS stops (
		stop_id TEXT PRIMARY KEY,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		zone_id TEXT NOT NULL DEFAULT '',
		parent_station TEXT NOT NULL DEFAULT '',
		wheelchair_boarding SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stops_location ON stops (latitude, longitude)`,

	`CREATE TABLE IF NOT EXISTS routes (
		route_id TEXT PRIMARY KEY,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		agency_id TEXT NOT NULL DEFAULT '',
		short_name TEXT NOT NULL DEFAULT '',
		long_name TEXT NOT NULL DEFAULT '',
		route_type SMALLINT NOT NULL DEFAULT 3,
		color TEXT NOT NULL DEFAULT '',
		text_color TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS shapes (
		shape_id TEXT NOT NULL,
		sequence INT NOT NULL,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		dist_traveled DOUBLE PRECISION,
		PRIMARY KEY (shape_id, sequence)
	)`,

	`CREATE TABLE IF NOT EXISTS trips (
		trip_id TEXT PRIMARY KEY,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		route_id TEXT NOT NULL REFERENCES routes(route_id),
		service_id TEXT NOT NULL,
		headsign TEXT NOT NULL DEFAULT '',
		shape_id TEXT NOT NULL DEFAULT '',
		direction SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_route ON trips (route_id)`,

	`CREATE TABLE IF NOT EXISTS stop_times (
		trip_id TEXT NOT NULL,
		stop_id TEXT NOT NULL,
		sequence INT NOT NULL,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		arrival_time TEXT NOT NULL DEFAULT '',
		departure_time TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (trip_id, sequence)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stop_times_stop ON stop_times (stop_id)`,

	`CREATE TABLE IF NOT EXISTS calendar (
		service_id TEXT PRIMARY KEY,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		monday BOOLEAN NOT NULL, tuesday BOOLEAN NOT NULL,
		wednesday BOOLEAN NOT NULL, thursday BOOLEAN NOT NULL,
		friday BOOLEAN NOT NULL, saturday BOOLEAN NOT NULL,
		sunday BOOLEAN NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_dates (
		service_id TEXT NOT NULL,
		date TEXT NOT NULL,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		exception_type SMALLINT NOT NULL,
		PRIMARY KEY (service_id, date)
	)`,

	`CREATE TABLE IF NOT EXISTS transfers (
		from_stop_id TEXT NOT NULL,
		to_stop_id TEXT NOT NULL,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		transfer_type SMALLINT NOT NULL DEFAULT 0,
		min_transfer_time INT,
		PRIMARY KEY (from_stop_id, to_stop_id)
	)`,

	`CREATE TABLE IF NOT EXISTS frequencies (
		trip_id TEXT NOT NULL,
		start_time TEXT NOT NULL,
		feed_id BIGINT NOT NULL REFERENCES feeds(id),
		end_time TEXT NOT NULL,
		headway_secs INT NOT NULL,
		exact_times SMALLINT NOT NULL DEFAULT 0,
		PRIMARY KEY (trip_id, start_time)
	)`,
}

// Migrate creates the transit dataset tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

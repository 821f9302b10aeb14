package gtfs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL dataset repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Replace runs fn inside one transaction. Any error rolls the whole import
// back, leaving the previously committed feed untouched.
func (r *PostgresRepository) Replace(ctx context.Context, fn func(ctx context.Context, tx ImportTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(ctx, &postgresImportTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LatestFeed returns the most recently committed feed.
func (r *PostgresRepository) LatestFeed(ctx context.Context) (*Feed, error) {
	query := `
		SELECT
			id, source_url, feed_version, downloaded_at, status,
			agencies_imported, stops_imported, routes_imported,
			shapes_imported, trips_imported, stop_times_imported,
			calendars_imported, calendar_dates_imported,
			transfers_imported, frequencies_imported
		FROM feeds
		WHERE status = $1
		ORDER BY downloaded_at DESC
		LIMIT 1
	`

	var feed Feed
	err := r.pool.QueryRow(ctx, query, FeedStatusCompleted).Scan(
		&feed.ID,
		&feed.SourceURL,
		&feed.Version,
		&feed.DownloadedAt,
		&feed.Status,
		&feed.Counts.Agencies,
		&feed.Counts.Stops,
		&feed.Counts.Routes,
		&feed.Counts.Shapes,
		&feed.Counts.Trips,
		&feed.Counts.StopTimes,
		&feed.Counts.Calendars,
		&feed.Counts.CalendarDates,
		&feed.Counts.Transfers,
		&feed.Counts.Frequencies,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoFeed
		}
		return nil, err
	}
	return &feed, nil
}

// TableCounts reports current row counts across the dataset tables.
func (r *PostgresRepository) TableCounts(ctx context.Context) (TableCounts, error) {
	query := `
		SELECT
			(SELECT count(*) FROM agencies),
			(SELECT count(*) FROM stops),
			(SELECT count(*) FROM routes),
			(SELECT count(*) FROM shapes),
			(SELECT count(*) FROM trips),
			(SELECT count(*) FROM stop_times),
			(SELECT count(*) FROM calendar),
			(SELECT count(*) FROM calendar_dates),
			(SELECT count(*) FROM transfers),
			(SELECT count(*) FROM frequencies)
	`

	var counts TableCounts
	err := r.pool.QueryRow(ctx, query).Scan(
		&counts.Agencies,
		&counts.Stops,
		&counts.Routes,
		&counts.Shapes,
		&counts.Trips,
		&counts.StopTimes,
		&counts.Calendars,
		&counts.CalendarDates,
		&counts.Transfers,
		&counts.Frequencies,
	)
	if err != nil {
		return TableCounts{}, err
	}
	return counts, nil
}

// NearbyStops returns stops within radiusMeters of origin, closest first.
// A degree bounding box prefilters in SQL; exact distances are computed here.
func (r *PostgresRepository) NearbyStops(ctx context.Context, origin geo.Point, radiusMeters float64, limit int) ([]Stop, error) {
	if limit <= 0 {
		limit = 20
	}

	// One degree of latitude is ~111.32km; longitude shrinks with latitude.
	latDelta := radiusMeters / 111320.0
	lonDelta := latDelta / math.Max(math.Cos(origin.Lat*math.Pi/180), 0.01)

	query := `
		SELECT stop_id, code, name, description, latitude, longitude,
			zone_id, parent_station, wheelchair_boarding
		FROM stops
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
	`

	rows, err := r.pool.Query(ctx, query,
		origin.Lat-latDelta, origin.Lat+latDelta,
		origin.Lon-lonDelta, origin.Lon+lonDelta,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		err := rows.Scan(
			&s.ID, &s.Code, &s.Name, &s.Description,
			&s.Latitude, &s.Longitude,
			&s.ZoneID, &s.ParentStation, &s.WheelchairBoarding,
		)
		if err != nil {
			return nil, err
		}
		s.DistanceMeters = geo.Haversine(origin, geo.Point{Lat: s.Latitude, Lon: s.Longitude})
		if s.DistanceMeters <= radiusMeters {
			stops = append(stops, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(stops, func(i, j int) bool {
		return stops[i].DistanceMeters < stops[j].DistanceMeters
	})
	if len(stops) > limit {
		stops = stops[:limit]
	}
	return stops, nil
}

// postgresImportTx implements ImportTx over one pgx transaction. Bulk tables
// go through CopyFrom; rows were validated and deduplicated upstream, so a
// failure here is a genuine fault that aborts the whole replace.
type postgresImportTx struct {
	tx pgx.Tx
}

// Child-before-parent deletion order.
var clearOrder = []string{
	"frequencies", "transfers", "calendar_dates", "calendar",
	"shapes", "stop_times", "trips", "routes", "stops", "agencies",
}

func (t *postgresImportTx) ClearDataset(ctx context.Context) error {
	for _, table := range clearOrder {
		if _, err := t.tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (t *postgresImportTx) InsertFeed(ctx context.Context, sourceURL, version string, downloadedAt time.Time) (int64, error) {
	var feedID int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO feeds (source_url, feed_version, downloaded_at, status)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		sourceURL, version, downloadedAt, FeedStatusImporting,
	).Scan(&feedID)
	if err != nil {
		return 0, err
	}
	return feedID, nil
}

func (t *postgresImportTx) FinishFeed(ctx context.Context, feedID int64, counts TableCounts) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE feeds SET
			status = $2,
			agencies_imported = $3, stops_imported = $4, routes_imported = $5,
			shapes_imported = $6, trips_imported = $7, stop_times_imported = $8,
			calendars_imported = $9, calendar_dates_imported = $10,
			transfers_imported = $11, frequencies_imported = $12
		 WHERE id = $1`,
		feedID, FeedStatusCompleted,
		counts.Agencies, counts.Stops, counts.Routes,
		counts.Shapes, counts.Trips, counts.StopTimes,
		counts.Calendars, counts.CalendarDates,
		counts.Transfers, counts.Frequencies,
	)
	return err
}

func (t *postgresImportTx) InsertAgencies(ctx context.Context, feedID int64, rows []Agency) error {
	return t.copyRows(ctx, "agencies",
		[]string{"agency_id", "feed_id", "name", "url", "timezone"},
		len(rows), func(i int) []any {
			a := rows[i]
			return []any{a.ID, feedID, a.Name, a.URL, a.Timezone}
		})
}

func (t *postgresImportTx) InsertStops(ctx context.Context, feedID int64, rows []Stop) error {
	return t.copyRows(ctx, "stops",
		[]string{"stop_id", "feed_id", "code", "name", "description",
			"latitude", "longitude", "zone_id", "parent_station", "wheelchair_boarding"},
		len(rows), func(i int) []any {
			s := rows[i]
			return []any{s.ID, feedID, s.Code, s.Name, s.Description,
				s.Latitude, s.Longitude, s.ZoneID, s.ParentStation, s.WheelchairBoarding}
		})
}

func (t *postgresImportTx) InsertRoutes(ctx context.Context, feedID int64, rows []Route) error {
	return t.copyRows(ctx, "routes",
		[]string{"route_id", "feed_id", "agency_id", "short_name", "long_name",
			"route_type", "color", "text_color"},
		len(rows), func(i int) []any {
			r := rows[i]
			return []any{r.ID, feedID, r.AgencyID, r.ShortName, r.LongName,
				r.Type, r.Color, r.TextColor}
		})
}

func (t *postgresImportTx) InsertShapePoints(ctx context.Context, feedID int64, rows []ShapePoint) error {
	return t.copyRows(ctx, "shapes",
		[]string{"shape_id", "sequence", "feed_id", "latitude", "longitude", "dist_traveled"},
		len(rows), func(i int) []any {
			p := rows[i]
			return []any{p.ShapeID, p.Sequence, feedID, p.Latitude, p.Longitude, p.DistTraveled}
		})
}

func (t *postgresImportTx) InsertTrips(ctx context.Context, feedID int64, rows []Trip) error {
	return t.copyRows(ctx, "trips",
		[]string{"trip_id", "feed_id", "route_id", "service_id", "headsign", "shape_id", "direction"},
		len(rows), func(i int) []any {
			tr := rows[i]
			return []any{tr.ID, feedID, tr.RouteID, tr.ServiceID, tr.Headsign, tr.ShapeID, tr.Direction}
		})
}

func (t *postgresImportTx) InsertStopTimes(ctx context.Context, feedID int64, rows []StopTime) error {
	return t.copyRows(ctx, "stop_times",
		[]string{"trip_id", "stop_id", "sequence", "feed_id", "arrival_time", "departure_time"},
		len(rows), func(i int) []any {
			st := rows[i]
			return []any{st.TripID, st.StopID, st.Sequence, feedID, st.Arrival, st.Departure}
		})
}

func (t *postgresImportTx) InsertCalendars(ctx context.Context, feedID int64, rows []Calendar) error {
	return t.copyRows(ctx, "calendar",
		[]string{"service_id", "feed_id", "monday", "tuesday", "wednesday", "thursday",
			"friday", "saturday", "sunday", "start_date", "end_date"},
		len(rows), func(i int) []any {
			c := rows[i]
			return []any{c.ServiceID, feedID, c.Monday, c.Tuesday, c.Wednesday, c.Thursday,
				c.Friday, c.Saturday, c.Sunday, c.StartDate, c.EndDate}
		})
}

func (t *postgresImportTx) InsertCalendarDates(ctx context.Context, feedID int64, rows []CalendarDate) error {
	return t.copyRows(ctx, "calendar_dates",
		[]string{"service_id", "date", "feed_id", "exception_type"},
		len(rows), func(i int) []any {
			c := rows[i]
			return []any{c.ServiceID, c.Date, feedID, c.ExceptionType}
		})
}

func (t *postgresImportTx) InsertTransfers(ctx context.Context, feedID int64, rows []Transfer) error {
	return t.copyRows(ctx, "transfers",
		[]string{"from_stop_id", "to_stop_id", "feed_id", "transfer_type", "min_transfer_time"},
		len(rows), func(i int) []any {
			tr := rows[i]
			return []any{tr.FromStopID, tr.ToStopID, feedID, tr.Type, tr.MinTransferTime}
		})
}

func (t *postgresImportTx) InsertFrequencies(ctx context.Context, feedID int64, rows []Frequency) error {
	return t.copyRows(ctx, "frequencies",
		[]string{"trip_id", "start_time", "feed_id", "end_time", "headway_secs", "exact_times"},
		len(rows), func(i int) []any {
			f := rows[i]
			return []any{f.TripID, f.StartTime, feedID, f.EndTime, f.HeadwaySecs, f.ExactTimes}
		})
}

func (t *postgresImportTx) copyRows(ctx context.Context, table string, columns []string, count int, row func(i int) []any) error {
	if count == 0 {
		return nil
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{table}, columns,
		pgx.CopyFromSlice(count, func(i int) ([]any, error) {
			return row(i), nil
		}))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", table, err)
	}
	return nil
}

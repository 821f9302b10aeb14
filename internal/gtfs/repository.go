package gtfs

import (
	"context"
	"time"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// Repository is the persistence boundary for the transit dataset.
type Repository interface {
	// Replace runs fn inside one transaction that atomically swaps the
	// dataset. If fn returns an error the previously committed feed stays
	// completely intact; readers never observe a partial import.
	Replace(ctx context.Context, fn func(ctx context.Context, tx ImportTx) error) error

	// LatestFeed returns the most recently committed feed, or ErrNoFeed.
	LatestFeed(ctx context.Context) (*Feed, error)

	// TableCounts reports current row counts across the dataset tables.
	TableCounts(ctx context.Context) (TableCounts, error)

	// NearbyStops returns stops within radiusMeters of origin, closest
	// first, capped at limit.
	NearbyStops(ctx context.Context, origin geo.Point, radiusMeters float64, limit int) ([]Stop, error)
}

// ImportTx is the write surface available inside Repository.Replace.
type ImportTx interface {
	// ClearDataset deletes existing dataset rows in child-before-parent
	// order. Superseded feed rows are kept for history.
	ClearDataset(ctx context.Context) error

	// InsertFeed records the new feed in importing state and returns its id.
	InsertFeed(ctx context.Context, sourceURL, version string, downloadedAt time.Time) (int64, error)

	// FinishFeed stores final counters and marks the feed completed.
	FinishFeed(ctx context.Context, feedID int64, counts TableCounts) error

	InsertAgencies(ctx context.Context, feedID int64, rows []Agency) error
	InsertStops(ctx context.Context, feedID int64, rows []Stop) error
	InsertRoutes(ctx context.Context, feedID int64, rows []Route) error
	InsertShapePoints(ctx context.Context, feedID int64, rows []ShapePoint) error
	InsertTrips(ctx context.Context, feedID int64, rows []Trip) error
	InsertStopTimes(ctx context.Context, feedID int64, rows []StopTime) error
	InsertCalendars(ctx context.Context, feedID int64, rows []Calendar) error
	InsertCalendarDates(ctx context.Context, feedID int64, rows []CalendarDate) error
	InsertTransfers(ctx context.Context, feedID int64, rows []Transfer) error
	InsertFrequencies(ctx context.Context, feedID int64, rows []Frequency) error
}

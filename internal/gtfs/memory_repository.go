package gtfs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/urbanroute/urbanroute/pkg/geo"
)

// InMemoryRepository is an in-memory implementation of Repository. It is
// intended for testing; production uses PostgresRepository. Replace builds
// the import on a staging copy and swaps it in on success, giving the same
// all-or-nothing visibility as the database transaction.
type InMemoryRepository struct {
	mu      sync.RWMutex
	current *memoryDataset
}

type memoryDataset struct {
	feeds         []Feed
	nextFeedID    int64
	agencies      []Agency
	stops         []Stop
	routes        []Route
	shapes        []ShapePoint
	trips         []Trip
	stopTimes     []StopTime
	calendars     []Calendar
	calendarDates []CalendarDate
	transfers     []Transfer
	frequencies   []Frequency
}

// NewInMemoryRepository creates a new in-memory dataset repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{current: &memoryDataset{nextFeedID: 1}}
}

// Replace runs fn against a staging copy of the dataset and swaps it in
// only when fn succeeds.
func (r *InMemoryRepository) Replace(ctx context.Context, fn func(ctx context.Context, tx ImportTx) error) error {
	r.mu.RLock()
	staging := r.current.clone()
	r.mu.RUnlock()

	if err := fn(ctx, &memoryImportTx{data: staging}); err != nil {
		return err
	}

	r.mu.Lock()
	r.current = staging
	r.mu.Unlock()
	return nil
}

// LatestFeed returns the most recently committed feed.
func (r *InMemoryRepository) LatestFeed(_ context.Context) (*Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Feed
	for i := range r.current.feeds {
		f := &r.current.feeds[i]
		if f.Status != FeedStatusCompleted {
			continue
		}
		if latest == nil || f.DownloadedAt.After(latest.DownloadedAt) {
			latest = f
		}
	}
	if latest == nil {
		return nil, ErrNoFeed
	}
	cpy := *latest
	return &cpy, nil
}

// TableCounts reports current row counts.
func (r *InMemoryRepository) TableCounts(_ context.Context) (TableCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := r.current
	return TableCounts{
		Agencies:      len(d.agencies),
		Stops:         len(d.stops),
		Routes:        len(d.routes),
		Shapes:        len(d.shapes),
		Trips:         len(d.trips),
		StopTimes:     len(d.stopTimes),
		Calendars:     len(d.calendars),
		CalendarDates: len(d.calendarDates),
		Transfers:     len(d.transfers),
		Frequencies:   len(d.frequencies),
	}, nil
}

// NearbyStops returns stops within radiusMeters of origin, closest first.
func (r *InMemoryRepository) NearbyStops(_ context.Context, origin geo.Point, radiusMeters float64, limit int) ([]Stop, error) {
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stops []Stop
	for _, s := range r.current.stops {
		d := geo.Haversine(origin, geo.Point{Lat: s.Latitude, Lon: s.Longitude})
		if d <= radiusMeters {
			s.DistanceMeters = d
			stops = append(stops, s)
		}
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].DistanceMeters < stops[j].DistanceMeters
	})
	if len(stops) > limit {
		stops = stops[:limit]
	}
	return stops, nil
}

// Trips returns the committed trips. Test helper.
func (r *InMemoryRepository) Trips() []Trip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Trip(nil), r.current.trips...)
}

// StopTimes returns the committed stop times. Test helper.
func (r *InMemoryRepository) StopTimes() []StopTime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]StopTime(nil), r.current.stopTimes...)
}

// Routes returns the committed routes. Test helper.
func (r *InMemoryRepository) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.current.routes...)
}

func (d *memoryDataset) clone() *memoryDataset {
	return &memoryDataset{
		feeds:         append([]Feed(nil), d.feeds...),
		nextFeedID:    d.nextFeedID,
		agencies:      append([]Agency(nil), d.agencies...),
		stops:         append([]Stop(nil), d.stops...),
		routes:        append([]Route(nil), d.routes...),
		shapes:        append([]ShapePoint(nil), d.shapes...),
		trips:         append([]Trip(nil), d.trips...),
		stopTimes:     append([]StopTime(nil), d.stopTimes...),
		calendars:     append([]Calendar(nil), d.calendars...),
		calendarDates: append([]CalendarDate(nil), d.calendarDates...),
		transfers:     append([]Transfer(nil), d.transfers...),
		frequencies:   append([]Frequency(nil), d.frequencies...),
	}
}

// memoryImportTx implements ImportTx against one staging dataset.
type memoryImportTx struct {
	data *memoryDataset
}

func (t *memoryImportTx) ClearDataset(_ context.Context) error {
	d := t.data
	d.frequencies = nil
	d.transfers = nil
	d.calendarDates = nil
	d.calendars = nil
	d.shapes = nil
	d.stopTimes = nil
	d.trips = nil
	d.routes = nil
	d.stops = nil
	d.agencies = nil
	return nil
}

func (t *memoryImportTx) InsertFeed(_ context.Context, sourceURL, version string, downloadedAt time.Time) (int64, error) {
	id := t.data.nextFeedID
	t.data.nextFeedID++
	t.data.feeds = append(t.data.feeds, Feed{
		ID:           id,
		SourceURL:    sourceURL,
		Version:      version,
		DownloadedAt: downloadedAt,
		Status:       FeedStatusImporting,
	})
	return id, nil
}

func (t *memoryImportTx) FinishFeed(_ context.Context, feedID int64, counts TableCounts) error {
	for i := range t.data.feeds {
		if t.data.feeds[i].ID == feedID {
			t.data.feeds[i].Status = FeedStatusCompleted
			t.data.feeds[i].Counts = counts
			return nil
		}
	}
	return ErrNoFeed
}

func (t *memoryImportTx) InsertAgencies(_ context.Context, _ int64, rows []Agency) error {
	t.data.agencies = append(t.data.agencies, rows...)
	return nil
}

func (t *memoryImportTx) InsertStops(_ context.Context, _ int64, rows []Stop) error {
	t.data.stops = append(t.data.stops, rows...)
	return nil
}

func (t *memoryImportTx) InsertRoutes(_ context.Context, _ int64, rows []Route) error {
	t.data.routes = append(t.data.routes, rows...)
	return nil
}

func (t *memoryImportTx) InsertShapePoints(_ context.Context, _ int64, rows []ShapePoint) error {
	t.data.shapes = append(t.data.shapes, rows...)
	return nil
}

func (t *memoryImportTx) InsertTrips(_ context.Context, _ int64, rows []Trip) error {
	t.data.trips = append(t.data.trips, rows...)
	return nil
}

func (t *memoryImportTx) InsertStopTimes(_ context.Context, _ int64, rows []StopTime) error {
	t.data.stopTimes = append(t.data.stopTimes, rows...)
	return nil
}

func (t *memoryImportTx) InsertCalendars(_ context.Context, _ int64, rows []Calendar) error {
	t.data.calendars = append(t.data.calendars, rows...)
	return nil
}

func (t *memoryImportTx) InsertCalendarDates(_ context.Context, _ int64, rows []CalendarDate) error {
	t.data.calendarDates = append(t.data.calendarDates, rows...)
	return nil
}

func (t *memoryImportTx) InsertTransfers(_ context.Context, _ int64, rows []Transfer) error {
	t.data.transfers = append(t.data.transfers, rows...)
	return nil
}

func (t *memoryImportTx) InsertFrequencies(_ context.Context, _ int64, rows []Frequency) error {
	t.data.frequencies = append(t.data.frequencies, rows...)
	return nil
}

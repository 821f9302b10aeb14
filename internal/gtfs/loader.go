package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/config"
)

// Required archive tables. Absence of any of these aborts the sync.
var requiredTables = []string{"stops.txt", "routes.txt", "trips.txt", "stop_times.txt"}

// LoaderConfig holds configuration for the feed loader.
type LoaderConfig struct {
	// Feed carries the source URLs and the sync deadline.
	Feed config.FeedConfig

	// Repository receives the imported dataset.
	Repository Repository

	// HTTPClient downloads feed archives (optional).
	HTTPClient *http.Client

	// Logger for loader operations.
	Logger zerolog.Logger
}

// Loader downloads transit feed archives and atomically replaces the dataset.
type Loader struct {
	primaryURL  string
	fallbackURL string
	deadline    time.Duration
	repo        Repository
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewLoader creates a feed loader.
func NewLoader(cfg LoaderConfig) *Loader {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	deadline := cfg.Feed.SyncDeadline
	if deadline == 0 {
		deadline = 30 * time.Minute
	}

	return &Loader{
		primaryURL:  strings.TrimSpace(cfg.Feed.PrimaryURL),
		fallbackURL: strings.TrimSpace(cfg.Feed.FallbackURL),
		deadline:    deadline,
		repo:        cfg.Repository,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

// Sync downloads the feed archive and replaces the transit dataset in one
// transaction. On any failure the previously committed feed stays intact.
func (l *Loader) Sync(ctx context.Context) (*Summary, error) {
	if l.primaryURL == "" {
		return nil, errors.New("feed url is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, l.deadline)
	defer cancel()

	started := time.Now()
	data, sourceURL, err := l.obtainArchive(ctx)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open archive: %w", err)}
	}

	for _, name := range requiredTables {
		if findArchiveFile(zr, name) == nil {
			return nil, &ParseError{Table: name, Err: errors.New("required table missing from archive")}
		}
	}

	parsed, err := l.parseArchive(zr)
	if err != nil {
		return nil, err
	}

	downloadedAt := time.Now().UTC()
	summary := &Summary{
		FeedVersion:  parsed.version,
		SourceURL:    sourceURL,
		DownloadedAt: downloadedAt,
		Imported:     parsed.counts(),
		Skipped:      parsed.skipped,
	}

	err = l.repo.Replace(ctx, func(ctx context.Context, tx ImportTx) error {
		if err := tx.ClearDataset(ctx); err != nil {
			return fmt.Errorf("clear dataset: %w", err)
		}
		feedID, err := tx.InsertFeed(ctx, sourceURL, parsed.version, downloadedAt)
		if err != nil {
			return fmt.Errorf("insert feed: %w", err)
		}
		if err := tx.InsertAgencies(ctx, feedID, parsed.agencies); err != nil {
			return fmt.Errorf("import agencies: %w", err)
		}
		if err := tx.InsertStops(ctx, feedID, parsed.stops); err != nil {
			return fmt.Errorf("import stops: %w", err)
		}
		if err := tx.InsertRoutes(ctx, feedID, parsed.routes); err != nil {
			return fmt.Errorf("import routes: %w", err)
		}
		if err := tx.InsertShapePoints(ctx, feedID, parsed.shapes); err != nil {
			return fmt.Errorf("import shapes: %w", err)
		}
		if err := tx.InsertTrips(ctx, feedID, parsed.trips); err != nil {
			return fmt.Errorf("import trips: %w", err)
		}
		if err := tx.InsertStopTimes(ctx, feedID, parsed.stopTimes); err != nil {
			return fmt.Errorf("import stop_times: %w", err)
		}
		if err := tx.InsertCalendars(ctx, feedID, parsed.calendars); err != nil {
			return fmt.Errorf("import calendar: %w", err)
		}
		if err := tx.InsertCalendarDates(ctx, feedID, parsed.calendarDates); err != nil {
			return fmt.Errorf("import calendar_dates: %w", err)
		}
		if err := tx.InsertTransfers(ctx, feedID, parsed.transfers); err != nil {
			return fmt.Errorf("import transfers: %w", err)
		}
		if err := tx.InsertFrequencies(ctx, feedID, parsed.frequencies); err != nil {
			return fmt.Errorf("import frequencies: %w", err)
		}
		return tx.FinishFeed(ctx, feedID, summary.Imported)
	})
	if err != nil {
		return nil, fmt.Errorf("replace dataset: %w", err)
	}

	l.logger.Info().
		Str("source_url", sourceURL).
		Str("feed_version", parsed.version).
		Int("stops", summary.Imported.Stops).
		Int("routes", summary.Imported.Routes).
		Int("trips", summary.Imported.Trips).
		Int("stop_times", summary.Imported.StopTimes).
		Int("shapes", summary.Imported.Shapes).
		Dur("duration", time.Since(started)).
		Msg("feed sync committed")

	return summary, nil
}

// parsedDataset holds the validated contents of one archive.
type parsedDataset struct {
	version       string
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
	skipped       TableCounts
}

func (d *parsedDataset) counts() TableCounts {
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
	}
}

// parseArchive reads every table, dropping malformed rows and rows whose
// references do not resolve, so that the committed dataset always satisfies
// StopTime -> Trip -> Route integrity.
func (l *Loader) parseArchive(zr *zip.Reader) (*parsedDataset, error) {
	parsed := &parsedDataset{version: extractFeedVersion(zr)}

	if t, err := l.openOptional(zr, "agency.txt"); err != nil {
		return nil, err
	} else if t != nil {
		parsed.agencies = parseAgencies(t)
		parsed.skipped.Agencies = t.skipped
	}

	t, err := l.openRequired(zr, "stops.txt", "stop_id", "stop_name", "stop_lat", "stop_lon")
	if err != nil {
		return nil, err
	}
	parsed.stops = parseStops(t)
	parsed.skipped.Stops = t.skipped

	t, err = l.openRequired(zr, "routes.txt", "route_id")
	if err != nil {
		return nil, err
	}
	parsed.routes = parseRoutes(t)
	parsed.skipped.Routes = t.skipped

	if t, err := l.openOptional(zr, "shapes.txt"); err != nil {
		return nil, err
	} else if t != nil {
		parsed.shapes = parseShapes(t)
		parsed.skipped.Shapes = t.skipped
	}

	routeIDs := make(map[string]bool, len(parsed.routes))
	for _, r := range parsed.routes {
		routeIDs[r.ID] = true
	}

	t, err = l.openRequired(zr, "trips.txt", "trip_id", "route_id")
	if err != nil {
		return nil, err
	}
	parsed.trips = parseTrips(t, routeIDs)
	parsed.skipped.Trips = t.skipped

	tripIDs := make(map[string]bool, len(parsed.trips))
	for _, tr := range parsed.trips {
		tripIDs[tr.ID] = true
	}
	stopIDs := make(map[string]bool, len(parsed.stops))
	for _, s := range parsed.stops {
		stopIDs[s.ID] = true
	}

	t, err = l.openRequired(zr, "stop_times.txt", "trip_id", "stop_id", "stop_sequence")
	if err != nil {
		return nil, err
	}
	parsed.stopTimes = parseStopTimes(t, tripIDs, stopIDs)
	parsed.skipped.StopTimes = t.skipped

	if t, err := l.openOptional(zr, "calendar.txt"); err != nil {
		return nil, err
	} else if t != nil {
		parsed.calendars = parseCalendar(t)
		parsed.skipped.Calendars = t.skipped
	}

	if t, err := l.openOptional(zr, "calendar_dates.txt"); err != nil {
		return nil, err
	} else if t != nil {
		parsed.calendarDates = parseCalendarDates(t)
		parsed.skipped.CalendarDates = t.skipped
	}

	if t, err := l.openOptional(zr, "transfers.txt"); err != nil {
		return nil, err
	} else if t != nil {
		parsed.transfers = parseTransfers(t, stopIDs)
		parsed.skipped.Transfers = t.skipped
	}

	if t, err := l.openOptional(zr, "frequencies.txt"); err != nil {
		return nil, err
	} else if t != nil {
		parsed.frequencies = parseFrequencies(t, tripIDs)
		parsed.skipped.Frequencies = t.skipped
	}

	return parsed, nil
}

// openRequired opens a mandatory table and checks its key columns.
func (l *Loader) openRequired(zr *zip.Reader, name string, cols ...string) (*tableReader, error) {
	file := findArchiveFile(zr, name)
	if file == nil {
		return nil, &ParseError{Table: name, Err: errors.New("required table missing from archive")}
	}
	t, err := l.openTable(file, name)
	if err != nil {
		return nil, &ParseError{Table: name, Err: err}
	}
	if err := t.requireColumns(cols...); err != nil {
		return nil, &ParseError{Table: name, Err: err}
	}
	return t, nil
}

// openOptional opens an optional table, returning (nil, nil) when absent.
func (l *Loader) openOptional(zr *zip.Reader, name string) (*tableReader, error) {
	file := findArchiveFile(zr, name)
	if file == nil {
		l.logger.Info().Str("table", name).Msg("optional table not present in archive")
		return nil, nil
	}
	t, err := l.openTable(file, name)
	if err != nil {
		// A corrupt optional table is skipped, not fatal.
		l.logger.Warn().Str("table", name).Err(err).Msg("skipping unreadable optional table")
		return nil, nil
	}
	return t, nil
}

func (l *Loader) openTable(file *zip.File, name string) (*tableReader, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return newTableReader(name, bytes.NewReader(data), l.logger)
}

// obtainArchive fetches the archive from the primary URL, falling back to
// the secondary on any non-success.
func (l *Loader) obtainArchive(ctx context.Context) ([]byte, string, error) {
	data, primaryErr := l.download(ctx, l.primaryURL)
	if primaryErr == nil {
		return data, l.primaryURL, nil
	}

	if l.fallbackURL != "" && !strings.EqualFold(l.fallbackURL, l.primaryURL) {
		l.logger.Warn().
			Str("primary_url", l.primaryURL).
			Err(primaryErr).
			Msg("primary feed download failed, trying fallback")

		data, fallbackErr := l.download(ctx, l.fallbackURL)
		if fallbackErr == nil {
			return data, l.fallbackURL, nil
		}
		return nil, "", &DownloadError{
			PrimaryURL:  l.primaryURL,
			FallbackURL: l.fallbackURL,
			PrimaryErr:  primaryErr,
			FallbackErr: fallbackErr,
		}
	}

	return nil, "", &DownloadError{PrimaryURL: l.primaryURL, PrimaryErr: primaryErr}
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func findArchiveFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// extractFeedVersion reads the declared version out of feed_info.txt, if any.
func extractFeedVersion(zr *zip.Reader) string {
	file := findArchiveFile(zr, "feed_info.txt")
	if file == nil {
		return ""
	}
	rc, err := file.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return ""
	}
	for i, col := range header {
		if strings.TrimSpace(strings.ToLower(strings.TrimPrefix(col, "\ufeff"))) == "feed_version" {
			record, err := reader.Read()
			if err == nil && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
	}
	return ""
}

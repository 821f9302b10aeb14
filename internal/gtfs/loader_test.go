package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanroute/urbanroute/internal/config"
)

// buildFeedArchive assembles an in-memory feed archive from table contents.
func buildFeedArchive(t *testing.T, tables map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range tables {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s in archive: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// minimalTables is a consistent four-table feed with one malformed stop row.
func minimalTables() map[string]string {
	return map[string]string{
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"PA1,Plaza de Armas,-33.4378,-70.6505\n" +
			"PA2,La Moneda,abc,-70.6540\n" +
			"PA3,Universidad de Chile,-33.4436,-70.6506\n",
		"routes.txt": "route_id,route_short_name,route_long_name,route_type\n" +
			"506,506,Peñalolén - Maipú,3\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign\n" +
			"506,L,506-1,Maipú\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"506-1,08:00:00,08:00:30,PA1,1\n" +
			"506-1,08:05:00,08:05:30,PA3,2\n" +
			"506-1,08:10:00,08:10:30,PA1,3\n" +
			"506-1,24:15:00,24:15:30,PA3,4\n",
	}
}

func serveArchive(t *testing.T, archive []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive) //nolint:errcheck
	}))
}

func newTestLoader(repo Repository, primary, fallback string) *Loader {
	return NewLoader(LoaderConfig{
		Feed: config.FeedConfig{
			PrimaryURL:   primary,
			FallbackURL:  fallback,
			SyncDeadline: time.Minute,
		},
		Repository: repo,
		Logger:     zerolog.Nop(),
	})
}

func TestSync_ImportsWithRowLevelResilience(t *testing.T) {
	server := serveArchive(t, buildFeedArchive(t, minimalTables()))
	defer server.Close()

	repo := NewInMemoryRepository()
	loader := newTestLoader(repo, server.URL, "")

	summary, err := loader.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}

	// One stop has latitude "abc" and is skipped; everything else imports.
	if summary.Imported.Stops != 2 {
		t.Errorf("expected 2 stops imported, got %d", summary.Imported.Stops)
	}
	if summary.Skipped.Stops != 1 {
		t.Errorf("expected 1 stop skipped, got %d", summary.Skipped.Stops)
	}
	if summary.Imported.Routes != 1 {
		t.Errorf("expected 1 route imported, got %d", summary.Imported.Routes)
	}
	if summary.Imported.Trips != 1 {
		t.Errorf("expected 1 trip imported, got %d", summary.Imported.Trips)
	}
	if summary.Imported.StopTimes != 4 {
		t.Errorf("expected 4 stop times imported, got %d", summary.Imported.StopTimes)
	}
	if summary.SourceURL != server.URL {
		t.Errorf("expected source url %s, got %s", server.URL, summary.SourceURL)
	}

	feed, err := repo.LatestFeed(context.Background())
	if err != nil {
		t.Fatalf("expected committed feed: %v", err)
	}
	if feed.Status != FeedStatusCompleted {
		t.Errorf("expected completed feed, got %s", feed.Status)
	}
	if feed.Counts.StopTimes != 4 {
		t.Errorf("expected feed counters persisted, got %+v", feed.Counts)
	}
}

func TestSync_ReferentialIntegrityPostCommit(t *testing.T) {
	tables := minimalTables()
	// A trip on an unknown route and a stop time on an unknown trip must
	// both be dropped before commit.
	tables["trips.txt"] += "999,L,ghost-1,Nowhere\n"
	tables["stop_times.txt"] += "ghost-2,09:00:00,09:00:30,PA1,1\n"

	server := serveArchive(t, buildFeedArchive(t, tables))
	defer server.Close()

	repo := NewInMemoryRepository()
	loader := newTestLoader(repo, server.URL, "")

	if _, err := loader.Sync(context.Background()); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}

	routes := make(map[string]bool)
	for _, r := range repo.Routes() {
		routes[r.ID] = true
	}
	trips := make(map[string]bool)
	for _, tr := range repo.Trips() {
		if !routes[tr.RouteID] {
			t.Errorf("trip %s references missing route %s", tr.ID, tr.RouteID)
		}
		trips[tr.ID] = true
	}
	for _, st := range repo.StopTimes() {
		if !trips[st.TripID] {
			t.Errorf("stop time references missing trip %s", st.TripID)
		}
	}
}

func TestSync_IdempotentCounts(t *testing.T) {
	server := serveArchive(t, buildFeedArchive(t, minimalTables()))
	defer server.Close()

	repo := NewInMemoryRepository()
	loader := newTestLoader(repo, server.URL, "")

	first, err := loader.Sync(context.Background())
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := loader.Sync(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if first.Imported != second.Imported {
		t.Errorf("byte-identical feed produced different counts: %+v vs %+v",
			first.Imported, second.Imported)
	}

	counts, err := repo.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("table counts: %v", err)
	}
	if counts != second.Imported {
		t.Errorf("committed counts %+v differ from summary %+v", counts, second.Imported)
	}
}

func TestSync_DownloadFailureLeavesPriorFeedIntact(t *testing.T) {
	server := serveArchive(t, buildFeedArchive(t, minimalTables()))
	repo := NewInMemoryRepository()

	if _, err := newTestLoader(repo, server.URL, "").Sync(context.Background()); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	before, _ := repo.TableCounts(context.Background())
	server.Close()

	// Both primary and fallback now point at closed listeners.
	_, err := newTestLoader(repo, server.URL, server.URL+"/other").Sync(context.Background())

	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if downloadErr.FallbackErr == nil {
		t.Error("expected the fallback failure cause to be recorded")
	}

	after, _ := repo.TableCounts(context.Background())
	if before != after {
		t.Errorf("failed sync changed committed counts: %+v -> %+v", before, after)
	}
}

func TestSync_FallbackURLUsed(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer primary.Close()

	fallback := serveArchive(t, buildFeedArchive(t, minimalTables()))
	defer fallback.Close()

	repo := NewInMemoryRepository()
	summary, err := newTestLoader(repo, primary.URL, fallback.URL).Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
	if summary.SourceURL != fallback.URL {
		t.Errorf("expected effective source %s, got %s", fallback.URL, summary.SourceURL)
	}
}

func TestSync_MissingRequiredTableAborts(t *testing.T) {
	tables := minimalTables()
	delete(tables, "stop_times.txt")

	server := serveArchive(t, buildFeedArchive(t, tables))
	defer server.Close()

	repo := NewInMemoryRepository()
	_, err := newTestLoader(repo, server.URL, "").Sync(context.Background())

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Table != "stop_times.txt" {
		t.Errorf("expected stop_times.txt named in error, got %q", parseErr.Table)
	}

	if _, err := repo.LatestFeed(context.Background()); !errors.Is(err, ErrNoFeed) {
		t.Errorf("expected no committed feed, got %v", err)
	}
}

func TestSync_OptionalTablesImported(t *testing.T) {
	tables := minimalTables()
	tables["agency.txt"] = "agency_id,agency_name,agency_url,agency_timezone\n" +
		"TS,Transantiago,https://www.red.cl,America/Santiago\n"
	tables["feed_info.txt"] = "feed_publisher_name,feed_version\nDTPM,v20260801\n"
	tables["calendar.txt"] = "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"L,1,1,1,1,1,0,0,20260101,20261231\n"
	tables["shapes.txt"] = "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"shp-506,-33.4378,-70.6505,1\n" +
		"shp-506,-33.4436,-70.6506,2\n"
	tables["frequencies.txt"] = "trip_id,start_time,end_time,headway_secs\n" +
		"506-1,06:00:00,09:00:00,300\n"

	server := serveArchive(t, buildFeedArchive(t, tables))
	defer server.Close()

	repo := NewInMemoryRepository()
	summary, err := newTestLoader(repo, server.URL, "").Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}

	if summary.FeedVersion != "v20260801" {
		t.Errorf("expected declared feed version, got %q", summary.FeedVersion)
	}
	if summary.Imported.Agencies != 1 {
		t.Errorf("expected 1 agency, got %d", summary.Imported.Agencies)
	}
	if summary.Imported.Calendars != 1 {
		t.Errorf("expected 1 calendar, got %d", summary.Imported.Calendars)
	}
	if summary.Imported.Shapes != 2 {
		t.Errorf("expected 2 shape points, got %d", summary.Imported.Shapes)
	}
	if summary.Imported.Frequencies != 1 {
		t.Errorf("expected 1 frequency, got %d", summary.Imported.Frequencies)
	}
}

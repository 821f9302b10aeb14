package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// maxLoggedRowErrors bounds verbose logging per table. Real-world feeds
// routinely contain a small percentage of malformed rows; all of them are
// counted but only the first few are worth reading about.
const maxLoggedRowErrors = 20

// tableReader reads one CSV table leniently: a malformed record is reported
// through skipRow and never aborts the table.
type tableReader struct {
	name    string
	csv     *csv.Reader
	cols    map[string]int
	line    int
	skipped int
	logger  zerolog.Logger
}

func newTableReader(name string, r io.Reader, logger zerolog.Logger) (*tableReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := make(map[string]int, len(header))
	for i, field := range header {
		cols[strings.ToLower(strings.TrimSpace(field))] = i
	}

	return &tableReader{
		name:   name,
		csv:    cr,
		cols:   cols,
		line:   1,
		logger: logger,
	}, nil
}

// requireColumns verifies the header names a mandatory table cannot live without.
func (t *tableReader) requireColumns(names ...string) error {
	for _, name := range names {
		if _, ok := t.cols[name]; !ok {
			return fmt.Errorf("missing column %s in %s", name, t.name)
		}
	}
	return nil
}

// next returns the following record, skipping records the CSV layer cannot read.
func (t *tableReader) next() ([]string, bool) {
	for {
		t.line++
		record, err := t.csv.Read()
		if err == io.EOF {
			return nil, false
		}
		if err != nil {
			t.skipRow("unreadable record", err.Error())
			continue
		}
		return record, true
	}
}

// field returns the named column of a record, or "" when absent.
func (t *tableReader) field(record []string, name string) string {
	if pos, ok := t.cols[name]; ok && pos < len(record) {
		return strings.TrimSpace(record[pos])
	}
	return ""
}

// intField parses the named column as an integer, returning def on absence
// or garbage.
func (t *tableReader) intField(record []string, name string, def int) int {
	if v := t.field(record, name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

// skipRow counts a bad record and logs the first maxLoggedRowErrors of them.
func (t *tableReader) skipRow(reason, detail string) {
	t.skipped++
	if t.skipped <= maxLoggedRowErrors {
		t.logger.Warn().
			Str("table", t.name).
			Int("line", t.line).
			Str("detail", detail).
			Msg("skipping row: " + reason)
	} else if t.skipped == maxLoggedRowErrors+1 {
		t.logger.Warn().
			Str("table", t.name).
			Msg("further row errors suppressed, totals reported at end of import")
	}
}

func parseAgencies(t *tableReader) []Agency {
	var rows []Agency
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "agency_id")
		name := t.field(record, "agency_name")
		if id == "" {
			// Single-agency feeds may omit agency_id.
			id = name
		}
		if id == "" {
			t.skipRow("missing agency_id and agency_name", "")
			continue
		}
		if seen[id] {
			t.skipRow("duplicate agency_id", id)
			continue
		}
		seen[id] = true
		rows = append(rows, Agency{
			ID:       id,
			Name:     name,
			URL:      t.field(record, "agency_url"),
			Timezone: t.field(record, "agency_timezone"),
		})
	}
	return rows
}

func parseStops(t *tableReader) []Stop {
	var rows []Stop
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "stop_id")
		if id == "" {
			t.skipRow("missing stop_id", "")
			continue
		}
		if seen[id] {
			t.skipRow("duplicate stop_id", id)
			continue
		}
		lat, err := strconv.ParseFloat(t.field(record, "stop_lat"), 64)
		if err != nil {
			t.skipRow("invalid latitude", id+": "+t.field(record, "stop_lat"))
			continue
		}
		lon, err := strconv.ParseFloat(t.field(record, "stop_lon"), 64)
		if err != nil {
			t.skipRow("invalid longitude", id+": "+t.field(record, "stop_lon"))
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			t.skipRow("coordinate out of range", id)
			continue
		}
		seen[id] = true
		rows = append(rows, Stop{
			ID:                 id,
			Code:               t.field(record, "stop_code"),
			Name:               t.field(record, "stop_name"),
			Description:        t.field(record, "stop_desc"),
			Latitude:           lat,
			Longitude:          lon,
			ZoneID:             t.field(record, "zone_id"),
			ParentStation:      t.field(record, "parent_station"),
			WheelchairBoarding: t.intField(record, "wheelchair_boarding", 0),
		})
	}
	return rows
}

func parseRoutes(t *tableReader) []Route {
	var rows []Route
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "route_id")
		if id == "" {
			t.skipRow("missing route_id", "")
			continue
		}
		if seen[id] {
			t.skipRow("duplicate route_id", id)
			continue
		}
		seen[id] = true
		rows = append(rows, Route{
			ID:        id,
			AgencyID:  t.field(record, "agency_id"),
			ShortName: t.field(record, "route_short_name"),
			LongName:  t.field(record, "route_long_name"),
			Type:      t.intField(record, "route_type", 3),
			Color:     t.field(record, "route_color"),
			TextColor: t.field(record, "route_text_color"),
		})
	}
	return rows
}

func parseShapes(t *tableReader) []ShapePoint {
	var rows []ShapePoint
	seen := make(map[string]map[int]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "shape_id")
		if id == "" {
			t.skipRow("missing shape_id", "")
			continue
		}
		seq, err := strconv.Atoi(t.field(record, "shape_pt_sequence"))
		if err != nil {
			t.skipRow("invalid shape_pt_sequence", id)
			continue
		}
		lat, latErr := strconv.ParseFloat(t.field(record, "shape_pt_lat"), 64)
		lon, lonErr := strconv.ParseFloat(t.field(record, "shape_pt_lon"), 64)
		if latErr != nil || lonErr != nil {
			t.skipRow("invalid shape coordinate", id)
			continue
		}
		if seen[id] == nil {
			seen[id] = make(map[int]bool)
		}
		if seen[id][seq] {
			t.skipRow("duplicate shape point", fmt.Sprintf("%s#%d", id, seq))
			continue
		}
		seen[id][seq] = true

		point := ShapePoint{ShapeID: id, Sequence: seq, Latitude: lat, Longitude: lon}
		if v := t.field(record, "shape_dist_traveled"); v != "" {
			if dist, err := strconv.ParseFloat(v, 64); err == nil {
				point.DistTraveled = &dist
			}
		}
		rows = append(rows, point)
	}
	return rows
}

func parseTrips(t *tableReader, routeIDs map[string]bool) []Trip {
	var rows []Trip
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "trip_id")
		routeID := t.field(record, "route_id")
		if id == "" || routeID == "" {
			t.skipRow("missing trip_id or route_id", id)
			continue
		}
		if seen[id] {
			t.skipRow("duplicate trip_id", id)
			continue
		}
		if !routeIDs[routeID] {
			t.skipRow("unknown route reference", id+" -> "+routeID)
			continue
		}
		seen[id] = true
		rows = append(rows, Trip{
			ID:        id,
			RouteID:   routeID,
			ServiceID: t.field(record, "service_id"),
			Headsign:  t.field(record, "trip_headsign"),
			ShapeID:   t.field(record, "shape_id"),
			Direction: t.intField(record, "direction_id", 0),
		})
	}
	return rows
}

func parseStopTimes(t *tableReader, tripIDs, stopIDs map[string]bool) []StopTime {
	var rows []StopTime
	seen := make(map[string]map[int]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		tripID := t.field(record, "trip_id")
		stopID := t.field(record, "stop_id")
		if tripID == "" || stopID == "" {
			t.skipRow("missing trip_id or stop_id", tripID)
			continue
		}
		seq, err := strconv.Atoi(t.field(record, "stop_sequence"))
		if err != nil {
			t.skipRow("invalid stop_sequence", tripID)
			continue
		}
		if !tripIDs[tripID] {
			t.skipRow("unknown trip reference", tripID)
			continue
		}
		if !stopIDs[stopID] {
			t.skipRow("unknown stop reference", tripID+" -> "+stopID)
			continue
		}
		if seen[tripID] == nil {
			seen[tripID] = make(map[int]bool)
		}
		if seen[tripID][seq] {
			t.skipRow("duplicate stop sequence", fmt.Sprintf("%s#%d", tripID, seq))
			continue
		}
		seen[tripID][seq] = true
		rows = append(rows, StopTime{
			TripID:    tripID,
			StopID:    stopID,
			Sequence:  seq,
			Arrival:   t.field(record, "arrival_time"),
			Departure: t.field(record, "departure_time"),
		})
	}
	return rows
}

func parseCalendar(t *tableReader) []Calendar {
	var rows []Calendar
	seen := make(map[string]bool)

	day := func(record []string, name string) bool {
		return t.field(record, name) == "1"
	}

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "service_id")
		if id == "" {
			t.skipRow("missing service_id", "")
			continue
		}
		if seen[id] {
			t.skipRow("duplicate service_id", id)
			continue
		}
		seen[id] = true
		rows = append(rows, Calendar{
			ServiceID: id,
			Monday:    day(record, "monday"),
			Tuesday:   day(record, "tuesday"),
			Wednesday: day(record, "wednesday"),
			Thursday:  day(record, "thursday"),
			Friday:    day(record, "friday"),
			Saturday:  day(record, "saturday"),
			Sunday:    day(record, "sunday"),
			StartDate: t.field(record, "start_date"),
			EndDate:   t.field(record, "end_date"),
		})
	}
	return rows
}

func parseCalendarDates(t *tableReader) []CalendarDate {
	var rows []CalendarDate
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		id := t.field(record, "service_id")
		date := t.field(record, "date")
		if id == "" || date == "" {
			t.skipRow("missing service_id or date", id)
			continue
		}
		key := id + "|" + date
		if seen[key] {
			t.skipRow("duplicate calendar date", key)
			continue
		}
		seen[key] = true
		rows = append(rows, CalendarDate{
			ServiceID:     id,
			Date:          date,
			ExceptionType: t.intField(record, "exception_type", 1),
		})
	}
	return rows
}

func parseTransfers(t *tableReader, stopIDs map[string]bool) []Transfer {
	var rows []Transfer
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		from := t.field(record, "from_stop_id")
		to := t.field(record, "to_stop_id")
		if from == "" || to == "" {
			t.skipRow("missing from_stop_id or to_stop_id", from)
			continue
		}
		if !stopIDs[from] || !stopIDs[to] {
			t.skipRow("unknown stop reference", from+" -> "+to)
			continue
		}
		key := from + "|" + to
		if seen[key] {
			t.skipRow("duplicate transfer", key)
			continue
		}
		seen[key] = true

		transfer := Transfer{
			FromStopID: from,
			ToStopID:   to,
			Type:       t.intField(record, "transfer_type", 0),
		}
		if v := t.field(record, "min_transfer_time"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				transfer.MinTransferTime = &secs
			}
		}
		rows = append(rows, transfer)
	}
	return rows
}

func parseFrequencies(t *tableReader, tripIDs map[string]bool) []Frequency {
	var rows []Frequency
	seen := make(map[string]bool)

	for {
		record, ok := t.next()
		if !ok {
			break
		}
		tripID := t.field(record, "trip_id")
		start := t.field(record, "start_time")
		if tripID == "" || start == "" {
			t.skipRow("missing trip_id or start_time", tripID)
			continue
		}
		if !tripIDs[tripID] {
			t.skipRow("unknown trip reference", tripID)
			continue
		}
		headway, err := strconv.Atoi(t.field(record, "headway_secs"))
		if err != nil {
			t.skipRow("invalid headway_secs", tripID)
			continue
		}
		key := tripID + "|" + start
		if seen[key] {
			t.skipRow("duplicate frequency", key)
			continue
		}
		seen[key] = true
		rows = append(rows, Frequency{
			TripID:      tripID,
			StartTime:   start,
			EndTime:     t.field(record, "end_time"),
			HeadwaySecs: headway,
			ExactTimes:  t.intField(record, "exact_times", 0),
		})
	}
	return rows
}

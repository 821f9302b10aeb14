// Package gtfs ingests transit feed archives into the relational store and
// exposes the committed dataset to the rest of the service.
package gtfs

import "time"

// Feed is one versioned snapshot of the transit dataset. A feed is created
// once per successful sync, never mutated after commit, and superseded (not
// deleted) by the next successful sync.
type Feed struct {
	ID           int64       `json:"id"`
	SourceURL    string      `json:"source_url"`
	Version      string      `json:"feed_version,omitempty"`
	DownloadedAt time.Time   `json:"downloaded_at"`
	Status       string      `json:"status"`
	Counts       TableCounts `json:"counts"`
}

// Feed status values.
const (
	FeedStatusImporting = "importing"
	FeedStatusCompleted = "completed"
)

// TableCounts holds per-table row counters for one feed.
type TableCounts struct {
	Agencies      int `json:"agencies"`
	Stops         int `json:"stops"`
	Routes        int `json:"routes"`
	Shapes        int `json:"shapes"`
	Trips         int `json:"trips"`
	StopTimes     int `json:"stop_times"`
	Calendars     int `json:"calendars"`
	CalendarDates int `json:"calendar_dates"`
	Transfers     int `json:"transfers"`
	Frequencies   int `json:"frequencies"`
}

// Summary describes the outcome of one sync.
type Summary struct {
	FeedVersion  string      `json:"feed_version,omitempty"`
	SourceURL    string      `json:"source_url"`
	DownloadedAt time.Time   `json:"downloaded_at"`
	Imported     TableCounts `json:"imported"`
	Skipped      TableCounts `json:"skipped"`
}

// Stop is a boarding location.
type Stop struct {
	ID                 string  `json:"stop_id"`
	Code               string  `json:"code,omitempty"`
	Name               string  `json:"name"`
	Description        string  `json:"description,omitempty"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	ZoneID             string  `json:"zone_id,omitempty"`
	ParentStation      string  `json:"parent_station,omitempty"`
	WheelchairBoarding int     `json:"wheelchair_boarding"`

	// DistanceMeters is populated by nearby-stop queries only.
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// Route is a published transit line.
type Route struct {
	ID        string `json:"route_id"`
	AgencyID  string `json:"agency_id,omitempty"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
	Type      int    `json:"route_type"`
	Color     string `json:"color,omitempty"`
	TextColor string `json:"text_color,omitempty"`
}

// Trip is one scheduled run of a route.
type Trip struct {
	ID        string `json:"trip_id"`
	RouteID   string `json:"route_id"`
	ServiceID string `json:"service_id"`
	Headsign  string `json:"headsign,omitempty"`
	ShapeID   string `json:"shape_id,omitempty"`
	Direction int    `json:"direction"`
}

// StopTime is an ordered visit of a trip to a stop. Clock times stay as
// text because schedules past midnight exceed 24:00.
type StopTime struct {
	TripID    string `json:"trip_id"`
	StopID    string `json:"stop_id"`
	Sequence  int    `json:"sequence"`
	Arrival   string `json:"arrival_time"`
	Departure string `json:"departure_time"`
}

// ShapePoint is one vertex of a trip's polyline.
type ShapePoint struct {
	ShapeID      string   `json:"shape_id"`
	Sequence     int      `json:"sequence"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	DistTraveled *float64 `json:"dist_traveled,omitempty"`
}

// Calendar is a weekly service recurrence pattern.
type Calendar struct {
	ServiceID string `json:"service_id"`
	Monday    bool   `json:"monday"`
	Tuesday   bool   `json:"tuesday"`
	Wednesday bool   `json:"wednesday"`
	Thursday  bool   `json:"thursday"`
	Friday    bool   `json:"friday"`
	Saturday  bool   `json:"saturday"`
	Sunday    bool   `json:"sunday"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CalendarDate is a single-date service override.
type CalendarDate struct {
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	ExceptionType int    `json:"exception_type"`
}

// Agency is operator metadata.
type Agency struct {
	ID       string `json:"agency_id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Transfer is an inter-stop transfer rule.
type Transfer struct {
	FromStopID      string `json:"from_stop_id"`
	ToStopID        string `json:"to_stop_id"`
	Type            int    `json:"transfer_type"`
	MinTransferTime *int   `json:"min_transfer_time,omitempty"`
}

// Frequency is a headway-based service definition.
type Frequency struct {
	TripID      string `json:"trip_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	HeadwaySecs int    `json:"headway_secs"`
	ExactTimes  int    `json:"exact_times"`
}

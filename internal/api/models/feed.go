package models

import (
	"time"

	"github.com/urbanroute/urbanroute/internal/gtfs"
)

// FeedStatusResponse is the body of GET /v1/feed/status.
type FeedStatusResponse struct {
	FeedVersion  string           `json:"feedVersion,omitempty"`
	SourceURL    string           `json:"sourceUrl"`
	DownloadedAt time.Time        `json:"downloadedAt"`
	AgeDays      int              `json:"ageDays"`
	Stale        bool             `json:"stale"`
	Counts       gtfs.TableCounts `json:"counts"`
}

// FeedSyncResponse is the body of an accepted POST /v1/feed/sync.
type FeedSyncResponse struct {
	FeedVersion  string           `json:"feedVersion,omitempty"`
	SourceURL    string           `json:"sourceUrl"`
	DownloadedAt time.Time        `json:"downloadedAt"`
	Imported     gtfs.TableCounts `json:"imported"`
	Skipped      gtfs.TableCounts `json:"skipped"`
}

// NearbyStopsResponse is the body of GET /v1/stops/nearby.
type NearbyStopsResponse struct {
	Stops []NearbyStop `json:"stops"`
}

// NearbyStop is one stop near the queried point.
type NearbyStop struct {
	StopID         string  `json:"stopId"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DistanceMeters float64 `json:"distanceMeters"`
}

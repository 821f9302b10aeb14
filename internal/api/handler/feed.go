package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/urbanroute/urbanroute/internal/api/models"
	"github.com/urbanroute/urbanroute/internal/api/response"
	"github.com/urbanroute/urbanroute/internal/gtfs"
)

// FeedHandler handles transit feed management endpoints.
type FeedHandler struct {
	scheduler *gtfs.Scheduler
	repo      gtfs.Repository
	staleness time.Duration
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(scheduler *gtfs.Scheduler, repo gtfs.Repository, staleness time.Duration) *FeedHandler {
	return &FeedHandler{
		scheduler: scheduler,
		repo:      repo,
		staleness: staleness,
	}
}

// SyncFeed handles POST /v1/feed/sync - manual feed refresh.
// A sync already in progress answers 409 rather than queuing another.
func (h *FeedHandler) SyncFeed(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scheduler.TriggerSync(r.Context())
	if errors.Is(err, gtfs.ErrSyncInProgress) {
		response.Conflict(w, r, "a feed sync is already running")
		return
	}
	if err != nil {
		response.InternalError(w, r, "feed sync failed: "+err.Error())
		return
	}

	response.JSON(w, r, http.StatusOK, models.FeedSyncResponse{
		FeedVersion:  summary.FeedVersion,
		SourceURL:    summary.SourceURL,
		DownloadedAt: summary.DownloadedAt,
		Imported:     summary.Imported,
		Skipped:      summary.Skipped,
	})
}

// FeedStatus handles GET /v1/feed/status - latest committed feed summary.
func (h *FeedHandler) FeedStatus(w http.ResponseWriter, r *http.Request) {
	feed, err := h.repo.LatestFeed(r.Context())
	if errors.Is(err, gtfs.ErrNoFeed) {
		response.NotFound(w, r, "no transit feed has been imported yet")
		return
	}
	if err != nil {
		response.InternalError(w, r, "querying feed status failed")
		return
	}

	age := time.Since(feed.DownloadedAt)
	response.JSON(w, r, http.StatusOK, models.FeedStatusResponse{
		FeedVersion:  feed.Version,
		SourceURL:    feed.SourceURL,
		DownloadedAt: feed.DownloadedAt,
		AgeDays:      int(age.Hours() / 24),
		Stale:        age > h.staleness,
		Counts:       feed.Counts,
	})
}

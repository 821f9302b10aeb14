package gtfs

import (
	"errors"
	"fmt"
)

// Sentinel errors for feed operations.
var (
	// ErrNoFeed indicates no feed has ever been committed.
	ErrNoFeed = errors.New("no transit feed has been imported")
	// ErrSyncInProgress indicates another sync holds the re-entrancy guard.
	ErrSyncInProgress = errors.New("a feed sync is already running")
)

// DownloadError means both the primary and (when configured) the fallback
// feed URL failed. The prior committed feed is left untouched.
type DownloadError struct {
	PrimaryURL  string
	FallbackURL string
	PrimaryErr  error
	FallbackErr error
}

func (e *DownloadError) Error() string {
	if e.FallbackErr != nil {
		return fmt.Sprintf("feed download failed: primary %s: %v; fallback %s: %v",
			e.PrimaryURL, e.PrimaryErr, e.FallbackURL, e.FallbackErr)
	}
	return fmt.Sprintf("feed download failed: %s: %v", e.PrimaryURL, e.PrimaryErr)
}

func (e *DownloadError) Unwrap() error {
	return e.PrimaryErr
}

// ParseError means the archive is unusable: not a zip, or missing one of the
// required tables. The sync aborts with no changes committed.
type ParseError struct {
	Table string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("feed parse failed: table %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("feed parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Package dedup gates inbound events so each event id is processed at most
// once within a fixed window.
package dedup

import (
	"context"
	"time"
)

// Cache is a bounded-lifetime membership set keyed by event id.
type Cache interface {
	// ShouldProcess records eventID and reports true on its first sighting
	// inside the window; it reports false while the id is recorded.
	ShouldProcess(ctx context.Context, eventID string) bool
	// Release forgets eventID so the next sighting is processed again.
	Release(ctx context.Context, eventID string)
}

// Clock returns the current time. Tests swap it for a fake.
type Clock func() time.Time

// Package storage provides a queryable SQLite index of persisted detections.
// The per-bucket CSV ledger remains the authoritative artifact; the index
// exists so detection history can be filtered and joined across rotation
// buckets without re-parsing files.
package storage

import (
	"context"
	"time"

	"github.com/rfscan/waterfall/internal/detect"
)

// Session describes one engine run. Config carries the JSON-encoded engine
// configuration active for the run, nil when none was recorded.
type Session struct {
	ID        int64
	RunID     string // UUID, unique per process run
	StartTime time.Time
	Detector  string
	Config    *string
}

// Store indexes detections per engine run. Implementations must make every
// write atomic: either all detections of a cycle are indexed or none are.
type Store interface {
	// CreateSession registers a new engine run and returns its identifier.
	// config may be a string, []byte, or any JSON-serializable value.
	CreateSession(ctx context.Context, detector string, config any) (int64, error)

	// Session retrieves a single run by ID.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all runs ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreDetections indexes a cycle's merged detections under the given
	// run and rotation bucket in a single transaction.
	StoreDetections(ctx context.Context, sessionID, bucket int64, detections []detect.Detection) error

	// Detections returns the indexed detections of a run in insertion order.
	Detections(ctx context.Context, sessionID int64) ([]detect.Detection, error)

	// Close releases database resources. Safe to call multiple times.
	Close() error
}

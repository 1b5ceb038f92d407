// Package ledger persists merged detections and configuration snapshots
// under time-rotated output directories. All writes go through a
// temp-then-rename discipline so concurrent readers never observe a
// partially written file.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Bucket returns the rotation bucket key for the given instant:
// floor(unix(now)/rotateSecs)*rotateSecs. The key is monotonic
// non-decreasing over a process lifetime and deterministic across restarts,
// so resuming at the same wall-clock time reuses the same bucket.
func Bucket(now time.Time, rotateSecs int64) int64 {
	return now.Unix() / rotateSecs * rotateSecs
}

// BucketDir resolves (and creates, if needed) the active output directory.
// With rotation disabled (rotateSecs <= 0) the root itself is used.
func BucketDir(root string, now time.Time, rotateSecs int64) (string, error) {
	dir := root
	if rotateSecs > 0 {
		dir = filepath.Join(root, strconv.FormatInt(Bucket(now, rotateSecs), 10))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return dir, nil
}

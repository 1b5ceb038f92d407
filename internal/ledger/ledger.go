package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rfscan/waterfall/internal/detect"
	"github.com/rfscan/waterfall/internal/scan"
)

const (
	detectionsSubdir = "detections"
	waterfallSubdir  = "waterfall"

	detectionsFile = "detections.csv"
)

var detectionHeader = []string{"timestamp", "start_freq", "end_freq", "dB", "type"}

// Ledger is the single writer of the on-disk detection artifacts. Per
// rotation bucket it maintains an append-only detection CSV, change-triggered
// scan-config snapshots, and interval-triggered waterfall config snapshots.
type Ledger struct {
	minFreq float64
	maxFreq float64

	saveInterval time.Duration
	lastSave     time.Time

	prevConfig    string
	prevConfigSet bool
}

// New creates a ledger for the given frequency range. saveInterval controls
// how often a waterfall config snapshot is taken.
func New(minFreq, maxFreq float64, saveInterval time.Duration) *Ledger {
	return &Ledger{
		minFreq:      minFreq,
		maxFreq:      maxFreq,
		saveInterval: saveInterval,
	}
}

// AppendDetections appends one CSV row per detection to the bucket's
// detection file. The header is written exactly once, when the file is
// created; re-running against an existing file never duplicates it.
func (l *Ledger) AppendDetections(bucketDir string, detections []detect.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	dir := filepath.Join(bucketDir, detectionsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating detections directory: %w", err)
	}

	rows := make([][]string, len(detections))
	for i, d := range detections {
		rows[i] = []string{
			strconv.FormatInt(d.Timestamp.Unix(), 10),
			strconv.FormatFloat(d.StartFreq, 'f', -1, 64),
			strconv.FormatFloat(d.EndFreq, 'f', -1, 64),
			strconv.FormatFloat(d.Power, 'f', -1, 64),
			d.Type,
		}
	}

	path := filepath.Join(dir, detectionsFile)
	if err := appendCSVAtomic(path, detectionHeader, rows); err != nil {
		return fmt.Errorf("appending detections: %w", err)
	}
	return nil
}

// scanConfigSnapshot is the on-disk form of a scan-config change record.
type scanConfigSnapshot struct {
	Timestamp   int64       `json:"timestamp"`
	MinFreq     float64     `json:"min_freq"`
	MaxFreq     float64     `json:"max_freq"`
	ScanConfigs scan.Config `json:"scan_configs"`
}

// WriteScanConfig persists the current scanner configuration, but only when
// it differs from the last one written. Stable configurations across many
// scans therefore produce a single file, not one per cycle.
func (l *Ledger) WriteScanConfig(bucketDir string, scanTime time.Time, cfg scan.Config) (bool, error) {
	canonical := cfg.Canonical()
	if l.prevConfigSet && l.prevConfig == canonical {
		return false, nil
	}

	dir := filepath.Join(bucketDir, detectionsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating detections directory: %w", err)
	}

	data, err := json.MarshalIndent(scanConfigSnapshot{
		Timestamp:   scanTime.Unix(),
		MinFreq:     l.minFreq,
		MaxFreq:     l.maxFreq,
		ScanConfigs: cfg,
	}, "", "    ")
	if err != nil {
		return false, fmt.Errorf("encoding scan config: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("scan_config_%d.json", scanTime.Unix()))
	if err := writeFileAtomic(path, data); err != nil {
		return false, fmt.Errorf("writing scan config: %w", err)
	}

	l.prevConfig = canonical
	l.prevConfigSet = true
	return true, nil
}

// waterfallSnapshot records the configuration span of the retained waterfall
// rows at save time.
type waterfallSnapshot struct {
	StartScanTimestamp int64       `json:"start_scan_timestamp"`
	StartScanConfig    scan.Config `json:"start_scan_config"`
	EndScanTimestamp   int64       `json:"end_scan_timestamp"`
	EndScanConfig      scan.Config `json:"end_scan_config"`
}

// MaybeSnapshotWaterfall writes a waterfall config snapshot when the save
// interval has elapsed since the last one. The first call only arms the
// timer, matching a freshly started process with nothing accumulated yet.
func (l *Ledger) MaybeSnapshotWaterfall(bucketDir string, now, scanTime time.Time, history *scan.History) (bool, error) {
	if l.lastSave.IsZero() {
		l.lastSave = now
		return false, nil
	}
	if now.Sub(l.lastSave) <= l.saveInterval {
		return false, nil
	}

	first, ok := history.First()
	if !ok {
		return false, nil
	}
	last, _ := history.Last()

	dir := filepath.Join(bucketDir, waterfallSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating waterfall directory: %w", err)
	}

	data, err := json.MarshalIndent(waterfallSnapshot{
		StartScanTimestamp: first.Timestamp.Unix(),
		StartScanConfig:    first.Config,
		EndScanTimestamp:   last.Timestamp.Unix(),
		EndScanConfig:      last.Config,
	}, "", "    ")
	if err != nil {
		return false, fmt.Errorf("encoding waterfall config: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("config_%d.json", scanTime.Unix()))
	if err := writeFileAtomic(path, data); err != nil {
		return false, fmt.Errorf("writing waterfall config: %w", err)
	}

	l.lastSave = now
	return true, nil
}

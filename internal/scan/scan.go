// Package scan defines the scan-batch data model and the ingestion
// collaborators that feed the waterfall engine.
package scan

import (
	"encoding/json"
	"time"
)

// Sample is a single frequency/power measurement from a scanner.
// Frequencies are MHz, power levels dB. Samples are immutable once produced.
type Sample struct {
	Frequency float64 // Center frequency in MHz
	Power     float64 // Power level in dB
}

// Config is an opaque key-value snapshot of the scanner state at capture
// time. It is carried alongside every batch and persisted when it changes.
type Config map[string]any

// Canonical returns a canonical JSON encoding of the config, suitable for
// equality comparison. encoding/json emits map keys in sorted order, so two
// semantically equal configs encode identically.
func (c Config) Canonical() string {
	if c == nil {
		return ""
	}
	p, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(p)
}

// Equal reports whether two configs are semantically equal.
func (c Config) Equal(other Config) bool {
	return c.Canonical() == other.Canonical()
}

// Batch is an ordered set of samples sharing one capture timestamp and one
// scanner configuration snapshot. A batch arrives as a unit and is never
// partially applied.
type Batch struct {
	Timestamp time.Time
	Config    Config
	Samples   []Sample
}

// Source is the ingestion collaborator contract. Poll is non-blocking and
// returns nil when nothing is pending. Healthy reports whether the source is
// still able to produce batches; once false the caller is expected to shut
// down. Shutdown must be safe to call more than once.
type Source interface {
	Poll() *Batch
	Healthy() bool
	Shutdown() error
}

// Package detect finds signal peaks in the latest PSD row and deduplicates
// overlapping candidates before they are persisted.
package detect

import (
	"fmt"
	"strings"
	"time"
)

// Candidate is a transient per-cycle peak found in a power row. Boundaries
// are fractional bin indices: the interpolated crossing points of the peak's
// width evaluated at WidthHeight. Candidates are never persisted directly;
// only the merged, frequency-translated form is.
type Candidate struct {
	Index       int     // bin index of the peak maximum
	Power       float64 // peak power, dB
	Prominence  float64 // height above the surrounding baseline, dB
	LeftIP      float64 // fractional bin index of the left width crossing
	RightIP     float64 // fractional bin index of the right width crossing
	WidthHeight float64 // power level at which the width was evaluated
}

// Detection is a merged peak translated to frequency space, immutable once
// written to the ledger.
type Detection struct {
	Timestamp time.Time
	StartFreq float64 // MHz
	EndFreq   float64 // MHz
	Power     float64 // dB
	Type      string
}

// Detector is a pluggable peak-finding strategy over a power row. FindPeaks
// must return an empty slice for degenerate input (all-NaN, too short),
// never an error. The strategy is selected at construction; call sites never
// dispatch by name.
type Detector interface {
	Name() string
	FindPeaks(row []float64) []Candidate
}

// New returns the detector for the given detection type.
// Supported types: "wideband", "narrowband".
func New(detectionType string) (Detector, error) {
	switch strings.ToLower(detectionType) {
	case "wideband":
		return &peakDetector{
			name: "wideband",
			params: findParams{
				minProminence: 10,
				relHeight:     0.7,
				minWidth:      10,
			},
		}, nil

	case "narrowband":
		return &peakDetector{
			name: "narrowband",
			params: findParams{
				minProminence: 8,
				relHeight:     0.7,
				maxWidth:      8,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown detection type %q", detectionType)
	}
}

type peakDetector struct {
	name   string
	params findParams
}

func (d *peakDetector) Name() string { return d.name }

func (d *peakDetector) FindPeaks(row []float64) []Candidate {
	return findPeaks(row, d.params)
}

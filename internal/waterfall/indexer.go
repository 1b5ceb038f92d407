// Package waterfall maintains the rolling time-by-frequency power matrix and
// the per-cycle aggregates (PSD histogram, column summaries, bin ranking)
// derived from it.
package waterfall

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Indexer maps frequencies (MHz) onto fixed-width bins over a configured
// range. Samples outside [MinFreq, MaxFreq] are rejected, not clamped.
type Indexer struct {
	minFreq    float64
	maxFreq    float64
	resolution float64
	numBins    int
}

// NewIndexer validates the range and resolution and computes the bin count:
// floor((max-min)/resolution) + 1.
func NewIndexer(minFreq, maxFreq, resolution float64) (*Indexer, error) {
	if maxFreq <= minFreq {
		return nil, fmt.Errorf("invalid frequency range: min=%f, max=%f MHz", minFreq, maxFreq)
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("invalid frequency resolution: %f MHz", resolution)
	}
	return &Indexer{
		minFreq:    minFreq,
		maxFreq:    maxFreq,
		resolution: resolution,
		numBins:    int(math.Floor((maxFreq-minFreq)/resolution)) + 1,
	}, nil
}

// NumBins returns the number of frequency bins.
func (ix *Indexer) NumBins() int { return ix.numBins }

// MinFreq returns the lower bound of the configured range in MHz.
func (ix *Indexer) MinFreq() float64 { return ix.minFreq }

// MaxFreq returns the upper bound of the configured range in MHz.
func (ix *Indexer) MaxFreq() float64 { return ix.maxFreq }

// Resolution returns the bin width in MHz.
func (ix *Indexer) Resolution() float64 { return ix.resolution }

// Index maps a frequency to its bin. The second return is false when the
// frequency falls outside the configured range.
func (ix *Indexer) Index(freq float64) (int, bool) {
	if math.IsNaN(freq) || freq < ix.minFreq || freq > ix.maxFreq {
		return 0, false
	}
	idx := int(math.Round((freq - ix.minFreq) / ix.resolution))
	if idx < 0 || idx >= ix.numBins {
		return 0, false
	}
	return idx, true
}

// Quantize snaps a frequency to the bin grid: round(f/resolution)*resolution.
// Quantization is idempotent with respect to Index: Index(f) == Index(Quantize(f)).
func (ix *Indexer) Quantize(freq float64) float64 {
	return math.Round(freq/ix.resolution) * ix.resolution
}

// BinFreqs returns the NumBins evenly spaced bin frequencies over the range.
func (ix *Indexer) BinFreqs() []float64 {
	return floats.Span(make([]float64, ix.numBins), ix.minFreq, ix.maxFreq)
}

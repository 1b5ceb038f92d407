package waterfall

import (
	"errors"
	"math"

	"github.com/rfscan/waterfall/internal/scan"
)

// ErrOutOfRange is returned by Buffer.Ingest when no sample of a batch falls
// inside the configured frequency range. It is a diagnostic, not a failure:
// the batch is skipped and the buffer is left untouched.
var ErrOutOfRange = errors.New("scan is outside the configured frequency range")

// ColumnSummary holds the NaN-ignoring per-column statistics of the buffer.
// Columns with no valid history carry NaN in every field.
type ColumnSummary struct {
	Min     []float64
	Max     []float64
	Mean    []float64
	Current []float64
}

// Buffer is the rolling waterfall: two parallel height-by-numBins matrices of
// power (dB) and quantized frequency (MHz). It is a true ring buffer; row
// eviction is a head-pointer move, never a data copy. Logical row 0 is the
// oldest retained scan, the last row the newest. Unfilled cells are NaN.
//
// The buffer is owned by a single writer (the orchestrator) and is not safe
// for concurrent mutation.
type Buffer struct {
	indexer *Indexer
	height  int
	width   int

	power [][]float64
	freq  [][]float64
	head  int // physical index of the oldest logical row
}

// NewBuffer allocates an all-NaN buffer of the given height over the
// indexer's bin grid.
func NewBuffer(indexer *Indexer, height int) (*Buffer, error) {
	if height <= 0 {
		return nil, errors.New("waterfall height must be positive")
	}

	width := indexer.NumBins()
	b := Buffer{
		indexer: indexer,
		height:  height,
		width:   width,
		power:   make([][]float64, height),
		freq:    make([][]float64, height),
	}
	for i := 0; i < height; i++ {
		b.power[i] = nanRow(width)
		b.freq[i] = nanRow(width)
	}
	return &b, nil
}

// Height returns the number of retained rows.
func (b *Buffer) Height() int { return b.height }

// Width returns the number of frequency bins per row.
func (b *Buffer) Width() int { return b.width }

// Ingest rolls the ring forward and writes the batch into the new last row.
// The evicted (oldest) row is reused: cleared to NaN, then populated with
// every in-range sample, last-write-wins per bin. Returns ErrOutOfRange when
// the entire batch falls outside the configured range; the ring is not
// advanced in that case.
func (b *Buffer) Ingest(batch *scan.Batch) error {
	inRange := false
	for _, s := range batch.Samples {
		if _, ok := b.indexer.Index(s.Frequency); ok {
			inRange = true
			break
		}
	}
	if !inRange {
		return ErrOutOfRange
	}

	row := b.head
	b.head = (b.head + 1) % b.height

	clearRow(b.power[row])
	clearRow(b.freq[row])

	for _, s := range batch.Samples {
		idx, ok := b.indexer.Index(s.Frequency)
		if !ok {
			continue
		}
		b.power[row][idx] = s.Power
		b.freq[row][idx] = b.indexer.Quantize(s.Frequency)
	}
	return nil
}

// physical translates a logical row index (0 = oldest) to a ring slot.
func (b *Buffer) physical(i int) int {
	return (b.head + i) % b.height
}

// Row returns the power row at logical index i (0 = oldest).
// The returned slice aliases buffer memory and must not be mutated.
func (b *Buffer) Row(i int) []float64 {
	return b.power[b.physical(i)]
}

// Latest returns the newest power row.
func (b *Buffer) Latest() []float64 {
	return b.Row(b.height - 1)
}

// FreqRow returns the quantized frequency row at logical index i.
func (b *Buffer) FreqRow(i int) []float64 {
	return b.freq[b.physical(i)]
}

// Bounds returns the matrix-wide NaN-ignoring minimum and maximum power.
// Both are NaN while the buffer holds no valid cell. Consumers use this pair
// as the per-cycle normalization range; it drifts as rows roll through.
func (b *Buffer) Bounds() (dbMin, dbMax float64) {
	dbMin, dbMax = math.NaN(), math.NaN()
	for _, row := range b.power {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(dbMin) || v < dbMin {
				dbMin = v
			}
			if math.IsNaN(dbMax) || v > dbMax {
				dbMax = v
			}
		}
	}
	return dbMin, dbMax
}

// Summaries computes the per-column NaN-ignoring min, max and mean over the
// retained history, plus the current (newest row) value. All-NaN columns
// propagate NaN in every summary.
func (b *Buffer) Summaries() ColumnSummary {
	s := ColumnSummary{
		Min:     nanRow(b.width),
		Max:     nanRow(b.width),
		Mean:    nanRow(b.width),
		Current: make([]float64, b.width),
	}
	copy(s.Current, b.Latest())

	for col := 0; col < b.width; col++ {
		var sum float64
		var n int
		for i := 0; i < b.height; i++ {
			v := b.power[i][col]
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(s.Min[col]) || v < s.Min[col] {
				s.Min[col] = v
			}
			if math.IsNaN(s.Max[col]) || v > s.Max[col] {
				s.Max[col] = v
			}
			sum += v
			n++
		}
		if n > 0 {
			s.Mean[col] = sum / float64(n)
		}
	}
	return s
}

// ColumnMins returns the per-column NaN-ignoring minimum, the historical
// noise floor used by the SNR normalization and the bin ranking.
func (b *Buffer) ColumnMins() []float64 {
	mins := nanRow(b.width)
	for col := 0; col < b.width; col++ {
		for i := 0; i < b.height; i++ {
			v := b.power[i][col]
			if !math.IsNaN(v) && (math.IsNaN(mins[col]) || v < mins[col]) {
				mins[col] = v
			}
		}
	}
	return mins
}

// Normalized returns the buffer scaled to [0,1] over the current global
// bounds, in logical row order. NaN cells stay NaN. A degenerate range
// (no valid cells, or min == max) yields a zero value for every valid cell.
func (b *Buffer) Normalized() [][]float64 {
	dbMin, dbMax := b.Bounds()
	span := dbMax - dbMin

	out := make([][]float64, b.height)
	for i := 0; i < b.height; i++ {
		src := b.Row(i)
		dst := make([]float64, b.width)
		for col, v := range src {
			switch {
			case math.IsNaN(v):
				dst[col] = math.NaN()
			case span <= 0 || math.IsNaN(span):
				dst[col] = 0
			default:
				dst[col] = (v - dbMin) / span
			}
		}
		out[i] = dst
	}
	return out
}

// NormalizedSNR returns the buffer expressed relative to each column's
// historical minimum and scaled over [snrMin, snrMax], in logical row order.
func (b *Buffer) NormalizedSNR(snrMin, snrMax float64) [][]float64 {
	mins := b.ColumnMins()
	span := snrMax - snrMin

	out := make([][]float64, b.height)
	for i := 0; i < b.height; i++ {
		src := b.Row(i)
		dst := make([]float64, b.width)
		for col, v := range src {
			switch {
			case math.IsNaN(v) || math.IsNaN(mins[col]):
				dst[col] = math.NaN()
			case span <= 0:
				dst[col] = 0
			default:
				dst[col] = ((v - mins[col]) - snrMin) / span
			}
		}
		out[i] = dst
	}
	return out
}

// Cells calls fn for every cell holding a valid (frequency, power) pair.
func (b *Buffer) Cells(fn func(freq, power float64)) {
	for i := range b.power {
		for col := range b.power[i] {
			f, p := b.freq[i][col], b.power[i][col]
			if math.IsNaN(f) || math.IsNaN(p) {
				continue
			}
			fn(f, p)
		}
	}
}

func nanRow(width int) []float64 {
	row := make([]float64, width)
	clearRow(row)
	return row
}

func clearRow(row []float64) {
	for i := range row {
		row[i] = math.NaN()
	}
}

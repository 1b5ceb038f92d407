package waterfall

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const smoothingSigma = 2.0 // Gaussian kernel width, in bins

// PSD is the smoothed, normalized 2-D histogram of (frequency, power) pairs
// built from the buffer each cycle, together with the exact edge arrays used
// to build it. Peak boundaries are translated to frequencies against these
// edges, so they must come from the same cycle as the density grid.
type PSD struct {
	// Density[f][p] is the smoothed count of cells in frequency bin f and
	// power bin p, normalized to [0,1] by the grid's global maximum.
	Density    [][]float64
	FreqEdges  []float64 // NumBins+1 points over [minFreq, maxFreq]
	PowerEdges []float64 // psd_db_resolution points over [dbMin, dbMax]
}

// FreqAt translates a fractional frequency-bin index to MHz by linear
// interpolation against the frequency edges. Indices are clamped to the
// edge array.
func (p *PSD) FreqAt(bin float64) float64 {
	last := len(p.FreqEdges) - 1
	if bin <= 0 {
		return p.FreqEdges[0]
	}
	if bin >= float64(last) {
		return p.FreqEdges[last]
	}
	i := int(math.Floor(bin))
	frac := bin - float64(i)
	return p.FreqEdges[i] + frac*(p.FreqEdges[i+1]-p.FreqEdges[i])
}

// Aggregator rebuilds the PSD from buffer contents. It is stateless between
// cycles apart from its configuration: the density grid is recomputed in
// full every update because the power bounds drift as rows roll through.
type Aggregator struct {
	indexer      *Indexer
	dbResolution int // number of power edge points
}

// NewAggregator creates a PSD aggregator with the given power-axis
// resolution (number of power edge points, e.g. 90).
func NewAggregator(indexer *Indexer, dbResolution int) *Aggregator {
	if dbResolution < 2 {
		dbResolution = 2
	}
	return &Aggregator{indexer: indexer, dbResolution: dbResolution}
}

// Update computes the PSD for the current buffer contents over the power
// range [dbMin, dbMax]. Counts only, no weighting; then Gaussian smoothing
// and normalization by the global maximum (a zero-max grid stays zero).
func (a *Aggregator) Update(buf *Buffer, dbMin, dbMax float64) *PSD {
	numBins := a.indexer.NumBins()

	psd := PSD{
		Density:    make([][]float64, numBins),
		FreqEdges:  floats.Span(make([]float64, numBins+1), a.indexer.MinFreq(), a.indexer.MaxFreq()),
		PowerEdges: floats.Span(make([]float64, a.dbResolution), dbMin, dbMax),
	}
	powerBins := a.dbResolution - 1
	for i := range psd.Density {
		psd.Density[i] = make([]float64, powerBins)
	}

	buf.Cells(func(freq, power float64) {
		fi, ok := edgeBin(psd.FreqEdges, freq)
		if !ok {
			return
		}
		pi, ok := edgeBin(psd.PowerEdges, power)
		if !ok {
			return
		}
		psd.Density[fi][pi]++
	})

	smoothGrid(psd.Density, smoothingSigma)

	gridMax := 0.0
	for _, row := range psd.Density {
		if m := floats.Max(row); m > gridMax {
			gridMax = m
		}
	}
	if gridMax > 0 {
		for _, row := range psd.Density {
			floats.Scale(1/gridMax, row)
		}
	}
	return &psd
}

// edgeBin locates the histogram bin of v within evenly spaced edges.
// The last bin is closed on the right, matching conventional histogramming.
func edgeBin(edges []float64, v float64) (int, bool) {
	lo, hi := edges[0], edges[len(edges)-1]
	nbins := len(edges) - 1
	if math.IsNaN(v) || v < lo || v > hi || hi <= lo {
		return 0, false
	}
	if v == hi {
		return nbins - 1, true
	}
	i := int((v - lo) / (hi - lo) * float64(nbins))
	if i >= nbins {
		i = nbins - 1
	}
	return i, true
}

// smoothGrid applies a separable Gaussian blur in place, with reflected
// boundaries and a kernel truncated at 4 sigma.
func smoothGrid(grid [][]float64, sigma float64) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return
	}
	kernel := gaussianKernel(sigma)

	rows, cols := len(grid), len(grid[0])
	scratch := make([]float64, max(rows, cols))

	// Along the frequency axis.
	column := make([]float64, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			column[r] = grid[r][c]
		}
		convolveReflect(column, kernel, scratch[:rows])
		for r := 0; r < rows; r++ {
			grid[r][c] = scratch[r]
		}
	}

	// Along the power axis.
	for r := 0; r < rows; r++ {
		convolveReflect(grid[r], kernel, scratch[:cols])
		copy(grid[r], scratch[:cols])
	}
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += kernel[i]
	}
	floats.Scale(1/sum, kernel)
	return kernel
}

// convolveReflect convolves src with kernel into dst, mirroring src at the
// boundaries (…, s1, s0 | s0, s1, …).
func convolveReflect(src, kernel, dst []float64) {
	n := len(src)
	radius := len(kernel) / 2
	for i := 0; i < n; i++ {
		var acc float64
		for k, w := range kernel {
			j := i + k - radius
			acc += w * src[reflectIndex(j, n)]
		}
		dst[i] = acc
	}
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

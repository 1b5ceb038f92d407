package detect

import "math"

// findParams are the strategy-specific thresholds applied to raw candidates.
// Zero values disable the corresponding filter (except relHeight, which
// defaults to 0.5 when unset).
type findParams struct {
	minHeight     float64 // minimum peak power, dB; 0 disables only if unset
	hasMinHeight  bool
	minProminence float64 // minimum prominence, dB
	relHeight     float64 // relative height at which widths are evaluated
	minWidth      float64 // minimum width, bins
	maxWidth      float64 // maximum width, bins
}

// findPeaks locates strict local maxima in row, computes their prominences
// and interpolated width boundaries, and applies the strategy filters.
// NaN cells never form peaks and act as barriers for the base and width
// scans: every float comparison against NaN is false, which terminates the
// scans the same way a higher neighbor would. Degenerate input (all-NaN,
// fewer than three samples) yields an empty result.
func findPeaks(row []float64, p findParams) []Candidate {
	relHeight := p.relHeight
	if relHeight <= 0 {
		relHeight = 0.5
	}

	var out []Candidate
	for _, idx := range localMaxima(row) {
		height := row[idx]
		if p.hasMinHeight && height < p.minHeight {
			continue
		}

		prom, leftBase, rightBase := prominence(row, idx)
		if math.IsNaN(prom) || prom < p.minProminence {
			continue
		}

		widthHeight := height - prom*relHeight
		leftIP := leftCrossing(row, idx, leftBase, widthHeight)
		rightIP := rightCrossing(row, idx, rightBase, widthHeight)

		width := rightIP - leftIP
		if p.minWidth > 0 && width < p.minWidth {
			continue
		}
		if p.maxWidth > 0 && width > p.maxWidth {
			continue
		}

		out = append(out, Candidate{
			Index:       idx,
			Power:       height,
			Prominence:  prom,
			LeftIP:      leftIP,
			RightIP:     rightIP,
			WidthHeight: widthHeight,
		})
	}
	return out
}

// localMaxima returns the indices of strict local maxima, plateau-aware:
// a run of equal values bounded by strictly smaller neighbors counts as one
// peak at the run's midpoint. Edges cannot be peaks.
func localMaxima(row []float64) []int {
	var peaks []int
	iMax := len(row) - 1
	i := 1
	for i < iMax {
		if row[i-1] < row[i] {
			iAhead := i + 1
			for iAhead < iMax && row[iAhead] == row[i] {
				iAhead++
			}
			if row[iAhead] < row[i] {
				peaks = append(peaks, (i+iAhead-1)/2)
				i = iAhead
			}
		}
		i++
	}
	return peaks
}

// prominence measures how far the peak at idx rises above its surrounding
// baseline. Each side is scanned outward while values stay at or below the
// peak, tracking the running minimum; the prominence is the peak height
// minus the higher of the two side minima. The returned bases are the
// positions of those minima.
func prominence(row []float64, idx int) (prom float64, leftBase, rightBase int) {
	height := row[idx]

	leftMin := height
	leftBase = idx
	for i := idx - 1; i >= 0 && row[i] <= height; i-- {
		if row[i] < leftMin {
			leftMin = row[i]
			leftBase = i
		}
	}

	rightMin := height
	rightBase = idx
	for i := idx + 1; i < len(row) && row[i] <= height; i++ {
		if row[i] < rightMin {
			rightMin = row[i]
			rightBase = i
		}
	}

	return height - math.Max(leftMin, rightMin), leftBase, rightBase
}

// leftCrossing walks from the peak toward its left base until the row drops
// to widthHeight, then interpolates the fractional crossing point.
func leftCrossing(row []float64, idx, base int, widthHeight float64) float64 {
	i := idx
	for i > base && widthHeight < row[i] {
		i--
	}
	ip := float64(i)
	if row[i] < widthHeight {
		ip += (widthHeight - row[i]) / (row[i+1] - row[i])
	}
	return ip
}

// rightCrossing is the mirror of leftCrossing toward the right base.
func rightCrossing(row []float64, idx, base int, widthHeight float64) float64 {
	i := idx
	for i < base && widthHeight < row[i] {
		i++
	}
	ip := float64(i)
	if row[i] < widthHeight {
		ip -= (widthHeight - row[i]) / (row[i-1] - row[i])
	}
	return ip
}

package waterfall

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TopN ranks every frequency bin by the population variance of its power
// deviation from the column's historical minimum, ignoring NaN cells, and
// returns the frequencies of the n busiest bins in descending order of
// variance. It is a pure function of the current buffer contents; columns
// without enough valid history rank last.
func TopN(buf *Buffer, indexer *Indexer, n int) []float64 {
	if n <= 0 {
		return nil
	}

	width := buf.Width()
	mins := buf.ColumnMins()
	variances := make([]float64, width)

	column := make([]float64, 0, buf.Height())
	for col := 0; col < width; col++ {
		column = column[:0]
		for i := 0; i < buf.Height(); i++ {
			v := buf.Row(i)[col]
			if !math.IsNaN(v) {
				column = append(column, v-mins[col])
			}
		}
		if len(column) == 0 {
			variances[col] = math.Inf(-1)
			continue
		}
		variances[col] = stat.PopVariance(column, nil)
	}

	order := make([]int, width)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return variances[order[i]] > variances[order[j]]
	})

	if n > width {
		n = width
	}
	freqs := indexer.BinFreqs()
	top := make([]float64, n)
	for i := 0; i < n; i++ {
		top[i] = freqs[order[i]]
	}
	return top
}

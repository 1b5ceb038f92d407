package waterfall

import (
	"math"
	"testing"
)

func TestIndexer_NumBins(t *testing.T) {
	testCases := []struct {
		name     string
		min, max float64
		res      float64
		want     int
	}{
		{"spec example", 100, 110, 0.1, 101},
		{"single step", 100, 100.1, 0.1, 2},
		{"coarse", 100, 200, 10, 11},
		{"non-divisible range", 100, 110.05, 0.1, 101},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ix, err := NewIndexer(tc.min, tc.max, tc.res)
			if err != nil {
				t.Fatalf("NewIndexer: %v", err)
			}
			if got := ix.NumBins(); got != tc.want {
				t.Errorf("NumBins() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestIndexer_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name     string
		min, max float64
		res      float64
	}{
		{"inverted range", 110, 100, 0.1},
		{"empty range", 100, 100, 0.1},
		{"zero resolution", 100, 110, 0},
		{"negative resolution", 100, 110, -0.1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewIndexer(tc.min, tc.max, tc.res); err == nil {
				t.Error("expected error for invalid parameters")
			}
		})
	}
}

func TestIndexer_Index(t *testing.T) {
	ix, err := NewIndexer(100, 110, 0.1)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	testCases := []struct {
		freq    float64
		want    int
		inRange bool
	}{
		{105.0, 50, true},
		{105.1, 51, true},
		{100.0, 0, true},
		{110.0, 100, true},
		{99.9, 0, false}, // dropped, not clamped to bin 0
		{110.1, 0, false},
		{math.NaN(), 0, false},
	}

	for _, tc := range testCases {
		got, ok := ix.Index(tc.freq)
		if ok != tc.inRange {
			t.Errorf("Index(%f) in-range = %v, want %v", tc.freq, ok, tc.inRange)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("Index(%f) = %d, want %d", tc.freq, got, tc.want)
		}
	}
}

func TestIndexer_QuantizeIdempotent(t *testing.T) {
	ix, err := NewIndexer(100, 110, 0.1)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	for f := 100.0; f <= 110.0; f += 0.0173 {
		idx, ok := ix.Index(f)
		if !ok {
			t.Fatalf("Index(%f) unexpectedly out of range", f)
		}
		qIdx, ok := ix.Index(ix.Quantize(f))
		if !ok {
			t.Fatalf("Index(Quantize(%f)) unexpectedly out of range", f)
		}
		if idx != qIdx {
			t.Errorf("Index(%f) = %d, but Index(Quantize) = %d", f, idx, qIdx)
		}
	}
}

func TestIndexer_IndexMonotonic(t *testing.T) {
	ix, err := NewIndexer(100, 110, 0.1)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	prev := -1
	for f := 100.0; f <= 110.0; f += 0.05 {
		idx, ok := ix.Index(f)
		if !ok {
			t.Fatalf("Index(%f) unexpectedly out of range", f)
		}
		if idx < prev {
			t.Errorf("Index(%f) = %d, less than previous %d", f, idx, prev)
		}
		prev = idx
	}
}

func TestIndexer_BinFreqs(t *testing.T) {
	ix, err := NewIndexer(100, 110, 0.1)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	freqs := ix.BinFreqs()
	if len(freqs) != ix.NumBins() {
		t.Fatalf("BinFreqs() has %d entries, want %d", len(freqs), ix.NumBins())
	}
	if freqs[0] != 100 || freqs[len(freqs)-1] != 110 {
		t.Errorf("BinFreqs() spans [%f, %f], want [100, 110]", freqs[0], freqs[len(freqs)-1])
	}
}

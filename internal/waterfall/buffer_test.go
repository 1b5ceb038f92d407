package waterfall

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rfscan/waterfall/internal/scan"
)

func testBuffer(t *testing.T, height int) (*Buffer, *Indexer) {
	t.Helper()
	ix, err := NewIndexer(100, 110, 0.1)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	buf, err := NewBuffer(ix, height)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf, ix
}

func batchOf(samples ...scan.Sample) *scan.Batch {
	return &scan.Batch{Timestamp: time.Now(), Samples: samples}
}

func TestBuffer_IngestPlacesSamples(t *testing.T) {
	buf, _ := testBuffer(t, 10)

	err := buf.Ingest(batchOf(
		scan.Sample{Frequency: 105.0, Power: -90},
		scan.Sample{Frequency: 105.1, Power: -95},
	))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	last := buf.Latest()
	for col, v := range last {
		switch col {
		case 50:
			if v != -90 {
				t.Errorf("bin 50 = %f, want -90", v)
			}
		case 51:
			if v != -95 {
				t.Errorf("bin 51 = %f, want -95", v)
			}
		default:
			if !math.IsNaN(v) {
				t.Errorf("bin %d = %f, want NaN", col, v)
			}
		}
	}

	freqs := buf.FreqRow(buf.Height() - 1)
	if math.Abs(freqs[50]-105.0) > 1e-9 {
		t.Errorf("quantized frequency at bin 50 = %f, want 105.0", freqs[50])
	}
}

func TestBuffer_IngestLastWriteWins(t *testing.T) {
	buf, _ := testBuffer(t, 4)

	err := buf.Ingest(batchOf(
		scan.Sample{Frequency: 105.0, Power: -90},
		scan.Sample{Frequency: 105.01, Power: -80}, // same bin as 105.0
	))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := buf.Latest()[50]; got != -80 {
		t.Errorf("bin 50 = %f, want last-write -80", got)
	}
}

func TestBuffer_FIFOEviction(t *testing.T) {
	const height = 3
	buf, _ := testBuffer(t, height)

	powers := []float64{-100, -99, -98, -97, -96}
	for _, p := range powers {
		if err := buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: p})); err != nil {
			t.Fatalf("Ingest(%f): %v", p, err)
		}
		if buf.Height() != height {
			t.Fatalf("Height() = %d, want %d after every ingest", buf.Height(), height)
		}
	}

	// The three newest scans survive in order, oldest first.
	want := []float64{-98, -97, -96}
	for i, p := range want {
		if got := buf.Row(i)[50]; got != p {
			t.Errorf("row %d bin 50 = %f, want %f", i, got, p)
		}
	}
}

func TestBuffer_IngestOutOfRange(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	if err := buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -90})); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	err := buf.Ingest(batchOf(
		scan.Sample{Frequency: 99.9, Power: -50},
		scan.Sample{Frequency: 111.0, Power: -50},
	))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Ingest out-of-range = %v, want ErrOutOfRange", err)
	}

	// The ring must not have advanced: the previous scan is still newest.
	if got := buf.Latest()[50]; got != -90 {
		t.Errorf("latest bin 50 = %f, want -90 (buffer advanced on out-of-range batch)", got)
	}
}

func TestBuffer_PartiallyOutOfRange(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	err := buf.Ingest(batchOf(
		scan.Sample{Frequency: 99.9, Power: -50}, // dropped
		scan.Sample{Frequency: 105.0, Power: -90},
	))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	last := buf.Latest()
	if !math.IsNaN(last[0]) {
		t.Errorf("bin 0 = %f, want NaN (99.9 must be dropped, not clamped)", last[0])
	}
	if last[50] != -90 {
		t.Errorf("bin 50 = %f, want -90", last[50])
	}
}

func TestBuffer_Bounds(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	dbMin, dbMax := buf.Bounds()
	if !math.IsNaN(dbMin) || !math.IsNaN(dbMax) {
		t.Errorf("empty buffer Bounds() = (%f, %f), want NaN, NaN", dbMin, dbMax)
	}

	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -90}))
	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 106.0, Power: -70}))

	dbMin, dbMax = buf.Bounds()
	if dbMin != -90 || dbMax != -70 {
		t.Errorf("Bounds() = (%f, %f), want (-90, -70)", dbMin, dbMax)
	}
}

func TestBuffer_Summaries(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -90}))
	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -80}))

	s := buf.Summaries()
	if s.Min[50] != -90 || s.Max[50] != -80 {
		t.Errorf("column 50 min/max = %f/%f, want -90/-80", s.Min[50], s.Max[50])
	}
	if s.Mean[50] != -85 {
		t.Errorf("column 50 mean = %f, want -85", s.Mean[50])
	}
	if s.Current[50] != -80 {
		t.Errorf("column 50 current = %f, want -80", s.Current[50])
	}

	// A column with no valid history propagates NaN in every summary.
	for _, v := range []float64{s.Min[0], s.Max[0], s.Mean[0], s.Current[0]} {
		if !math.IsNaN(v) {
			t.Errorf("all-NaN column summary = %f, want NaN", v)
		}
	}
}

func TestBuffer_Normalized(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -90}))
	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -70}))

	norm := buf.Normalized()
	if got := norm[1][50]; got != 0 {
		t.Errorf("normalized min cell = %f, want 0", got)
	}
	if got := norm[2][50]; got != 1 {
		t.Errorf("normalized max cell = %f, want 1", got)
	}
	if !math.IsNaN(norm[0][50]) {
		t.Errorf("empty row cell = %f, want NaN", norm[0][50])
	}
}

func TestBuffer_NormalizedSNR(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -90}))
	_ = buf.Ingest(batchOf(scan.Sample{Frequency: 105.0, Power: -65}))

	norm := buf.NormalizedSNR(0, 50)
	if got := norm[1][50]; got != 0 {
		t.Errorf("SNR at column minimum = %f, want 0", got)
	}
	if got := norm[2][50]; got != 0.5 {
		t.Errorf("SNR 25dB above floor over [0,50] = %f, want 0.5", got)
	}
}

func TestBuffer_Cells(t *testing.T) {
	buf, _ := testBuffer(t, 3)

	_ = buf.Ingest(batchOf(
		scan.Sample{Frequency: 105.0, Power: -90},
		scan.Sample{Frequency: 106.0, Power: -80},
	))

	var n int
	buf.Cells(func(freq, power float64) {
		if math.IsNaN(freq) || math.IsNaN(power) {
			t.Errorf("Cells yielded NaN pair (%f, %f)", freq, power)
		}
		n++
	})
	if n != 2 {
		t.Errorf("Cells yielded %d pairs, want 2", n)
	}
}

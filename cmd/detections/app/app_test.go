package app

import (
	"strings"
	"testing"
	"time"

	"github.com/rfscan/waterfall/internal/detect"
)

func sampleDetections() []detect.Detection {
	ts := time.Unix(1700000000, 0)
	return []detect.Detection{
		{Timestamp: ts, StartFreq: 100, EndFreq: 101, Power: -50, Type: "wideband"},
		{Timestamp: ts, StartFreq: 105, EndFreq: 105.2, Power: -60, Type: "narrowband"},
		{Timestamp: ts, StartFreq: 110, EndFreq: 112, Power: -45, Type: "wideband"},
	}
}

func TestFilter(t *testing.T) {
	freq := func(v float64) *float64 { return &v }

	testCases := []struct {
		name   string
		config Config
		want   int
	}{
		{"no filters", Config{}, 3},
		{"by type", Config{Type: "narrowband"}, 1},
		{"min frequency", Config{MinFrequency: freq(104.0)}, 2},
		{"max frequency", Config{MaxFrequency: freq(104.0)}, 1},
		{"band overlap counts", Config{MinFrequency: freq(100.5), MaxFrequency: freq(100.7)}, 1},
		{"nothing matches", Config{Type: "wideband", MaxFrequency: freq(99.0)}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := filter(sampleDetections(), &tc.config)
			if len(got) != tc.want {
				t.Errorf("filter kept %d detections, want %d", len(got), tc.want)
			}
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var sb strings.Builder
	if err := writeCSV(&sb, sampleDetections()); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("wrote %d lines, want header + 3 rows", len(lines))
	}
	if lines[0] != "timestamp,start_freq,end_freq,dB,type" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1700000000,100,101,-50,wideband" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestWriteTable(t *testing.T) {
	var sb strings.Builder
	if err := writeTable(&sb, sampleDetections()); err != nil {
		t.Fatalf("writeTable: %v", err)
	}

	out := sb.String()
	if !strings.Contains(out, "100MHz to 101MHz") {
		t.Errorf("table output missing frequency band:\n%s", out)
	}
	if !strings.Contains(out, "narrowband") {
		t.Errorf("table output missing detection type:\n%s", out)
	}
}

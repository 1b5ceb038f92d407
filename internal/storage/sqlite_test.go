package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rfscan/waterfall/internal/detect"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "detections.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSqliteStore_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx, "wideband", map[string]any{"gain": 30.0})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id <= 0 {
		t.Fatalf("session ID = %d, want positive", id)
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.ID != id {
		t.Errorf("session ID = %d, want %d", sess.ID, id)
	}
	if sess.Detector != "wideband" {
		t.Errorf("detector = %q, want wideband", sess.Detector)
	}
	if sess.RunID == "" {
		t.Error("run ID is empty")
	}
	if sess.Config == nil || *sess.Config != `{"gain":30}` {
		t.Errorf("config = %v, want JSON-encoded map", sess.Config)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Errorf("Sessions() = %+v, want the single created session", sessions)
	}
}

func TestSqliteStore_NilConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx, "narrowband", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Config != nil {
		t.Errorf("config = %q, want nil", *sess.Config)
	}
}

func TestSqliteStore_DetectionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx, "wideband", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ts := time.Unix(1700000000, 0).UTC()
	batch := []detect.Detection{
		{Timestamp: ts, StartFreq: 105.5, EndFreq: 106.25, Power: -42.5, Type: "wideband"},
		{Timestamp: ts, StartFreq: 150, EndFreq: 151, Power: -60, Type: "wideband"},
	}
	if err := s.StoreDetections(ctx, id, 900, batch); err != nil {
		t.Fatalf("StoreDetections: %v", err)
	}

	// Empty batches are a no-op, not an error.
	if err := s.StoreDetections(ctx, id, 900, nil); err != nil {
		t.Fatalf("StoreDetections(nil): %v", err)
	}

	detections, err := s.Detections(ctx, id)
	if err != nil {
		t.Fatalf("Detections: %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("read back %d detections, want 2", len(detections))
	}

	d := detections[0]
	if !d.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", d.Timestamp, ts)
	}
	if d.StartFreq != 105.5 || d.EndFreq != 106.25 || d.Power != -42.5 {
		t.Errorf("detection = %+v", d)
	}
	if d.Type != "wideband" {
		t.Errorf("type = %q, want wideband", d.Type)
	}

	// Detections of another session stay invisible.
	other, err := s.CreateSession(ctx, "wideband", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	detections, err = s.Detections(ctx, other)
	if err != nil {
		t.Fatalf("Detections: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("read %d detections for a fresh session, want none", len(detections))
	}
}

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradeguru/engine/internal/alerts"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "picks.jsonl"), filepath.Join(dir, "alerts.jsonl"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func batch(ts time.Time, items ...PickItem) PickBatch {
	return PickBatch{Timestamp: ts, Items: items}
}

func TestSaveLatestOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if err := s.SaveLatest(ctx, batch(ts, PickItem{Symbol: "TCS", Score: 0.9})); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveLatest(ctx, batch(ts.Add(time.Minute), PickItem{Symbol: "INFY", Score: 0.8})); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(s.latestPath)
	if err != nil {
		t.Fatal(err)
	}
	var got PickBatch
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 1 || got.Items[0].Symbol != "INFY" {
		t.Errorf("latest = %+v, want only the second batch", got)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if err := s.AppendHistory(ctx, batch(ts, PickItem{Symbol: "TCS", Score: 0.9, LastPrice: 4100})); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHistory(ctx, batch(ts.Add(15*time.Minute), PickItem{Symbol: "INFY", Score: 0.8})); err != nil {
		t.Fatal(err)
	}

	rows, err := s.RecentHistory(ctx, 0)
	if err != nil {
		t.Fatalf("RecentHistory() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// newest first
	if rows[0].Symbol != "INFY" || rows[1].Symbol != "TCS" {
		t.Errorf("order = %s,%s, want INFY,TCS", rows[0].Symbol, rows[1].Symbol)
	}
	if rows[1].LastPrice != 4100 {
		t.Errorf("LastPrice = %v, want 4100", rows[1].LastPrice)
	}

	limited, err := s.RecentHistory(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].Symbol != "INFY" {
		t.Errorf("limited = %+v, want just the newest row", limited)
	}
}

func TestRecentHistoryEmpty(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.RecentHistory(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentHistory() error = %v", err)
	}
	if rows != nil {
		t.Errorf("rows = %v, want nil before any append", rows)
	}
}

func TestNotificationLogAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := alerts.Alert{Type: alerts.TypeBuy, Symbol: "TCS", Title: "t", Body: "b", Timestamp: time.Now().UTC()}

	if err := s.Append(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, a); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(s.alertsPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, b := range raw {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("log lines = %d, want 2", lines)
	}
}

func TestClassifyKinds(t *testing.T) {
	if k := Classify("op", os.ErrPermission).Kind; k != KindUnavailable {
		t.Errorf("kind = %v, want %v", k, KindUnavailable)
	}
	contended := Classify("op", errDeadlock{})
	if contended.Kind != KindLockContention {
		t.Errorf("kind = %v, want %v", contended.Kind, KindLockContention)
	}
	if !Retryable(contended) {
		t.Error("lock contention should be retryable")
	}
	if Retryable(Classify("op", os.ErrPermission)) {
		t.Error("unavailable storage should not be retryable")
	}
}

type errDeadlock struct{}

func (errDeadlock) Error() string { return "deadlock detected" }

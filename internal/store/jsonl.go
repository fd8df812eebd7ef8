package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/positions"
)

// envelope is the one-line-per-record JSONL framing shared by every file sink.
type envelope struct {
	Type string          `json:"type"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// FileStore is the always-on JSONL persistence layer. History and alerts are
// append-only; the latest batch lives in a sibling file that is rewritten
// whole each cycle.
type FileStore struct {
	mu          sync.Mutex
	historyPath string
	latestPath  string
	alertsPath  string
}

// NewFileStore creates the parent directories up front so the hot path only
// appends.
func NewFileStore(picksPath, alertsPath string) (*FileStore, error) {
	for _, p := range []string{picksPath, alertsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, Classify("mkdir", err)
		}
	}
	return &FileStore{
		historyPath: picksPath,
		latestPath:  latestPathFor(picksPath),
		alertsPath:  alertsPath,
	}, nil
}

func latestPathFor(picksPath string) string {
	ext := filepath.Ext(picksPath)
	return picksPath[:len(picksPath)-len(ext)] + "_latest.json"
}

func (s *FileStore) SaveLatest(_ context.Context, batch PickBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, err := json.Marshal(batch)
	if err != nil {
		return Classify("save_latest", err)
	}
	tmp := s.latestPath + ".tmp"
	if err := os.WriteFile(tmp, append(buf, '\n'), 0o644); err != nil {
		return Classify("save_latest", err)
	}
	if err := os.Rename(tmp, s.latestPath); err != nil {
		return Classify("save_latest", err)
	}
	return nil
}

func (s *FileStore) AppendHistory(_ context.Context, batch PickBatch) error {
	return s.append(s.historyPath, "top_picks", batch)
}

func (s *FileStore) RecentHistory(_ context.Context, limit int) ([]HistoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, Classify("recent_history", err)
	}
	defer f.Close()

	var rows []HistoryRow
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var env envelope
		if err := json.Unmarshal(sc.Bytes(), &env); err != nil {
			continue // tolerate a torn tail line
		}
		var batch PickBatch
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			continue
		}
		for _, it := range batch.Items {
			rows = append(rows, HistoryRow{Timestamp: batch.Timestamp, PickItem: it})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, Classify("recent_history", err)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	// newest first
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *FileStore) Insert(_ context.Context, p *positions.Position) error {
	return s.append(s.alertsPath, "position_open", p)
}

func (s *FileStore) Update(_ context.Context, p *positions.Position) error {
	return s.append(s.alertsPath, "position_update", p)
}

func (s *FileStore) Append(_ context.Context, a alerts.Alert) error {
	return s.append(s.alertsPath, "alert", a)
}

func (s *FileStore) append(path, typ string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return Classify(typ, fmt.Errorf("marshal: %w", err))
	}
	env := envelope{Type: typ, TS: time.Now().UTC(), Data: data}
	line, err := json.Marshal(env)
	if err != nil {
		return Classify(typ, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Classify(typ, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return Classify(typ, err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/positions"
)

// PickItem is one ranked symbol inside a persisted top-picks batch.
type PickItem struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"last_price"`
	Score       float64 `json:"score"`
	IntradayPct float64 `json:"intraday_pct"`
}

// PickBatch is the top-N written at the end of a cycle.
type PickBatch struct {
	Timestamp time.Time  `json:"timestamp"`
	Items     []PickItem `json:"items"`
}

// HistoryRow is one historical pick, queryable by recency.
type HistoryRow struct {
	Timestamp time.Time `json:"timestamp"`
	PickItem
}

// TopPicksStore persists ranked batches: history is append-only, latest is
// overwritten each cycle for fast reads.
type TopPicksStore interface {
	SaveLatest(ctx context.Context, batch PickBatch) error
	AppendHistory(ctx context.Context, batch PickBatch) error
	RecentHistory(ctx context.Context, limit int) ([]HistoryRow, error)
}

// PositionStore mirrors the in-memory book for durability. Best-effort: the
// engine degrades, it does not stop, when a sink is down.
type PositionStore interface {
	Insert(ctx context.Context, p *positions.Position) error
	Update(ctx context.Context, p *positions.Position) error
}

// NotificationLog records every emitted alert.
type NotificationLog interface {
	Append(ctx context.Context, a alerts.Alert) error
}

// Error kinds for the persistence paths.
const (
	KindUnavailable    = "storage_unavailable"
	KindLockContention = "lock_contention"
)

// StoreError classifies a persistence failure.
type StoreError struct {
	Kind  string
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// Classify wraps a raw driver error with a kind. Lock/deadlock/busy signals
// become LockContention (worth a jittered retry); everything else is
// Unavailable (degrade and continue).
func Classify(op string, err error) *StoreError {
	msg := strings.ToLower(err.Error())
	kind := KindUnavailable
	if strings.Contains(msg, "lock") || strings.Contains(msg, "deadlock") || strings.Contains(msg, "busy") {
		kind = KindLockContention
	}
	return &StoreError{Kind: kind, Op: op, Cause: err}
}

// Retryable is the storage write retry predicate: only contention is worth
// another attempt.
func Retryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindLockContention
}

// LogSink adapts a NotificationLog into an alert sink so every alert that
// leaves the dispatcher is also recorded.
type LogSink struct {
	Log NotificationLog
}

func (s LogSink) Deliver(ctx context.Context, a alerts.Alert) error {
	return s.Log.Append(ctx, a)
}

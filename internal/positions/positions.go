package positions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a position's lifecycle state. OPEN transitions to CLOSED exactly
// once, on an explicit sell or on an automatic hard-stop closure.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Position is one simulated holding. The alert-sent sets grow monotonically
// while the position is OPEN; a given milestone key is alerted at most once
// per open lifetime.
type Position struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	EntryPrice   float64   `json:"entry_price"`
	EntryAt      time.Time `json:"entry_at"`
	Size         float64   `json:"size"`
	Status       Status    `json:"status"`
	PredictedMax float64   `json:"predicted_max,omitempty"`
	SoftStopPct  float64   `json:"soft_stop_pct"`
	HardStopPct  float64   `json:"hard_stop_pct"`

	ProfitAlertsSent map[string]bool `json:"profit_alerts_sent"`
	StopAlertsSent   map[string]bool `json:"stop_alerts_sent"`

	ExitPrice float64    `json:"exit_price,omitempty"`
	ExitAt    *time.Time `json:"exit_at,omitempty"`
}

// Clone copies the position including its alert sets, so readers never share
// mutable state with the book.
func (p *Position) Clone() *Position {
	cp := *p
	cp.ProfitAlertsSent = make(map[string]bool, len(p.ProfitAlertsSent))
	for k := range p.ProfitAlertsSent {
		cp.ProfitAlertsSent[k] = true
	}
	cp.StopAlertsSent = make(map[string]bool, len(p.StopAlertsSent))
	for k := range p.StopAlertsSent {
		cp.StopAlertsSent[k] = true
	}
	return &cp
}

// Book holds positions in memory with single-writer-per-symbol discipline:
// all mutation runs through Update under the symbol's lock, so concurrent
// monitor cycles for one symbol serialize while distinct symbols proceed in
// parallel.
type Book struct {
	mu        sync.RWMutex
	bySymbol  map[string]*Position
	symbolMus map[string]*sync.Mutex
}

func NewBook() *Book {
	return &Book{
		bySymbol:  make(map[string]*Position),
		symbolMus: make(map[string]*sync.Mutex),
	}
}

func (b *Book) symbolLock(symbol string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	mu, ok := b.symbolMus[symbol]
	if !ok {
		mu = &sync.Mutex{}
		b.symbolMus[symbol] = mu
	}
	return mu
}

// Open creates an OPEN position for the symbol. One open position per symbol;
// a second open is rejected.
func (b *Book) Open(symbol string, entryPrice, size, predictedMax, softStopPct, hardStopPct float64, now time.Time) (*Position, error) {
	lock := b.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.bySymbol[symbol]; ok && existing.Status == StatusOpen {
		return nil, fmt.Errorf("open position already exists for %s", symbol)
	}

	p := &Position{
		ID:               uuid.NewString(),
		Symbol:           symbol,
		EntryPrice:       entryPrice,
		EntryAt:          now.UTC(),
		Size:             size,
		Status:           StatusOpen,
		PredictedMax:     predictedMax,
		SoftStopPct:      softStopPct,
		HardStopPct:      hardStopPct,
		ProfitAlertsSent: make(map[string]bool),
		StopAlertsSent:   make(map[string]bool),
	}
	b.bySymbol[symbol] = p
	return p.Clone(), nil
}

// Update applies fn to the symbol's position under its per-symbol lock. fn
// receives the live position and its mutations commit atomically with
// respect to concurrent updates for the same symbol.
func (b *Book) Update(symbol string, fn func(p *Position) error) error {
	lock := b.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	b.mu.RLock()
	p, ok := b.bySymbol[symbol]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no position for %s", symbol)
	}
	return fn(p)
}

// Close transitions the symbol's open position to CLOSED. Returns the closed
// copy, or an error when nothing is open.
func (b *Book) Close(symbol string, exitPrice float64, now time.Time) (*Position, error) {
	var closed *Position
	err := b.Update(symbol, func(p *Position) error {
		if p.Status != StatusOpen {
			return fmt.Errorf("position for %s already closed", symbol)
		}
		p.Status = StatusClosed
		p.ExitPrice = exitPrice
		t := now.UTC()
		p.ExitAt = &t
		closed = p.Clone()
		return nil
	})
	return closed, err
}

// Get returns a copy of the symbol's position.
func (b *Book) Get(symbol string) (*Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.bySymbol[symbol]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ListOpen returns copies of all OPEN positions.
func (b *Book) ListOpen() []*Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Position
	for _, p := range b.bySymbol {
		if p.Status == StatusOpen {
			out = append(out, p.Clone())
		}
	}
	return out
}

// HasOpen reports whether the symbol currently has an open position.
func (b *Book) HasOpen(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.bySymbol[symbol]
	return ok && p.Status == StatusOpen
}

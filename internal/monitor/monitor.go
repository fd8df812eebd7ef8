package monitor

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/config"
	"github.com/tradeguru/engine/internal/features"
	"github.com/tradeguru/engine/internal/logging"
	"github.com/tradeguru/engine/internal/market"
	"github.com/tradeguru/engine/internal/marketdata"
	"github.com/tradeguru/engine/internal/observ"
	"github.com/tradeguru/engine/internal/positions"
	"github.com/tradeguru/engine/internal/store"
)

// milestoneFractions are the ordered profit checkpoints between entry and
// the predicted maximum. Each fires at most once per open lifetime.
var milestoneFractions = []float64{0.25, 0.50, 0.75, 0.95, 0.97, 0.985}

// Monitor walks every open position each tick and fires milestone, stop and
// approaching-stop alerts. Milestone and stop dedup is set-based on the
// position itself; the approaching-stop warning is time-throttled per symbol.
type Monitor struct {
	cfg      config.Monitor
	hours    *market.Hours
	cache    *features.SnapshotCache
	source   marketdata.BarSource
	book     *positions.Book
	dispatch alerts.Enqueuer
	posStore store.PositionStore
	log      *logging.Entry
	now      func() time.Time

	running atomic.Bool

	mu       sync.Mutex
	warnedAt map[string]time.Time
}

func New(cfg config.Monitor, hours *market.Hours, cache *features.SnapshotCache, source marketdata.BarSource, book *positions.Book, dispatch alerts.Enqueuer, posStore store.PositionStore, log *logging.Entry) *Monitor {
	return &Monitor{
		cfg:      cfg,
		hours:    hours,
		cache:    cache,
		source:   source,
		book:     book,
		dispatch: dispatch,
		posStore: posStore,
		log:      log.WithComponent("monitor"),
		now:      time.Now,
		warnedAt: make(map[string]time.Time),
	}
}

// Run ticks until ctx is cancelled. A tick that starts while the previous
// one is still in flight is skipped and counted.
func (m *Monitor) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick evaluates every open position once.
func (m *Monitor) Tick(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		observ.IncCounter("monitor_ticks_skipped_total", map[string]string{"reason": "overlap"})
		return
	}
	defer m.running.Store(false)

	now := m.now()
	if !m.hours.IsOpen(now) {
		observ.IncCounter("monitor_ticks_skipped_total", map[string]string{"reason": "market_closed"})
		return
	}
	observ.IncCounter("monitor_ticks_total", nil)

	open := m.book.ListOpen()
	m.pruneWarnings(open)
	for _, p := range open {
		if ctx.Err() != nil {
			return
		}
		price, ok := m.resolvePrice(ctx, p.Symbol, now)
		if !ok {
			observ.IncCounter("monitor_price_failures_total", map[string]string{"symbol": p.Symbol})
			continue
		}
		m.evaluate(ctx, p.Symbol, price, now)
	}
}

// pruneWarnings drops cooldown entries for symbols with no open position,
// so a closed symbol does not pin its clock (or memory) forever.
func (m *Monitor) pruneWarnings(open []*positions.Position) {
	live := make(map[string]struct{}, len(open))
	for _, p := range open {
		live[p.Symbol] = struct{}{}
	}
	m.mu.Lock()
	for symbol := range m.warnedAt {
		if _, ok := live[symbol]; !ok {
			delete(m.warnedAt, symbol)
		}
	}
	m.mu.Unlock()
}

// resolvePrice is cache-first; a miss pulls one day of minute bars and
// refreshes the snapshot for the scoring side too.
func (m *Monitor) resolvePrice(ctx context.Context, symbol string, now time.Time) (float64, bool) {
	if snap, ok := m.cache.Get(symbol, now); ok {
		return snap.LastPrice, true
	}
	bars, err := m.source.Fetch(ctx, symbol, marketdata.Window{Days: 1, Interval: "1m"})
	if err != nil {
		m.log.WithError(err).WithFields(logging.Fields{"symbol": symbol}).Warn("price resolution failed, skipping position this tick")
		return 0, false
	}
	snap, err := features.Compute(symbol, bars, now)
	if err != nil {
		m.log.WithError(err).WithFields(logging.Fields{"symbol": symbol}).Warn("snapshot compute failed, skipping position this tick")
		return 0, false
	}
	m.cache.Put(snap)
	return snap.LastPrice, true
}

func (m *Monitor) evaluate(ctx context.Context, symbol string, price float64, now time.Time) {
	var fired []alerts.Alert
	var snapshot *positions.Position
	hardBreached := false

	err := m.book.Update(symbol, func(p *positions.Position) error {
		// Profit milestones, ascending, each keyed by its price level.
		if p.PredictedMax > p.EntryPrice {
			for _, f := range milestoneFractions {
				milestonePrice := p.EntryPrice + (p.PredictedMax-p.EntryPrice)*f
				if price < milestonePrice {
					break
				}
				key := milestoneKey(milestonePrice)
				if p.ProfitAlertsSent[key] {
					continue
				}
				p.ProfitAlertsSent[key] = true
				fired = append(fired, alerts.Alert{
					Type:      alerts.TypeProfitMilestone,
					Symbol:    symbol,
					Title:     symbol + " profit milestone",
					Body:      "price " + formatPrice(price) + " crossed milestone " + key + " (entry " + formatPrice(p.EntryPrice) + ")",
					Timestamp: now,
				})
			}
		}

		// Both stops are checked every tick, never short-circuited, so a
		// gap through the hard stop still records the soft key.
		softStop := p.EntryPrice * (1 - p.SoftStopPct/100)
		hardStop := p.EntryPrice * (1 - p.HardStopPct/100)
		if price <= softStop && !p.StopAlertsSent["soft"] {
			p.StopAlertsSent["soft"] = true
			fired = append(fired, alerts.Alert{
				Type:      alerts.TypeStopLossSoft,
				Symbol:    symbol,
				Title:     symbol + " soft stop hit",
				Body:      "price " + formatPrice(price) + " at or below soft stop " + formatPrice(softStop),
				Timestamp: now,
			})
		}
		if price <= hardStop && !p.StopAlertsSent["hard"] {
			p.StopAlertsSent["hard"] = true
			hardBreached = true
			fired = append(fired, alerts.Alert{
				Type:      alerts.TypeStopLossHard,
				Symbol:    symbol,
				Title:     symbol + " hard stop hit",
				Body:      "price " + formatPrice(price) + " at or below hard stop " + formatPrice(hardStop),
				Timestamp: now,
			})
		}

		if a, ok := m.maybeWarn(p, symbol, price, softStop, now); ok {
			fired = append(fired, a)
		}

		snapshot = p.Clone()
		return nil
	})
	if err != nil {
		m.log.WithError(err).WithFields(logging.Fields{"symbol": symbol}).Warn("position update failed")
		return
	}

	for _, a := range fired {
		m.dispatch.Enqueue(a)
	}

	if hardBreached && m.cfg.AutoCloseOnHardStop {
		closed, err := m.book.Close(symbol, price, now)
		if err != nil {
			m.log.WithError(err).WithFields(logging.Fields{"symbol": symbol}).Warn("auto close failed")
		} else {
			snapshot = closed
			pl := (price - closed.EntryPrice) * closed.Size
			m.dispatch.Enqueue(alerts.Alert{
				Type:      alerts.TypeSell,
				Symbol:    symbol,
				Title:     symbol + " auto-closed on hard stop",
				Body:      "closed at " + formatPrice(price) + ", P/L " + formatPrice(pl),
				Timestamp: now,
			})
			observ.IncCounter("positions_auto_closed_total", map[string]string{"symbol": symbol})
		}
	}

	if snapshot != nil && m.posStore != nil {
		if err := m.posStore.Update(ctx, snapshot); err != nil {
			observ.IncCounter("store_degraded_writes_total", map[string]string{"op": "position_update"})
			m.log.WithError(err).WithFields(logging.Fields{"symbol": symbol}).Warn("position persist degraded")
		}
	}
}

// maybeWarn emits the approaching-stop warning when the unrealized loss has
// eaten the configured fraction of the soft-stop distance, throttled to one
// warning per symbol per cooldown window.
func (m *Monitor) maybeWarn(p *positions.Position, symbol string, price, softStop float64, now time.Time) (alerts.Alert, bool) {
	loss := p.EntryPrice - price
	stopDistance := p.EntryPrice - softStop
	if loss <= 0 || stopDistance <= 0 || loss < m.cfg.WarnFraction*stopDistance {
		return alerts.Alert{}, false
	}

	cooldown := time.Duration(m.cfg.CooldownMinutes) * time.Minute
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.warnedAt[symbol]; ok && now.Sub(last) < cooldown {
		return alerts.Alert{}, false
	}
	m.warnedAt[symbol] = now
	return alerts.Alert{
		Type:      alerts.TypeWarning,
		Symbol:    symbol,
		Title:     symbol + " approaching stop",
		Body:      "price " + formatPrice(price) + " is near soft stop " + formatPrice(softStop),
		Timestamp: now,
	}, true
}

func milestoneKey(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

package orchestrator

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/config"
	"github.com/tradeguru/engine/internal/features"
	"github.com/tradeguru/engine/internal/logging"
	"github.com/tradeguru/engine/internal/marketdata"
	"github.com/tradeguru/engine/internal/observ"
	"github.com/tradeguru/engine/internal/positions"
	"github.com/tradeguru/engine/internal/scoring"
	"github.com/tradeguru/engine/internal/store"
	"github.com/tradeguru/engine/internal/universe"
)

// Orchestrator drives the batch scoring cycle:
// LOAD_UNIVERSE -> DISPATCH -> COLLECT -> RANK -> PERSIST -> NOTIFY.
type Orchestrator struct {
	cfg      config.Root
	cache    *features.SnapshotCache
	source   marketdata.BarSource
	model    scoring.Model // optional, nil means engine-only scores
	picks    store.TopPicksStore
	posStore store.PositionStore
	book     *positions.Book
	dispatch alerts.Enqueuer
	log      *logging.Entry
	now      func() time.Time

	running atomic.Bool

	mu        sync.Mutex
	prevBest  float64
	prevTop   string
	hasRecord bool
}

func New(cfg config.Root, cache *features.SnapshotCache, source marketdata.BarSource, model scoring.Model, picks store.TopPicksStore, posStore store.PositionStore, book *positions.Book, dispatch alerts.Enqueuer, log *logging.Entry) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		cache:    cache,
		source:   source,
		model:    model,
		picks:    picks,
		posStore: posStore,
		book:     book,
		dispatch: dispatch,
		log:      log.WithComponent("orchestrator"),
		now:      time.Now,
	}
}

// Run schedules RunCycle on the scan interval. Ticks are skipped, not
// queued, while a previous cycle is still running. Scans run regardless of
// market hours so rankings stay fresh off-session; only the position monitor
// is hours-gated.
func (o *Orchestrator) Run(ctx context.Context) {
	interval := time.Duration(o.cfg.Scan.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

type unitResult struct {
	snap *features.FeatureSnapshot
	err  error
}

// RunCycle executes one full cycle. A failed symbol is logged and excluded;
// a cycle with zero successes is a degraded run, not an error.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		observ.IncCounter("scan_cycles_skipped_total", map[string]string{"reason": "overlap"})
		return
	}
	defer o.running.Store(false)

	started := o.now()
	observ.IncCounter("scan_cycles_total", nil)

	instruments, err := universe.Load(o.cfg.Universe.Path, o.cfg.Universe.MaxSymbols)
	if err != nil {
		o.log.WithError(err).Error("universe load failed, cycle aborted")
		observ.IncCounter("scan_cycles_degraded_total", map[string]string{"reason": "universe"})
		return
	}

	snaps := o.fanOut(ctx, instruments, started)
	if len(snaps) == 0 {
		o.log.WithFields(logging.Fields{"universe": len(instruments)}).Warn("degraded run, zero successful candidates")
		observ.IncCounter("scan_cycles_degraded_total", map[string]string{"reason": "no_candidates"})
		return
	}

	ranked := o.rank(snaps)
	top := ranked
	if n := o.cfg.Scan.TopN; n > 0 && len(top) > n {
		top = top[:n]
	}

	o.persist(ctx, top, started)
	o.notify(top, started)
	o.autoEnter(ctx, top, started)
	o.sweepCache(instruments)

	observ.RecordDuration("scan_cycle_duration", o.now().Sub(started), nil)
	o.log.WithFields(logging.Fields{
		"universe":   len(instruments),
		"candidates": len(snaps),
		"top_n":      len(top),
		"elapsed_ms": o.now().Sub(started).Milliseconds(),
	}).Info("cycle complete")
}

// fanOut runs one fetch+compute unit per instrument under a counting
// semaphore and waits for all of them. A unit failure never blocks or
// cancels siblings.
func (o *Orchestrator) fanOut(ctx context.Context, instruments []universe.Instrument, now time.Time) []*features.FeatureSnapshot {
	concurrency := o.cfg.Scan.Concurrency
	if concurrency <= 0 {
		concurrency = 20
	}
	sem := make(chan struct{}, concurrency)
	results := make([]unitResult, len(instruments))
	var wg sync.WaitGroup

	for i, inst := range instruments {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			snap, err := o.fetchOne(ctx, symbol, now)
			results[i] = unitResult{snap: snap, err: err}
		}(i, inst.Symbol)
	}
	wg.Wait()

	snaps := make([]*features.FeatureSnapshot, 0, len(instruments))
	for i, res := range results {
		if res.err != nil {
			observ.IncCounter("scan_unit_failures_total", map[string]string{"kind": string(marketdata.KindOf(res.err))})
			o.log.WithError(res.err).WithFields(logging.Fields{"symbol": instruments[i].Symbol}).Warn("symbol excluded from cycle")
			continue
		}
		snaps = append(snaps, res.snap)
	}
	return snaps
}

func (o *Orchestrator) fetchOne(ctx context.Context, symbol string, now time.Time) (*features.FeatureSnapshot, error) {
	if snap, ok := o.cache.Get(symbol, now); ok {
		return snap, nil
	}
	bars, err := o.source.Fetch(ctx, symbol, marketdata.Window{
		Days:     o.cfg.Fetch.WindowDays,
		Interval: o.cfg.Fetch.Interval,
	})
	if err != nil {
		return nil, err
	}
	snap, err := features.Compute(symbol, bars, now)
	if err != nil {
		return nil, err
	}
	o.cache.Put(snap)
	return snap, nil
}

// rank scores the batch and optionally blends in the external model
// probability, re-sorting afterwards to keep the ordering contract.
func (o *Orchestrator) rank(snaps []*features.FeatureSnapshot) []scoring.RankedCandidate {
	ranked := scoring.ScoreBatch(snaps, o.cfg.Scoring.Weights, o.cfg.Scoring.NoiseFloor)
	if o.model == nil {
		return ranked
	}
	for i := range ranked {
		// Hard-filtered candidates stay at zero; the model must not revive them.
		if ranked[i].Snapshot.VolStrength < o.cfg.Scoring.NoiseFloor {
			continue
		}
		p, err := o.model.Probability(ranked[i].Snapshot)
		if err != nil {
			observ.IncCounter("model_failures_total", nil)
			o.log.WithError(err).WithFields(logging.Fields{"symbol": ranked[i].Snapshot.Symbol}).Warn("model probability unavailable, keeping engine score")
			continue
		}
		ranked[i].Score = scoring.Blend(p, ranked[i].Score, o.cfg.Scoring.Blend)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Snapshot.Symbol < ranked[j].Snapshot.Symbol
	})
	return ranked
}

// persist writes latest (overwrite) and history (append). Storage being down
// degrades the cycle with a warning, it never stops it.
func (o *Orchestrator) persist(ctx context.Context, top []scoring.RankedCandidate, now time.Time) {
	batch := store.PickBatch{Timestamp: now.UTC()}
	for _, c := range top {
		batch.Items = append(batch.Items, store.PickItem{
			Symbol:      c.Snapshot.Symbol,
			LastPrice:   c.Snapshot.LastPrice,
			Score:       c.Score,
			IntradayPct: c.Snapshot.IntradayPct,
		})
	}
	if err := o.picks.SaveLatest(ctx, batch); err != nil {
		observ.IncCounter("store_degraded_writes_total", map[string]string{"op": "save_latest"})
		o.log.WithError(err).Warn("latest picks write degraded")
	}
	if err := o.picks.AppendHistory(ctx, batch); err != nil {
		observ.IncCounter("store_degraded_writes_total", map[string]string{"op": "append_history"})
		o.log.WithError(err).Warn("picks history write degraded")
	}
}

// notify fires the new-leader alert only when the new best beats the
// previously recorded best by more than the hysteresis margin.
func (o *Orchestrator) notify(top []scoring.RankedCandidate, now time.Time) {
	if len(top) == 0 {
		return
	}
	best := top[0]

	o.mu.Lock()
	shouldAlert := !o.hasRecord && best.Score > 0 ||
		o.hasRecord && best.Score > o.prevBest+o.cfg.Scan.Hysteresis
	if shouldAlert {
		o.prevBest = best.Score
		o.prevTop = best.Snapshot.Symbol
		o.hasRecord = true
	}
	o.mu.Unlock()

	if !shouldAlert {
		return
	}
	observ.IncCounter("new_top_alerts_total", nil)
	o.dispatch.Enqueue(alerts.Alert{
		Type:      alerts.TypeNewTop,
		Symbol:    best.Snapshot.Symbol,
		Title:     "New top pick: " + best.Snapshot.Symbol,
		Body:      "score " + formatScore(best.Score) + ", last price " + formatScore(best.Snapshot.LastPrice),
		Timestamp: now,
	})
}

// autoEnter opens a simulated position for qualifying top picks when the
// policy is enabled.
func (o *Orchestrator) autoEnter(ctx context.Context, top []scoring.RankedCandidate, now time.Time) {
	ae := o.cfg.AutoEntry
	if !ae.Enabled {
		return
	}
	for _, c := range top {
		snap := c.Snapshot
		if c.Score < ae.MinScore || snap.MADiff <= 0 || snap.VolStrength <= ae.MinVolRatio {
			continue
		}
		if o.book.HasOpen(snap.Symbol) {
			continue
		}
		pos, err := o.book.Open(snap.Symbol, snap.LastPrice, ae.Size, snap.PredictedTarget(),
			o.cfg.Monitor.SoftStopPct, o.cfg.Monitor.HardStopPct, now)
		if err != nil {
			o.log.WithError(err).WithFields(logging.Fields{"symbol": snap.Symbol}).Warn("auto entry rejected")
			continue
		}
		observ.IncCounter("positions_auto_opened_total", map[string]string{"symbol": snap.Symbol})
		if o.posStore != nil {
			if err := o.posStore.Insert(ctx, pos); err != nil {
				observ.IncCounter("store_degraded_writes_total", map[string]string{"op": "position_insert"})
				o.log.WithError(err).WithFields(logging.Fields{"symbol": snap.Symbol}).Warn("position persist degraded")
			}
		}
		o.dispatch.Enqueue(alerts.Alert{
			Type:      alerts.TypeBuy,
			Symbol:    snap.Symbol,
			Title:     "Auto entry: " + snap.Symbol,
			Body:      "opened at " + formatScore(snap.LastPrice) + " score " + formatScore(c.Score),
			Timestamp: now,
		})
	}
}

// sweepCache drops cached snapshots for symbols no longer in the universe,
// keeping entries the monitor still needs for open positions.
func (o *Orchestrator) sweepCache(instruments []universe.Instrument) {
	keep := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		keep[inst.Symbol] = true
	}
	for _, p := range o.book.ListOpen() {
		keep[p.Symbol] = true
	}
	o.cache.Sweep(keep)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

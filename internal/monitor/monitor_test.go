package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/config"
	"github.com/tradeguru/engine/internal/features"
	"github.com/tradeguru/engine/internal/logging"
	"github.com/tradeguru/engine/internal/market"
	"github.com/tradeguru/engine/internal/marketdata"
	"github.com/tradeguru/engine/internal/positions"
)

type recorder struct {
	mu   sync.Mutex
	sent []alerts.Alert
}

func (r *recorder) Enqueue(a alerts.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return true
}

func (r *recorder) byType(t alerts.Type) []alerts.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []alerts.Alert
	for _, a := range r.sent {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type noFetch struct{}

func (noFetch) Fetch(context.Context, string, marketdata.Window) ([]marketdata.Bar, error) {
	return nil, marketdata.NewNoData("stub")
}

func allWeekHours(t *testing.T) *market.Hours {
	t.Helper()
	h, err := market.NewHours("UTC", "00:00", "23:59", []int{0, 1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func testMonitor(t *testing.T, cfg config.Monitor) (*Monitor, *positions.Book, *features.SnapshotCache, *recorder, *time.Time) {
	t.Helper()
	book := positions.NewBook()
	cache := features.NewSnapshotCache(time.Minute)
	rec := &recorder{}
	log := logging.New(logging.Options{Level: "error"}).WithComponent("test")
	m := New(cfg, allWeekHours(t), cache, noFetch{}, book, rec, nil, log)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := &now
	m.now = func() time.Time { return *clock }
	return m, book, cache, rec, clock
}

func putPrice(cache *features.SnapshotCache, symbol string, price float64, now time.Time) {
	cache.Put(&features.FeatureSnapshot{Symbol: symbol, LastPrice: price, CapturedAt: now})
}

func defaultCfg() config.Monitor {
	return config.Monitor{
		IntervalMinutes: 1,
		SoftStopPct:     3,
		HardStopPct:     7,
		WarnFraction:    0.6,
		CooldownMinutes: 15,
	}
}

func TestMilestoneDedup(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("TCS", 100, 1, 200, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	// 25% milestone sits at 125; 130/135/140 cross it but nothing further.
	for _, price := range []float64{130, 135, 140} {
		putPrice(cache, "TCS", price, *clock)
		m.Tick(context.Background())
		*clock = clock.Add(time.Minute)
	}

	got := rec.byType(alerts.TypeProfitMilestone)
	if len(got) != 1 {
		t.Fatalf("profit alerts = %d, want exactly 1", len(got))
	}
	p, _ := book.Get("TCS")
	if len(p.ProfitAlertsSent) != 1 {
		t.Errorf("ProfitAlertsSent = %v, want one key", p.ProfitAlertsSent)
	}
}

func TestMilestoneJumpFiresEachCrossedKeyOnce(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("TCS", 100, 1, 200, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	// one jump over both the 25% (125) and 50% (150) milestones
	putPrice(cache, "TCS", 160, *clock)
	m.Tick(context.Background())

	if got := rec.byType(alerts.TypeProfitMilestone); len(got) != 2 {
		t.Fatalf("profit alerts = %d, want 2", len(got))
	}
}

func TestSoftStopFiresOnce(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("TCS", 100, 1, 0, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	// soft stop at 97: 93 breaches; later wobbles never re-fire
	for _, price := range []float64{93, 92.9, 93.5, 92} {
		putPrice(cache, "TCS", price, *clock)
		m.Tick(context.Background())
		*clock = clock.Add(16 * time.Minute) // outside warn cooldown too
	}

	if got := rec.byType(alerts.TypeStopLossSoft); len(got) != 1 {
		t.Fatalf("soft stop alerts = %d, want exactly 1", len(got))
	}
}

func TestHardBreachRecordsBothStopsInOneTick(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("TCS", 100, 1, 0, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	// straight through both stops: soft 97, hard 93
	putPrice(cache, "TCS", 90, *clock)
	m.Tick(context.Background())

	if got := rec.byType(alerts.TypeStopLossSoft); len(got) != 1 {
		t.Errorf("soft alerts = %d, want 1", len(got))
	}
	if got := rec.byType(alerts.TypeStopLossHard); len(got) != 1 {
		t.Errorf("hard alerts = %d, want 1", len(got))
	}
	p, _ := book.Get("TCS")
	if !p.StopAlertsSent["soft"] || !p.StopAlertsSent["hard"] {
		t.Errorf("StopAlertsSent = %v, want both keys", p.StopAlertsSent)
	}
	if p.Status != positions.StatusOpen {
		t.Errorf("status = %v, want OPEN with auto-close disabled", p.Status)
	}
}

func TestAutoCloseOnHardStop(t *testing.T) {
	cfg := defaultCfg()
	cfg.AutoCloseOnHardStop = true
	m, book, cache, rec, clock := testMonitor(t, cfg)
	if _, err := book.Open("TCS", 100, 1, 0, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	putPrice(cache, "TCS", 90, *clock)
	m.Tick(context.Background())

	p, _ := book.Get("TCS")
	if p.Status != positions.StatusClosed {
		t.Fatalf("status = %v, want CLOSED", p.Status)
	}
	if p.ExitPrice != 90 {
		t.Errorf("ExitPrice = %v, want 90", p.ExitPrice)
	}
	if got := rec.byType(alerts.TypeSell); len(got) != 1 {
		t.Errorf("sell alerts = %d, want 1", len(got))
	}
}

func TestWarningCooldown(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("TCS", 100, 1, 0, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	// warn threshold: 60% of the 3-point soft distance = loss >= 1.8
	putPrice(cache, "TCS", 98, *clock)
	m.Tick(context.Background())
	if got := rec.byType(alerts.TypeWarning); len(got) != 1 {
		t.Fatalf("warnings = %d, want 1", len(got))
	}

	// five minutes later, still losing: cooldown suppresses the repeat
	*clock = clock.Add(5 * time.Minute)
	putPrice(cache, "TCS", 97.9, *clock)
	m.Tick(context.Background())
	if got := rec.byType(alerts.TypeWarning); len(got) != 1 {
		t.Fatalf("warnings = %d, want still 1 inside cooldown", len(got))
	}

	// past the window the warning may fire again
	*clock = clock.Add(11 * time.Minute)
	putPrice(cache, "TCS", 97.9, *clock)
	m.Tick(context.Background())
	if got := rec.byType(alerts.TypeWarning); len(got) != 2 {
		t.Fatalf("warnings = %d, want 2 after cooldown", len(got))
	}
}

func TestFailedPriceResolutionSkipsPosition(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("GOOD", 100, 1, 200, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}
	if _, err := book.Open("BAD", 100, 1, 200, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	// only GOOD has a cached price; BAD falls through to the failing source
	putPrice(cache, "GOOD", 130, *clock)
	m.Tick(context.Background())

	if got := rec.byType(alerts.TypeProfitMilestone); len(got) != 1 {
		t.Fatalf("profit alerts = %d, want 1 from GOOD only", len(got))
	}
	if got := rec.byType(alerts.TypeProfitMilestone); got[0].Symbol != "GOOD" {
		t.Errorf("alert symbol = %s, want GOOD", got[0].Symbol)
	}
	bad, _ := book.Get("BAD")
	if len(bad.ProfitAlertsSent) != 0 {
		t.Errorf("BAD alert set = %v, want untouched", bad.ProfitAlertsSent)
	}
}

func TestClosedMarketSkipsTick(t *testing.T) {
	cfg := defaultCfg()
	book := positions.NewBook()
	cache := features.NewSnapshotCache(time.Minute)
	rec := &recorder{}
	log := logging.New(logging.Options{Level: "error"}).WithComponent("test")
	weekdaysOnly, err := market.NewHours("UTC", "09:00", "17:00", []int{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatal(err)
	}
	m := New(cfg, weekdaysOnly, cache, noFetch{}, book, rec, nil, log)

	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return saturday }

	if _, err := book.Open("TCS", 100, 1, 200, 3, 7, saturday); err != nil {
		t.Fatal(err)
	}
	putPrice(cache, "TCS", 150, saturday)
	m.Tick(context.Background())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.sent) != 0 {
		t.Errorf("alerts = %d, want none outside market hours", len(rec.sent))
	}
}

func TestWarningClockClearedWhenPositionCloses(t *testing.T) {
	m, book, cache, rec, clock := testMonitor(t, defaultCfg())
	if _, err := book.Open("TCS", 100, 1, 0, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}

	putPrice(cache, "TCS", 98, *clock)
	m.Tick(context.Background())
	if got := rec.byType(alerts.TypeWarning); len(got) != 1 {
		t.Fatalf("warnings = %d, want 1", len(got))
	}

	if _, err := book.Close("TCS", 98, *clock); err != nil {
		t.Fatal(err)
	}
	*clock = clock.Add(time.Minute)
	m.Tick(context.Background())

	m.mu.Lock()
	_, held := m.warnedAt["TCS"]
	m.mu.Unlock()
	if held {
		t.Error("cooldown entry survived the position close")
	}

	// a fresh position starts with a clean cooldown clock
	*clock = clock.Add(time.Minute)
	if _, err := book.Open("TCS", 100, 1, 0, 3, 7, *clock); err != nil {
		t.Fatal(err)
	}
	putPrice(cache, "TCS", 98, *clock)
	m.Tick(context.Background())
	if got := rec.byType(alerts.TypeWarning); len(got) != 2 {
		t.Fatalf("warnings = %d, want 2 after reopen", len(got))
	}
}

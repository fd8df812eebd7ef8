package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"golang.org/x/time/rate"
)

// YahooConfig holds knobs for the live bar source.
type YahooConfig struct {
	SymbolSuffix       string // exchange suffix appended before hitting upstream
	RateLimitPerMinute int
	TimeoutSeconds     int
}

// YahooSource pulls OHLCV bars through the Yahoo chart endpoint. All calls
// pass a shared politeness limiter; a per-fetch timeout classifies as
// Transient on expiry.
type YahooSource struct {
	cfg     YahooConfig
	limiter *rate.Limiter
	timeout time.Duration
}

func NewYahooSource(cfg YahooConfig) *YahooSource {
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 120
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &YahooSource{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60), 1),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Fetch implements BarSource.
func (y *YahooSource) Fetch(ctx context.Context, symbol string, window Window) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, NewFatal(symbol, "empty symbol", nil)
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, NewTransient(symbol, "rate limit wait cancelled", err)
	}

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	type result struct {
		bars []Bar
		err  error
	}
	// The chart client has no context hook, so the timeout is enforced by
	// abandoning the in-flight call.
	ch := make(chan result, 1)
	go func() {
		bars, err := y.fetch(symbol, window)
		ch <- result{bars: bars, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, NewTransient(symbol, "fetch timed out", ctx.Err())
	case r := <-ch:
		return r.bars, r.err
	}
}

func (y *YahooSource) fetch(symbol string, window Window) ([]Bar, error) {
	upstream := symbol
	if y.cfg.SymbolSuffix != "" && !strings.HasSuffix(upstream, y.cfg.SymbolSuffix) {
		upstream += y.cfg.SymbolSuffix
	}

	days := window.Days
	if days <= 0 {
		days = 1
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	params := &chart.Params{
		Symbol:   upstream,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: toInterval(window.Interval),
	}

	iter := chart.Get(params)
	var bars []Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, Bar{
			Start:  time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, Classify(symbol, err)
	}
	if len(bars) == 0 {
		return nil, NewNoData(symbol)
	}
	return bars, nil
}

func toInterval(s string) datetime.Interval {
	switch s {
	case "1m":
		return datetime.OneMin
	case "5m":
		return datetime.FiveMins
	case "15m":
		return datetime.FifteenMins
	case "1h":
		return datetime.OneHour
	case "1d":
		return datetime.OneDay
	default:
		return datetime.FiveMins
	}
}

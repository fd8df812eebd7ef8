package marketdata

import (
	"context"
	"time"
)

// Bar is one OHLCV interval, oldest-first in every slice this package hands
// out.
type Bar struct {
	Start  time.Time `json:"start"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Window bounds one fetch: how far back and at what granularity.
type Window struct {
	Days     int
	Interval string // "1m", "5m", "1d", ...
}

// BarSource retrieves bars for one symbol. Implementations classify failures
// through the FetchError taxonomy in this package.
type BarSource interface {
	Fetch(ctx context.Context, symbol string, window Window) ([]Bar, error)
}

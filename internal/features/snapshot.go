package features

import "time"

// TrendPhase tags the swing-structure regime.
type TrendPhase string

const (
	PhaseUp     TrendPhase = "up"
	PhaseDown   TrendPhase = "down"
	PhaseChoppy TrendPhase = "choppy"
)

// Zone is a cluster of nearby swing prices treated as one support or
// resistance level. Strength is normalized to [0,1] against the strongest
// zone on the same side.
type Zone struct {
	Center   float64 `json:"center"`
	Count    int     `json:"count"`
	Strength float64 `json:"strength"`
}

// FeatureSnapshot is the fixed-shape feature vector for one symbol. Produced
// fresh on every fetch and never mutated in place; a new snapshot replaces
// the cached one atomically.
type FeatureSnapshot struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"last_price"`
	IntradayPct float64 `json:"intraday_pct"`

	MAShort float64 `json:"ma_short"`
	MALong  float64 `json:"ma_long"`
	MADiff  float64 `json:"ma_diff"`

	VolStrength float64 `json:"vol_strength"` // last volume / mean volume
	VolZScore   float64 `json:"vol_zscore"`
	VolSurge    bool    `json:"vol_surge"`
	VolSignal   float64 `json:"vol_signal"` // blended 0..1 volume score

	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	MACDTrend  bool    `json:"macd_trend"`

	Volatility float64 `json:"volatility"`
	ATR        float64 `json:"atr"`

	SupportZones    []Zone  `json:"support_zones"`
	ResistanceZones []Zone  `json:"resistance_zones"`
	BreakoutScore   float64 `json:"breakout_score"`
	BounceScore     float64 `json:"bounce_score"`
	SRScore         float64 `json:"sr_score"`

	CandlePatternScore float64 `json:"candle_pattern_score"`
	CandleBull         bool    `json:"candle_bull"`

	TrendPhase TrendPhase `json:"trend_phase"`
	SwingScore float64    `json:"swing_score"`

	BuyConfidence float64 `json:"buy_confidence"`

	CapturedAt time.Time `json:"captured_at"`
}

// Fresh reports whether the snapshot is still inside the freshness window.
func (s *FeatureSnapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CapturedAt) < ttl
}

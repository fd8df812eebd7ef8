package features

import (
	"time"

	"github.com/tradeguru/engine/internal/marketdata"
)

const minBars = 2

// Compute turns raw bars into a feature snapshot. It is a pure function of
// its inputs: identical bars yield identical snapshots. Returns a NoData
// fetch error when fewer than two bars are present.
func Compute(symbol string, bars []marketdata.Bar, now time.Time) (*FeatureSnapshot, error) {
	if len(bars) < minBars {
		return nil, marketdata.NewNoData(symbol)
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	vols := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		vols[i] = float64(b.Volume)
	}

	last := closes[len(closes)-1]
	firstOpen := bars[0].Open
	intradayPct := 0.0
	if firstOpen != 0 {
		intradayPct = (last - firstOpen) / firstOpen * 100
	}

	maShort := sma(closes, 3)
	maLong := sma(closes, 12)

	avgVol := mean(vols)
	if avgVol <= 0 {
		avgVol = 1
	}
	volStrength := vols[len(vols)-1] / avgVol

	volStats := computeVolumeStats(vols)
	rsi := wilderRSI(closes, 14)
	macdLine, macdSignal, macdHist := macd(closes)

	swingHighs, swingLows := detectSwings(bars)
	resistance := clusterZones(swingHighs)
	support := clusterZones(swingLows)
	breakout := breakoutScore(last, resistance)
	bounce := bounceScore(last, rsi, support)

	events := trendEvents(swingHighs, swingLows)
	phase := marketPhase(events)

	patternScore, candleBull := candleScore(bars)

	snap := &FeatureSnapshot{
		Symbol:      symbol,
		LastPrice:   last,
		IntradayPct: intradayPct,

		MAShort: maShort,
		MALong:  maLong,
		MADiff:  maShort - maLong,

		VolStrength: volStrength,
		VolZScore:   volStats.zscore,
		VolSurge:    volStats.surge,
		VolSignal:   volumeSignal(volStats),

		RSI:        rsi,
		MACD:       macdLine,
		MACDSignal: macdSignal,
		MACDHist:   macdHist,
		MACDTrend:  macdLine > macdSignal,

		Volatility: returnsVolatility(closes, 10),
		ATR:        atr(highs, lows, closes, 14),

		SupportZones:    support,
		ResistanceZones: resistance,
		BreakoutScore:   breakout,
		BounceScore:     bounce,
		SRScore:         0.65*breakout + 0.35*bounce,

		CandlePatternScore: patternScore,
		CandleBull:         candleBull,

		TrendPhase: phase,
		SwingScore: swingScore(events),

		CapturedAt: now.UTC(),
	}
	snap.BuyConfidence = buyConfidence(snap)

	return snap, nil
}

// PredictedTarget derives a default predicted maximum for auto-opened
// positions: entry + 2.5 ATR(14), falling back to +5% when the window was too
// short for an ATR.
func (s *FeatureSnapshot) PredictedTarget() float64 {
	if s.ATR > 0 {
		return s.LastPrice + 2.5*s.ATR
	}
	return s.LastPrice * 1.05
}

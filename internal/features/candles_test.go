package features

import (
	"testing"

	"github.com/tradeguru/engine/internal/marketdata"
)

func bar(o, h, l, c float64) marketdata.Bar {
	return marketdata.Bar{Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func TestCandleScoreHammer(t *testing.T) {
	bars := []marketdata.Bar{
		bar(100, 101, 99, 100.5),
		bar(100.5, 101, 99.5, 100),
		// small body, long lower wick, almost no upper wick
		bar(100, 100.55, 98, 100.5),
	}
	score, bull := candleScore(bars)
	if score != patternWeights["hammer"] {
		t.Errorf("score = %v, want hammer weight %v", score, patternWeights["hammer"])
	}
	if !bull {
		t.Error("hammer should flag bullish")
	}
}

func TestCandleScoreBullishEngulfing(t *testing.T) {
	bars := []marketdata.Bar{
		bar(100, 101, 99, 100.5),
		bar(101, 101.5, 99.5, 100), // bearish
		bar(99.5, 102.5, 99.4, 102), // engulfs the previous body
	}
	score, bull := candleScore(bars)
	if score < patternWeights["bullish_engulfing"] {
		t.Errorf("score = %v, want at least %v", score, patternWeights["bullish_engulfing"])
	}
	if !bull {
		t.Error("bullish engulfing should flag bullish")
	}
}

func TestCandleScoreDojiIsNotBullish(t *testing.T) {
	bars := []marketdata.Bar{
		bar(100, 101, 99, 100.5),
		bar(100.5, 102, 100, 101.5),
		bar(101.5, 103, 100, 101.55), // body inside 0.2% of price, wicks both long
	}
	score, bull := candleScore(bars)
	if score != patternWeights["doji"] {
		t.Errorf("score = %v, want doji weight %v", score, patternWeights["doji"])
	}
	if bull {
		t.Error("doji alone should not flag bullish")
	}
}

func TestCandleScoreShortWindow(t *testing.T) {
	score, bull := candleScore([]marketdata.Bar{bar(100, 101, 99, 100)})
	if score != 0 || bull {
		t.Errorf("short window = (%v,%v), want (0,false)", score, bull)
	}
}

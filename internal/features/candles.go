package features

import "github.com/tradeguru/engine/internal/marketdata"

// Pattern reliability weights, capped sum at 100.
var patternWeights = map[string]float64{
	"hammer":            12,
	"shooting_star":     12,
	"doji":              5,
	"bullish_engulfing": 22,
	"bearish_engulfing": 22,
	"inside_bar":        6,
	"morning_star":      30,
	"evening_star":      30,
}

var bullishPatterns = map[string]bool{
	"hammer":            true,
	"bullish_engulfing": true,
	"morning_star":      true,
}

func bodySize(b marketdata.Bar) float64  { return abs(b.Close - b.Open) }
func upperWick(b marketdata.Bar) float64 { return b.High - maxF(b.Open, b.Close) }
func lowerWick(b marketdata.Bar) float64 { return minF(b.Open, b.Close) - b.Low }
func isBullish(b marketdata.Bar) bool    { return b.Close > b.Open }
func isBearish(b marketdata.Bar) bool    { return b.Open > b.Close }

func isHammer(b marketdata.Bar) bool {
	body := bodySize(b)
	return body > 0 && lowerWick(b) > body*2.5 && upperWick(b) < body*0.4
}

func isShootingStar(b marketdata.Bar) bool {
	body := bodySize(b)
	return body > 0 && upperWick(b) > body*2.5 && lowerWick(b) < body*0.4
}

func isDoji(b marketdata.Bar) bool {
	return bodySize(b) <= 0.002*maxF(b.Open, b.Close)
}

func isBullishEngulfing(prev, cur marketdata.Bar) bool {
	return isBearish(prev) && isBullish(cur) && cur.Close > prev.Open && cur.Open < prev.Close
}

func isBearishEngulfing(prev, cur marketdata.Bar) bool {
	return isBullish(prev) && isBearish(cur) && cur.Open > prev.Close && cur.Close < prev.Open
}

func isInsideBar(prev, cur marketdata.Bar) bool {
	return cur.High < prev.High && cur.Low > prev.Low
}

func isMorningStar(first, mid, last marketdata.Bar) bool {
	return isBearish(first) &&
		bodySize(mid) < bodySize(first)*0.5 &&
		isBullish(last) &&
		last.Close > (first.Open+first.Close)/2
}

func isEveningStar(first, mid, last marketdata.Bar) bool {
	return isBullish(first) &&
		bodySize(mid) < bodySize(first)*0.5 &&
		isBearish(last) &&
		last.Close < (first.Open+first.Close)/2
}

// candleScore detects single/two/three-candle reversal patterns over the last
// three bars and sums reliability-weighted hits. Returns the capped score and
// whether any bullish reversal pattern fired.
func candleScore(bars []marketdata.Bar) (score float64, bull bool) {
	if len(bars) < 3 {
		return 0, false
	}
	first := bars[len(bars)-3]
	mid := bars[len(bars)-2]
	last := bars[len(bars)-1]

	hits := map[string]bool{
		"hammer":            isHammer(last),
		"shooting_star":     isShootingStar(last),
		"doji":              isDoji(last),
		"bullish_engulfing": isBullishEngulfing(mid, last),
		"bearish_engulfing": isBearishEngulfing(mid, last),
		"inside_bar":        isInsideBar(mid, last),
		"morning_star":      isMorningStar(first, mid, last),
		"evening_star":      isEveningStar(first, mid, last),
	}

	for name, hit := range hits {
		if !hit {
			continue
		}
		score += patternWeights[name]
		if bullishPatterns[name] {
			bull = true
		}
	}
	if score > 100 {
		score = 100
	}
	return score, bull
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

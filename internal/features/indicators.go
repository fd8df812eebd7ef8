package features

import "math"

// sma averages the trailing period of xs; falls back to the full slice when
// fewer points exist.
func sma(xs []float64, period int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if period > len(xs) {
		period = len(xs)
	}
	sum := 0.0
	for _, v := range xs[len(xs)-period:] {
		sum += v
	}
	return sum / float64(period)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, v := range xs {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// wilderRSI is the classic RSI(period) with Wilder smoothing. Neutral 50 when
// not enough deltas exist.
func wilderRSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema returns the full EMA series for span.
func ema(xs []float64, span int) []float64 {
	if len(xs) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1)
	out := make([]float64, len(xs))
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// macd computes MACD(12,26,9): line, signal and histogram at the last bar.
func macd(closes []float64) (line, signal, hist float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	ema12 := ema(closes, 12)
	ema26 := ema(closes, 26)
	lineSeries := make([]float64, len(closes))
	for i := range closes {
		lineSeries[i] = ema12[i] - ema26[i]
	}
	signalSeries := ema(lineSeries, 9)
	last := len(closes) - 1
	return lineSeries[last], signalSeries[last], lineSeries[last] - signalSeries[last]
}

// returnsVolatility is the stddev of simple returns over the trailing window.
func returnsVolatility(closes []float64, window int) float64 {
	if len(closes) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			rets = append(rets, closes[i]/closes[i-1]-1)
		}
	}
	if len(rets) > window {
		rets = rets[len(rets)-window:]
	}
	return stddev(rets)
}

// atr is Wilder's average true range; zero when the window is too short.
func atr(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if d := math.Abs(highs[i] - closes[i-1]); d > tr {
			tr = d
		}
		if d := math.Abs(lows[i] - closes[i-1]); d > tr {
			tr = d
		}
		trs = append(trs, tr)
	}
	return sma(trs, period)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package features

// buyConfidence blends candle bullishness, volume signal, trend phase, RSI
// band and breakout into a 0-100 composite. The 50-70 RSI band is the sweet
// spot; below 50 still earns a token for early momentum.
func buyConfidence(s *FeatureSnapshot) float64 {
	score := 0.0

	if s.CandleBull {
		score += 30
	}

	score += 25 * clamp(s.VolSignal, 0, 1)

	if s.TrendPhase == PhaseUp {
		score += 20
	}

	switch {
	case s.RSI >= 50 && s.RSI <= 70:
		score += 15
	case s.RSI < 50:
		score += 5
	}

	score += clamp(s.BreakoutScore*10, 0, 10)

	if score > 100 {
		score = 100
	}
	return score
}

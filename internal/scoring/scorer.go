package scoring

import (
	"math"
	"sort"

	"github.com/tradeguru/engine/internal/config"
	"github.com/tradeguru/engine/internal/features"
)

// RankedCandidate is a snapshot plus its ranking score for this cycle.
// Ephemeral: recomputed every batch, never persisted beyond the top-N sinks.
type RankedCandidate struct {
	Snapshot *features.FeatureSnapshot
	Score    float64
}

// Model yields an external buy probability for a snapshot. Consumed as an
// opaque scoring function; the blend with the engine score happens at the
// orchestrator.
type Model interface {
	Probability(snap *features.FeatureSnapshot) (float64, error)
}

type minMax struct{ lo, hi float64 }

func (m minMax) norm(v float64) float64 {
	if m.hi == m.lo {
		return 0.5
	}
	return (v - m.lo) / (m.hi - m.lo)
}

func observe(vals []float64) minMax {
	m := minMax{lo: math.Inf(1), hi: math.Inf(-1)}
	for _, v := range vals {
		if v < m.lo {
			m.lo = v
		}
		if v > m.hi {
			m.hi = v
		}
	}
	return m
}

// ScoreBatch maps each snapshot to a [0,1] ranking score. Contributing
// features are normalized min-max relative to the current batch, which keeps
// the ranking stable across market regimes. Candidates under the volume
// noise floor are hard-filtered to score 0 and excluded from the
// normalization statistics. The result is sorted descending by score, ties
// broken by ascending symbol.
func ScoreBatch(snaps []*features.FeatureSnapshot, w config.ScoreWeights, noiseFloor float64) []RankedCandidate {
	out := make([]RankedCandidate, 0, len(snaps))

	var passed []*features.FeatureSnapshot
	for _, s := range snaps {
		if s.VolStrength < noiseFloor {
			out = append(out, RankedCandidate{Snapshot: s, Score: 0})
			continue
		}
		passed = append(passed, s)
	}

	if len(passed) > 0 {
		momentum := make([]float64, len(passed))
		volume := make([]float64, len(passed))
		volZ := make([]float64, len(passed))
		volatility := make([]float64, len(passed))
		sr := make([]float64, len(passed))
		confidence := make([]float64, len(passed))
		for i, s := range passed {
			momentum[i] = s.IntradayPct
			volume[i] = s.VolStrength
			volZ[i] = s.VolZScore
			volatility[i] = s.Volatility
			sr[i] = s.SRScore
			confidence[i] = s.BuyConfidence
		}
		mmMomentum := observe(momentum)
		mmVolume := observe(volume)
		mmVolZ := observe(volZ)
		mmVolatility := observe(volatility)
		mmSR := observe(sr)
		mmConfidence := observe(confidence)

		for _, s := range passed {
			score := w.Momentum*mmMomentum.norm(s.IntradayPct) +
				w.Volume*mmVolume.norm(s.VolStrength) +
				w.VolumeZScore*mmVolZ.norm(s.VolZScore) +
				w.MACD*binary(s.MACDTrend) +
				w.RSI*rsiBand(s.RSI) +
				w.Trend*binary(s.MADiff > 0) +
				w.InvVolatility*(1-mmVolatility.norm(s.Volatility)) +
				w.SR*mmSR.norm(s.SRScore) +
				w.Confidence*mmConfidence.norm(s.BuyConfidence)
			out = append(out, RankedCandidate{Snapshot: s, Score: round4(clamp01(score))})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Snapshot.Symbol < out[j].Snapshot.Symbol
	})
	return out
}

// Blend combines an external model probability with the engine score using
// externally supplied weights, normalized by their sum.
func Blend(mlProb, engineScore float64, b config.Blend) float64 {
	total := b.ML + b.Engine
	if total <= 0 {
		return engineScore
	}
	return clamp01((b.ML*mlProb + b.Engine*engineScore) / total)
}

// rsiBand prefers mid-range RSI: overbought and oversold both get a flat
// penalty, the middle decays linearly away from 50.
func rsiBand(rsi float64) float64 {
	if rsi < 40 || rsi > 70 {
		return 0.2
	}
	return 1 - math.Abs(rsi-50)/20
}

func binary(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

package scoring

import (
	"testing"

	"github.com/tradeguru/engine/internal/config"
	"github.com/tradeguru/engine/internal/features"
)

func snap(symbol string, volStrength, intraday, confidence float64) *features.FeatureSnapshot {
	return &features.FeatureSnapshot{
		Symbol:        symbol,
		VolStrength:   volStrength,
		IntradayPct:   intraday,
		RSI:           50,
		BuyConfidence: confidence,
	}
}

func TestScoreBatchHardFilter(t *testing.T) {
	snaps := []*features.FeatureSnapshot{
		snap("LIQUID", 1.2, 2.0, 60),
		snap("THIN", 0.4, 9.0, 90), // under the noise floor despite strong momentum
	}
	ranked := ScoreBatch(snaps, config.DefaultScoreWeights(), 0.5)

	scores := map[string]float64{}
	for _, c := range ranked {
		scores[c.Snapshot.Symbol] = c.Score
	}
	if scores["THIN"] != 0 {
		t.Errorf("THIN score = %v, want 0 from hard filter", scores["THIN"])
	}
	if scores["LIQUID"] <= 0 {
		t.Errorf("LIQUID score = %v, want > 0", scores["LIQUID"])
	}
}

func TestScoreBatchOrderingAndTies(t *testing.T) {
	snaps := []*features.FeatureSnapshot{
		snap("ZED", 0.1, 0, 0),
		snap("ALPHA", 0.1, 0, 0),
		snap("WINNER", 2.0, 5.0, 80),
	}
	ranked := ScoreBatch(snaps, config.DefaultScoreWeights(), 0.5)

	if len(ranked) != 3 {
		t.Fatalf("len = %d, want 3", len(ranked))
	}
	if ranked[0].Snapshot.Symbol != "WINNER" {
		t.Errorf("top = %s, want WINNER", ranked[0].Snapshot.Symbol)
	}
	// both filtered to 0: tie broken by ascending symbol
	if ranked[1].Snapshot.Symbol != "ALPHA" || ranked[2].Snapshot.Symbol != "ZED" {
		t.Errorf("tie order = %s,%s, want ALPHA,ZED", ranked[1].Snapshot.Symbol, ranked[2].Snapshot.Symbol)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("ranking not non-increasing at %d", i)
		}
	}
}

func TestScoreBatchSingleCandidate(t *testing.T) {
	ranked := ScoreBatch([]*features.FeatureSnapshot{snap("ONLY", 1.0, 1.0, 50)},
		config.DefaultScoreWeights(), 0.5)
	if len(ranked) != 1 {
		t.Fatalf("len = %d, want 1", len(ranked))
	}
	if s := ranked[0].Score; s < 0 || s > 1 {
		t.Errorf("score = %v, want within [0,1]", s)
	}
}

func TestBlend(t *testing.T) {
	cases := []struct {
		name   string
		ml     float64
		engine float64
		b      config.Blend
		want   float64
	}{
		{"even split", 0.8, 0.4, config.Blend{ML: 0.5, Engine: 0.5}, 0.6},
		{"engine heavy", 0.8, 0.4, config.Blend{ML: 0.2, Engine: 0.8}, 0.48},
		{"zero weights fall back to engine", 0.8, 0.4, config.Blend{}, 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Blend(tc.ml, tc.engine, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Blend() = %v, want %v", got, tc.want)
			}
		})
	}
}

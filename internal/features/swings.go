package features

import "github.com/tradeguru/engine/internal/marketdata"

const (
	swingLookback = 75   // recent bars considered for zone building
	zoneTolerance = 0.01 // swings within 1% cluster into one zone
)

type swingPoint struct {
	index  int
	price  float64
	volume float64
}

// detectSwings finds local extrema with the 3-point method: a bar whose high
// tops both neighbors is a swing high, a bar whose low undercuts both is a
// swing low. Only the trailing lookback window is inspected.
func detectSwings(bars []marketdata.Bar) (highs, lows []swingPoint) {
	start := 0
	if len(bars) > swingLookback {
		start = len(bars) - swingLookback
	}
	window := bars[start:]

	for i := 1; i < len(window)-1; i++ {
		b := window[i]
		if b.High >= window[i-1].High && b.High >= window[i+1].High {
			highs = append(highs, swingPoint{index: start + i, price: b.High, volume: float64(b.Volume)})
		}
		if b.Low <= window[i-1].Low && b.Low <= window[i+1].Low {
			lows = append(lows, swingPoint{index: start + i, price: b.Low, volume: float64(b.Volume)})
		}
	}
	return highs, lows
}

// clusterZones merges swings whose prices sit within the tolerance band of a
// zone's running center. Zone strength is cumulative member volume,
// normalized afterwards to [0,1] by the strongest zone.
func clusterZones(points []swingPoint) []Zone {
	if len(points) == 0 {
		return nil
	}

	type rawZone struct {
		sum    float64
		count  int
		weight float64
	}
	var zones []*rawZone
	for _, p := range points {
		var home *rawZone
		for _, z := range zones {
			center := z.sum / float64(z.count)
			if center > 0 && abs(p.price-center)/center <= zoneTolerance {
				home = z
				break
			}
		}
		if home == nil {
			home = &rawZone{}
			zones = append(zones, home)
		}
		home.sum += p.price
		home.count++
		home.weight += p.volume
	}

	maxWeight := 0.0
	for _, z := range zones {
		if z.weight > maxWeight {
			maxWeight = z.weight
		}
	}
	if maxWeight <= 0 {
		maxWeight = 1
	}

	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, Zone{
			Center:   z.sum / float64(z.count),
			Count:    z.count,
			Strength: z.weight / maxWeight,
		})
	}
	return out
}

// strongestZone picks the zone with the highest strength; ok=false when none.
func strongestZone(zones []Zone) (Zone, bool) {
	if len(zones) == 0 {
		return Zone{}, false
	}
	best := zones[0]
	for _, z := range zones[1:] {
		if z.Strength > best.Strength {
			best = z
		}
	}
	return best, true
}

// breakoutScore rewards price clearing the strongest resistance: full credit
// at 1% above the zone center, partial credit for any positive clearance,
// scaled by that zone's strength.
func breakoutScore(price float64, resistance []Zone) float64 {
	zone, ok := strongestZone(resistance)
	if !ok || zone.Center <= 0 {
		return 0
	}
	clearance := (price - zone.Center) / zone.Center
	switch {
	case clearance >= zoneTolerance:
		return zone.Strength
	case clearance > 0:
		return zone.Strength * (clearance / zoneTolerance)
	default:
		return 0
	}
}

// bounceScore rewards price sitting within 1% above the strongest support
// while RSI stays below 60, scaled by the zone's strength.
func bounceScore(price, rsi float64, support []Zone) float64 {
	zone, ok := strongestZone(support)
	if !ok || zone.Center <= 0 || rsi >= 60 {
		return 0
	}
	dist := (price - zone.Center) / zone.Center
	if dist >= 0 && dist <= zoneTolerance {
		return zone.Strength
	}
	return 0
}

// trendEvents classifies consecutive swing pairs into HH/HL/LH/LL.
func trendEvents(highs, lows []swingPoint) []string {
	n := len(highs)
	if len(lows) < n {
		n = len(lows)
	}
	var events []string
	for i := 1; i < n; i++ {
		if highs[i].price > highs[i-1].price {
			events = append(events, "HH")
		} else {
			events = append(events, "LH")
		}
		if lows[i].price > lows[i-1].price {
			events = append(events, "HL")
		} else {
			events = append(events, "LL")
		}
	}
	return events
}

// marketPhase tallies events into a regime tag. A side must outnumber the
// other by 1.3x to claim the trend; anything else is choppy.
func marketPhase(events []string) TrendPhase {
	if len(events) == 0 {
		return PhaseChoppy
	}
	up, down := 0, 0
	for _, e := range events {
		switch e {
		case "HH", "HL":
			up++
		case "LH", "LL":
			down++
		}
	}
	switch {
	case float64(up) > float64(down)*1.3:
		return PhaseUp
	case float64(down) > float64(up)*1.3:
		return PhaseDown
	default:
		return PhaseChoppy
	}
}

// swingScore converts structure events into a 0-100 scale: neutral 50, +8 per
// bullish event, -8 per bearish event, clamped.
func swingScore(events []string) float64 {
	score := 50.0
	for _, e := range events {
		switch e {
		case "HH", "HL":
			score += 8
		case "LH", "LL":
			score -= 8
		}
	}
	return clamp(score, 0, 100)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

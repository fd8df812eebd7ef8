package features

// volumeStats holds the rolling anomaly view of the volume series.
type volumeStats struct {
	mean20     float64
	std20      float64
	zscore     float64
	surge      bool
	spikeRatio float64 // last volume / max of last 20
	trend5     float64
	trend20    float64
}

// computeVolumeStats evaluates the trailing 20-bar distribution of volume.
// With under 5 bars there is no meaningful distribution, so everything
// degrades to neutral values.
func computeVolumeStats(vols []float64) volumeStats {
	n := len(vols)
	if n < 5 {
		return volumeStats{mean20: mean(vols), std20: stddev(vols), spikeRatio: 1}
	}

	last20 := vols
	if n > 20 {
		last20 = vols[n-20:]
	}
	m := mean(last20)
	sd := stddev(last20)
	if sd <= 0 {
		sd = 1
	}

	now := vols[n-1]
	maxV := last20[0]
	for _, v := range last20 {
		if v > maxV {
			maxV = v
		}
	}

	return volumeStats{
		mean20:     m,
		std20:      sd,
		zscore:     (now - m) / sd,
		surge:      now > m+2*sd,
		spikeRatio: now / (maxV + 1e-9),
		trend5:     slope(vols[n-5:]),
		trend20:    slope(last20),
	}
}

// slope is the simple least-squares slope over index positions.
func slope(xs []float64) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range xs {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// volumeSignal blends the anomaly stats into a single 0..1 score.
func volumeSignal(vs volumeStats) float64 {
	z := clamp(vs.zscore/5, 0, 1)
	spike := vs.spikeRatio
	surge := 0.0
	if vs.surge {
		surge = 1
	}
	t5 := clamp(vs.trend5*200, -1, 1)
	t20 := clamp(vs.trend20*50, -1, 1)

	score := 0.35*z + 0.30*spike + 0.20*surge + 0.10*max0(t5) + 0.05*max0(t20)
	return clamp(score, 0, 1)
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

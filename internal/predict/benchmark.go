// Package predict holds the pure prediction engine: benchmark selection,
// the bonus ladder, the answer state machine and peer similarity.
package predict

import (
	"math"
	"sort"

	"movie-club-service/internal/domain"
)

// SelectBenchmarks derives the lower quartile, mean and upper quartile of the
// vector and pairs each with the nearest-scoring movie. Ties go to the movie
// that appears first in rating order.
func SelectBenchmarks(vec domain.ScoreVector) ([3]domain.Benchmark, error) {
	var out [3]domain.Benchmark

	scored := scoredOnly(vec)
	if len(scored) == 0 {
		return out, domain.ErrEmptyUserHistory
	}

	sorted := scored.Scores()
	sort.Float64s(sorted)

	targets := [3]float64{
		Quantile(sorted, 0.25),
		Mean(sorted),
		Quantile(sorted, 0.75),
	}
	for i, target := range targets {
		nearest := nearestTo(scored, target)
		out[i] = domain.Benchmark{
			Label:   domain.BenchmarkLabel(i),
			Target:  target,
			MovieID: nearest.MovieID,
			Score:   nearest.Score,
		}
	}
	return out, nil
}

// Quantile interpolates linearly between order statistics at q*(n-1).
// sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Mean is the arithmetic mean; NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nearestTo(vec domain.ScoreVector, target float64) domain.ScoredMovie {
	best := vec[0]
	bestDist := math.Abs(best.Score - target)
	for _, s := range vec[1:] {
		// strict comparison keeps the first movie on ties
		if d := math.Abs(s.Score - target); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

func scoredOnly(vec domain.ScoreVector) domain.ScoreVector {
	out := make(domain.ScoreVector, 0, len(vec))
	for _, s := range vec {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			continue
		}
		out = append(out, s)
	}
	return out
}

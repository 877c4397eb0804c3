package predict

import (
	"math"
	"sort"

	"movie-club-service/internal/domain"
)

// PeerOptions tunes RankPeers. Zero values fall back to the defaults.
type PeerOptions struct {
	Limit     int
	MinShared int
}

const (
	DefaultPeerLimit = 3
	DefaultMinShared = 3
)

// RankPeers correlates the active user with every other user over shared
// movies and returns the best matches, highest correlation first. Peers with
// too few shared movies or an undefined coefficient are left out.
func RankPeers(active string, vectors map[string]domain.ScoreVector, opts PeerOptions) []domain.PeerScore {
	if opts.Limit <= 0 {
		opts.Limit = DefaultPeerLimit
	}
	if opts.MinShared <= 0 {
		opts.MinShared = DefaultMinShared
	}

	mine := indexScores(vectors[active])
	peers := make([]domain.PeerScore, 0)
	for username, vec := range vectors {
		if username == active {
			continue
		}
		xs, ys := pairShared(mine, vec)
		if len(xs) < opts.MinShared {
			continue
		}
		r := Pearson(xs, ys)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		peers = append(peers, domain.PeerScore{Username: username, Correlation: r, Shared: len(xs)})
	}

	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Correlation != peers[j].Correlation {
			return peers[i].Correlation > peers[j].Correlation
		}
		return peers[i].Username < peers[j].Username
	})
	if len(peers) > opts.Limit {
		peers = peers[:opts.Limit]
	}
	return peers
}

// Pearson returns the correlation coefficient of two equal-length samples.
// The result is NaN when either sample has zero variance or lengths differ.
func Pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) == 0 {
		return math.NaN()
	}
	mx, my := Mean(xs), Mean(ys)
	var num, sx, sy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		num += dx * dy
		sx += dx * dx
		sy += dy * dy
	}
	den := math.Sqrt(sx * sy)
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// indexScores keeps the first score per movie.
func indexScores(vec domain.ScoreVector) map[int]float64 {
	idx := make(map[int]float64, len(vec))
	for _, s := range scoredOnly(vec) {
		if _, ok := idx[s.MovieID]; !ok {
			idx[s.MovieID] = s.Score
		}
	}
	return idx
}

// pairShared inner-joins a peer vector with the active index, in peer order.
func pairShared(mine map[int]float64, peer domain.ScoreVector) ([]float64, []float64) {
	seen := make(map[int]struct{})
	var xs, ys []float64
	for _, s := range scoredOnly(peer) {
		x, ok := mine[s.MovieID]
		if !ok {
			continue
		}
		if _, dup := seen[s.MovieID]; dup {
			continue
		}
		seen[s.MovieID] = struct{}{}
		xs = append(xs, x)
		ys = append(ys, s.Score)
	}
	return xs, ys
}

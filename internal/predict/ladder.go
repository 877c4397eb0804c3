package predict

import (
	"sort"

	"movie-club-service/internal/domain"
)

// BuildLadder returns one rung per distinct score strictly above upper,
// ascending by score. Among movies sharing a score the highest movie ID is kept.
func BuildLadder(vec domain.ScoreVector, upper float64) []domain.Rung {
	candidates := make([]domain.ScoredMovie, 0)
	for _, s := range scoredOnly(vec) {
		if s.Score > upper {
			candidates = append(candidates, s)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		return candidates[i].MovieID > candidates[j].MovieID
	})

	rungs := make([]domain.Rung, 0, len(candidates))
	used := make(map[int]struct{})
	for i, c := range candidates {
		if i > 0 && candidates[i-1].Score == c.Score {
			continue
		}
		// a movie rated twice keeps its lowest rung so IDs stay unique
		if _, ok := used[c.MovieID]; ok {
			continue
		}
		used[c.MovieID] = struct{}{}
		rungs = append(rungs, domain.Rung{
			ID:      domain.RungID(c.MovieID),
			MovieID: c.MovieID,
			Score:   c.Score,
		})
	}
	return rungs
}

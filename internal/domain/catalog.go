package domain

import "sort"

// Catalog is the joined source of ratings and movie metadata for a session.
type Catalog struct {
	Ratings []Rating      `json:"ratings"`
	Movies  map[int]Movie `json:"movies"`
}

// EligibleUsers lists usernames with at least one unlocked rating, in first-seen order.
func (c Catalog) EligibleUsers() []string {
	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, r := range c.Ratings {
		if !r.Unlocked {
			continue
		}
		if _, ok := seen[r.Username]; ok {
			continue
		}
		seen[r.Username] = struct{}{}
		users = append(users, r.Username)
	}
	return users
}

// IsEligible reports whether username may be selected.
func (c Catalog) IsEligible(username string) bool {
	for _, r := range c.Ratings {
		if r.Unlocked && r.Username == username {
			return true
		}
	}
	return false
}

// ScoreVector builds the user's vector from scored ratings whose movie has metadata.
func (c Catalog) ScoreVector(username string) ScoreVector {
	vec := ScoreVector{}
	for _, r := range c.Ratings {
		if r.Username != username || !c.joinable(r) {
			continue
		}
		vec = append(vec, ScoredMovie{MovieID: r.MovieID, Score: r.Score})
	}
	return vec
}

// ScoreVectors builds a vector for every user present in the ratings.
func (c Catalog) ScoreVectors() map[string]ScoreVector {
	out := make(map[string]ScoreVector)
	for _, r := range c.Ratings {
		if !c.joinable(r) {
			continue
		}
		out[r.Username] = append(out[r.Username], ScoredMovie{MovieID: r.MovieID, Score: r.Score})
	}
	return out
}

// History returns the user's rated movies, newest watched first, then by title.
func (c Catalog) History(username string) []RatedMovie {
	rows := make([]RatedMovie, 0)
	for _, r := range c.Ratings {
		if r.Username != username || !c.joinable(r) {
			continue
		}
		rows = append(rows, RatedMovie{
			Movie:       c.Movies[r.MovieID],
			Score:       r.Score,
			WatchedDate: r.WatchedDate,
		})
	}
	// ISO dates order lexically; undated rows sink to the bottom.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].WatchedDate != rows[j].WatchedDate {
			return rows[i].WatchedDate > rows[j].WatchedDate
		}
		return rows[i].Title < rows[j].Title
	})
	return rows
}

// UserStats summarizes the user's scored ratings. Count is zero for an empty history.
func (c Catalog) UserStats(username string) UserStats {
	stats := UserStats{Username: username}
	for i, s := range c.ScoreVector(username) {
		if i == 0 || s.Score < stats.Min {
			stats.Min = s.Score
		}
		if i == 0 || s.Score > stats.Max {
			stats.Max = s.Score
		}
		stats.Mean += s.Score
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Mean /= float64(stats.Count)
	}
	return stats
}

// Movie looks up metadata by ID.
func (c Catalog) Movie(id int) (Movie, bool) {
	m, ok := c.Movies[id]
	return m, ok
}

func (c Catalog) joinable(r Rating) bool {
	if !r.HasScore() {
		return false
	}
	_, ok := c.Movies[r.MovieID]
	return ok
}

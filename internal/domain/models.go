package domain

import "math"

// Rating is one member's score for one movie.
type Rating struct {
	MovieID     int     `json:"movieId"`
	Username    string  `json:"username"`
	Score       float64 `json:"score"` // NaN when the source row had no score
	Unlocked    bool    `json:"unlocked"`
	WatchedDate string  `json:"watchedDate,omitempty"`
}

// HasScore reports whether the rating carries a usable score.
func (r Rating) HasScore() bool {
	return !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0)
}

// Movie is immutable metadata keyed by MovieID.
type Movie struct {
	MovieID     int     `json:"movieId"`
	Title       string  `json:"title"`
	Year        int     `json:"year"`
	Director    string  `json:"director"`
	Synopsis    string  `json:"synopsis"`
	CriticScore float64 `json:"criticScore"`
	PosterURL   string  `json:"posterUrl"`
	IMDbURL     string  `json:"imdbUrl"`
	WikiURL     string  `json:"wikiUrl"`
	TrailerURL  string  `json:"trailerUrl"`
	LibraryLink string  `json:"libraryLink,omitempty"`
}

// RatedMovie is a rating joined with its movie metadata.
type RatedMovie struct {
	Movie
	Score       float64 `json:"score"`
	WatchedDate string  `json:"watchedDate,omitempty"`
}

// ScoredMovie is a single entry of a user's score vector.
type ScoredMovie struct {
	MovieID int     `json:"movieId"`
	Score   float64 `json:"score"`
}

// ScoreVector holds a user's scores in original rating order.
type ScoreVector []ScoredMovie

// Scores returns the raw score values in vector order.
func (v ScoreVector) Scores() []float64 {
	out := make([]float64, len(v))
	for i, s := range v {
		out[i] = s.Score
	}
	return out
}

// UserStats summarizes a user's score vector.
type UserStats struct {
	Username string  `json:"username"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// PeerScore is a peer ranked by Pearson correlation with the active user.
type PeerScore struct {
	Username    string  `json:"username"`
	Correlation float64 `json:"correlation"`
	Shared      int     `json:"shared"`
}

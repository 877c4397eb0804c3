package domain

import "time"

// BenchmarkPrompt is a benchmark ready for rendering, with its current answer.
type BenchmarkPrompt struct {
	Benchmark
	QuestionID string `json:"questionId"`
	Movie      Movie  `json:"movie"`
	Answer     string `json:"answer"`
}

// NextQuestion is the comparison the user should answer next.
type NextQuestion struct {
	Question
	Movie  Movie  `json:"movie"`
	Prompt string `json:"prompt"`
}

// PredictionView captures everything the presentation layer needs for a session.
type PredictionView struct {
	SessionID   string            `json:"sessionId"`
	Username    string            `json:"username"`
	Unavailable bool              `json:"unavailable"`
	Stats       UserStats         `json:"stats"`
	Benchmarks  []BenchmarkPrompt `json:"benchmarks"`
	Stage       Stage             `json:"stage"`
	Next        *NextQuestion     `json:"next,omitempty"`
	Result      PredictionResult  `json:"result"`
	Summary     string            `json:"summary"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

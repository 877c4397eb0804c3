package domain

import (
	"fmt"
	"strings"
)

// Answer is the reply to "is this week's movie better than X?".
type Answer int

const (
	Unanswered Answer = iota
	Yes
	No
)

// ParseAnswer accepts yes/no in any case.
func ParseAnswer(raw string) (Answer, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y":
		return Yes, nil
	case "no", "n":
		return No, nil
	}
	return Unanswered, ErrInvalidAnswer
}

func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unanswered"
	}
}

// BenchmarkLabel names one of the three quantile benchmarks.
type BenchmarkLabel int

const (
	Lower BenchmarkLabel = iota
	Middle
	Upper
)

func (l BenchmarkLabel) String() string {
	switch l {
	case Lower:
		return "Q1"
	case Middle:
		return "Q2"
	case Upper:
		return "Q3"
	}
	return "unknown"
}

// QuestionID is the stable answer key for the benchmark question.
func (l BenchmarkLabel) QuestionID() string {
	return strings.ToLower(l.String())
}

// Benchmark pairs a target statistic with the user's nearest-scoring movie.
type Benchmark struct {
	Label   BenchmarkLabel `json:"label"`
	Target  float64        `json:"target"`
	MovieID int            `json:"movieId"`
	Score   float64        `json:"score"`
}

// Rung is one step of the bonus ladder above the upper quartile.
type Rung struct {
	ID      string  `json:"id"`
	MovieID int     `json:"movieId"`
	Score   float64 `json:"score"`
}

// RungID derives the answer key for a ladder movie.
func RungID(movieID int) string {
	return fmt.Sprintf("rung-%d", movieID)
}

// Stage is the position of a prediction session in its state machine.
type Stage int

const (
	AwaitingQ1 Stage = iota
	AwaitingQ2
	AwaitingQ3
	AwaitingRung
	Resolved
	Terminal
)

func (s Stage) String() string {
	switch s {
	case AwaitingQ1:
		return "awaiting_q1"
	case AwaitingQ2:
		return "awaiting_q2"
	case AwaitingQ3:
		return "awaiting_q3"
	case AwaitingRung:
		return "awaiting_rung"
	case Resolved:
		return "resolved"
	case Terminal:
		return "terminal"
	}
	return "unknown"
}

// ResultKind discriminates PredictionResult.
type ResultKind int

const (
	Pending ResultKind = iota
	Range
	LowerBound
	UpperBound
	Indeterminate
)

func (k ResultKind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Range:
		return "range"
	case LowerBound:
		return "lower_bound"
	case UpperBound:
		return "upper_bound"
	case Indeterminate:
		return "indeterminate"
	}
	return "unknown"
}

// PredictionResult is the predicted score range for the upcoming movie.
// Low is set for Range and LowerBound, High for Range and UpperBound.
type PredictionResult struct {
	Kind    ResultKind `json:"kind"`
	Low     float64    `json:"low"`
	High    float64    `json:"high"`
	Refined bool       `json:"refined,omitempty"`
}

// String formats the result for display with one decimal place.
func (r PredictionResult) String() string {
	switch r.Kind {
	case Range:
		return fmt.Sprintf("between %.1f and %.1f", r.Low, r.High)
	case LowerBound:
		return fmt.Sprintf("above %.1f", r.Low)
	case UpperBound:
		return fmt.Sprintf("below %.1f", r.High)
	case Indeterminate:
		return "unable to predict"
	}
	return ""
}

// Question is the next comparison the user should answer.
type Question struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	MovieID int     `json:"movieId"`
	Score   float64 `json:"score"`
	Index   int     `json:"index"`
}

func (l BenchmarkLabel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (k ResultKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (l *BenchmarkLabel) UnmarshalText(text []byte) error {
	for _, v := range []BenchmarkLabel{Lower, Middle, Upper} {
		if v.String() == string(text) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown benchmark label %q", text)
}

func (s *Stage) UnmarshalText(text []byte) error {
	for v := AwaitingQ1; v <= Terminal; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

func (k *ResultKind) UnmarshalText(text []byte) error {
	for v := Pending; v <= Indeterminate; v++ {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", text)
}

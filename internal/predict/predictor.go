package predict

import (
	"fmt"

	"movie-club-service/internal/domain"
)

// State is the full input of one prediction run. It is treated as a value:
// Apply returns a new State and never mutates the one it was given.
type State struct {
	Benchmarks  [3]domain.Benchmark      `json:"benchmarks"`
	Ladder      []domain.Rung            `json:"ladder"`
	Answers     [3]domain.Answer         `json:"answers"`
	RungAnswers map[string]domain.Answer `json:"rungAnswers"`
}

// Evaluation is everything derived from a State.
type Evaluation struct {
	Stage  domain.Stage            `json:"stage"`
	Result domain.PredictionResult `json:"result"`
	Next   *domain.Question        `json:"next,omitempty"`
	// Err is ErrAmbiguousAnswers when the benchmark answers contradict each other.
	Err error `json:"-"`
}

// NewState starts a run with no answers.
func NewState(benchmarks [3]domain.Benchmark, ladder []domain.Rung) State {
	rungs := make([]domain.Rung, len(ladder))
	copy(rungs, ladder)
	return State{
		Benchmarks:  benchmarks,
		Ladder:      rungs,
		RungAnswers: make(map[string]domain.Answer),
	}
}

// Start builds the benchmarks and ladder for a vector and returns a fresh State.
func Start(vec domain.ScoreVector) (State, error) {
	benchmarks, err := SelectBenchmarks(vec)
	if err != nil {
		return State{}, err
	}
	return NewState(benchmarks, BuildLadder(vec, benchmarks[domain.Upper].Target)), nil
}

// Apply records an answer and returns the next State.
// Benchmark questions may be answered in any order and changed later; a change
// discards the ladder answers. Ladder rungs may only be answered when asked.
func Apply(s State, questionID string, answer domain.Answer) (State, error) {
	if answer != domain.Yes && answer != domain.No {
		return s, domain.ErrInvalidAnswer
	}

	for i := range s.Benchmarks {
		if domain.BenchmarkLabel(i).QuestionID() != questionID {
			continue
		}
		next := s.clone()
		if next.Answers[i] != answer {
			next.RungAnswers = make(map[string]domain.Answer)
		}
		next.Answers[i] = answer
		return next, nil
	}

	if !s.hasRung(questionID) {
		return s, domain.ErrQuestionNotFound
	}
	ev := Evaluate(s)
	if ev.Stage == domain.Terminal {
		return s, domain.ErrSessionTerminal
	}
	if ev.Stage != domain.AwaitingRung || ev.Next == nil || ev.Next.ID != questionID {
		return s, domain.ErrQuestionNotAsked
	}
	next := s.clone()
	next.RungAnswers[questionID] = answer
	return next, nil
}

// Evaluate derives the stage, result and next question from the answers.
// No range is produced until all three benchmark answers are present.
func Evaluate(s State) Evaluation {
	for i, a := range s.Answers {
		if a == domain.Unanswered {
			b := s.Benchmarks[i]
			return Evaluation{
				Stage:  domain.Stage(i),
				Result: domain.PredictionResult{Kind: domain.Pending},
				Next: &domain.Question{
					ID:      b.Label.QuestionID(),
					Label:   b.Label.String(),
					MovieID: b.MovieID,
					Score:   b.Score,
					Index:   i,
				},
			}
		}
	}

	lower := s.Benchmarks[domain.Lower].Target
	middle := s.Benchmarks[domain.Middle].Target
	upper := s.Benchmarks[domain.Upper].Target

	const (
		y = domain.Yes
		n = domain.No
	)
	switch s.Answers {
	case [3]domain.Answer{n, n, n}:
		return resolved(domain.PredictionResult{Kind: domain.UpperBound, High: lower})
	case [3]domain.Answer{y, n, n}:
		return resolved(domain.PredictionResult{Kind: domain.Range, Low: lower, High: middle})
	case [3]domain.Answer{y, y, n}:
		return resolved(domain.PredictionResult{Kind: domain.Range, Low: middle, High: upper})
	case [3]domain.Answer{y, y, y}:
		return s.walkLadder(upper)
	}
	ev := resolved(domain.PredictionResult{Kind: domain.Indeterminate})
	ev.Err = domain.ErrAmbiguousAnswers
	return ev
}

// walkLadder climbs rungs while answers are Yes and stops at the first No.
func (s State) walkLadder(upper float64) Evaluation {
	base := domain.PredictionResult{Kind: domain.LowerBound, Low: upper}
	lastYes := upper
	for i, rung := range s.Ladder {
		switch s.RungAnswers[rung.ID] {
		case domain.Yes:
			lastYes = rung.Score
		case domain.No:
			return Evaluation{
				Stage: domain.Terminal,
				Result: domain.PredictionResult{
					Kind:    domain.Range,
					Low:     lastYes,
					High:    rung.Score,
					Refined: true,
				},
			}
		default:
			return Evaluation{
				Stage:  domain.AwaitingRung,
				Result: base,
				Next: &domain.Question{
					ID:      rung.ID,
					Label:   fmt.Sprintf("R%d", i+1),
					MovieID: rung.MovieID,
					Score:   rung.Score,
					Index:   i,
				},
			}
		}
	}
	return Evaluation{Stage: domain.Terminal, Result: base}
}

func resolved(r domain.PredictionResult) Evaluation {
	return Evaluation{Stage: domain.Resolved, Result: r}
}

func (s State) hasRung(id string) bool {
	for _, r := range s.Ladder {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s State) clone() State {
	answers := make(map[string]domain.Answer, len(s.RungAnswers))
	for k, v := range s.RungAnswers {
		answers[k] = v
	}
	s.RungAnswers = answers
	return s
}

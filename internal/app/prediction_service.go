package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"movie-club-service/internal/domain"
	"movie-club-service/internal/predict"

	"github.com/rs/zerolog/log"
)

// SessionRepository abstracts how prediction sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string) *Session
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
	ActiveSessions(ctx context.Context) (int, error)
}

// CatalogRepository loads the joined ratings and metadata (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// invalidator is implemented by caching catalog repositories.
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// PredictionService contains the core prediction use cases.
type PredictionService struct {
	// conns serialises Open and Close so a release racing a new connection
	// never deletes a session that just gained a holder.
	conns    sync.Mutex
	sessions SessionRepository
	catalogs CatalogRepository
	peers    predict.PeerOptions
}

func NewPredictionService(store SessionRepository, catalogs CatalogRepository, peers predict.PeerOptions) *PredictionService {
	return &PredictionService{sessions: store, catalogs: catalogs, peers: peers}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSession(id)
}

// NewSessionWithClock builds a session stamped by now instead of time.Now.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return newSessionWithClock(id, now)
}

// Open creates the session if needed, registers one more holder and returns
// its current view. Every Open must be paired with a Close.
func (s *PredictionService) Open(_ context.Context, sessionID string) domain.PredictionView {
	s.conns.Lock()
	session := s.sessions.GetOrCreate(sessionID)
	session.retain()
	s.conns.Unlock()
	return session.view()
}

// Users lists the selectable (unlocked) members.
func (s *PredictionService) Users(ctx context.Context) ([]string, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.EligibleUsers(), nil
}

// SelectUser makes username the active user of the session, discarding any
// answers given for the previous user.
func (s *PredictionService) SelectUser(ctx context.Context, sessionID, username string) (domain.PredictionView, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return domain.PredictionView{}, err
	}
	if !catalog.IsEligible(username) {
		return domain.PredictionView{}, domain.ErrUserNotFound
	}

	session := s.sessions.GetOrCreate(sessionID)
	view := session.selectUser(username, catalog)
	log.Info().
		Str("session", sessionID).
		Str("user", username).
		Bool("unavailable", view.Unavailable).
		Msg("user selected")
	return view, nil
}

// Answer records a yes/no comparison and advances the session one step.
func (s *PredictionService) Answer(_ context.Context, sessionID, questionID string, answer domain.Answer) (domain.PredictionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.PredictionView{}, domain.ErrSessionNotFound
	}
	view, err := session.answer(questionID, answer)
	if err != nil {
		log.Debug().Err(err).Str("session", sessionID).Str("question", questionID).Msg("answer rejected")
		return domain.PredictionView{}, err
	}
	log.Info().
		Str("session", sessionID).
		Str("question", questionID).
		Stringer("answer", answer).
		Stringer("stage", view.Stage).
		Msg("answer recorded")
	return view, nil
}

// Reset clears all answers while keeping the selected user.
func (s *PredictionService) Reset(_ context.Context, sessionID string) (domain.PredictionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.PredictionView{}, domain.ErrSessionNotFound
	}
	return session.reset()
}

// View returns the current state of the session.
func (s *PredictionService) View(_ context.Context, sessionID string) (domain.PredictionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.PredictionView{}, domain.ErrSessionNotFound
	}
	return session.view(), nil
}

// Peers ranks other members by rating correlation with username.
func (s *PredictionService) Peers(ctx context.Context, username string) ([]domain.PeerScore, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if !catalog.IsEligible(username) {
		return nil, domain.ErrUserNotFound
	}
	return predict.RankPeers(username, catalog.ScoreVectors(), s.peers), nil
}

// History lists the member's rated movies, newest first.
func (s *PredictionService) History(ctx context.Context, username string) ([]domain.RatedMovie, error) {
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if !catalog.IsEligible(username) {
		return nil, domain.ErrUserNotFound
	}
	return catalog.History(username), nil
}

// Subscribe returns a channel that receives view updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *PredictionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.PredictionView, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Close releases one holder. The session and everything answered in it are
// dropped once no holder is left.
func (s *PredictionService) Close(_ context.Context, sessionID string) {
	s.conns.Lock()
	defer s.conns.Unlock()
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if remaining := session.release(); remaining > 0 {
		log.Debug().Str("session", sessionID).Int("holders", remaining).Msg("session still held")
		return
	}
	s.sessions.Delete(sessionID)
}

// ActiveSessions reports how many sessions the store currently tracks.
func (s *PredictionService) ActiveSessions(ctx context.Context) (int, error) {
	return s.sessions.ActiveSessions(ctx)
}

// ReloadCatalog drops any cached catalog and loads it again, so edited CSVs
// or a fresh import take effect without a restart. Running sessions keep the
// catalog they selected their user with.
func (s *PredictionService) ReloadCatalog(ctx context.Context) error {
	if cache, ok := s.catalogs.(invalidator); ok {
		if err := cache.Invalidate(ctx); err != nil {
			return err
		}
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("ratings", len(catalog.Ratings)).Int("movies", len(catalog.Movies)).Msg("catalog reloaded")
	return nil
}

func (s *PredictionService) catalog(ctx context.Context) (domain.Catalog, error) {
	catalog, err := s.catalogs.GetCatalog(ctx)
	if err != nil {
		log.Error().Err(err).Msg("catalog load failed")
		return domain.Catalog{}, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return catalog, nil
}

// Session is one member's prediction run. Every transition replaces state
// under the lock, so a user switch discards in-flight answers atomically.
type Session struct {
	id          string
	createdAt   time.Time
	now         func() time.Time
	mu          sync.RWMutex
	username    string
	catalog     domain.Catalog
	stats       domain.UserStats
	state       predict.State
	unavailable bool
	holders     int
	subscribers map[chan domain.PredictionView]struct{}
}

func newSession(id string) *Session {
	return newSessionWithClock(id, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:          id,
		createdAt:   now(),
		now:         now,
		subscribers: make(map[chan domain.PredictionView]struct{}),
	}
}

// Username reports the active user, empty before selection.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) retain() {
	s.mu.Lock()
	s.holders++
	s.mu.Unlock()
}

// release drops one holder and reports how many remain.
func (s *Session) release() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders > 0 {
		s.holders--
	}
	return s.holders
}

func (s *Session) selectUser(username string, catalog domain.Catalog) domain.PredictionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.username = username
	s.catalog = catalog
	s.stats = catalog.UserStats(username)

	state, err := predict.Start(catalog.ScoreVector(username))
	s.state = state
	s.unavailable = errors.Is(err, domain.ErrEmptyUserHistory)
	return s.broadcastLocked()
}

func (s *Session) answer(questionID string, answer domain.Answer) (domain.PredictionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.username == "" {
		return domain.PredictionView{}, domain.ErrNoUserSelected
	}
	if s.unavailable {
		return domain.PredictionView{}, domain.ErrEmptyUserHistory
	}
	next, err := predict.Apply(s.state, questionID, answer)
	if err != nil {
		return domain.PredictionView{}, err
	}
	s.state = next
	if ev := predict.Evaluate(next); ev.Err != nil {
		log.Warn().Err(ev.Err).Str("session", s.id).Str("user", s.username).Msg("benchmark answers inconsistent")
	}
	return s.broadcastLocked(), nil
}

func (s *Session) reset() (domain.PredictionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.username == "" {
		return domain.PredictionView{}, domain.ErrNoUserSelected
	}
	s.state = predict.NewState(s.state.Benchmarks, s.state.Ladder)
	return s.broadcastLocked(), nil
}

func (s *Session) view() domain.PredictionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.PredictionView, func()) {
	ch := make(chan domain.PredictionView, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.PredictionView {
	view := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// drop the stale update so a slow reader never blocks a transition
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}

func (s *Session) snapshotLocked() domain.PredictionView {
	view := domain.PredictionView{
		SessionID:   s.id,
		Username:    s.username,
		Unavailable: s.unavailable,
		Stats:       s.stats,
		Stage:       domain.AwaitingQ1,
		Result:      domain.PredictionResult{Kind: domain.Pending},
		UpdatedAt:   s.now(),
	}
	if s.username == "" || s.unavailable {
		return view
	}

	view.Benchmarks = make([]domain.BenchmarkPrompt, 0, len(s.state.Benchmarks))
	for i, b := range s.state.Benchmarks {
		answer := ""
		if a := s.state.Answers[i]; a != domain.Unanswered {
			answer = a.String()
		}
		view.Benchmarks = append(view.Benchmarks, domain.BenchmarkPrompt{
			Benchmark:  b,
			QuestionID: b.Label.QuestionID(),
			Movie:      s.catalog.Movies[b.MovieID],
			Answer:     answer,
		})
	}

	ev := predict.Evaluate(s.state)
	view.Stage = ev.Stage
	view.Result = ev.Result
	view.Summary = ev.Result.String()
	if ev.Next != nil {
		movie := s.catalog.Movies[ev.Next.MovieID]
		view.Next = &domain.NextQuestion{
			Question: *ev.Next,
			Movie:    movie,
			Prompt:   fmt.Sprintf("Is this week's movie better than %s (%d)?", movie.Title, movie.Year),
		}
	}
	return view
}

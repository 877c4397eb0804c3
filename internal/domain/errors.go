package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a prediction session has not been initialized.
	ErrSessionNotFound = errors.New("prediction session not found")
	// ErrNoUserSelected is returned when answers arrive before a user was chosen.
	ErrNoUserSelected = errors.New("no user selected for session")
	// ErrUserNotFound indicates the username is unknown or not unlocked.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmptyUserHistory means the user has no scored ratings, so no benchmarks exist.
	ErrEmptyUserHistory = errors.New("user has no rating history")
	// ErrAmbiguousAnswers marks an answer pattern outside the monotonic table.
	ErrAmbiguousAnswers = errors.New("answers do not describe a consistent range")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionNotAsked is returned for a ladder rung that is not the current one.
	ErrQuestionNotAsked = errors.New("question has not been asked yet")
	// ErrInvalidAnswer indicates the answer is neither yes nor no.
	ErrInvalidAnswer = errors.New("answer must be yes or no")
	// ErrSessionTerminal is returned when answering after the walk has finished.
	ErrSessionTerminal = errors.New("prediction already finished")
	// ErrCatalogUnavailable indicates the ratings or metadata could not be loaded.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

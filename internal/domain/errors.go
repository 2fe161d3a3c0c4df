package domain

import "errors"

var (
	// ErrNoQuestions is returned when every source in the fallback chain
	// was exhausted and the pool is still empty. It is the only
	// caller-visible failure of question loading.
	ErrNoQuestions = errors.New("no questions available from any source")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrNotStarted is returned when an operation requires an in-progress session.
	ErrNotStarted = errors.New("quiz session not started")
	// ErrAlreadyStarted is returned when restoring into a session that has begun.
	ErrAlreadyStarted = errors.New("quiz session already started")
	// ErrInvalidOption is returned when an answer names an option index the
	// current question does not have.
	ErrInvalidOption = errors.New("answer option out of range")
	// ErrSnapshotInvalid marks a persisted snapshot that cannot be trusted;
	// callers treat it as absent and start fresh.
	ErrSnapshotInvalid = errors.New("snapshot malformed or version mismatch")
)

package service

import "errors"

// Typed outcomes the HTTP layer maps to error tokens. All of these are
// expected, local results, never generic 500s.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrTitleRequired     = errors.New("title required")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrUserUnitRequired  = errors.New("user unit required")

	// ErrConflict is surfaced when the optimistic-concurrency retry budget
	// is exhausted. Callers may retry the whole call; no transition ever
	// has partial effect.
	ErrConflict = errors.New("concurrent update conflict")
)

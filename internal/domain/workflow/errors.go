package workflow

import "errors"

var (
	// ErrChainNotDefined is returned when a unit kind has no registered
	// approval chain. This is a configuration-level failure, reported
	// distinctly from authorization failures.
	ErrChainNotDefined = errors.New("workflow not defined")

	// ErrNoActiveStep is returned when a transition is attempted on a
	// request whose chain is closed or was never opened.
	ErrNoActiveStep = errors.New("no active step")
)

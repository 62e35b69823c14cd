package tim

import "errors"

// Sentinel errors shared across the Agent Execution Core's packages:
// one errors.New per well-known failure mode rather than a custom
// error-chain type.
var (
	ErrInvocationClosed    = errors.New("tim: invocation already closed")
	ErrRequestDenied       = errors.New("tim: permission request denied")
	ErrNoQuestions         = errors.New("tim: AskUserQuestion input has no questions")
	ErrBrokerNotRunning    = errors.New("tim: permission broker is not running")
	ErrSpawnFailed         = errors.New("tim: agent subprocess failed to start")
	ErrReviewModeNonZero   = errors.New("tim: agent exited non-zero in review mode")
	ErrInputSourceConflict = errors.New("tim: an input source is already active for this invocation")
)

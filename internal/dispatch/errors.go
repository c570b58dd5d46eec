package dispatch

import "errors"

// Sentinel errors mirroring the teacher's internal/agent/errors.go
// style — semantic error kinds, not a type hierarchy.
var (
	// ErrCancelled indicates the turn was aborted via context
	// cancellation (stop-message RPC, or an external AbortSignal).
	ErrCancelled = errors.New("dispatch: turn cancelled")

	// ErrNoProvider indicates no LLM provider was configured for the
	// agent's turn.
	ErrNoProvider = errors.New("dispatch: no provider configured")

	// ErrMaxFollowUps indicates the loop exceeded its follow-up turn
	// budget without producing a final text response.
	ErrMaxFollowUps = errors.New("dispatch: max follow-up turns exceeded")

	// ErrToolNotFound indicates a tool call referenced an unregistered
	// tool name.
	ErrToolNotFound = errors.New("dispatch: tool not found")
)

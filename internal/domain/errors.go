package domain

import "errors"

// Failure classifications shared by the orchestrator, the HTTP layer and
// the retry worker. The HTTP layer maps them to response codes; the
// worker uses them to decide whether a deferred saga goes back on the
// queue.
var (
	// ErrUnavailable means a downstream failed before any mutation was
	// made, so the request fails outright (503).
	ErrUnavailable = errors.New("service unavailable")

	// ErrRetryLater means a mutation step failed after compensation (or
	// needed none); the saga can be replayed later with the same
	// arguments (204, enqueued).
	ErrRetryLater = errors.New("service temporarily unavailable")

	// ErrQuotaExceeded means the user already holds as many books as
	// their stars allow (403, never retried).
	ErrQuotaExceeded = errors.New("book quota exhausted")
)

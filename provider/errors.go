package provider

import "errors"

// Failure taxonomy for provider calls. Implementations wrap these
// sentinels with %w so callers can dispatch with errors.Is:
//
//	ErrRateLimited — quota exhausted; the pipeline aborts the run when this
//	    was the only unit attempted and surfaces a 429-equivalent.
//	ErrBadRequest  — the provider rejected the call as malformed; the
//	    failing unit (keyword or batch) is skipped.
//	ErrTransient   — network error or provider 5xx; the unit is skipped,
//	    a single retry is permitted but not required.
var (
	ErrRateLimited = errors.New("provider: rate limited")
	ErrBadRequest  = errors.New("provider: bad request")
	ErrTransient   = errors.New("provider: transient failure")
)

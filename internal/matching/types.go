package matching

import "errors"

// Sentinel errors for the Matching RPC surface (spec §7 taxonomy).
var (
	ErrTaskQueueNotFound = errors.New("task queue not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrRateLimited       = errors.New("rate limited")
)

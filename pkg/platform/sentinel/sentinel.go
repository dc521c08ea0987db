package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and the workflow service translates them into domain errors:
//   - ErrNotFound: case does not exist in the store
//   - ErrConflict: a case with the same id already exists, or a concurrent writer won
//   - ErrAlreadyUsed: an idempotency key has already been claimed
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)

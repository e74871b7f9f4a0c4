// README: Workflow error taxonomy surfaced to callers.
package workflow

import (
	"errors"

	"reposition/internal/modules/feematrix"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInfeasiblePairing = errors.New("infeasible pairing")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent state change")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotPriced         = feematrix.ErrNotPriced
)

package errvalues

import "errors"

var (
	ErrEntryNotFound        = errors.New("entry not found")
	ErrNothingToUndo        = errors.New("nothing to undo")
	ErrUndoExpired          = errors.New("undo window has expired")
	ErrQuickLogItemNotFound = errors.New("quick-log item not found")
	ErrTargetNotConfigured  = errors.New("daily target not configured")
	ErrProfileIncomplete    = errors.New("profile is incomplete")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrStorage              = errors.New("storage failure")

	ErrEstimateFailed    = errors.New("estimate failed")
	ErrInvalidEstimate   = errors.New("invalid estimate")
	ErrMissingCredential = errors.New("estimator credential not configured")
	ErrUnsupported       = errors.New("operation not supported by estimator")
)

package controller

import "errors"

// Errors returned by controller operations. A rejected call never mutates state.
var (
	ErrMissionLocked     = errors.New("mission is locked while preparing or running")
	ErrNotValidated      = errors.New("mission plan has not passed validation")
	ErrInvalidTransition = errors.New("operation not allowed in current status")
	ErrUnknownPattern    = errors.New("unknown mission pattern")
	ErrUnknownProfile    = errors.New("unknown capture profile")
	ErrDisposed          = errors.New("mission controller disposed")
)

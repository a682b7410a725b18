package core

import "fmt"

// ValidationError rejects malformed input before any ledger access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an entity that is unknown or owned by another user.
// Foreign-owned rows are indistinguishable from missing ones on purpose.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NotFoundf(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// PreconditionError names the specific unmet condition of an otherwise
// well-formed request. The ledger is left untouched.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// Shared precondition instances so callers can match with errors.Is and
// clients can tell an EXP shortfall from a cash shortfall.
var (
	ErrMonthNotStarted    = &PreconditionError{Msg: "month not started; call month start first"}
	ErrInstanceNotPending = &PreconditionError{Msg: "task instance is not pending"}
	ErrItemInactive       = &PreconditionError{Msg: "shop item is not active"}
	ErrInsufficientEXP    = &PreconditionError{Msg: "not enough EXP available"}
	ErrInsufficientCash   = &PreconditionError{Msg: "not enough unlocked cash available"}
)

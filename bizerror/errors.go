package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidPassword = errors.New("invalid password")

	// ErrNotFound: referenced workflow, approval step or template does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTemplate: template has zero steps, or is missing at workflow start.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrInvalidState: the approval step is not in the status the action requires.
	ErrInvalidState = errors.New("invalid state")
	// ErrMissingComments: rejection always requires a reason.
	ErrMissingComments = errors.New("missing comments")
	// ErrConcurrentModification: the transition lost a row-lock race and the
	// whole call may be retried by the caller.
	ErrConcurrentModification = errors.New("concurrent modification")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

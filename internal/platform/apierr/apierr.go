// Package apierr attaches an HTTP status and a stable machine-readable code to an error. Handlers
// classify domain errors into *Error; the response layer renders whatever it receives.
package apierr

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

// StatusClientClosed is reported when the caller went away before the request finished.
const StatusClientClosed = 499

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return "api error " + strconv.Itoa(e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error    { return New(http.StatusBadRequest, code, err) }
func NotFound(code string, err error) *Error      { return New(http.StatusNotFound, code, err) }
func Conflict(code string, err error) *Error      { return New(http.StatusConflict, code, err) }
func Unprocessable(code string, err error) *Error { return New(http.StatusUnprocessableEntity, code, err) }

// From returns err's *Error when it carries one. Otherwise context errors map to 504 and 499, and
// anything else is a 500 internal_error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(http.StatusGatewayTimeout, "timeout", err)
	case errors.Is(err, context.Canceled):
		return New(StatusClientClosed, "canceled", err)
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}

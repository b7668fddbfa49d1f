package app

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure for the transport layer.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is an expected outcome with a caller-facing message. Anything else
// returned by App is an unexpected failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func badRequest(msg string) error { return &Error{Kind: KindBadRequest, Message: msg} }
func notFound(msg string) error   { return &Error{Kind: KindNotFound, Message: msg} }
func conflict(msg string) error   { return &Error{Kind: KindConflict, Message: msg} }

func unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }

func badRequestf(format string, args ...any) error {
	return badRequest(fmt.Sprintf(format, args...))
}

// AsError unwraps err into an *Error when it is one.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var (
	errCourseNotFound  = notFound("Course not found")
	errChapterNotFound = notFound("Chapter not found")
	errQuizNotFound    = notFound("Quiz not found")
	errUserNotFound    = notFound("User not found")
)

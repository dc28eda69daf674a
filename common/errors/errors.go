package errors

import (
	"github.com/pkg/errors"
)

// Error associates a failure with the Kind the scheduler uses to decide
// how far it propagates.
type Error struct {
	kind Kind
	error
}

func NewError(err error, kind Kind) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind, err}
}

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind, errors.Errorf(format, args...)}
}

func (e *Error) GetKind() Kind {
	if e == nil {
		return Unknown
	}
	return e.kind
}

func (e *Error) Cause() error {
	return e.error
}

// KindOf walks the wrap chain of err and returns the first Kind it finds.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = c.Cause()
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

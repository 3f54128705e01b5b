package lexer

import (
	"errors"
	"fmt"
)

// Error represents an error while scanning.
type Error struct {
	Message string
	// Offset of the failure, relative to the scanned text.
	Offset int
	// Incomplete is set when the text ended in the middle of a token.
	Incomplete bool
}

// Errorf creates a new Error at the given offset.
func Errorf(offset int, format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

// Incompletef creates a new Error for text that ended mid-token at the given offset.
func Incompletef(offset int, format string, args ...interface{}) *Error {
	err := Errorf(offset, format, args...)
	err.Incomplete = true
	return err
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Offset, e.Message)
}

// IsIncomplete returns true if err is, or wraps, an incomplete input *Error.
func IsIncomplete(err error) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Incomplete
}

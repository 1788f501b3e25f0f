package mapfile

import (
	"errors"
	"fmt"
)

var (
	ErrBadHeader       = errors.New("wrong header")
	ErrTooShort        = errors.New("file too short")
	ErrMalformedRecord = errors.New("malformed record")
	ErrOutOfOrderPoint = errors.New("calibration point out of order")
	ErrNotCalibrated   = errors.New("map is not calibrated")
	ErrNoImageSize     = errors.New("map file has no image size")
)

// ParseError reports a .map parse failure. Kind is one of the Err* values
// above; LineNo is 0-based and -1 when the failure is not tied to a line.
type ParseError struct {
	Kind   error
	LineNo int
	Line   string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("wrong .map file - %v", e.Kind)
	if e.LineNo >= 0 {
		msg += fmt.Sprintf(" at line %d %q", e.LineNo+1, e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func lineError(kind error, no int, line string, err error) *ParseError {
	return &ParseError{Kind: kind, LineNo: no, Line: line, Err: err}
}

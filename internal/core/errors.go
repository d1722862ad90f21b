package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Value validation errors.
var (
	ErrNegative          = errors.New("must be >= 0")
	ErrLessThanOne       = errors.New("must be >= 1")
	ErrInvalidNumber     = errors.New("invalid number")
	ErrTooLarge          = errors.New("exceeds the maximum duration")
	ErrUnknownTimeUnit   = errors.New("unknown unit of time")
	ErrEmptyTime         = errors.New("empty time string")
	ErrInconsistentUnits = errors.New("if any time value has a unit, all must have units")
)

// ValueError reports an invalid numeric or time value.
type ValueError struct {
	Input string
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value %q: %v", e.Input, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// PatternErrorKind classifies code pattern syntax errors.
type PatternErrorKind int

const (
	PatternInvalidCharacters PatternErrorKind = iota
	PatternInvalidValue
	PatternInvalidNumber
	PatternHeadlessRange
	PatternFootlessRange
	PatternWrongDots
	PatternBrokenRange
	PatternEmpty
)

func (k PatternErrorKind) String() string {
	switch k {
	case PatternInvalidCharacters:
		return "Invalid characters: must be digits, commas, periods, or whitespace."
	case PatternInvalidValue:
		return "Invalid value: must be in the range [0, 255]."
	case PatternInvalidNumber:
		return "Invalid value: number could not be understood."
	case PatternHeadlessRange:
		return "Invalid range: range has no beginning."
	case PatternFootlessRange:
		return "Invalid range: range has no end."
	case PatternWrongDots:
		return "Invalid range: ranges use two dots (..)."
	case PatternBrokenRange:
		return "Invalid range: ranges can only be between 2 numbers."
	case PatternEmpty:
		return "Invalid value: pattern cannot be empty."
	default:
		return "Invalid pattern."
	}
}

// PatternError points at the offending byte of a code pattern.
type PatternError struct {
	Kind  PatternErrorKind
	Input string
	Index int
}

// Error renders the kind, the input and a caret under the offending position.
func (e *PatternError) Error() string {
	return fmt.Sprintf("%s\n  %s\n  %s^", e.Kind, e.Input, strings.Repeat(" ", e.Index))
}

// Hint returns a human-readable suggestion for common spawn failures, or an
// empty string.
func Hint(err error) string {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return "Does the command exist & is it on the path? Is it spelled correctly?"
	case errors.Is(err, fs.ErrPermission):
		return "Does the file have the executable permission set? Are we using the correct user/group?"
	}
	return ""
}

package cli

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/openjobspec/attempt/internal/core"
)

// secondsValue is a time value in seconds. It accepts every form ParseSeconds does.
type secondsValue struct {
	p *float64
}

func newSecondsValue(val float64, p *float64) *secondsValue {
	*p = val
	return &secondsValue{p: p}
}

func (v *secondsValue) Set(s string) error {
	secs, err := core.ParseSeconds(s)
	if err != nil {
		return err
	}
	*v.p = secs
	return nil
}

func (v *secondsValue) String() string { return strconv.FormatFloat(*v.p, 'g', -1, 64) }
func (v *secondsValue) Type() string   { return "time" }

// optionalSecondsValue is a time value that stays nil until set.
type optionalSecondsValue struct {
	p **float64
}

func (v *optionalSecondsValue) Set(s string) error {
	secs, err := core.ParseSeconds(s)
	if err != nil {
		return err
	}
	*v.p = &secs
	return nil
}

func (v *optionalSecondsValue) String() string {
	if *v.p == nil {
		return ""
	}
	return strconv.FormatFloat(**v.p, 'g', -1, 64)
}

func (v *optionalSecondsValue) Type() string { return "time" }

// nonNegativeFloatValue rejects negative, non-finite and non-numeric input.
type nonNegativeFloatValue struct {
	p *float64
}

func newNonNegativeFloatValue(val float64, p *float64) *nonNegativeFloatValue {
	*p = val
	return &nonNegativeFloatValue{p: p}
}

func (v *nonNegativeFloatValue) Set(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &core.ValueError{Input: s, Err: core.ErrInvalidNumber}
	}
	if f < 0 {
		return &core.ValueError{Input: s, Err: core.ErrNegative}
	}
	*v.p = f
	return nil
}

func (v *nonNegativeFloatValue) String() string { return strconv.FormatFloat(*v.p, 'g', -1, 64) }
func (v *nonNegativeFloatValue) Type() string   { return "float" }

// attemptsValue is a count of at least one.
type attemptsValue struct {
	p *int
}

func newAttemptsValue(val int, p *int) *attemptsValue {
	*p = val
	return &attemptsValue{p: p}
}

func (v *attemptsValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return &core.ValueError{Input: s, Err: core.ErrInvalidNumber}
	}
	if n < 1 {
		return &core.ValueError{Input: s, Err: core.ErrLessThanOne}
	}
	*v.p = n
	return nil
}

func (v *attemptsValue) String() string { return strconv.Itoa(*v.p) }
func (v *attemptsValue) Type() string   { return "int" }

// patternValue parses a code pattern such as "1..3,5".
type patternValue struct {
	p **core.CodePattern
}

func (v *patternValue) Set(s string) error {
	pattern, err := core.ParseCodePattern(s)
	if err != nil {
		return err
	}
	*v.p = &pattern
	return nil
}

func (v *patternValue) String() string {
	if *v.p == nil {
		return ""
	}
	return (*v.p).String()
}

func (v *patternValue) Type() string { return "pattern" }

// regexValue compiles a regular expression.
type regexValue struct {
	p **regexp.Regexp
}

func (v *regexValue) Set(s string) error {
	re, err := regexp.Compile(s)
	if err != nil {
		return err
	}
	*v.p = re
	return nil
}

func (v *regexValue) String() string {
	if *v.p == nil {
		return ""
	}
	return (*v.p).String()
}

func (v *regexValue) Type() string { return "regex" }

// textValue is a non-empty string.
type textValue struct {
	p *string
}

func (v *textValue) Set(s string) error {
	if s == "" {
		return fmt.Errorf("must not be empty")
	}
	*v.p = s
	return nil
}

func (v *textValue) String() string { return *v.p }
func (v *textValue) Type() string   { return "string" }

package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MaxCode is the largest exit status or signal number a CodePattern holds.
const MaxCode = 255

// CodePattern is a set of exit codes or signal numbers in [0, 255].
//
// The textual form is a comma separated list of single codes (1,2,3) and
// inclusive ranges written with two dots (1..5). Backwards ranges are accepted,
// so 10..1 is the same set as 1..10. Two dots rather than a hyphen keep the door
// open for negative codes on platforms that have them.
type CodePattern struct {
	codes [MaxCode + 1]bool
}

// Only returns a pattern holding a single code.
func Only(code int) CodePattern {
	var p CodePattern
	return p.WithCode(code)
}

// WithCode returns a copy of p that also contains code.
func (p CodePattern) WithCode(code int) CodePattern {
	if code < 0 || code > MaxCode {
		panic(fmt.Sprintf("core: code %d out of range", code))
	}
	p.codes[code] = true
	return p
}

// WithRange returns a copy of p that also contains every code in [from, to].
func (p CodePattern) WithRange(from, to int) CodePattern {
	if from > to {
		from, to = to, from
	}
	for c := from; c <= to; c++ {
		p = p.WithCode(c)
	}
	return p
}

// Contains reports whether code is in the set. Codes outside [0, 255] are never members.
func (p CodePattern) Contains(code int) bool {
	if code < 0 || code > MaxCode {
		return false
	}
	return p.codes[code]
}

// String renders the set in its compact textual form, e.g. "1..3,5".
func (p CodePattern) String() string {
	var parts []string
	for c := 0; c <= MaxCode; c++ {
		if !p.codes[c] {
			continue
		}
		end := c
		for end < MaxCode && p.codes[end+1] {
			end++
		}
		if end == c {
			parts = append(parts, strconv.Itoa(c))
		} else {
			parts = append(parts, fmt.Sprintf("%d..%d", c, end))
		}
		c = end
	}
	return strings.Join(parts, ",")
}

// ParseCodePattern parses the textual form of a CodePattern. Errors are
// *PatternError values locating the problem in s.
func ParseCodePattern(s string) (CodePattern, error) {
	var p CodePattern

	for i, r := range s {
		if !(r == ',' || r == '.' || unicode.IsSpace(r) || (r >= '0' && r <= '9')) {
			return p, &PatternError{Kind: PatternInvalidCharacters, Input: s, Index: i}
		}
	}

	found := false
	offset := 0
	for _, part := range strings.Split(s, ",") {
		start := offset
		offset += len(part) + 1

		if strings.TrimSpace(part) == "" {
			continue
		}
		from, to, err := parseSubpattern(s, part, start)
		if err != nil {
			return CodePattern{}, err
		}
		p = p.WithRange(from, to)
		found = true
	}

	if !found {
		return CodePattern{}, &PatternError{Kind: PatternEmpty, Input: s}
	}
	return p, nil
}

// parseSubpattern parses a single code or range located at offset in input.
func parseSubpattern(input, part string, offset int) (int, int, error) {
	fail := func(kind PatternErrorKind, idx int) (int, int, error) {
		return 0, 0, &PatternError{Kind: kind, Input: input, Index: offset + idx}
	}

	dots := strings.Index(part, "..")
	if dots < 0 {
		if idx := strings.IndexByte(part, '.'); idx >= 0 {
			return fail(PatternWrongDots, idx)
		}
		code, kind, idx := parseCode(part)
		if kind >= 0 {
			return fail(kind, idx)
		}
		return code, code, nil
	}

	head, tail := part[:dots], part[dots+2:]
	if idx := strings.IndexByte(tail, '.'); idx >= 0 {
		if idx == 0 {
			return fail(PatternWrongDots, dots+2)
		}
		return fail(PatternBrokenRange, dots+2+idx)
	}
	if strings.TrimSpace(head) == "" {
		return fail(PatternHeadlessRange, dots)
	}
	if strings.TrimSpace(tail) == "" {
		return fail(PatternFootlessRange, len(part)-1)
	}

	from, kind, idx := parseCode(head)
	if kind >= 0 {
		return fail(kind, idx)
	}
	to, kind, idx := parseCode(tail)
	if kind >= 0 {
		return fail(kind, dots+2+idx)
	}
	return from, to, nil
}

// parseCode parses one number surrounded by optional whitespace. On failure it
// returns the error kind and the index of the offending byte; kind is -1 on success.
func parseCode(s string) (int, PatternErrorKind, int) {
	lead := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	digits := strings.TrimSpace(s)
	if idx := strings.IndexFunc(digits, unicode.IsSpace); idx >= 0 {
		return 0, PatternInvalidNumber, lead + idx
	}
	last := lead + len(digits) - 1
	code, err := strconv.Atoi(digits)
	if err != nil {
		return 0, PatternInvalidNumber, last
	}
	if code > MaxCode {
		return 0, PatternInvalidValue, last
	}
	return code, -1, 0
}

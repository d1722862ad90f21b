package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDurationPattern   = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)
	plainSecondsPattern  = regexp.MustCompile(`^\d+(?:\.\d*)?$|^\.\d+$`)
	timeComponentPattern = regexp.MustCompile(`^(\d+(?:\.\d*)?|\.\d+)\s*([A-Za-z]*)\s*`)
)

var timeUnits = map[string]float64{
	"h":   3600,
	"hr":  3600,
	"m":   60,
	"min": 60,
	"s":   1,
	"ms":  1e-3,
	"us":  1e-6,
	"ns":  1e-9,
}

// ParseSeconds parses a non-negative time value into seconds. It accepts a
// plain number of seconds ("1.5"), unit strings ("500ms", "1h30m",
// "1hr 30min 10s") and ISO 8601 durations ("PT1M30S"). Once any component of a
// unit string carries a unit, all of them must. Values longer than the maximum
// time.Duration are rejected with ErrTooLarge.
func ParseSeconds(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, &ValueError{Input: s, Err: ErrEmptyTime}
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, &ValueError{Input: s, Err: ErrNegative}
	}
	if plainSecondsPattern.MatchString(trimmed) {
		secs, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, &ValueError{Input: s, Err: ErrInvalidNumber}
		}
		return checkRange(s, secs)
	}
	if strings.HasPrefix(trimmed, "PT") {
		secs, err := parseISO8601(trimmed)
		if err != nil {
			return 0, &ValueError{Input: s, Err: err}
		}
		return checkRange(s, secs)
	}

	var total float64
	rest := trimmed
	for rest != "" {
		m := timeComponentPattern.FindStringSubmatch(rest)
		if m == nil {
			return 0, &ValueError{Input: s, Err: ErrInvalidNumber}
		}
		if m[2] == "" {
			return 0, &ValueError{Input: s, Err: ErrInconsistentUnits}
		}
		scale, ok := timeUnits[m[2]]
		if !ok {
			return 0, &ValueError{Input: s, Err: ErrUnknownTimeUnit}
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, &ValueError{Input: s, Err: ErrInvalidNumber}
		}
		total += n * scale
		rest = rest[len(m[0]):]
	}
	return checkRange(s, total)
}

// maxSeconds is the longest time value a time.Duration can hold.
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func checkRange(input string, secs float64) (float64, error) {
	if secs > maxSeconds {
		return 0, &ValueError{Input: input, Err: ErrTooLarge}
	}
	return secs, nil
}

// parseISO8601 parses an ISO 8601 time duration (PT1S, PT5M, PT1H30M) into
// seconds. Components are summed as float64 so large values cannot wrap.
func parseISO8601(s string) (float64, error) {
	matches := isoDurationPattern.FindStringSubmatch(s)
	if matches == nil || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %q", s)
	}

	var secs float64
	for i, scale := range []float64{3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		n, err := strconv.ParseFloat(matches[i+1], 64)
		if err != nil {
			return 0, ErrInvalidNumber
		}
		secs += n * scale
	}
	return secs, nil
}

// HumanDuration renders a wait for log messages: seconds with two decimals
// from one second up, whole milliseconds below.
func HumanDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.2f seconds", d.Seconds())
	}
	return fmt.Sprintf("%d milliseconds", d.Milliseconds())
}

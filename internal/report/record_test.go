package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openjobspec/attempt/internal/attempt"
	"github.com/openjobspec/attempt/internal/core"
)

func testSummary() attempt.Summary {
	status := 1
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return attempt.Summary{
		RunID:      "0190b2c4-5d6e-7f80-9a1b-2c3d4e5f6a7b",
		Command:    []string{"curl", "-f", "http://example.com"},
		Outcome:    core.OutcomeRetriesExhausted,
		Attempts:   3,
		Timeouts:   1,
		LastStatus: &status,
		StartedAt:  start,
		FinishedAt: start.Add(2500 * time.Millisecond),
	}
}

func TestFromSummary(t *testing.T) {
	r := FromSummary(testSummary(), "fixed", "worker-1")

	if r.Outcome != "retries_exhausted" {
		t.Errorf("Outcome = %q, want %q", r.Outcome, "retries_exhausted")
	}
	if r.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", r.ExitCode)
	}
	if r.DurationMs != 2500 {
		t.Errorf("DurationMs = %d, want 2500", r.DurationMs)
	}
	if r.StartedAt != "2024-03-01T12:00:00Z" {
		t.Errorf("StartedAt = %q", r.StartedAt)
	}
	if r.LastStatus == nil || *r.LastStatus != 1 {
		t.Errorf("LastStatus = %v, want 1", r.LastStatus)
	}
	if r.Error != "" {
		t.Errorf("Error = %q, want empty", r.Error)
	}
}

func TestFromSummary_Error(t *testing.T) {
	s := testSummary()
	s.Outcome = core.OutcomeIOError
	s.Err = errors.New("spawning \"curl\": not found")

	r := FromSummary(s, "fixed", "")
	if r.ExitCode != 1 || r.Error == "" {
		t.Errorf("ExitCode = %d, Error = %q, want 1 with message", r.ExitCode, r.Error)
	}
}

func TestEncodeRecord(t *testing.T) {
	body, err := EncodeRecord(FromSummary(testSummary(), "exponential", ""))
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["strategy"] != "exponential" {
		t.Errorf("strategy = %v, want exponential", decoded["strategy"])
	}
	if _, ok := decoded["last_signal"]; ok {
		t.Error("unset last_signal should be omitted")
	}
	if _, ok := decoded["host"]; ok {
		t.Error("empty host should be omitted")
	}
}

func TestEncodeRecord_TooLarge(t *testing.T) {
	r := FromSummary(testSummary(), "fixed", "")
	r.Command = []string{strings.Repeat("x", MaxSQSMessageSize)}

	_, err := EncodeRecord(r)
	if !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("EncodeRecord() error = %v, want ErrRecordTooLarge", err)
	}
}

type sinkFunc func(context.Context, Record) error

func (f sinkFunc) Report(ctx context.Context, r Record) error { return f(ctx, r) }

func TestMulti(t *testing.T) {
	var calls int
	ok := sinkFunc(func(context.Context, Record) error { calls++; return nil })
	boom := errors.New("boom")
	failing := sinkFunc(func(context.Context, Record) error { calls++; return boom })

	err := Multi{failing, ok}.Report(context.Background(), Record{})
	if !errors.Is(err, boom) {
		t.Errorf("Report() error = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	if err := (Multi{ok}).Report(context.Background(), Record{}); err != nil {
		t.Errorf("Report() error = %v, want nil", err)
	}
}

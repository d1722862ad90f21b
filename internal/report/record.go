// Package report publishes a record of each finished run to SQS and/or DynamoDB.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openjobspec/attempt/internal/attempt"
)

// MaxSQSMessageSize is the maximum SQS message size (256 KB).
const MaxSQSMessageSize = 256 * 1024

// ErrRecordTooLarge is returned when an encoded record does not fit in an SQS message.
var ErrRecordTooLarge = errors.New("run record exceeds SQS maximum message size")

// Record is the published description of a run.
type Record struct {
	RunID      string   `json:"run_id" dynamodbav:"run_id"`
	Command    []string `json:"command" dynamodbav:"command"`
	Strategy   string   `json:"strategy" dynamodbav:"strategy"`
	Outcome    string   `json:"outcome" dynamodbav:"outcome"`
	ExitCode   int      `json:"exit_code" dynamodbav:"exit_code"`
	Attempts   int      `json:"attempts" dynamodbav:"attempts"`
	Timeouts   int      `json:"timeouts" dynamodbav:"timeouts"`
	LastStatus *int     `json:"last_status,omitempty" dynamodbav:"last_status,omitempty"`
	LastSignal *int     `json:"last_signal,omitempty" dynamodbav:"last_signal,omitempty"`
	StartedAt  string   `json:"started_at" dynamodbav:"started_at"`
	FinishedAt string   `json:"finished_at" dynamodbav:"finished_at"`
	DurationMs int64    `json:"duration_ms" dynamodbav:"duration_ms"`
	Host       string   `json:"host,omitempty" dynamodbav:"host,omitempty"`
	Error      string   `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// FromSummary builds a record from a finished run.
func FromSummary(s attempt.Summary, strategy, host string) Record {
	r := Record{
		RunID:      s.RunID,
		Command:    s.Command,
		Strategy:   strategy,
		Outcome:    s.Outcome.String(),
		ExitCode:   s.ExitCode(),
		Attempts:   s.Attempts,
		Timeouts:   s.Timeouts,
		LastStatus: s.LastStatus,
		LastSignal: s.LastSignal,
		StartedAt:  s.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: s.FinishedAt.UTC().Format(time.RFC3339Nano),
		DurationMs: s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
		Host:       host,
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	return r
}

// EncodeRecord serializes a record to JSON for an SQS message body.
func EncodeRecord(r Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if len(data) > MaxSQSMessageSize {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrRecordTooLarge, len(data), MaxSQSMessageSize)
	}
	return string(data), nil
}

// Sink receives run records.
type Sink interface {
	Report(ctx context.Context, r Record) error
}

// Multi reports to every sink, joining their errors.
type Multi []Sink

func (m Multi) Report(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

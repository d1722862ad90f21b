package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message attribute names. SQS allows max 10 message attributes per message.
const (
	AttrRunID    = "attempt.run_id"
	AttrOutcome  = "attempt.outcome"
	AttrExitCode = "attempt.exit_code"
	AttrAttempts = "attempt.attempts"
	AttrStrategy = "attempt.strategy"
)

// BuildMessageAttributes creates SQS message attributes from a record so
// consumers can filter without decoding the body.
func BuildMessageAttributes(r Record) map[string]types.MessageAttributeValue {
	attrs := map[string]types.MessageAttributeValue{
		AttrRunID: {
			DataType:    aws.String("String"),
			StringValue: aws.String(r.RunID),
		},
		AttrOutcome: {
			DataType:    aws.String("String"),
			StringValue: aws.String(r.Outcome),
		},
		AttrExitCode: {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(r.ExitCode)),
		},
		AttrAttempts: {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(r.Attempts)),
		},
	}
	if r.Strategy != "" {
		attrs[AttrStrategy] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(r.Strategy),
		}
	}
	return attrs
}

// SQSSink sends each record as a message to a queue.
type SQSSink struct {
	client   *sqs.Client
	queueURL string
	fifo     bool
}

// NewSQSSink creates a sink for queueURL. FIFO queues are detected by the
// .fifo suffix.
func NewSQSSink(client *sqs.Client, queueURL string) *SQSSink {
	return &SQSSink{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

func (s *SQSSink) Report(ctx context.Context, r Record) error {
	body, err := EncodeRecord(r)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: BuildMessageAttributes(r),
	}
	if s.fifo {
		input.MessageGroupId = aws.String("attempt")
		input.MessageDeduplicationId = aws.String(r.RunID)
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("SQS SendMessage: %w", err)
	}
	return nil
}

package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/esc-funnel/pkg/logging"
)

// LogSink writes each envelope as a structured log line.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, env Envelope) error {
	pixel := make([]string, 0, len(env.Pixel))
	for _, p := range env.Pixel {
		pixel = append(pixel, p.Name)
	}
	s.logger.Info("event tracked",
		"event", env.Event.Name,
		"session_id", env.Event.SessionID,
		"cliente", env.Event.Tenant,
		"params", env.Event.Params,
		"pixel", pixel,
	)
	return nil
}

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes envelopes to a queue for downstream ad-platform
// forwarding.
type SQSSink struct {
	client   sqsSender
	queueURL string
}

// NewSQSSink creates a sink around an SQS client.
func NewSQSSink(client sqsSender, queueURL string) *SQSSink {
	if client == nil {
		panic("analytics: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("analytics: SQS queueURL cannot be empty")
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

func (s *SQSSink) Name() string { return "sqs" }

func (s *SQSSink) Deliver(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("analytics: marshal envelope: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("analytics: failed to send SQS message: %w", err)
	}
	return nil
}

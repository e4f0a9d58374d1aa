package sqsgath

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/runner/internal/gatherer"
)

// Sender is the part of *sqs.Client the gatherer uses.
type Sender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

const sendTimeout = 10 * time.Second

type publisher struct {
	client   Sender
	queueUrl string
	logger   *slog.Logger
}

// New creates a gatherer that sends events to a response queue.
func New(client Sender, evalUuid string, responseSqsUrl string, logger *slog.Logger) *gatherer.Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return gatherer.NewStreamer(evalUuid, &publisher{
		client:   client,
		queueUrl: responseSqsUrl,
		logger:   logger.With("component", "sqsgath", "eval_uuid", evalUuid),
	})
}

func (p *publisher) Publish(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to marshal message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		p.logger.Warn("failed to send message", "error", err)
	}
}

// Package queue is the client for the notification message queue.
//
// Delivery is at-least-once: a received message stays in flight for the
// visibility timeout and is delivered again unless it is deleted first.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/pkg/logger"
)

var Module = fx.Module("queue",
	fx.Provide(
		NewSQSClient,
		fx.Annotate(
			func(c *sqs.Client) API { return c },
			fx.As(new(API)),
		),
		NewClient,
	),
)

// Upper bounds enforced by the queue service
const (
	MaxBatchSize = 10
	MaxWaitTime  = 20 * time.Second
)

var (
	ErrQueueNotConfigured = errors.New("queue name not configured")
	ErrQueueNotFound      = errors.New("queue not found")
)

// API is the subset of the SQS client used by Client
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Message is a received message. ReceiptHandle identifies this delivery and
// is what Delete needs; ID is stable across redeliveries.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
}

type ReceiveOptions struct {
	MaxMessages       int32
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

// Depth is the approximate number of messages waiting and in flight
type Depth struct {
	Visible  int64
	InFlight int64
}

// NewSQSClient builds the process-wide SQS client
func NewSQSClient(awsCfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg)
}

type Client struct {
	api API
	log *slog.Logger
}

func NewClient(api API, log *slog.Logger) *Client {
	return &Client{
		api: api,
		log: log.With(logger.Scope("queue")),
	}
}

// Resolve looks up the URL of the queue called name
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrQueueNotConfigured
	}

	out, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		if isQueueMissing(err) {
			return "", fmt.Errorf("resolve queue %q: %w", name, ErrQueueNotFound)
		}
		return "", fmt.Errorf("resolve queue %q: %w", name, err)
	}

	url := aws.ToString(out.QueueUrl)
	if url == "" {
		return "", fmt.Errorf("resolve queue %q: %w", name, ErrQueueNotFound)
	}
	c.log.Debug("queue resolved", slog.String("name", name), slog.String("url", url))
	return url, nil
}

// Send enqueues body and returns the assigned message id
func (c *Client) Send(ctx context.Context, url, body string) (string, error) {
	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		if isQueueMissing(err) {
			return "", fmt.Errorf("send message: %w", ErrQueueNotFound)
		}
		return "", fmt.Errorf("send message: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls for up to opts.MaxMessages messages. An empty slice with
// a nil error means the wait elapsed with nothing to deliver.
func (c *Client) Receive(ctx context.Context, url string, opts ReceiveOptions) ([]Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   clampBatch(opts.MaxMessages),
		WaitTimeSeconds:       int32(min(opts.WaitTime, MaxWaitTime) / time.Second),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	}
	if opts.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(opts.VisibilityTimeout / time.Second)
	}

	out, err := c.api.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			ReceiveCount:  count,
		})
	}
	return msgs, nil
}

// Delete acknowledges a delivery so it is not redelivered
func (c *Client) Delete(ctx context.Context, url, receiptHandle string) error {
	if _, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ApproximateDepth reports queue depth for metrics
func (c *Client) ApproximateDepth(ctx context.Context, url string) (Depth, error) {
	out, err := c.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(url),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		},
	})
	if err != nil {
		return Depth{}, fmt.Errorf("get queue attributes: %w", err)
	}

	visible, _ := strconv.ParseInt(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)], 10, 64)
	inFlight, _ := strconv.ParseInt(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)], 10, 64)
	return Depth{Visible: visible, InFlight: inFlight}, nil
}

func clampBatch(n int32) int32 {
	switch {
	case n <= 0:
		return 1
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

func isQueueMissing(err error) bool {
	var missing *types.QueueDoesNotExist
	if errors.As(err, &missing) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "QueueDoesNotExist", "AWS.SimpleQueueService.NonExistentQueue":
			return true
		}
	}
	return false
}

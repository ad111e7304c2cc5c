// Package queuetest provides an in-memory implementation of queue.API with
// visibility timeouts, for tests that need at-least-once redelivery.
package queuetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

const pollStep = 5 * time.Millisecond

type message struct {
	id             string
	body           string
	receipt        string
	receiveCount   int
	invisibleUntil time.Time
}

// Fake is a single-process queue service holding any number of named queues
type Fake struct {
	mu     sync.Mutex
	queues map[string][]*message // url -> messages
	now    func() time.Time

	// Optional failure injection, consulted on every call
	ResolveErr error
	SendErr    error
	ReceiveErr error
	DeleteErr  error

	// MaxWait caps how long an empty receive blocks
	MaxWait time.Duration

	sends   int
	deletes int
}

func New() *Fake {
	return &Fake{
		queues:  map[string][]*message{},
		now:     time.Now,
		MaxWait: 50 * time.Millisecond,
	}
}

// CreateQueue registers a queue and returns its URL
func (f *Fake) CreateQueue(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := URL(name)
	if _, ok := f.queues[url]; !ok {
		f.queues[url] = nil
	}
	return url
}

// URL is the URL assigned to a queue called name
func URL(name string) string {
	return "https://sqs.local/000000000000/" + name
}

// ExpireVisibility makes every in-flight message visible again, as if its
// visibility timeout had elapsed.
func (f *Fake) ExpireVisibility() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msgs := range f.queues {
		for _, m := range msgs {
			m.invisibleUntil = time.Time{}
		}
	}
}

// Len returns the number of undeleted messages in the queue at url
func (f *Fake) Len(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[url])
}

// Bodies returns the bodies of undeleted messages in send order
func (f *Fake) Bodies(url string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.queues[url]))
	for _, m := range f.queues[url] {
		out = append(out, m.body)
	}
	return out
}

func (f *Fake) Sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func (f *Fake) Deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

func (f *Fake) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ResolveErr != nil {
		return nil, f.ResolveErr
	}
	url := URL(aws.ToString(in.QueueName))
	if _, ok := f.queues[url]; !ok {
		return nil, &types.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(url)}, nil
}

func (f *Fake) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	url := aws.ToString(in.QueueUrl)
	if _, ok := f.queues[url]; !ok {
		return nil, &types.QueueDoesNotExist{Message: aws.String(url)}
	}
	m := &message{id: uuid.NewString(), body: aws.ToString(in.MessageBody)}
	f.queues[url] = append(f.queues[url], m)
	f.sends++
	return &sqs.SendMessageOutput{MessageId: aws.String(m.id)}, nil
}

func (f *Fake) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	wait := min(time.Duration(in.WaitTimeSeconds)*time.Second, f.MaxWait)
	deadline := time.Now().Add(wait)

	for {
		out, err := f.receiveOnce(in)
		if err != nil || len(out.Messages) > 0 || !time.Now().Before(deadline) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollStep):
		}
	}
}

func (f *Fake) receiveOnce(in *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReceiveErr != nil {
		return nil, f.ReceiveErr
	}
	url := aws.ToString(in.QueueUrl)
	msgs, ok := f.queues[url]
	if !ok {
		return nil, &types.QueueDoesNotExist{Message: aws.String(url)}
	}

	limit := int(in.MaxNumberOfMessages)
	if limit <= 0 {
		limit = 1
	}
	visibility := time.Duration(in.VisibilityTimeout) * time.Second
	if in.VisibilityTimeout == 0 {
		visibility = time.Hour
	}

	now := f.now()
	out := &sqs.ReceiveMessageOutput{}
	for _, m := range msgs {
		if len(out.Messages) == limit {
			break
		}
		if now.Before(m.invisibleUntil) {
			continue
		}
		m.receiveCount++
		m.receipt = fmt.Sprintf("%s#%d", m.id, m.receiveCount)
		m.invisibleUntil = now.Add(visibility)
		out.Messages = append(out.Messages, types.Message{
			MessageId:     aws.String(m.id),
			Body:          aws.String(m.body),
			ReceiptHandle: aws.String(m.receipt),
			Attributes: map[string]string{
				string(types.MessageSystemAttributeNameApproximateReceiveCount): strconv.Itoa(m.receiveCount),
			},
		})
	}
	return out, nil
}

// DeleteMessage removes the message only when the receipt handle belongs to
// its latest delivery; stale handles are ignored like the real service does.
func (f *Fake) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}
	url := aws.ToString(in.QueueUrl)
	receipt := aws.ToString(in.ReceiptHandle)
	msgs := f.queues[url]
	for i, m := range msgs {
		if m.receipt == receipt {
			f.queues[url] = append(msgs[:i], msgs[i+1:]...)
			f.deletes++
			break
		}
	}
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *Fake) GetQueueAttributes(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := aws.ToString(in.QueueUrl)
	msgs, ok := f.queues[url]
	if !ok {
		return nil, &types.QueueDoesNotExist{Message: aws.String(url)}
	}
	now := f.now()
	var visible, inFlight int
	for _, m := range msgs {
		if now.Before(m.invisibleUntil) {
			inFlight++
		} else {
			visible++
		}
	}
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(types.QueueAttributeNameApproximateNumberOfMessages):           strconv.Itoa(visible),
			string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible): strconv.Itoa(inFlight),
		},
	}, nil
}

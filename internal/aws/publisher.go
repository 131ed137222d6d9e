package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ErrNoQueue is returned when a message is sent through a Publisher with no queue configured.
var ErrNoQueue = errors.New("no queue url configured")

// Attribute names the Publisher reads for FIFO routing.
const (
	AttrOrderID = "order_id"
	AttrEventID = "event_id"
)

// Publisher sends order events to one SQS queue. For a FIFO queue messages
// are grouped per order and deduplicated on the event id.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// FIFO reports whether the queue URL names a FIFO queue.
func (p *Publisher) FIFO() bool {
	return strings.HasSuffix(p.QueueURL, ".fifo")
}

// SendOrderMessage sends a JSON event body. Non-empty attributes go out as
// String message attributes.
func (p *Publisher) SendOrderMessage(ctx context.Context, messageBody string, attributes map[string]string) error {
	if p.QueueURL == "" {
		return ErrNoQueue
	}
	input := &sqs.SendMessageInput{
		QueueUrl:          &p.QueueURL,
		MessageBody:       &messageBody,
		MessageAttributes: messageAttributes(attributes),
	}
	if p.FIFO() {
		group := attributes[AttrOrderID]
		if group == "" {
			return fmt.Errorf("send message: fifo queue needs %s attribute", AttrOrderID)
		}
		input.MessageGroupId = &group
		if id := attributes[AttrEventID]; id != "" {
			input.MessageDeduplicationId = &id
		}
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func messageAttributes(attributes map[string]string) map[string]sqstypes.MessageAttributeValue {
	keys := make([]string, 0, len(attributes))
	for k, v := range attributes {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	out := make(map[string]sqstypes.MessageAttributeValue, len(keys))
	for _, k := range keys {
		v := attributes[k]
		out[k] = sqstypes.MessageAttributeValue{
			DataType:    awsString("String"),
			StringValue: &v,
		}
	}
	return out
}

func awsString(s string) *string { return &s }

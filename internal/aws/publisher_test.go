package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_SendOrderMessage(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.local/orders")

	err := p.SendOrderMessage(context.Background(), `{"order_id":"o1"}`, map[string]string{
		"order_id": "o1",
		"event_id": "e1",
		"skipped":  "",
	})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "https://sqs.local/orders", *in.QueueUrl)
	assert.Equal(t, `{"order_id":"o1"}`, *in.MessageBody)
	assert.Len(t, in.MessageAttributes, 2)
	assert.Equal(t, "o1", *in.MessageAttributes["order_id"].StringValue)
	assert.Equal(t, "e1", *in.MessageAttributes["event_id"].StringValue)
}

func TestPublisher_Errors(t *testing.T) {
	err := NewPublisher(&fakeSQS{}, "").SendOrderMessage(context.Background(), "{}", nil)
	assert.ErrorIs(t, err, ErrNoQueue)

	boom := errors.New("boom")
	err = NewPublisher(&fakeSQS{err: boom}, "q").SendOrderMessage(context.Background(), "{}", nil)
	assert.ErrorIs(t, err, boom)
}

func TestPublisher_FIFO(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.local/orders.fifo")
	require.True(t, p.FIFO())

	err := p.SendOrderMessage(context.Background(), "{}", map[string]string{AttrOrderID: "o1", AttrEventID: "e1"})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)
	assert.Equal(t, "o1", *fake.inputs[0].MessageGroupId)
	assert.Equal(t, "e1", *fake.inputs[0].MessageDeduplicationId)

	err = p.SendOrderMessage(context.Background(), "{}", nil)
	require.Error(t, err)
	assert.Len(t, fake.inputs, 1)
}

func TestPublisher_StandardQueueHasNoGroup(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "https://sqs.local/orders")
	require.NoError(t, p.SendOrderMessage(context.Background(), "{}", map[string]string{AttrOrderID: "o1"}))
	assert.Nil(t, fake.inputs[0].MessageGroupId)
	assert.Nil(t, fake.inputs[0].MessageDeduplicationId)
}

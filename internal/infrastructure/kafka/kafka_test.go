package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	messages []kafka.Message
	errs     []error
	cancel   context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, timeout: time.Second}

	err := p.Publish(context.Background(), "ItemAddedToCart", map[string]string{"id": "p1"})

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "ItemAddedToCart", string(writer.messages[0].Key))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, "p1", decoded["id"])

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestProducer_PublishError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("no brokers")}
	p := &Producer{writer: writer, timeout: time.Second}

	assert.Error(t, p.Publish(context.Background(), "k", "v"))
}

func TestProducer_UnmarshalableEvent(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, timeout: time.Second}

	err := p.Publish(context.Background(), "k", make(chan int))
	assert.ErrorContains(t, err, "failed to marshal event")
}

func TestConsumer_ConsumeUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{
		messages: []kafka.Message{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
		},
		errs:   []error{errors.New("transient")},
		cancel: cancel,
	}
	c := &Consumer{reader: reader, logger: zap.NewNop()}

	var keys []string
	err := c.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		keys = append(keys, string(key))
		return errors.New("handler errors do not stop the loop")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, keys)
}

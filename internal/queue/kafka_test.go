package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.Publish(context.Background(), "patient-1", []byte(`{"type":"family_updated"}`)))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "patient-1", string(msg.Key))
	assert.JSONEq(t, `{"type":"family_updated"}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "application/json", string(msg.Headers[0].Value))
	assert.False(t, msg.Time.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), "patient-1", []byte("{}"))
	assert.ErrorContains(t, err, "patient-1")
	assert.ErrorContains(t, err, "broker down")
}

func TestCreateTopic_NoBrokers(t *testing.T) {
	assert.Error(t, CreateTopic(nil, "t", 1, 1))
}

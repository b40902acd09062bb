package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers("localhost:9092"), WithCompression("zstd"))
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}

	payload := map[string]interface{}{"symbol": "TCS", "predicted_class": 1}
	require.NoError(t, p.Publish(context.Background(), "prediction-logs", []byte("TCS"), payload))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "prediction-logs", w.msgs[0].Topic)
	assert.Equal(t, []byte("TCS"), w.msgs[0].Key)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "TCS", decoded["symbol"])
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{writer: &fakeWriter{err: boom}}

	err := p.Publish(context.Background(), "t", nil, "raw")
	assert.ErrorIs(t, err, boom)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}

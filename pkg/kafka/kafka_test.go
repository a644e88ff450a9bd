package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

type sample struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

func (s sample) PartitionKey() string { return s.ID }

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader serves msgs in order, then fails every fetch with err. When err
// is nil it cancels the consumer instead.
type fakeReader struct {
	msgs      []kafka.Message
	err       error
	cancel    context.CancelFunc
	fetches   int
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.fetches++
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		return msg, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	r.cancel()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"op":"deindex","id":"9"}`))
	require.NoError(t, err)
	assert.Equal(t, sample{Op: "deindex", ID: "9"}, got)

	_, err = DecodeJSON[sample]([]byte(`{`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestNewProducer(t *testing.T) {
	cfg := config.KafkaConfig{Brokers: []string{"localhost:9092"}}

	p := NewProducer[sample](cfg, "geoindex.index-complete")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "geoindex.index-complete", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	require.NoError(t, p.Close())
}

func TestPublishKeysMessagesByPartitionKey(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer[sample](w, "geoindex.document-events")

	require.NoError(t, p.Publish(context.Background(), sample{Op: "index", ID: "42"}))
	require.NoError(t, p.PublishBatch(context.Background(), []sample{{Op: "index", ID: "7"}, {Op: "deindex", ID: "42"}}))
	require.NoError(t, p.PublishBatch(context.Background(), nil))

	require.Len(t, w.msgs, 3)
	var keys []string
	for _, m := range w.msgs {
		keys = append(keys, string(m.Key))
	}
	assert.Equal(t, []string{"42", "7", "42"}, keys)

	var decoded sample
	require.NoError(t, json.Unmarshal(w.msgs[2].Value, &decoded))
	assert.Equal(t, sample{Op: "deindex", ID: "42"}, decoded)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishRejectsEventWithoutKey(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer[sample](w, "geoindex.document-events")

	err := p.PublishBatch(context.Background(), []sample{{ID: "1"}, {Op: "index"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, w.msgs)
}

func TestPublishReportsBrokerFailure(t *testing.T) {
	cause := errors.New("leader not available")
	p := newProducer[sample](&fakeWriter{err: cause}, "geoindex.document-events")

	err := p.Publish(context.Background(), sample{ID: "1"})
	assert.ErrorIs(t, err, apperrors.ErrBrokerUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 503, apperrors.HTTPStatusCode(err))
}

func TestStartCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs:   []kafka.Message{{Offset: 3, Key: []byte("a")}, {Offset: 4, Key: []byte("b")}},
		cancel: cancel,
	}
	var handled []string
	c := &Consumer{
		reader:     r,
		logger:     slog.Default(),
		retryDelay: time.Millisecond,
		handler: func(_ context.Context, key, _ []byte) error {
			handled = append(handled, string(key))
			return nil
		},
	}

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []string{"a", "b"}, handled)
	assert.Equal(t, []int64{3, 4}, r.committed)
	assert.True(t, r.closed)
}

func TestStartWaitsBetweenFailedFetches(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r := &fakeReader{err: errors.New("broker down")}
	c := &Consumer{
		reader:     r,
		logger:     slog.Default(),
		retryDelay: 40 * time.Millisecond,
		handler:    func(context.Context, []byte, []byte) error { return nil },
	}

	require.NoError(t, c.Start(ctx))
	assert.LessOrEqual(t, r.fetches, 4)
	assert.GreaterOrEqual(t, r.fetches, 1)
	assert.True(t, r.closed)
}

func TestProcessRetriesSameMessage(t *testing.T) {
	var keys []string
	c := &Consumer{
		logger:     slog.Default(),
		retryDelay: time.Millisecond,
		handler: func(_ context.Context, key, _ []byte) error {
			keys = append(keys, string(key))
			if len(keys) < 3 {
				return errors.New("redis down")
			}
			return nil
		},
	}
	assert.True(t, c.process(context.Background(), kafka.Message{Offset: 7, Key: []byte("k")}))
	assert.Equal(t, []string{"k", "k", "k"}, keys)
}

func TestProcessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		logger:     slog.Default(),
		retryDelay: time.Hour,
		handler: func(context.Context, []byte, []byte) error {
			cancel()
			return errors.New("redis down")
		},
	}
	assert.False(t, c.process(ctx, kafka.Message{}))
}

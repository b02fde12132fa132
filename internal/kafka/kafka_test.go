package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, log: quietLogger()}

	err := p.Publish(context.Background(), "notifications", "b-1", []byte(`{"type":"booking_created"}`))

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "notifications", w.msgs[0].Topic)
	assert.Equal(t, []byte("b-1"), w.msgs[0].Key)
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, log: quietLogger()}

	err := p.Publish(context.Background(), "notifications", "b-1", nil)
	assert.ErrorContains(t, err, "broker down")
}

func TestProducer_CheckConnectionWithoutBrokers(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, log: quietLogger()}
	assert.Error(t, p.CheckConnection(context.Background()))
}

func TestConsumer_ConsumeEvents(t *testing.T) {
	ev := domain.Event{Type: domain.EventBookingCreated, BookingID: "b-1", Recipients: []string{"customer-1"}}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	r := &fakeReader{queue: []kafka.Message{
		{Value: payload, Offset: 1},
		{Value: []byte("not json"), Offset: 2},
	}}
	c := &Consumer{reader: r, log: quietLogger()}

	var got []domain.Event
	err = c.ConsumeEvents(context.Background(), func(_ context.Context, e domain.Event) error {
		got = append(got, e)
		return nil
	})

	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, got, 1)
	assert.Equal(t, "b-1", got[0].BookingID)
	assert.Len(t, r.committed, 2)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	payload, err := json.Marshal(domain.Event{Type: domain.EventBookingCreated})
	require.NoError(t, err)

	r := &fakeReader{queue: []kafka.Message{{Value: payload}}}
	c := &Consumer{reader: r, log: quietLogger()}

	err = c.ConsumeEvents(context.Background(), func(context.Context, domain.Event) error {
		return errors.New("sink down")
	})

	assert.ErrorContains(t, err, "sink down")
	assert.Empty(t, r.committed)
}

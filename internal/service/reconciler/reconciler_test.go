package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockRefunder struct {
	mock.Mock
}

func (m *MockRefunder) Refund(ctx context.Context, req gateway.RefundRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func enqueue(t *testing.T, store *memory.Store, msgs ...domain.OutboxMessage) {
	t.Helper()
	err := store.InTx(context.Background(), func(tx repository.Tx) error {
		for i := range msgs {
			if err := tx.Enqueue(context.Background(), &msgs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func newReconciler(store *memory.Store, pub Publisher, ref Refunder) *Reconciler {
	return NewReconciler(store, pub, ref, "notifications", quietLogger(),
		WithClock(func() time.Time { return now }),
		WithBackoff(Backoff{Base: time.Second, Max: time.Minute}),
	)
}

func TestRunOnce_PublishesNotifications(t *testing.T) {
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	payload := []byte(`{"type":"booking_created"}`)
	enqueue(t, store, domain.OutboxMessage{ID: "m-1", Kind: domain.OutboxKindNotify, Key: "b-1", Payload: payload, NextAttemptAt: now})

	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, "notifications", "b-1", payload).Return(nil).Once()

	delivered, err := newReconciler(store, pub, &MockRefunder{}).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	pub.AssertExpectations(t)

	msgs := store.Outbox()
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].DoneAt)
	assert.Equal(t, 1, msgs[0].Attempts)
}

func TestRunOnce_DispatchesRefunds(t *testing.T) {
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	payload, err := json.Marshal(domain.RefundCommand{PaymentID: "y-1", BookingID: "b-1", GatewayRef: "gw-1", Amount: decimal.NewFromInt(20000)})
	require.NoError(t, err)
	enqueue(t, store, domain.OutboxMessage{ID: "m-1", Kind: domain.OutboxKindRefund, Key: "y-1", Payload: payload, NextAttemptAt: now})

	ref := &MockRefunder{}
	ref.On("Refund", mock.Anything, mock.MatchedBy(func(req gateway.RefundRequest) bool {
		return req.PaymentID == "y-1" && req.Reference == "gw-1" && req.Amount.IntPart() == 20000
	})).Return(nil).Once()

	delivered, err := newReconciler(store, &MockPublisher{}, ref).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	ref.AssertExpectations(t)
}

func TestRunOnce_FailureSchedulesRetry(t *testing.T) {
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	enqueue(t, store, domain.OutboxMessage{ID: "m-1", Kind: domain.OutboxKindRefund, Key: "y-1", Payload: []byte(`{"payment_id":"y-1"}`), NextAttemptAt: now})

	ref := &MockRefunder{}
	ref.On("Refund", mock.Anything, mock.Anything).Return(errors.New("gateway down")).Once()

	delivered, err := newReconciler(store, &MockPublisher{}, ref).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, delivered)

	msgs := store.Outbox()
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].DoneAt)
	assert.Equal(t, 1, msgs[0].Attempts)
	assert.Equal(t, "gateway down", msgs[0].LastError)
	// first retry: jitter picks the top of [0, 1s)
	assert.Equal(t, now.Add(time.Second), msgs[0].NextAttemptAt)
}

func TestRunOnce_SkipsMessagesNotDue(t *testing.T) {
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	enqueue(t, store, domain.OutboxMessage{ID: "m-1", Kind: domain.OutboxKindNotify, Key: "b-1", NextAttemptAt: now.Add(time.Minute)})

	delivered, err := newReconciler(store, &MockPublisher{}, &MockRefunder{}).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
}

func TestRunOnce_UnknownKindIsRetried(t *testing.T) {
	store := memory.NewStore(memory.WithClock(func() time.Time { return now }))
	enqueue(t, store, domain.OutboxMessage{ID: "m-1", Kind: "carrier-pigeon", Key: "b-1", NextAttemptAt: now})

	_, err := newReconciler(store, &MockPublisher{}, &MockRefunder{}).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Contains(t, store.Outbox()[0].LastError, "unknown outbox kind")
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newReconciler(store, &MockPublisher{}, &MockRefunder{}).Run(ctx, time.Hour)
	assert.NoError(t, err)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(5))
	assert.Equal(t, 10*time.Second, b.Delay(100))
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, time.Duration(0), Backoff{}.Delay(3))
}

func TestBackoff_RandomizedWithinFactor(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	for attempt := 1; attempt <= 10; attempt++ {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Minute+time.Minute/2)
	}
}

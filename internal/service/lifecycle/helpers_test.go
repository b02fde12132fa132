package lifecycle

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	customer      = domain.Actor{ID: "customer-1", Role: domain.RoleCustomer}
	otherCustomer = domain.Actor{ID: "customer-2", Role: domain.RoleCustomer}
	agent         = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}
	otherAgent    = domain.Actor{ID: "agent-2", Role: domain.RoleAgent}
	admin         = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	otherAdmin    = domain.Actor{ID: "admin-2", Role: domain.RoleAdmin}
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockPackageCache struct {
	mock.Mock
}

func (m *MockPackageCache) InvalidateApprovedPackages(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store *memory.Store
	gw    *MockGateway
	clock *testClock
	coord *Coordinator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore(memory.WithClock(clock.Now))
	gw := &MockGateway{}
	base := []Option{
		WithClock(clock.Now),
		WithLogger(logger),
		WithPaymentTTL(30 * time.Minute),
		WithGatewayTimeout(time.Second),
	}
	return &fixture{
		store: store,
		gw:    gw,
		clock: clock,
		coord: NewCoordinator(store, gw, append(base, opts...)...),
	}
}

// chargeOK makes every charge succeed with the same gateway reference.
func (f *fixture) chargeOK() *fixture {
	f.gw.On("Charge", mock.Anything, mock.Anything).Return("gw-ref", nil)
	return f
}

func (f *fixture) tourDate() time.Time {
	return f.clock.Now().AddDate(0, 0, 30)
}

func (f *fixture) approvedPackage(t *testing.T, price int64) *domain.Package {
	t.Helper()
	ctx := context.Background()

	pkg, err := f.coord.SubmitPackage(ctx, agent, SubmitPackageInput{Title: "Bali", Price: decimal.NewFromInt(price)})
	require.NoError(t, err)
	pkg, err = f.coord.DecidePackage(ctx, admin, pkg.ID, domain.ActionApprove)
	require.NoError(t, err)
	return pkg
}

func (f *fixture) pendingBooking(t *testing.T) *domain.Booking {
	t.Helper()
	pkg := f.approvedPackage(t, 20000)

	b, err := f.coord.CreateBooking(context.Background(), customer, CreateBookingInput{
		PackageID:     pkg.ID,
		TouristsCount: 2,
		TourStartDate: f.tourDate(),
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) agentApprovedBooking(t *testing.T) *domain.Booking {
	t.Helper()
	b := f.pendingBooking(t)

	b, err := f.coord.AgentDecision(context.Background(), agent, b.ID, domain.ActionApprove)
	require.NoError(t, err)
	return b
}

// paidBooking returns an agent-approved booking with a SUCCESS payment.
// The fixture must have been set up with chargeOK.
func (f *fixture) paidBooking(t *testing.T) (*domain.Booking, *domain.Payment) {
	t.Helper()
	ctx := context.Background()
	b := f.agentApprovedBooking(t)

	p, err := f.coord.InitiatePayment(ctx, customer, b.ID, "CARD")
	require.NoError(t, err)
	p, err = f.coord.ResolvePayment(ctx, p.ID, domain.PaymentStatusSuccess)
	require.NoError(t, err)
	return b, p
}

func (f *fixture) events(t *testing.T) []domain.Event {
	t.Helper()

	var out []domain.Event
	for _, m := range f.store.Outbox() {
		if m.Kind != domain.OutboxKindNotify {
			continue
		}
		var ev domain.Event
		require.NoError(t, json.Unmarshal(m.Payload, &ev))
		out = append(out, ev)
	}
	return out
}

func (f *fixture) countEvents(t *testing.T, eventType string) int {
	t.Helper()

	n := 0
	for _, ev := range f.events(t) {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func (f *fixture) refunds(t *testing.T) []domain.RefundCommand {
	t.Helper()

	var out []domain.RefundCommand
	for _, m := range f.store.Outbox() {
		if m.Kind != domain.OutboxKindRefund {
			continue
		}
		var cmd domain.RefundCommand
		require.NoError(t, json.Unmarshal(m.Payload, &cmd))
		out = append(out, cmd)
	}
	return out
}

func (f *fixture) booking(t *testing.T, id string) *domain.Booking {
	t.Helper()
	b, err := f.store.GetBooking(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) payment(t *testing.T, id string) *domain.Payment {
	t.Helper()
	p, err := f.store.GetPayment(context.Background(), id)
	require.NoError(t, err)
	return p
}

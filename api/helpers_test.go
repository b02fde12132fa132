package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/Domenick1991/tourbooking/internal/service/catalog"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec"

// tokenResolver accepts tokens of the form "ROLE:id".
type tokenResolver struct{}

func (tokenResolver) ResolveActor(credential string) (domain.Actor, error) {
	rawRole, id, ok := strings.Cut(credential, ":")
	if !ok || id == "" {
		return domain.Actor{}, domain.Unauthenticated("malformed token")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Actor{}, domain.Unauthenticated("unknown role")
	}
	return domain.Actor{ID: id, Role: role}, nil
}

type stubGateway struct{}

func (stubGateway) Charge(_ context.Context, req gateway.ChargeRequest) (string, error) {
	return "ref-" + req.PaymentID, nil
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.NewStore()
	coord := lifecycle.NewCoordinator(store, stubGateway{}, lifecycle.WithLogger(log))
	router := NewRouter(Services{
		Lifecycle:     coord,
		Catalog:       catalog.NewCatalogService(store, nil, log),
		Actors:        tokenResolver{},
		WebhookSecret: webhookSecret,
		Log:           log,
	})
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signedCallback signs body for paymentID at the current time with the server secret.
func (s *testServer) signedCallback(paymentID string, body []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	ts := time.Now().Unix()
	return s.callback(paymentID, body, ts, gateway.Sign(paymentID, ts, body, webhookSecret))
}

func (s *testServer) callback(paymentID string, body []byte, timestamp int64, signature string) *httptest.ResponseRecorder {
	s.t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gateway/payments/"+paymentID+"/resolve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(gateway.SignatureHeader, signature)
	req.Header.Set(gateway.TimestampHeader, strconv.FormatInt(timestamp, 10))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals the recorder body into a generic map.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return envelope["code"].(string)
}

const (
	customerToken = "CUSTOMER:customer-1"
	strangerToken = "CUSTOMER:customer-2"
	agentToken    = "AGENT:agent-1"
	adminToken    = "ADMIN:admin-1"
)

func tourDate() string {
	return time.Now().UTC().AddDate(0, 0, 30).Format(dateLayout)
}

func (s *testServer) approvedPackage() string {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/v1/agent/packages", agentToken, map[string]any{
		"title": "Bali", "destination": "Indonesia", "price": 20000,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(s.t, w)["id"].(string)

	w = s.do(http.MethodPost, "/api/v1/admin/packages/"+id+"/decision", adminToken, map[string]string{"decision": "APPROVE"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func (s *testServer) agentApprovedBooking() string {
	s.t.Helper()
	packageID := s.approvedPackage()

	w := s.do(http.MethodPost, "/api/v1/customer/bookings", customerToken, map[string]any{
		"package_id": packageID, "tourists_count": 2, "tour_start_date": tourDate(),
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(s.t, w)["id"].(string)

	w = s.do(http.MethodPost, "/api/v1/agent/bookings/"+id+"/decision", agentToken, map[string]string{"decision": "APPROVE"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func (s *testServer) pendingPayment() string {
	s.t.Helper()
	bookingID := s.agentApprovedBooking()
	w := s.do(http.MethodPost, "/api/v1/customer/bookings/"+bookingID+"/payments", customerToken, map[string]string{"method": "card"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(s.t, w)["id"].(string)
}

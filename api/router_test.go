package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_FullBookingLifecycle(t *testing.T) {
	s := newTestServer(t)
	bookingID := s.agentApprovedBooking()

	w := s.do(http.MethodPost, "/api/v1/customer/bookings/"+bookingID+"/payments", customerToken, map[string]string{"method": "card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode(t, w)
	assert.Equal(t, "PENDING", payment["status"])
	paymentID := payment["id"].(string)

	body, err := json.Marshal(map[string]string{"outcome": "SUCCESS"})
	require.NoError(t, err)
	w = s.signedCallback(paymentID, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SUCCESS", decode(t, w)["status"])

	w = s.do(http.MethodPost, "/api/v1/admin/bookings/"+bookingID+"/decision", adminToken, map[string]string{"decision": "CONFIRM"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CONFIRMED", decode(t, w)["status"])

	w = s.do(http.MethodGet, "/api/v1/bookings/"+bookingID, customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	booking := decode(t, w)
	assert.Equal(t, "CONFIRMED", booking["status"])
	assert.Equal(t, "20000", booking["amount"])
	assert.Empty(t, booking["allowed_actions"])

	w = s.do(http.MethodGet, "/api/v1/admin/payments?status=SUCCESS", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, []any{"REFUND"}, payments[0]["allowed_actions"])
}

func TestRouter_ConfirmWithoutPaymentConflicts(t *testing.T) {
	s := newTestServer(t)
	bookingID := s.agentApprovedBooking()

	w := s.do(http.MethodPost, "/api/v1/admin/bookings/"+bookingID+"/decision", adminToken, map[string]string{"decision": "CONFIRM"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, w))
}

func TestRouter_MissingTokenIsUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/customer/bookings", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, w))
}

func TestRouter_WrongRoleIsForbidden(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"customer on admin route", http.MethodGet, "/api/v1/admin/bookings", customerToken},
		{"agent on customer route", http.MethodGet, "/api/v1/customer/bookings", agentToken},
		{"admin on agent route", http.MethodPost, "/api/v1/agent/packages", adminToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, nil)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "FORBIDDEN", errorCode(t, w))
		})
	}
}

func TestRouter_StrangerCannotReadBooking(t *testing.T) {
	s := newTestServer(t)
	bookingID := s.agentApprovedBooking()

	w := s.do(http.MethodGet, "/api/v1/bookings/"+bookingID, strangerToken, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_PublicCatalogueListsApprovedOnly(t *testing.T) {
	s := newTestServer(t)
	approvedID := s.approvedPackage()
	w := s.do(http.MethodPost, "/api/v1/agent/packages", agentToken, map[string]any{"title": "Draft", "price": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	pendingID := decode(t, w)["id"].(string)

	w = s.do(http.MethodGet, "/api/v1/packages", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var packages []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &packages))
	require.Len(t, packages, 1)
	assert.Equal(t, approvedID, packages[0]["id"])

	w = s.do(http.MethodGet, "/api/v1/packages/"+pendingID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_BadInputIsValidationError(t *testing.T) {
	s := newTestServer(t)
	packageID := s.approvedPackage()

	tests := []struct {
		name string
		path string
		body map[string]any
	}{
		{"bad date", "/api/v1/customer/bookings", map[string]any{"package_id": packageID, "tourists_count": 1, "tour_start_date": "01/02/2030"}},
		{"zero tourists", "/api/v1/customer/bookings", map[string]any{"package_id": packageID, "tourists_count": 0, "tour_start_date": tourDate()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, tt.path, customerToken, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
		})
	}

	w := s.do(http.MethodPost, "/api/v1/admin/packages/"+packageID+"/decision", adminToken, map[string]string{"decision": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_GatewayCallbackRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)
	bookingID := s.agentApprovedBooking()
	w := s.do(http.MethodPost, "/api/v1/customer/bookings/"+bookingID+"/payments", customerToken, map[string]string{"method": "card"})
	require.Equal(t, http.StatusCreated, w.Code)
	paymentID := decode(t, w)["id"].(string)

	body := []byte(`{"outcome":"SUCCESS"}`)
	ts := time.Now().Unix()
	w = s.callback(paymentID, body, ts, gateway.Sign(paymentID, ts, body, "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/payments/"+paymentID, customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PENDING", decode(t, w)["status"])
}

func TestRouter_AdminDeletesPackageAfterRequest(t *testing.T) {
	s := newTestServer(t)
	packageID := s.approvedPackage()

	w := s.do(http.MethodPost, "/api/v1/agent/packages/"+packageID+"/delete-request", agentToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "PENDING_DELETE", decode(t, w)["status"])

	w = s.do(http.MethodDelete, "/api/v1/admin/packages/"+packageID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/admin/packages/"+packageID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CustomerCancelThenHide(t *testing.T) {
	s := newTestServer(t)
	packageID := s.approvedPackage()
	w := s.do(http.MethodPost, "/api/v1/customer/bookings", customerToken, map[string]any{
		"package_id": packageID, "tourists_count": 1, "tour_start_date": tourDate(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bookingID := decode(t, w)["id"].(string)

	w = s.do(http.MethodPost, "/api/v1/customer/bookings/"+bookingID+"/cancel", customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CANCELLED_BY_CUSTOMER", decode(t, w)["status"])

	w = s.do(http.MethodPost, "/api/v1/customer/bookings/"+bookingID+"/hide", customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/customer/bookings", customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestRouter_AgentEditSendsPackageBackToReview(t *testing.T) {
	s := newTestServer(t)
	packageID := s.approvedPackage()

	w := s.do(http.MethodPut, "/api/v1/agent/packages/"+packageID, agentToken, map[string]any{
		"title": "Bali deluxe", "destination": "Indonesia", "price": 35000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decode(t, w)
	assert.Equal(t, "PENDING", edited["status"])
	assert.Equal(t, "Bali deluxe", edited["title"])

	w = s.do(http.MethodGet, "/api/v1/packages/"+packageID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/v1/agent/packages/"+packageID, "AGENT:agent-2", map[string]any{
		"title": "Hijack", "price": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_GatewayCallbackCannotBeReplayedOnAnotherPayment(t *testing.T) {
	s := newTestServer(t)
	first := s.pendingPayment()
	second := s.pendingPayment()

	body := []byte(`{"outcome":"SUCCESS"}`)
	ts := time.Now().Unix()
	signature := gateway.Sign(first, ts, body, webhookSecret)

	w := s.callback(first, body, ts, signature)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.callback(second, body, ts, signature)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/payments/"+second, customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PENDING", decode(t, w)["status"])
}

func TestRouter_GatewayCallbackRejectsStaleTimestamp(t *testing.T) {
	s := newTestServer(t)
	paymentID := s.pendingPayment()

	body := []byte(`{"outcome":"SUCCESS"}`)
	ts := time.Now().Add(-gateway.CallbackTolerance - time.Minute).Unix()
	w := s.callback(paymentID, body, ts, gateway.Sign(paymentID, ts, body, webhookSecret))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AdminPaymentStats(t *testing.T) {
	s := newTestServer(t)
	paymentID := s.pendingPayment()
	w := s.signedCallback(paymentID, []byte(`{"outcome":"SUCCESS"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.pendingPayment()

	w = s.do(http.MethodGet, "/api/v1/admin/payments/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode(t, w)
	assert.EqualValues(t, 2, stats["total_payments"])
	assert.EqualValues(t, 1, stats["pending_payments"])
	assert.EqualValues(t, 1, stats["success_payments"])
	assert.EqualValues(t, 0, stats["refunded_payments"])

	w = s.do(http.MethodGet, "/api/v1/admin/payments/stats", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// Package gateway talks to the external payment gateway. Charges are
// asynchronous: Charge only registers the payment and returns the gateway
// reference, the outcome arrives later through the signed callback.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type ChargeRequest struct {
	PaymentID string          `json:"payment_id"`
	BookingID string          `json:"booking_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

type RefundRequest struct {
	PaymentID string          `json:"payment_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

type chargeResponse struct {
	Reference string `json:"reference"`
}

// statusError is a non-2xx answer from the gateway.
type statusError struct {
	path   string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway %s returned %d: %s", e.path, e.status, e.body)
}

// rejected reports a 4xx: the gateway is up and refused this request.
func (e *statusError) rejected() bool {
	return e.status >= 400 && e.status < 500
}

// countsAsSuccess keeps request-level rejections out of the breaker counts.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.rejected()
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
}

func NewClient(cfg config.GatewayConfig, log logrus.FieldLogger) *Client {
	maxFailures := uint32(cfg.BreakerMaxFailures)
	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpen(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// Charge registers a payment with the gateway and returns its reference.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	var resp chargeResponse
	if err := c.post(ctx, "/charges", req.PaymentID, req, &resp); err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", domain.Wrap(domain.CodeGatewayError, "payment gateway returned no reference", nil)
	}
	return resp.Reference, nil
}

// Refund returns the money of a settled payment. The payment id is sent as
// idempotency key, so repeating a refund never pays out twice.
func (c *Client) Refund(ctx context.Context, req RefundRequest) error {
	return c.post(ctx, "/refunds", "refund-"+req.PaymentID, req, nil)
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doPost(ctx, path, idempotencyKey, body, out)
	})
	return classify(err)
}

func (c *Client) doPost(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{path: path, status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Wrap(domain.CodeGatewayError, "payment gateway unavailable", err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.Wrap(domain.CodeGatewayTimeout, "payment gateway timed out", err)
	}
	return domain.Wrap(domain.CodeGatewayError, "payment gateway request failed", err)
}

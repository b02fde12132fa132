package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	// SignatureHeader carries hex(HMAC_SHA256(payment_id "." timestamp "." body)).
	SignatureHeader = "X-Gateway-Signature"
	// TimestampHeader carries the unix seconds the callback was signed at.
	TimestampHeader = "X-Gateway-Timestamp"

	// CallbackTolerance bounds the clock skew accepted between signer and receiver.
	CallbackTolerance = 5 * time.Minute
)

// Sign binds a callback body to the payment it resolves and the moment it was sent,
// so a captured callback cannot be replayed against another payment or much later.
func Sign(paymentID string, timestamp int64, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(paymentID))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks the signature and timestamp headers of a callback for paymentID.
func VerifyCallback(paymentID string, body []byte, timestamp, signature, secret string, now time.Time) bool {
	if signature == "" || secret == "" || paymentID == "" {
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > CallbackTolerance || skew < -CallbackTolerance {
		return false
	}
	expected := Sign(paymentID, ts, body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Package signature authenticates webhook deliveries signed with a shared
// secret: HMAC-SHA256 over "id.timestamp.body", base64 encoded, carried in a
// space separated list of "version,signature" candidates.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// SecretPrefix tags provisioned signing secrets. The remainder is the base64 key.
const SecretPrefix = "whsec_"

// DefaultTolerance bounds the replay window in both directions.
const DefaultTolerance = 5 * time.Minute

// Verifier checks deliveries against a single shared secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret    string
	tolerance time.Duration
	nowFunc   func() time.Time
}

// NewVerifier returns a Verifier for secret. A non-positive tolerance means DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		nowFunc:   time.Now,
	}
}

// Configured reports whether a secret was provisioned.
func (v *Verifier) Configured() bool {
	return v != nil && v.secret != ""
}

// Verify reports whether signatureHeader carries a valid signature for the delivery.
func (v *Verifier) Verify(body []byte, deliveryID, timestamp, signatureHeader string) bool {
	return verifyAt(body, deliveryID, timestamp, signatureHeader, v.secret, v.nowFunc(), v.tolerance)
}

// Verify checks a delivery against secret using DefaultTolerance and the
// current clock. All malformed input yields false.
func Verify(body []byte, deliveryID, timestamp, signatureHeader, secret string) bool {
	return verifyAt(body, deliveryID, timestamp, signatureHeader, secret, time.Now(), DefaultTolerance)
}

func verifyAt(body []byte, deliveryID, timestamp, signatureHeader, secret string, now time.Time, tolerance time.Duration) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	// compare against the window bounds so extreme values cannot overflow
	window := int64(tolerance / time.Second)
	if ts < now.Unix()-window || ts > now.Unix()+window {
		return false
	}

	key, ok := decodeSecret(secret)
	if !ok {
		return false
	}
	expected := []byte(compute(key, deliveryID, timestamp, body))

	for _, candidate := range strings.Fields(signatureHeader) {
		_, sig, found := strings.Cut(candidate, ",")
		if !found {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(sig), expected) == 1 {
			return true
		}
	}
	return false
}

// Sign returns a "v1,<signature>" header value for the delivery.
func Sign(body []byte, deliveryID, timestamp, secret string) (string, bool) {
	key, ok := decodeSecret(secret)
	if !ok {
		return "", false
	}
	return "v1," + compute(key, deliveryID, timestamp, body), true
}

func decodeSecret(secret string) ([]byte, bool) {
	raw := strings.TrimPrefix(secret, SecretPrefix)
	if raw == "" {
		return nil, false
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) == 0 {
		return nil, false
	}
	return key, true
}

func compute(key []byte, deliveryID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(deliveryID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

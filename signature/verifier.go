package signature

import (
	"crypto/hmac"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalid is returned when a signature does not match.
	ErrInvalid = errors.New("signature: invalid")

	// ErrStale is returned when a timestamped signature is outside the
	// tolerance window.
	ErrStale = errors.New("signature: timestamp outside tolerance")
)

// VerifyBody reports whether sig is the platform signature of body.
// The comparison is constant-time.
func VerifyBody(body []byte, secret, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	expected := SignBody(body, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Verify checks whether sig matches the queue signature for the payload,
// secret, and timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	expected := Sign(payload, secret, timestamp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// VerifyTimestamped validates a queue signature whose timestamp arrives as a
// header string. Requests older or newer than tolerance are rejected before
// the HMAC is computed.
func VerifyTimestamped(payload []byte, secret, timestampHeader, sig string, tolerance time.Duration, now time.Time) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestampHeader), 10, 64)
	if err != nil {
		return ErrInvalid
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if tolerance > 0 && skew > tolerance {
		return ErrStale
	}
	if !Verify(payload, secret, ts, sig) {
		return ErrInvalid
	}
	return nil
}

// VerifyBearer checks an Authorization header of the form "Bearer <secret>".
// An empty configured secret never verifies.
func VerifyBearer(authorization, secret string) bool {
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

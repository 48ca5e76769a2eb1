package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/xraph/replydesk/signature"
)

func TestSignBodyKnownVector(t *testing.T) {
	body := []byte(`{"destination":"U123","events":[]}`)
	secret := "channel-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got := signature.SignBody(body, secret); got != expected {
		t.Errorf("SignBody() = %q, want %q", got, expected)
	}
}

func TestVerifyBody(t *testing.T) {
	body := []byte(`{"events":[{"type":"message"}]}`)
	sig := signature.SignBody(body, "s3cret")

	tests := []struct {
		name   string
		body   []byte
		secret string
		sig    string
		want   bool
	}{
		{"valid", body, "s3cret", sig, true},
		{"tampered body", []byte(`{"events":[]}`), "s3cret", sig, false},
		{"wrong secret", body, "other", sig, false},
		{"empty signature", body, "s3cret", "", false},
		{"empty secret", body, "", sig, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signature.VerifyBody(tt.body, tt.secret, tt.sig); got != tt.want {
				t.Errorf("VerifyBody() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"eventId":"evt_01"}`)
	secret := "queue-secret"
	timestamp := int64(1700000000)

	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	expected := "v1=" + hex.EncodeToString(mac.Sum(nil))

	if got := signature.Sign(payload, secret, timestamp); got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestVerifyWrongTimestamp(t *testing.T) {
	payload := []byte(`{"eventId":"evt_01"}`)
	sig := signature.Sign(payload, "queue-secret", 1700000004)

	if signature.Verify(payload, "queue-secret", 1700000005, sig) {
		t.Error("Verify() returned true for wrong timestamp")
	}
}

func TestVerifyTimestamped(t *testing.T) {
	payload := []byte(`{"eventId":"evt_01"}`)
	now := time.Unix(1700000100, 0)
	ts := now.Add(-30 * time.Second).Unix()
	sig := signature.Sign(payload, "queue-secret", ts)
	header := strconv.FormatInt(ts, 10)

	if err := signature.VerifyTimestamped(payload, "queue-secret", header, sig, time.Minute, now); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	late := now.Add(5 * time.Minute)
	if err := signature.VerifyTimestamped(payload, "queue-secret", header, sig, time.Minute, late); !errors.Is(err, signature.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	if err := signature.VerifyTimestamped(payload, "wrong", header, sig, time.Minute, now); !errors.Is(err, signature.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	if err := signature.VerifyTimestamped(payload, "queue-secret", "not-a-number", sig, time.Minute, now); !errors.Is(err, signature.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for bad timestamp, got %v", err)
	}
}

func TestVerifyBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		secret string
		want   bool
	}{
		{"match", "Bearer drain-secret", "drain-secret", true},
		{"mismatch", "Bearer nope", "drain-secret", false},
		{"missing scheme", "drain-secret", "drain-secret", false},
		{"unconfigured secret", "Bearer ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signature.VerifyBearer(tt.header, tt.secret); got != tt.want {
				t.Errorf("VerifyBearer() = %v, want %v", got, tt.want)
			}
		})
	}
}

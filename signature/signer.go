// Package signature authenticates webhook traffic.
//
// Inbound platform webhooks carry a base64 HMAC-SHA256 of the raw body keyed
// with the tenant's channel secret. Internal queue deliveries to the process
// trigger carry a timestamped "v1=<hex>" HMAC so a replayed request outside
// the tolerance window is rejected.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SignBody returns the platform-style signature for a webhook body:
// base64(HMAC-SHA256(secret, body)).
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Sign generates the queue signature for a payload.
// The content to sign is "{timestamp}.{payload}".
// Returns a versioned signature in the format "v1=<hex>".
func Sign(payload []byte, secret string, timestamp int64) string {
	content := fmt.Sprintf("%d.%s", timestamp, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(content))
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

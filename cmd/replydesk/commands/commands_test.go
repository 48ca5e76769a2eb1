package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/replydesk/vault"
)

func TestTriggerDrain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/replydesk/internal/drain" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"drained":3}`))
	}))
	defer srv.Close()

	n, err := triggerDrain(context.Background(), srv.Client(), srv.URL+"/replydesk/", "s3cret")
	if err != nil {
		t.Fatalf("triggerDrain: %v", err)
	}
	if n != 3 {
		t.Errorf("drained = %d, want 3", n)
	}

	if _, err := triggerDrain(context.Background(), srv.Client(), srv.URL+"/replydesk", "wrong"); err == nil {
		t.Fatal("expected error for rejected secret")
	} else if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q should carry the status", err)
	}
}

func TestKeygenRandom(t *testing.T) {
	out := runRoot(t, "keygen")
	key := strings.TrimSpace(out)
	if len(key) != 2*vault.KeySize {
		t.Fatalf("key length = %d, want %d", len(key), 2*vault.KeySize)
	}
	if _, err := vault.ParseKey(key); err != nil {
		t.Errorf("generated key rejected: %v", err)
	}
}

func TestKeygenPassphraseIsDeterministic(t *testing.T) {
	first := runRoot(t, "keygen", "--passphrase", "open sesame", "--salt", "00112233445566778899aabbccddeeff")
	second := runRoot(t, "keygen", "--passphrase", "open sesame", "--salt", "00112233445566778899aabbccddeeff")
	if first != second {
		t.Errorf("same passphrase and salt gave different output:\n%s\n%s", first, second)
	}
	if !strings.Contains(first, "salt: 00112233445566778899aabbccddeeff") {
		t.Errorf("output missing salt: %s", first)
	}
}

func TestConfigValidateDefaultsFails(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewRootCmd("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "validate"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("defaults have no vault key and should not validate")
	}
}

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

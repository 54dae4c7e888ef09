package polarwebhook

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"
)

func testSecret(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	return "whsec_" + base64.StdEncoding.EncodeToString(raw)
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := testSecret(t)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	timestamp := fmt.Sprintf("%d", now.Unix())
	payload := []byte(`{"type":"subscription.active"}`)

	sig, err := Sign(secret, "msg_1", timestamp, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifySignature(secret, "msg_1", timestamp, sig, payload, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifySignatureAcceptsAnyMatchingCandidate(t *testing.T) {
	secret := testSecret(t)
	now := time.Now()
	timestamp := fmt.Sprintf("%d", now.Unix())
	payload := []byte(`{}`)

	sig, err := Sign(secret, "msg_1", timestamp, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	header := "v1,bm90LXRoaXMtb25l " + sig
	if err := VerifySignature(secret, "msg_1", timestamp, header, payload, now); err != nil {
		t.Fatalf("verify with candidate list: %v", err)
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	secret := testSecret(t)
	now := time.Now()
	timestamp := fmt.Sprintf("%d", now.Unix())

	sig, err := Sign(secret, "msg_1", timestamp, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifySignature(secret, "msg_1", timestamp, sig, []byte(`{"a":2}`), now); err == nil {
		t.Fatal("expected mismatch for tampered payload")
	}
	if err := VerifySignature(secret, "msg_other", timestamp, sig, []byte(`{"a":1}`), now); err == nil {
		t.Fatal("expected mismatch for different message id")
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	secret := testSecret(t)
	now := time.Now()
	stale := now.Add(-SignatureTolerance - time.Minute)
	timestamp := fmt.Sprintf("%d", stale.Unix())
	payload := []byte(`{}`)

	sig, err := Sign(secret, "msg_1", timestamp, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifySignature(secret, "msg_1", timestamp, sig, payload, now); err == nil {
		t.Fatal("expected stale timestamp rejection")
	}
}

func TestVerifySignatureMissingHeaders(t *testing.T) {
	secret := testSecret(t)
	if err := VerifySignature(secret, "", "123", "v1,abc", nil, time.Now()); err == nil {
		t.Fatal("expected error for missing message id")
	}
	if err := VerifySignature(secret, "msg_1", "", "v1,abc", nil, time.Now()); err == nil {
		t.Fatal("expected error for missing timestamp")
	}
	if err := VerifySignature(secret, "msg_1", "123", "", nil, time.Now()); err == nil {
		t.Fatal("expected error for missing signature")
	}
	if err := VerifySignature("", "msg_1", "123", "v1,abc", nil, time.Now()); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

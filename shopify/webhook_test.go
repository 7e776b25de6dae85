package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/thegiantbeast/momentus-shop-api/core"
)

func signedWebhookRequest(secret string, body []byte, headers map[string]string) core.InboundRequest {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	merged := map[string]string{
		shopifyHeaderHMAC:       base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		shopifyHeaderDeliveryID: "wh-1",
	}
	for key, value := range headers {
		merged[key] = value
	}
	return core.InboundRequest{
		ProviderID: ProviderID,
		Surface:    "orders/updated",
		Headers:    merged,
		Body:       body,
	}
}

func TestWebhookVerifierAcceptsValidSignature(t *testing.T) {
	verifier := NewWebhookVerifier(DefaultWebhookConfig("secret"))
	req := signedWebhookRequest("secret", []byte(`{"id":1}`), nil)
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestWebhookVerifierRejectsBadSignature(t *testing.T) {
	verifier := NewWebhookVerifier(DefaultWebhookConfig("secret"))
	req := signedWebhookRequest("other-secret", []byte(`{"id":1}`), nil)
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected signature mismatch")
	}
}

func TestWebhookVerifierRequiresDeliveryID(t *testing.T) {
	verifier := NewWebhookVerifier(DefaultWebhookConfig("secret"))
	req := signedWebhookRequest("secret", []byte(`{"id":1}`), nil)
	delete(req.Headers, shopifyHeaderDeliveryID)
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected missing delivery id to fail")
	}
}

func TestWebhookVerifierReplayWindow(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	cfg := DefaultWebhookConfig("secret")
	cfg.Now = func() time.Time { return now }
	verifier := NewWebhookVerifier(cfg)

	inside := signedWebhookRequest("secret", []byte(`{"id":1}`), map[string]string{
		shopifyHeaderTriggered: now.Add(-time.Minute).Format(time.RFC3339Nano),
	})
	if err := verifier.Verify(context.Background(), inside); err != nil {
		t.Fatalf("expected trigger inside window to pass, got %v", err)
	}

	outside := signedWebhookRequest("secret", []byte(`{"id":1}`), map[string]string{
		shopifyHeaderTriggered: now.Add(-time.Hour).Format(time.RFC3339Nano),
	})
	if err := verifier.Verify(context.Background(), outside); err == nil {
		t.Fatal("expected trigger outside window to fail")
	}
}

func TestWebhookVerifierRequireTriggeredAt(t *testing.T) {
	cfg := DefaultWebhookConfig("secret")
	cfg.RequireTriggeredAt = true
	verifier := NewWebhookVerifier(cfg)

	req := signedWebhookRequest("secret", []byte(`{"id":1}`), nil)
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected missing trigger header to fail when required")
	}
}

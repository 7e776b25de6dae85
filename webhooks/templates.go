package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/thegiantbeast/momentus-shop-api/core"
)

const (
	SignatureEncodingBase64 = "base64"
	SignatureEncodingHex    = "hex"
)

// HeaderHMACVerifier checks an HMAC-SHA256 signature carried in a request
// header against the raw request body.
type HeaderHMACVerifier struct {
	Header   string
	Secret   string
	Encoding string
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if v.Secret == "" {
		return fmt.Errorf("webhooks: signing secret is not configured")
	}
	header := v.Header
	if header == "" {
		return fmt.Errorf("webhooks: signature header is not configured")
	}

	provided := headerValue(req.Headers, header)
	if provided == "" {
		return fmt.Errorf("webhooks: missing signature header %s", header)
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write(req.Body)
	digest := mac.Sum(nil)

	var expected string
	switch strings.ToLower(v.Encoding) {
	case SignatureEncodingHex:
		expected = hex.EncodeToString(digest)
	case SignatureEncodingBase64, "":
		expected = base64.StdEncoding.EncodeToString(digest)
	default:
		return fmt.Errorf("webhooks: unsupported signature encoding %q", v.Encoding)
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return fmt.Errorf("webhooks: signature mismatch on header %s", header)
	}
	return nil
}

// HeaderDeliveryIDExtractor reads the provider's delivery id from a header.
func HeaderDeliveryIDExtractor(header string) DeliveryIDExtractor {
	return func(req core.InboundRequest) (string, error) {
		id := headerValue(req.Headers, header)
		if id == "" {
			return "", fmt.Errorf("webhooks: missing delivery id header %s", header)
		}
		return id, nil
	}
}

package shopify

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/thegiantbeast/momentus-shop-api/core"
)

const defaultRetryAfter429 = 2 * time.Second

// lowCallBudgetThreshold is the remaining-calls mark below which the admin
// client warns that the bucket is close to throttling.
const lowCallBudgetThreshold = 5

// CallLimit is the admin API bucket state parsed from the
// X-Shopify-Shop-Api-Call-Limit header.
type CallLimit struct {
	Used      int
	Limit     int
	Remaining int
}

func ParseCallLimit(headers map[string]string) (CallLimit, bool) {
	used, limit, ok := parseShopifyCallLimit(headerValue(headers, "x-shopify-shop-api-call-limit"))
	if !ok {
		return CallLimit{}, false
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return CallLimit{Used: used, Limit: limit, Remaining: remaining}, true
}

// RetryAfterFromResponse reports how long to back off for a throttled admin
// API response. Non-429 responses are never treated as throttled.
func RetryAfterFromResponse(response core.TransportResponse) (time.Duration, bool) {
	if response.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	if retryAfter, ok := parseRetryAfter(response.Headers); ok {
		return retryAfter, true
	}
	return defaultRetryAfter429, true
}

func parseShopifyCallLimit(value string) (used int, limit int, ok bool) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || used < 0 {
		return 0, 0, false
	}
	limit, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || limit <= 0 {
		return 0, 0, false
	}
	return used, limit, true
}

func parseRetryAfter(headers map[string]string) (time.Duration, bool) {
	raw := strings.TrimSpace(headerValue(headers, "retry-after"))
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

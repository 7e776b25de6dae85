package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/thegiantbeast/momentus-shop-api/core"
	"github.com/thegiantbeast/momentus-shop-api/shopify"
	"github.com/thegiantbeast/momentus-shop-api/webhooks"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MiB

const orderWebhookPath = "/webhooks/shopify/orders-updated"

// NewRouter wires the webhook entrypoint and the health probe. Everything
// else this service does is driven by the queue, not HTTP.
func NewRouter(processor *webhooks.Processor, logger core.Logger) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", handleHealth)
	router.Post(orderWebhookPath, handleOrderWebhook(processor, logger))
	return router
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func handleOrderWebhook(processor *webhooks.Processor, logger core.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "read body"})
			return
		}

		result, err := processor.Process(r.Context(), core.InboundRequest{
			ProviderID: shopify.ProviderID,
			Surface:    "orders/updated",
			Headers:    flattenHeaders(r.Header),
			Body:       body,
		})
		if err != nil {
			status := result.StatusCode
			if status == 0 {
				status = http.StatusInternalServerError
			}
			if logger != nil {
				logger.Error("order webhook rejected", "status", status, "error", err.Error())
			}
			writeJSON(w, status, map[string]any{"error": "webhook rejected"})
			return
		}

		status := result.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{"status": "ok"})
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

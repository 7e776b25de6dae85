package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/thegiantbeast/momentus-shop-api/core"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger claims webhook deliveries so at-least-once transports do
// not run the same delivery twice concurrently. Persistence is out of scope
// for this service; the in-memory ledger covers the process lifetime and the
// remote order's tag set covers everything beyond it.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		providerID string,
		deliveryID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID string, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error
}

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type DeliveryIDExtractor func(req core.InboundRequest) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type Handler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor is the webhook entrypoint pipeline: verify the signature, claim
// the delivery id, run the handler, settle the claim. Handler failures mark
// the claim retry-ready so a redelivery of the same id is accepted again;
// the processor itself never retries.
type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Handler     Handler
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	Now         func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler Handler) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: processor requires handler and ledger")
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		return core.InboundResult{}, fmt.Errorf("webhooks: provider id is required")
	}
	req.ProviderID = providerID

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"provider_id": providerID,
					"rejected":    true,
				},
			}, err
		}
	}

	if p.ExtractID == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: delivery id extractor is required")
	}
	deliveryID, err := p.ExtractID(req)
	if err != nil {
		return core.InboundResult{}, err
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, providerID, deliveryID, req.Body, p.claimLease())
	if err != nil {
		return core.InboundResult{}, err
	}
	if !claimed {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"provider_id": providerID,
				"delivery_id": delivery.DeliveryID,
				"status":      delivery.Status,
				"deduped":     true,
			},
		}, nil
	}

	result, err := p.Handler.Handle(ctx, req)
	if err != nil {
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt)
		return core.InboundResult{}, err
	}
	if !result.Accepted {
		failErr := fmt.Errorf("webhooks: delivery handler returned status %d", result.StatusCode)
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, failErr, nextAttemptAt)
		return result, failErr
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return core.InboundResult{}, err
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_id"] = providerID
	result.Metadata["delivery_id"] = deliveryID
	return result, nil
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ledgerEntry struct {
	record  DeliveryRecord
	leaseAt time.Time
}

// MemoryDeliveryLedger keeps delivery claims in process memory. A pending
// or processing entry past its lease can be re-claimed, so a crashed
// handler does not strand its delivery id forever.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
	byClaim map[string]string
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*ledgerEntry{},
		byClaim: map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: provider and delivery ids are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := ledgerKey(providerID, deliveryID)
	entry, ok := l.entries[key]
	if ok {
		switch entry.record.Status {
		case DeliveryStatusProcessed:
			return entry.record, false, nil
		case DeliveryStatusProcessing:
			if now.Before(entry.leaseAt) {
				return entry.record, false, nil
			}
		case DeliveryStatusRetryReady:
			if entry.record.NextAttemptAt != nil && now.Before(*entry.record.NextAttemptAt) {
				return entry.record, false, nil
			}
		}
		delete(l.byClaim, entry.record.ClaimID)
		entry.record.ClaimID = uuid.NewString()
		entry.record.Status = DeliveryStatusProcessing
		entry.record.Attempts++
		entry.record.NextAttemptAt = nil
		entry.record.UpdatedAt = now
		entry.leaseAt = now.Add(lease)
		l.byClaim[entry.record.ClaimID] = key
		return entry.record, true, nil
	}

	record := DeliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		ProviderID: providerID,
		DeliveryID: deliveryID,
		Status:     DeliveryStatusProcessing,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.entries[key] = &ledgerEntry{record: record, leaseAt: now.Add(lease)}
	l.byClaim[record.ClaimID] = key
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ledgerKey(providerID, deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery %s/%s not found", providerID, deliveryID)
	}
	return entry.record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.entryByClaim(claimID)
	if err != nil {
		return err
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, _ error, nextAttemptAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.entryByClaim(claimID)
	if err != nil {
		return err
	}
	next := nextAttemptAt.UTC()
	entry.record.Status = DeliveryStatusRetryReady
	entry.record.NextAttemptAt = &next
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) entryByClaim(claimID string) (*ledgerEntry, error) {
	key, ok := l.byClaim[claimID]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim %s not found", claimID)
	}
	entry, ok := l.entries[key]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim %s has no delivery entry", claimID)
	}
	if entry.record.ClaimID != claimID {
		return nil, fmt.Errorf("webhooks: claim %s is stale", claimID)
	}
	return entry, nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func ledgerKey(providerID, deliveryID string) string {
	return providerID + "::" + deliveryID
}

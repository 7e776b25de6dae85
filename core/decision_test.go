package core

import (
	"strconv"
	"testing"
	"time"
)

var decisionNow = time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

func decide(snapshot OrderSnapshot) Decision {
	markers := DecodeTags(snapshot.TagString)
	resolved := ResolveAttachments(snapshot, markers)
	return Decide(snapshot, markers, resolved, decisionNow, DefaultReminderDelay)
}

func TestDecide_DeliveredIsTerminal(t *testing.T) {
	decision := decide(OrderSnapshot{
		FinancialStatus: "paid",
		LineItemCount:   1,
		TagString:       "Entregue",
		Attachments:     []Attachment{{FileRef: "https://x/a.png"}},
	})

	if decision.Action != ActionNone {
		t.Fatalf("expected terminal no-op, got %q", decision.Action)
	}
}

func TestDecide_ArmsReminderForPaidOrderWithoutFiles(t *testing.T) {
	decision := decide(OrderSnapshot{
		FinancialStatus: "paid",
		LineItemCount:   2,
		TagString:       "VIP",
	})

	if decision.Action != ActionArmReminder {
		t.Fatalf("expected arm branch, got %q", decision.Action)
	}
	tags := decision.FinalTags()
	deadline := strconv.FormatInt(decisionNow.Add(DefaultReminderDelay).UnixMilli(), 10)
	want := []string{"VIP", "notification", TimerTagPrefix + deadline}
	if !TagsEqual(tags, want) {
		t.Fatalf("expected tags %v, got %v", want, tags)
	}
	if !decision.Next.TimerDeadline.After(decisionNow) {
		t.Fatalf("expected future deadline, got %v", decision.Next.TimerDeadline)
	}
}

func TestDecide_IdleWhenAlreadyArmed(t *testing.T) {
	decision := decide(OrderSnapshot{
		FinancialStatus: "paid",
		LineItemCount:   2,
		TagString:       "notification, timer:1700000000000",
	})

	if decision.Action != ActionNone {
		t.Fatalf("expected idle for already-armed order, got %q", decision.Action)
	}
}

func TestDecide_IdleWhenUnpaid(t *testing.T) {
	decision := decide(OrderSnapshot{
		FinancialStatus: "pending",
		LineItemCount:   1,
		Attachments:     []Attachment{{FileRef: "https://x/a.png"}},
	})

	if decision.Action != ActionNone {
		t.Fatalf("expected idle for unpaid order, got %q", decision.Action)
	}
}

func TestDecide_DispatchWithMissingFiles(t *testing.T) {
	decision := decide(OrderSnapshot{
		FinancialStatus: "paid",
		LineItemCount:   3,
		Attachments: []Attachment{
			{FileRef: "https://x/a.png"},
			{FileRef: "https://x/b.png"},
		},
	})

	if decision.Action != ActionDispatch {
		t.Fatalf("expected dispatch branch, got %q", decision.Action)
	}
	if decision.Complete {
		t.Fatalf("expected incomplete dispatch while files are missing")
	}
}

func TestDecide_CompleteStripsTransientMarkers(t *testing.T) {
	decision := decide(OrderSnapshot{
		FinancialStatus: "paid",
		LineItemCount:   1,
		TagString:       "VIP, notification, timer:1700000000000, sent:img:a, notified",
		Attachments:     []Attachment{{FileRef: "https://x/a.png"}},
	})

	if decision.Action != ActionDispatch || !decision.Complete {
		t.Fatalf("expected complete dispatch, got %q complete=%v", decision.Action, decision.Complete)
	}
	tags := decision.FinalTags()
	if !TagsEqual(tags, []string{"VIP", TagDelivered}) {
		t.Fatalf("expected terminal tags {VIP, Entregue}, got %v", tags)
	}
}

func TestDecide_TagsDoNotDrivePaymentState(t *testing.T) {
	// A "paid" free-text tag is just an operator label; only financial_status
	// makes an order actionable.
	decision := decide(OrderSnapshot{
		FinancialStatus: "pending",
		LineItemCount:   1,
		TagString:       "paid",
	})

	if decision.Action != ActionNone {
		t.Fatalf("expected idle, got %q", decision.Action)
	}
}

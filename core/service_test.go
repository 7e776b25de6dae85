package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
)

type eventFixture struct {
	OrderID         string
	Email           string
	Name            string
	Quantities      []int
	FileRefs        []string
	Tags            string
	Locale          string
	FinancialStatus string
}

func (f eventFixture) body(t *testing.T) []byte {
	t.Helper()
	lineItems := make([]map[string]any, 0, len(f.Quantities))
	for _, quantity := range f.Quantities {
		lineItems = append(lineItems, map[string]any{"quantity": quantity})
	}
	noteAttributes := make([]map[string]any, 0, len(f.FileRefs))
	for i, ref := range f.FileRefs {
		noteAttributes = append(noteAttributes, map[string]any{
			"name":  "artwork " + strconv.Itoa(i+1),
			"value": ref,
		})
	}
	orderID := f.OrderID
	if orderID == "" {
		orderID = "gid://shopify/Order/1042"
	}
	payload := map[string]any{
		"admin_graphql_api_id": orderID,
		"contact_email":        f.Email,
		"name":                 f.Name,
		"line_items":           lineItems,
		"note_attributes":      noteAttributes,
		"tags":                 f.Tags,
		"customer_locale":      f.Locale,
		"financial_status":     f.FinancialStatus,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return body
}

func TestProcessOrderEvent_ArmsReminder(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Name:            "#1042",
		Quantities:      []int{1},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200, got %+v", result)
	}
	if len(api.tagUpdates) != 1 {
		t.Fatalf("expected a single tag update, got %d", len(api.tagUpdates))
	}
	tags := api.tagUpdates[0].Tags
	if len(tags) != 2 || tags[0] != TagNotification || !strings.HasPrefix(tags[1], TimerTagPrefix) {
		t.Fatalf("expected [notification timer:*], got %v", tags)
	}
	deadline := DecodeTags(strings.Join(tags, ", ")).TimerDeadline
	if !deadline.After(testNow) {
		t.Fatalf("expected future timer deadline, got %v", deadline)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no mail on arm branch, got %d sends", len(mailer.sent))
	}
	if len(api.fulfillments) != 0 {
		t.Fatalf("expected no fulfillment call on arm branch")
	}
}

func TestProcessOrderEvent_CompleteOrderFulfills(t *testing.T) {
	api := &stubOrderAPI{openFulfillment: "gid://shopify/FulfillmentOrder/7"}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Name:            "#1042",
		Quantities:      []int{1},
		FileRefs:        []string{"https://x/ord-A.png"},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected accepted result")
	}

	customer := 0
	for _, msg := range mailer.sent {
		if msg.To == "client@example.com" {
			customer++
		}
	}
	if customer != 1 {
		t.Fatalf("expected one customer email, got %d", customer)
	}

	if len(api.tagUpdates) != 0 {
		t.Fatalf("expected no tags-only update on terminal branch")
	}
	if len(api.fulfillments) != 1 {
		t.Fatalf("expected one fulfillment call, got %d", len(api.fulfillments))
	}
	call := api.fulfillments[0]
	if call.FulfillmentOrderID != "gid://shopify/FulfillmentOrder/7" {
		t.Fatalf("expected resolved fulfillment order id, got %q", call.FulfillmentOrderID)
	}
	markers := DecodeTags(strings.Join(call.Tags, ", "))
	if !markers.Delivered {
		t.Fatalf("expected Entregue in terminal tags, got %v", call.Tags)
	}
	if markers.Notification || len(markers.Sent) > 0 || markers.Notified {
		t.Fatalf("expected transient markers stripped, got %v", call.Tags)
	}
}

func TestProcessOrderEvent_MissingFilesUpdatesTagsOnly(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	_, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Name:            "#1042",
		Quantities:      []int{3},
		FileRefs:        []string{"https://x/ord-A.png", "https://x/ord-B.png"},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	if len(api.fulfillments) != 0 {
		t.Fatalf("expected no fulfillment while files are missing")
	}
	if len(api.tagUpdates) != 1 {
		t.Fatalf("expected one tag update, got %d", len(api.tagUpdates))
	}
	markers := DecodeTags(strings.Join(api.tagUpdates[0].Tags, ", "))
	if markers.Delivered {
		t.Fatalf("expected no Entregue while files are missing")
	}
	if !markers.HasSent("ord-A") || !markers.HasSent("ord-B") {
		t.Fatalf("expected sent markers for both dispatched items, got %v", api.tagUpdates[0].Tags)
	}
}

func TestProcessOrderEvent_DeliveredIsNoOp(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{1},
		FileRefs:        []string{"https://x/ord-A.png"},
		Tags:            "Entregue",
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected accepted result for terminal order")
	}
	if len(mailer.sent) != 0 || len(api.tagUpdates) != 0 || len(api.fulfillments) != 0 {
		t.Fatalf("expected no side effects for terminal order")
	}
}

func TestProcessOrderEvent_SkipsAlreadySentAttachment(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	_, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{3},
		FileRefs:        []string{"https://x/ord-A.png", "https://x/ord-B.png"},
		Tags:            "sent:img:ord-A",
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	customer := 0
	for _, msg := range mailer.sent {
		if msg.To != "client@example.com" {
			continue
		}
		customer++
		for _, attachment := range msg.Attachments {
			if attachment.Filename == "ord-A" {
				t.Fatalf("expected no re-send for already-marked item")
			}
		}
	}
	if customer != 1 {
		t.Fatalf("expected exactly one new customer email, got %d", customer)
	}
}

func TestProcessOrderEvent_MailFailureAbortsBatch(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{failAt: 3} // two successes, then a missing delivery id
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{3},
		FileRefs:        []string{"https://x/ord-A.png", "https://x/ord-B.png", "https://x/ord-C.png"},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected aborted cycle to still be answered as handled")
	}

	alerts := mailer.operatorMail("ops@example.com")
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one operator alert, got %d", len(alerts))
	}
	if !strings.Contains(alerts[0].Text, "ord-C") {
		t.Fatalf("expected alert to name the failing item, got %q", alerts[0].Text)
	}
	if len(mailer.sent) != 4 { // 3 customer attempts + 1 alert
		t.Fatalf("expected dispatch to stop at the failing item, got %d sends", len(mailer.sent))
	}
	if len(api.tagUpdates) != 0 || len(api.fulfillments) != 0 {
		t.Fatalf("expected no remote update after an aborted batch")
	}
}

func TestProcessOrderEvent_RemoteUserErrorsAlertOperator(t *testing.T) {
	api := &stubOrderAPI{
		fulfillResult: FulfillmentUpdateResult{
			FulfillmentUserErrors: []UserError{{Field: []string{"fulfillmentOrderId"}, Message: "not found"}},
		},
	}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{1},
		FileRefs:        []string{"https://x/ord-A.png"},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected remote failure to still answer success")
	}

	alerts := mailer.operatorMail("ops@example.com")
	if len(alerts) != 1 {
		t.Fatalf("expected one operator alert, got %d", len(alerts))
	}
	if !strings.Contains(alerts[0].Text, "not found") {
		t.Fatalf("expected alert to carry the user error payload, got %q", alerts[0].Text)
	}
}

func TestProcessOrderEvent_NotifiedCompletionWarns(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	_, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{1},
		FileRefs:        []string{"https://x/ord-A.png"},
		Tags:            "notification, timer:1700000000000, notified",
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	alerts := mailer.operatorMail("ops@example.com")
	if len(alerts) != 1 {
		t.Fatalf("expected the already-resolved warning, got %d alerts", len(alerts))
	}
	if !strings.Contains(alerts[0].Subject, "already resolved") {
		t.Fatalf("expected already-resolved subject, got %q", alerts[0].Subject)
	}
	// Warn-only: the fulfillment still happened.
	if len(api.fulfillments) != 1 {
		t.Fatalf("expected fulfillment despite the warning, got %d", len(api.fulfillments))
	}
}

func TestProcessOrderEvent_DebugModeReroutesCustomerMail(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	cfg := testConfig()
	cfg.Mode = ModeDebug
	service, err := NewService(cfg,
		WithOrderAPI(api),
		WithMailer(mailer),
		WithTemplates(stubTemplates{}),
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{1},
		FileRefs:        []string{"https://x/ord-A.png"},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}

	for _, msg := range mailer.sent {
		if msg.To == "client@example.com" {
			t.Fatalf("expected debug mode to reroute customer mail")
		}
		if msg.BCC != "" {
			t.Fatalf("expected no BCC in debug mode")
		}
	}
}

func TestProcessOrderEvent_MalformedBodyIsAlertedAndAcknowledged(t *testing.T) {
	api := &stubOrderAPI{}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), []byte("{not json"))
	if err != nil {
		t.Fatalf("expected malformed body to be handled, got %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200 for rejected event, got %+v", result)
	}
	if len(mailer.operatorMail("ops@example.com")) != 1 {
		t.Fatalf("expected one operator alert for the rejected event")
	}
}

func TestProcessOrderEvent_RemoteTransportErrorStillAccepted(t *testing.T) {
	api := &stubOrderAPI{updateErr: errors.New("shop unreachable")}
	mailer := &stubMailer{}
	service := newTestService(t, api, mailer)

	result, err := service.ProcessOrderEvent(context.Background(), eventFixture{
		Email:           "client@example.com",
		Quantities:      []int{1},
		FinancialStatus: "paid",
	}.body(t))
	if err != nil {
		t.Fatalf("process event: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected remote transport failure to answer success")
	}
	alerts := mailer.operatorMail("ops@example.com")
	if len(alerts) != 1 || !strings.Contains(alerts[0].Text, "shop unreachable") {
		t.Fatalf("expected alert carrying the transport error, got %v", alerts)
	}
}

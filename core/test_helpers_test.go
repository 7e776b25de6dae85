package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

type tagUpdateCall struct {
	OrderID string
	Tags    []string
}

type fulfillmentCall struct {
	OrderID            string
	Tags               []string
	FulfillmentOrderID string
}

type stubOrderAPI struct {
	tagUpdates       []tagUpdateCall
	fulfillments     []fulfillmentCall
	updateErr        error
	updateUserErrors []UserError
	openFulfillment  string
	openErr          error
	fulfillResult    FulfillmentUpdateResult
	fulfillErr       error
	searchIDs        []string
	searchErr        error
	orders           map[string]OrderRecord
	getErr           error
}

func (s *stubOrderAPI) UpdateOrderTags(_ context.Context, orderID string, tags []string) (OrderUpdateResult, error) {
	s.tagUpdates = append(s.tagUpdates, tagUpdateCall{OrderID: orderID, Tags: append([]string(nil), tags...)})
	if s.updateErr != nil {
		return OrderUpdateResult{}, s.updateErr
	}
	return OrderUpdateResult{UserErrors: s.updateUserErrors}, nil
}

func (s *stubOrderAPI) GetOpenFulfillmentOrderID(context.Context, string) (string, error) {
	return s.openFulfillment, s.openErr
}

func (s *stubOrderAPI) UpdateTagsAndCreateFulfillment(
	_ context.Context,
	orderID string,
	tags []string,
	fulfillmentOrderID string,
) (FulfillmentUpdateResult, error) {
	s.fulfillments = append(s.fulfillments, fulfillmentCall{
		OrderID:            orderID,
		Tags:               append([]string(nil), tags...),
		FulfillmentOrderID: fulfillmentOrderID,
	})
	if s.fulfillErr != nil {
		return FulfillmentUpdateResult{}, s.fulfillErr
	}
	return s.fulfillResult, nil
}

func (s *stubOrderAPI) GetOrder(_ context.Context, orderID string) (OrderRecord, error) {
	if s.getErr != nil {
		return OrderRecord{}, s.getErr
	}
	return s.orders[orderID], nil
}

func (s *stubOrderAPI) SearchOrderIDsByTag(context.Context, string) ([]string, error) {
	return s.searchIDs, s.searchErr
}

type stubMailer struct {
	sent    []MailMessage
	failAt  int // 1-based index of the send that fails; 0 = never
	sendErr error
}

func (m *stubMailer) Send(_ context.Context, msg MailMessage) (MailReceipt, error) {
	m.sent = append(m.sent, msg)
	if m.failAt > 0 && len(m.sent) == m.failAt {
		if m.sendErr != nil {
			return MailReceipt{}, m.sendErr
		}
		return MailReceipt{}, nil
	}
	return MailReceipt{DeliveryID: "delivery-" + strings.TrimSpace(msg.To)}, nil
}

// operatorMail returns the sends addressed to the operator inbox that are
// not BCC copies of customer mail.
func (m *stubMailer) operatorMail(operator string) []MailMessage {
	alerts := []MailMessage{}
	for _, msg := range m.sent {
		if msg.To == operator && msg.BCC == "" {
			alerts = append(alerts, msg)
		}
	}
	return alerts
}

type stubTemplates struct {
	resolveErr error
}

func (t stubTemplates) Resolve(locale string, kind string, data TemplateData) (MessageTemplate, error) {
	if t.resolveErr != nil {
		return MessageTemplate{}, t.resolveErr
	}
	return MessageTemplate{
		Subject: kind + " " + data.OrderNumber,
		Text:    "order " + data.OrderNumber + " item " + data.ItemName + " (" + locale + ")",
	}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OperatorEmail = "ops@example.com"
	cfg.Shop.Domain = "momentus.myshopify.com"
	cfg.Shop.AccessToken = "shpat_test"
	cfg.Mail.Endpoint = "https://mail.example.com"
	cfg.Mail.From = "loja@example.com"
	cfg.Webhook.Secret = "whsec_test"
	return cfg
}

func newTestService(t *testing.T, api *stubOrderAPI, mailer *stubMailer, options ...Option) *Service {
	t.Helper()
	base := []Option{
		WithOrderAPI(api),
		WithMailer(mailer),
		WithTemplates(stubTemplates{}),
		WithNow(func() time.Time { return testNow }),
	}
	service, err := NewService(testConfig(), append(base, options...)...)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return service
}

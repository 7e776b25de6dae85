package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// UserError is a field-level error reported by the order-management API
// (Shopify Admin GraphQL userErrors).
type UserError struct {
	Field   []string
	Message string
}

type OrderUpdateResult struct {
	UserErrors []UserError
}

// FulfillmentUpdateResult carries the userErrors of both mutations issued in
// the combined tags+fulfillment call.
type FulfillmentUpdateResult struct {
	TagUserErrors         []UserError
	FulfillmentUserErrors []UserError
}

// OrderRecord is a remote order read back from the order-management API.
// Used by the reminder sweeper, which does not have a webhook payload to
// work from.
type OrderRecord struct {
	ID        string
	Number    string
	Email     string
	Locale    string
	TagString string
}

// OrderAPI is the order-management collaborator. The remote order's tag set
// is the only durable state this service relies on.
type OrderAPI interface {
	UpdateOrderTags(ctx context.Context, orderID string, tags []string) (OrderUpdateResult, error)
	GetOpenFulfillmentOrderID(ctx context.Context, orderID string) (string, error)
	UpdateTagsAndCreateFulfillment(
		ctx context.Context,
		orderID string,
		tags []string,
		fulfillmentOrderID string,
	) (FulfillmentUpdateResult, error)
	GetOrder(ctx context.Context, orderID string) (OrderRecord, error)
	SearchOrderIDsByTag(ctx context.Context, tag string) ([]string, error)
}

type MailAttachment struct {
	Filename    string
	URL         string
	ContentType string
}

type MailMessage struct {
	From        string
	To          string
	BCC         string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string
	Attachments []MailAttachment
}

type MailReceipt struct {
	DeliveryID string
}

// Mailer is the outbound mail collaborator. An empty DeliveryID on a nil
// error is still a send failure.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) (MailReceipt, error)
}

// TemplateData feeds locale templates before they are handed to the mailer.
type TemplateData struct {
	OrderNumber string
	ItemName    string
}

type MessageTemplate struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []MailAttachment
}

// TemplateStore resolves a fully rendered customer-facing message for a
// normalized locale key.
type TemplateStore interface {
	Resolve(locale string, kind string, data TemplateData) (MessageTemplate, error)
}

const (
	TemplateKindArtwork  = "artwork"
	TemplateKindReminder = "reminder"
)

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	ProviderID string
	Surface    string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type InboundHandler interface {
	Surface() string
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

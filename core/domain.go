package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const FinancialStatusPaid = "paid"

// Attachment is one per-item artifact slot carried on the order's note
// attributes. An empty FileRef means the artifact has not been uploaded yet.
type Attachment struct {
	Name    string
	FileRef string
}

// OrderSnapshot is the per-invocation view of an order, built fresh from the
// inbound webhook payload. Nothing here is cached across invocations; the
// remote tag set is the only durable state.
type OrderSnapshot struct {
	ID              string
	Number          string
	Email           string
	Locale          string
	LineItemCount   int
	Attachments     []Attachment
	TagString       string
	FinancialStatus string
}

func (s OrderSnapshot) IsPaid() bool {
	return strings.EqualFold(strings.TrimSpace(s.FinancialStatus), FinancialStatusPaid)
}

type orderEventPayload struct {
	AdminGraphQLAPIID string `json:"admin_graphql_api_id"`
	ContactEmail      string `json:"contact_email"`
	Name              string `json:"name"`
	LineItems         []struct {
		Quantity int `json:"quantity"`
	} `json:"line_items"`
	NoteAttributes []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"note_attributes"`
	Tags            string `json:"tags"`
	CustomerLocale  string `json:"customer_locale"`
	FinancialStatus string `json:"financial_status"`
}

// ParseOrderEvent decodes an orders/updated webhook body into a snapshot.
func ParseOrderEvent(body []byte) (OrderSnapshot, error) {
	if len(body) == 0 {
		return OrderSnapshot{}, fmt.Errorf("core: order event body is required")
	}
	var payload orderEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return OrderSnapshot{}, fmt.Errorf("core: decode order event: %w", err)
	}

	orderID := strings.TrimSpace(payload.AdminGraphQLAPIID)
	if orderID == "" {
		return OrderSnapshot{}, fmt.Errorf("core: order event admin_graphql_api_id is required")
	}

	quantity := 0
	for _, item := range payload.LineItems {
		if item.Quantity > 0 {
			quantity += item.Quantity
		}
	}

	attachments := make([]Attachment, 0, len(payload.NoteAttributes))
	for _, attr := range payload.NoteAttributes {
		fileRef := strings.TrimSpace(attr.Value)
		if !isFileReference(fileRef) {
			fileRef = ""
		}
		attachments = append(attachments, Attachment{
			Name:    strings.TrimSpace(attr.Name),
			FileRef: fileRef,
		})
	}

	return OrderSnapshot{
		ID:              orderID,
		Number:          strings.TrimSpace(payload.Name),
		Email:           strings.TrimSpace(payload.ContactEmail),
		Locale:          NormalizeLocale(payload.CustomerLocale),
		LineItemCount:   quantity,
		Attachments:     attachments,
		TagString:       payload.Tags,
		FinancialStatus: strings.TrimSpace(payload.FinancialStatus),
	}, nil
}

func isFileReference(value string) bool {
	if value == "" {
		return false
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return strings.TrimSpace(parsed.Host) != ""
}

// Supported customer locales. The shop's default is Portuguese, which is why
// the terminal tag literal is "Entregue".
const (
	LocalePT = "pt"
	LocaleEN = "en"
	LocaleES = "es"
)

// NormalizeLocale maps a customer_locale value ("pt-PT", "en-GB", ...) onto
// the closed template key set, falling back to the shop default.
func NormalizeLocale(locale string) string {
	primary := strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(primary, "-_"); idx >= 0 {
		primary = primary[:idx]
	}
	switch primary {
	case LocaleEN:
		return LocaleEN
	case LocaleES:
		return LocaleES
	default:
		return LocalePT
	}
}

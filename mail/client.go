package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/thegiantbeast/momentus-shop-api/core"
	"github.com/thegiantbeast/momentus-shop-api/transport"
)

type Config struct {
	Endpoint string
	APIKey   string
	From     string
	ReplyTo  string
}

// Client sends customer and operator mail through the transactional mail
// API. From and ReplyTo defaults come from config; a message can override
// them per send.
type Client struct {
	endpoint string
	apiKey   string
	from     string
	replyTo  string
	rest     *transport.RESTAdapter
}

func NewClient(cfg Config, doer transport.HTTPDoer) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("mail: endpoint is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, fmt.Errorf("mail: from address is required")
	}

	rest := transport.NewRESTAdapter(doer)
	if apiKey := strings.TrimSpace(cfg.APIKey); apiKey != "" {
		rest.DefaultHeaders["Authorization"] = "Bearer " + apiKey
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		from:     from,
		replyTo:  strings.TrimSpace(cfg.ReplyTo),
		rest:     rest,
	}, nil
}

type wireAttachment struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

type wireMessage struct {
	From        string           `json:"from"`
	To          string           `json:"to"`
	BCC         string           `json:"bcc,omitempty"`
	ReplyTo     string           `json:"reply_to,omitempty"`
	Subject     string           `json:"subject"`
	Text        string           `json:"text,omitempty"`
	HTML        string           `json:"html,omitempty"`
	Attachments []wireAttachment `json:"attachments,omitempty"`
}

type wireReceipt struct {
	ID string `json:"id"`
}

func (c *Client) Send(ctx context.Context, msg core.MailMessage) (core.MailReceipt, error) {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return core.MailReceipt{}, fmt.Errorf("mail: recipient is required")
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = c.from
	}
	replyTo := strings.TrimSpace(msg.ReplyTo)
	if replyTo == "" {
		replyTo = c.replyTo
	}

	wire := wireMessage{
		From:    from,
		To:      to,
		BCC:     strings.TrimSpace(msg.BCC),
		ReplyTo: replyTo,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	}
	for _, attachment := range msg.Attachments {
		wire.Attachments = append(wire.Attachments, wireAttachment{
			Filename:    attachment.Filename,
			URL:         attachment.URL,
			ContentType: attachment.ContentType,
		})
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return core.MailReceipt{}, fmt.Errorf("mail: marshal message: %w", err)
	}

	response, err := c.rest.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     c.endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return core.MailReceipt{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.MailReceipt{}, fmt.Errorf("mail: send returned status %d", response.StatusCode)
	}

	var receipt wireReceipt
	if err := json.Unmarshal(response.Body, &receipt); err != nil {
		return core.MailReceipt{}, fmt.Errorf("mail: decode send response: %w", err)
	}
	return core.MailReceipt{DeliveryID: strings.TrimSpace(receipt.ID)}, nil
}

var _ core.Mailer = (*Client)(nil)

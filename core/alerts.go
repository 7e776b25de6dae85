package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Operator alerts are the error surface of this service: every remote or
// mail failure ends up in a human inbox instead of a non-2xx webhook reply.
const (
	AlertReasonMailFailed      = "mail_send_failed"
	AlertReasonRemoteFailed    = "remote_update_failed"
	AlertReasonEventRejected   = "event_rejected"
	AlertReasonAlreadyResolved = "already_resolved"
)

func (s *Service) sendOperatorAlert(
	ctx context.Context,
	reason string,
	snapshot OrderSnapshot,
	payload map[string]any,
) {
	if s == nil || s.mailer == nil {
		return
	}

	alertID := uuid.NewString()
	body := map[string]any{
		"alert_id":     alertID,
		"reason":       reason,
		"order_id":     snapshot.ID,
		"order_number": snapshot.Number,
	}
	for key, value := range payload {
		body[key] = value
	}
	detail, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		detail = []byte(fmt.Sprintf("%v", body))
	}

	subject := fmt.Sprintf("[%s] %s", s.config.ServiceName, alertSubject(reason, snapshot))
	receipt, sendErr := s.mailer.Send(ctx, MailMessage{
		From:    s.config.Mail.From,
		To:      s.config.OperatorEmail,
		Subject: subject,
		Text:    string(detail),
	})
	if sendErr != nil || strings.TrimSpace(receipt.DeliveryID) == "" {
		// Nothing left to escalate to; the structured log is the last resort.
		s.logError(ctx, "operator alert delivery failed", map[string]any{
			"alert_id": alertID,
			"reason":   reason,
			"order_id": snapshot.ID,
			"error":    errText(sendErr),
		})
		return
	}
	s.logInfo(ctx, "operator alert sent", map[string]any{
		"alert_id":    alertID,
		"reason":      reason,
		"order_id":    snapshot.ID,
		"delivery_id": receipt.DeliveryID,
	})
}

func alertSubject(reason string, snapshot OrderSnapshot) string {
	label := strings.TrimSpace(snapshot.Number)
	if label == "" {
		label = strings.TrimSpace(snapshot.ID)
	}
	switch reason {
	case AlertReasonMailFailed:
		return fmt.Sprintf("mail send failed for order %s", label)
	case AlertReasonRemoteFailed:
		return fmt.Sprintf("remote update failed for order %s", label)
	case AlertReasonAlreadyResolved:
		return fmt.Sprintf("order %s was already resolved out of band", label)
	case AlertReasonEventRejected:
		return fmt.Sprintf("order event rejected (%s)", label)
	default:
		return fmt.Sprintf("alert for order %s", label)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

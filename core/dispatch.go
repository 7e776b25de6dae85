package core

import (
	"context"
	"strings"
)

// DispatchOutcome reports what the email loop managed before finishing or
// aborting.
type DispatchOutcome struct {
	SentCount  int
	Aborted    bool
	FailedItem string
}

// dispatchEmails sends one email per unsent attachment, in snapshot order.
// Every success appends the item's idempotency marker to decision.Next. The
// first failure sends a single operator alert and aborts the whole batch:
// the webhook cycle is still answered as handled, and because the aborted
// batch's next tags are discarded, a redelivery re-attempts the remaining
// items. Items that went out before the failure lose their sent credit with
// the discarded batch; see the orchestrator for why no partial update is
// issued.
func (s *Service) dispatchEmails(
	ctx context.Context,
	snapshot OrderSnapshot,
	resolved ResolvedSet,
	decision *Decision,
) DispatchOutcome {
	outcome := DispatchOutcome{}
	for _, item := range resolved.Unsent() {
		template, err := s.templates.Resolve(snapshot.Locale, TemplateKindArtwork, TemplateData{
			OrderNumber: snapshot.Number,
			ItemName:    item.Name,
		})
		if err != nil {
			s.sendOperatorAlert(ctx, AlertReasonMailFailed, snapshot, map[string]any{
				"item":   item.ShortName,
				"locale": snapshot.Locale,
				"error":  err.Error(),
			})
			outcome.Aborted = true
			outcome.FailedItem = item.ShortName
			return outcome
		}

		msg := s.customerMessage(snapshot, template)
		msg.Attachments = append(msg.Attachments, MailAttachment{
			Filename: item.ShortName,
			URL:      item.FileRef,
		})

		receipt, sendErr := s.mailer.Send(ctx, msg)
		if sendErr != nil || strings.TrimSpace(receipt.DeliveryID) == "" {
			s.sendOperatorAlert(ctx, AlertReasonMailFailed, snapshot, map[string]any{
				"item":     item.ShortName,
				"file_ref": item.FileRef,
				"to":       msg.To,
				"error":    errText(sendErr),
			})
			outcome.Aborted = true
			outcome.FailedItem = item.ShortName
			return outcome
		}

		decision.Next.Sent[item.ShortName] = true
		outcome.SentCount++
		s.logInfo(ctx, "artwork email sent", map[string]any{
			"order_id":    snapshot.ID,
			"item":        item.ShortName,
			"delivery_id": receipt.DeliveryID,
		})
	}
	return outcome
}

// customerMessage applies the debug/production routing rules: debug mode
// reroutes customer mail to the operator inbox and drops the BCC copy.
func (s *Service) customerMessage(snapshot OrderSnapshot, template MessageTemplate) MailMessage {
	msg := MailMessage{
		From:        s.config.Mail.From,
		To:          snapshot.Email,
		ReplyTo:     s.config.Mail.ReplyTo,
		Subject:     template.Subject,
		Text:        template.Text,
		HTML:        template.HTML,
		Attachments: append([]MailAttachment(nil), template.Attachments...),
	}
	if s.config.Debug() {
		msg.To = s.config.OperatorEmail
		return msg
	}
	msg.BCC = s.config.OperatorEmail
	return msg
}

package core

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// SweepOutcome summarizes one reminder sweep pass.
type SweepOutcome struct {
	Checked  int
	Reminded int
	Skipped  int
}

// SweepReminders finds orders whose armed reminder deadline has passed,
// sends the localized reminder email, and sets the notified marker. This is
// the out-of-band process the webhook pipeline observes through the notified
// tag. Each order is handled best effort; one failing order does not stop
// the sweep.
func (s *Service) SweepReminders(ctx context.Context) (SweepOutcome, error) {
	outcome := SweepOutcome{}

	orderIDs, err := s.orderAPI.SearchOrderIDsByTag(ctx, TagNotification)
	if err != nil {
		return outcome, ordersWrapError(
			err,
			goerrors.CategoryExternal,
			"core: search armed orders",
			http.StatusBadGateway,
			nil,
		)
	}

	now := s.clock()
	for _, orderID := range orderIDs {
		outcome.Checked++

		record, err := s.orderAPI.GetOrder(ctx, orderID)
		if err != nil {
			s.logError(ctx, "reminder sweep: load order failed", map[string]any{
				"order_id": orderID,
				"error":    err.Error(),
			})
			outcome.Skipped++
			continue
		}

		markers := DecodeTags(record.TagString)
		if markers.Delivered || markers.Notified || !markers.Notification {
			outcome.Skipped++
			continue
		}
		if markers.TimerDeadline.IsZero() || markers.TimerDeadline.After(now) {
			outcome.Skipped++
			continue
		}

		snapshot := OrderSnapshot{
			ID:     record.ID,
			Number: record.Number,
			Email:  record.Email,
			Locale: NormalizeLocale(record.Locale),
		}

		template, err := s.templates.Resolve(snapshot.Locale, TemplateKindReminder, TemplateData{
			OrderNumber: snapshot.Number,
		})
		if err != nil {
			s.sendOperatorAlert(ctx, AlertReasonMailFailed, snapshot, map[string]any{
				"operation": "reminder",
				"locale":    snapshot.Locale,
				"error":     err.Error(),
			})
			outcome.Skipped++
			continue
		}

		receipt, sendErr := s.mailer.Send(ctx, s.customerMessage(snapshot, template))
		if sendErr != nil || receipt.DeliveryID == "" {
			s.sendOperatorAlert(ctx, AlertReasonMailFailed, snapshot, map[string]any{
				"operation": "reminder",
				"error":     errText(sendErr),
			})
			outcome.Skipped++
			continue
		}

		markers.Notified = true
		result, updateErr := s.orderAPI.UpdateOrderTags(ctx, record.ID, markers.EncodeTags())
		if updateErr != nil {
			s.sendOperatorAlert(ctx, AlertReasonRemoteFailed, snapshot, map[string]any{
				"operation": "reminder_mark_notified",
				"error":     updateErr.Error(),
			})
			outcome.Skipped++
			continue
		}
		if len(result.UserErrors) > 0 {
			s.sendOperatorAlert(ctx, AlertReasonRemoteFailed, snapshot, map[string]any{
				"operation":   "reminder_mark_notified",
				"user_errors": userErrorPayload(result.UserErrors),
			})
			outcome.Skipped++
			continue
		}

		outcome.Reminded++
		s.logInfo(ctx, "reminder sent", map[string]any{
			"order_id":    record.ID,
			"delivery_id": receipt.DeliveryID,
		})
	}
	return outcome, nil
}

package core

import (
	"context"
	"strings"
)

// applyRemote issues the single combined remote update for this invocation:
// a tags-only update, or tags plus fulfillment creation on the terminal
// branch. Remote failures never propagate to the webhook caller; they turn
// into one operator alert carrying the full error payload. There is no
// rollback: the remote order is left however far the mutation got.
func (s *Service) applyRemote(ctx context.Context, snapshot OrderSnapshot, markers Markers, decision Decision) {
	finalTags := decision.FinalTags()

	if !decision.Complete {
		current := DecodeTags(snapshot.TagString).EncodeTags()
		if TagsEqual(finalTags, current) {
			s.logInfo(ctx, "tag set unchanged, skipping remote update", map[string]any{
				"order_id": snapshot.ID,
			})
			return
		}

		result, err := s.orderAPI.UpdateOrderTags(ctx, snapshot.ID, finalTags)
		if err != nil {
			s.sendOperatorAlert(ctx, AlertReasonRemoteFailed, snapshot, map[string]any{
				"operation": "update_order_tags",
				"tags":      finalTags,
				"error":     err.Error(),
			})
			return
		}
		if len(result.UserErrors) > 0 {
			s.sendOperatorAlert(ctx, AlertReasonRemoteFailed, snapshot, map[string]any{
				"operation":   "update_order_tags",
				"tags":        finalTags,
				"user_errors": userErrorPayload(result.UserErrors),
			})
			return
		}
		s.logInfo(ctx, "order tags updated", map[string]any{
			"order_id": snapshot.ID,
			"tags":     finalTags,
		})
		return
	}

	// Terminal branch. A missing open fulfillment order must not stop the
	// transition; the mutation is attempted with whatever id is available and
	// its errors flow into the same alert path.
	fulfillmentOrderID, lookupErr := s.orderAPI.GetOpenFulfillmentOrderID(ctx, snapshot.ID)
	if lookupErr != nil {
		fulfillmentOrderID = ""
	}

	result, err := s.orderAPI.UpdateTagsAndCreateFulfillment(ctx, snapshot.ID, finalTags, fulfillmentOrderID)
	if err != nil {
		payload := map[string]any{
			"operation":            "update_tags_and_create_fulfillment",
			"tags":                 finalTags,
			"fulfillment_order_id": fulfillmentOrderID,
			"error":                err.Error(),
		}
		if lookupErr != nil {
			payload["fulfillment_lookup_error"] = lookupErr.Error()
		}
		s.sendOperatorAlert(ctx, AlertReasonRemoteFailed, snapshot, payload)
		return
	}
	if len(result.TagUserErrors) > 0 || len(result.FulfillmentUserErrors) > 0 || lookupErr != nil {
		payload := map[string]any{
			"operation":               "update_tags_and_create_fulfillment",
			"tags":                    finalTags,
			"fulfillment_order_id":    fulfillmentOrderID,
			"tag_user_errors":         userErrorPayload(result.TagUserErrors),
			"fulfillment_user_errors": userErrorPayload(result.FulfillmentUserErrors),
		}
		if lookupErr != nil {
			payload["fulfillment_lookup_error"] = lookupErr.Error()
		}
		s.sendOperatorAlert(ctx, AlertReasonRemoteFailed, snapshot, payload)
		return
	}

	s.logInfo(ctx, "order completed and fulfillment created", map[string]any{
		"order_id":             snapshot.ID,
		"fulfillment_order_id": fulfillmentOrderID,
	})

	// The notified marker means an out-of-band reminder already reached the
	// customer while this cycle was completing. Warn only; the terminal
	// transition stands.
	if markers.Notified {
		s.sendOperatorAlert(ctx, AlertReasonAlreadyResolved, snapshot, map[string]any{
			"note": "order carried the notified marker at completion time",
		})
	}
}

func userErrorPayload(userErrors []UserError) []map[string]any {
	payload := make([]map[string]any, 0, len(userErrors))
	for _, userError := range userErrors {
		payload = append(payload, map[string]any{
			"field":   strings.Join(userError.Field, "."),
			"message": userError.Message,
		})
	}
	return payload
}

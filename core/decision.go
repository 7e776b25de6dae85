package core

import (
	"time"
)

type Action string

const (
	// ActionNone covers the terminal and idle states: nothing to mutate.
	ActionNone Action = "none"
	// ActionArmReminder sets the notification + timer tags, no mail yet.
	ActionArmReminder Action = "arm_reminder"
	// ActionDispatch sends outstanding per-item emails, then updates remote
	// state.
	ActionDispatch Action = "dispatch"
)

// Decision is the output of the state machine: what to do this cycle and the
// working tag set the rest of the pipeline mutates. The decision itself is
// pure; side effects belong to dispatch and the orchestrator.
type Decision struct {
	Action Action
	Reason string
	// Complete is set on dispatch when every expected file has arrived, which
	// triggers the terminal transition and fulfillment creation.
	Complete bool
	// Next starts as a copy of the decoded markers; dispatch appends sent
	// markers to it as emails go out.
	Next Markers
}

// FinalTags is the tag set the orchestrator should persist. The terminal
// transition strips every transient marker and leaves only operator tags plus
// the delivered marker.
func (d Decision) FinalTags() []string {
	if d.Complete {
		terminal := Markers{Extra: d.Next.Extra, Delivered: true}
		return terminal.EncodeTags()
	}
	return d.Next.EncodeTags()
}

// Decide classifies one order snapshot. Branches are evaluated in strict
// priority order; the first match wins.
func Decide(snapshot OrderSnapshot, markers Markers, resolved ResolvedSet, now time.Time, reminderDelay time.Duration) Decision {
	next := cloneMarkers(markers)

	if markers.Delivered {
		return Decision{Action: ActionNone, Reason: "order already delivered", Next: next}
	}

	resolvedCount := resolved.CountResolved()

	if snapshot.IsPaid() && resolvedCount == 0 && !markers.Notification {
		next.Notification = true
		next.TimerDeadline = now.Add(reminderDelay).UTC()
		return Decision{Action: ActionArmReminder, Reason: "paid order awaiting artwork", Next: next}
	}

	if !snapshot.IsPaid() || resolvedCount == 0 {
		return Decision{Action: ActionNone, Reason: "nothing actionable", Next: next}
	}

	return Decision{
		Action:   ActionDispatch,
		Reason:   "artwork available for dispatch",
		Complete: resolvedCount >= snapshot.LineItemCount,
		Next:     next,
	}
}

func cloneMarkers(markers Markers) Markers {
	cloned := markers
	cloned.Sent = make(map[string]bool, len(markers.Sent))
	for short, sent := range markers.Sent {
		cloned.Sent[short] = sent
	}
	cloned.Extra = append([]string(nil), markers.Extra...)
	return cloned
}

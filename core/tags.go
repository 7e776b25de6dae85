package core

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Tag vocabulary. The remote order's tag set is the only persisted state, so
// every lifecycle marker is spelled as one of these tokens. Anything else is
// an operator-owned tag and passes through untouched.
const (
	TagNotification = "notification"
	TagNotified     = "notified"
	TagDelivered    = "Entregue"

	TimerTagPrefix = "timer:"
	SentTagPrefix  = "sent:img:"
)

// Markers is the decoded view of an order's tag set.
type Markers struct {
	Notification  bool
	TimerDeadline time.Time
	Sent          map[string]bool
	Notified      bool
	Delivered     bool
	// Extra keeps unknown tags in their original order so round-trips never
	// disturb operator-owned labels.
	Extra []string
}

// DecodeTags parses a Shopify tag string (comma-joined, usually with a
// trailing space after each comma) into markers.
func DecodeTags(tagString string) Markers {
	markers := Markers{Sent: map[string]bool{}}
	for _, raw := range strings.Split(tagString, ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		switch {
		case tag == TagNotification:
			markers.Notification = true
		case tag == TagNotified:
			markers.Notified = true
		case tag == TagDelivered:
			markers.Delivered = true
		case strings.HasPrefix(tag, TimerTagPrefix):
			millis, err := strconv.ParseInt(strings.TrimPrefix(tag, TimerTagPrefix), 10, 64)
			if err != nil {
				markers.Extra = appendUniqueTag(markers.Extra, tag)
				continue
			}
			markers.TimerDeadline = time.UnixMilli(millis).UTC()
		case strings.HasPrefix(tag, SentTagPrefix):
			short := strings.TrimSpace(strings.TrimPrefix(tag, SentTagPrefix))
			if short != "" {
				markers.Sent[short] = true
			}
		default:
			markers.Extra = appendUniqueTag(markers.Extra, tag)
		}
	}
	return markers
}

// EncodeTags serializes markers back into a tag slice. Order is
// deterministic: extra tags first (original order), then lifecycle markers,
// with sent markers sorted.
func (m Markers) EncodeTags() []string {
	tags := append([]string(nil), m.Extra...)
	if m.Notification {
		tags = append(tags, TagNotification)
	}
	if !m.TimerDeadline.IsZero() {
		tags = append(tags, TimerTagPrefix+strconv.FormatInt(m.TimerDeadline.UnixMilli(), 10))
	}
	sent := make([]string, 0, len(m.Sent))
	for short := range m.Sent {
		if strings.TrimSpace(short) != "" {
			sent = append(sent, SentTagPrefix+short)
		}
	}
	sort.Strings(sent)
	tags = append(tags, sent...)
	if m.Notified {
		tags = append(tags, TagNotified)
	}
	if m.Delivered {
		tags = append(tags, TagDelivered)
	}
	return tags
}

// EncodeTagString joins the encoded tags the way Shopify renders them.
func (m Markers) EncodeTagString() string {
	return strings.Join(m.EncodeTags(), ", ")
}

// HasSent reports whether the idempotency marker for a short name is present.
func (m Markers) HasSent(shortName string) bool {
	return m.Sent[shortName]
}

// NormalizeTags returns a sorted, deduplicated copy used for changed-set
// comparison, so reordered but identical tag sets never trigger a remote
// update.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}
	sort.Strings(normalized)
	return normalized
}

// TagsEqual compares two tag slices on their normalized representation.
func TagsEqual(a []string, b []string) bool {
	left := NormalizeTags(a)
	right := NormalizeTags(b)
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

func appendUniqueTag(tags []string, tag string) []string {
	for _, existing := range tags {
		if existing == tag {
			return tags
		}
	}
	return append(tags, tag)
}

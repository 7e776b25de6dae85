package core

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

type AttachmentState string

const (
	// AttachmentPending means the artifact file has not been uploaded yet.
	AttachmentPending AttachmentState = "pending"
	// AttachmentUnsent means the file exists but no idempotency marker does.
	AttachmentUnsent AttachmentState = "unsent"
	// AttachmentSent means a sent:img: marker already covers this file.
	AttachmentSent AttachmentState = "sent"
)

// ResolvedAttachment pairs an attachment slot with its canonical short name
// and delivery state for this invocation.
type ResolvedAttachment struct {
	Name      string
	FileRef   string
	ShortName string
	State     AttachmentState
}

// ResolvedSet is the resolver output for one order snapshot, in snapshot
// order.
type ResolvedSet struct {
	Items []ResolvedAttachment
}

// ResolveAttachments classifies every attachment slot against the decoded
// markers. Short names are derived from the file reference path so repeated
// deliveries of the same event always recompute the same marker.
func ResolveAttachments(snapshot OrderSnapshot, markers Markers) ResolvedSet {
	shortNames := make([]string, len(snapshot.Attachments))
	for i, attachment := range snapshot.Attachments {
		if attachment.FileRef == "" {
			continue
		}
		shortNames[i] = shortNameFromRef(attachment.FileRef, 0)
	}
	widenShortNames(snapshot.Attachments, shortNames)

	set := ResolvedSet{Items: make([]ResolvedAttachment, 0, len(snapshot.Attachments))}
	for i, attachment := range snapshot.Attachments {
		item := ResolvedAttachment{
			Name:      attachment.Name,
			FileRef:   attachment.FileRef,
			ShortName: shortNames[i],
			State:     AttachmentPending,
		}
		if attachment.FileRef != "" {
			item.State = AttachmentUnsent
			if markers.HasSent(item.ShortName) {
				item.State = AttachmentSent
			}
		}
		set.Items = append(set.Items, item)
	}
	return set
}

// CountResolved reports how many slots have a non-empty file reference,
// which is how the decision engine detects whether all expected files have
// arrived.
func (s ResolvedSet) CountResolved() int {
	count := 0
	for _, item := range s.Items {
		if item.FileRef != "" {
			count++
		}
	}
	return count
}

// Unsent returns the items dispatch still owes, in snapshot order.
func (s ResolvedSet) Unsent() []ResolvedAttachment {
	items := make([]ResolvedAttachment, 0, len(s.Items))
	for _, item := range s.Items {
		if item.State == AttachmentUnsent {
			items = append(items, item)
		}
	}
	return items
}

// widenShortNames re-derives colliding names with one more path segment per
// round until every non-empty short name is unique. Refs that exhaust their
// path and host without diverging get an ordinal suffix so each file still
// keeps its own marker.
func widenShortNames(attachments []Attachment, shortNames []string) {
	const maxDepth = 4
	for depth := 1; depth <= maxDepth; depth++ {
		counts := map[string]int{}
		for _, short := range shortNames {
			if short != "" {
				counts[short]++
			}
		}
		collided := false
		for i := range shortNames {
			if shortNames[i] == "" || counts[shortNames[i]] < 2 {
				continue
			}
			collided = true
			shortNames[i] = shortNameFromRef(attachments[i].FileRef, depth)
		}
		if !collided {
			return
		}
	}

	counts := map[string]int{}
	for _, short := range shortNames {
		if short != "" {
			counts[short]++
		}
	}
	seen := map[string]int{}
	for i, short := range shortNames {
		if short == "" || counts[short] < 2 {
			continue
		}
		seen[short]++
		if seen[short] > 1 {
			shortNames[i] = fmt.Sprintf("%s-%d", short, seen[short])
		}
	}
}

// shortNameFromRef derives a marker-safe short name from the file reference
// path: the extension-stripped basename plus up to depth parent segments.
// When the path runs out of segments the host is prepended instead, so refs
// that differ only by domain still diverge.
func shortNameFromRef(fileRef string, depth int) string {
	trimmed := strings.TrimSpace(fileRef)
	segmentPath := trimmed
	host := ""
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Path != "" {
		segmentPath = parsed.Path
		host = parsed.Hostname()
	}
	base := path.Base(segmentPath)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.TrimSpace(base)
	if base == "" || base == "/" || base == "." {
		base = "file"
	}
	parts := []string{base}
	dir := path.Dir(segmentPath)
	for step := 0; step < depth; step++ {
		parent := strings.TrimSpace(path.Base(dir))
		if parent == "" || parent == "/" || parent == "." {
			if host != "" {
				parts = append([]string{strings.ReplaceAll(host, ".", "-")}, parts...)
			}
			break
		}
		parts = append([]string{parent}, parts...)
		dir = path.Dir(dir)
	}
	return strings.Join(parts, "-")
}

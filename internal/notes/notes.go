// Package notes renders selected feed items and webhook events as note title/content pairs.
package notes

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"traveler/traveler/internal/models"
)

const (
	// MaxTitleLen bounds every note title, in runes.
	MaxTitleLen = 200
	// MaxBodyLen bounds webhook content and payload blocks, in runes.
	MaxBodyLen = 20000

	DefaultPersona = "Traveler"
)

const (
	defaultEventSource = "webhook"
	defaultEventTitle  = "Webhook event"
	webhookTitlePrefix = "[Webhook] "
	provenancePrefix   = "Why I picked this: score="
	attributionPrefix  = "— "
	timestampMillisUTC = "2006-01-02T15:04:05.000Z"
)

// FormatItem renders a selected feed item.
func FormatItem(item models.ScoredItem, persona string) models.Note {
	persona = personaOrDefault(persona)

	lines := []string{"Source: " + item.URL}
	if !item.PublishedAt.IsZero() {
		lines = append(lines, "Published: "+item.PublishedAt.Format(time.RFC3339))
	}
	if item.Summary != "" {
		lines = append(lines, "Summary: "+item.Summary)
	}
	lines = append(lines,
		fmt.Sprintf("%s%.2f (%s)", provenancePrefix, item.Score, strings.Join(item.Reasons, ", ")),
		attributionPrefix+persona,
	)

	return models.Note{
		Title:   truncate(fmt.Sprintf("[%s] %s", item.Source, item.Title), MaxTitleLen),
		Content: join(lines),
	}
}

// FormatEvent renders a webhook event. now stamps events that carry no timestamp.
func FormatEvent(ev models.WebhookEvent, persona string, now time.Time) models.Note {
	persona = personaOrDefault(persona)

	titleBase := cmp.Or(ev.Title, ev.Event, defaultEventTitle)
	title := truncate(webhookTitlePrefix+Clip(titleBase, MaxTitleLen), MaxTitleLen)

	lines := []string{"Source: " + cmp.Or(ev.Source, defaultEventSource)}
	if ev.Event != "" {
		lines = append(lines, "Event: "+ev.Event)
	}
	lines = append(lines, "Timestamp: "+cmp.Or(ev.Timestamp, now.UTC().Format(timestampMillisUTC)))
	if ev.URL != "" {
		lines = append(lines, "URL: "+ev.URL)
	}
	if ev.Content != "" {
		lines = append(lines, "Content: "+Clip(ev.Content, MaxBodyLen))
	}
	if payload := renderPayload(ev.Payload); payload != "" {
		lines = append(lines, "Payload:\n"+payload)
	}
	lines = append(lines, attributionPrefix+persona)

	return models.Note{Title: title, Content: join(lines)}
}

// FormatDigest renders one note listing the items written in a run.
func FormatDigest(items []models.ScoredItem, persona string, now time.Time) models.Note {
	lines := make([]string, 0, len(items)+1)
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- [%s] %s (%s)", item.Source, item.Title, item.URL))
	}
	lines = append(lines, attributionPrefix+personaOrDefault(persona))

	return models.Note{
		Title:   truncate("[Traveler] Daily digest "+now.Format(time.DateOnly), MaxTitleLen),
		Content: join(lines),
	}
}

// ParseProvenance recovers the score and reasons from content produced by FormatItem.
func ParseProvenance(content string) (float64, []string, bool) {
	for _, line := range strings.Split(content, "\n") {
		rest, found := strings.CutPrefix(line, provenancePrefix)
		if !found {
			continue
		}
		num, list, found := strings.Cut(rest, " (")
		if !found || !strings.HasSuffix(list, ")") {
			return 0, nil, false
		}
		score, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, nil, false
		}
		list = strings.TrimSuffix(list, ")")
		reasons := []string{}
		if list != "" {
			reasons = strings.Split(list, ", ")
		}
		return score, reasons, true
	}
	return 0, nil, false
}

// Clip trims surrounding whitespace and keeps at most max runes.
func Clip(s string, max int) string {
	return truncate(strings.TrimSpace(s), max)
}

func truncate(s string, max int) string {
	if max < 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func renderPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return Clip(string(raw), MaxBodyLen)
	}
	return Clip(buf.String(), MaxBodyLen)
}

func join(lines []string) string {
	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func personaOrDefault(p string) string {
	if p == "" {
		return DefaultPersona
	}
	return p
}

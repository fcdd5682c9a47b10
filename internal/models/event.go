package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotObject is returned when a webhook body is valid JSON but not an object.
var ErrNotObject = errors.New("webhook body is not a JSON object")

// WebhookEvent is the recognised subset of an inbound webhook body.
// Every field is optional; an empty value means absent.
type WebhookEvent struct {
	Title     string
	Content   string
	Event     string
	Source    string
	URL       string
	Tags      []string
	Timestamp string
	Payload   json.RawMessage // nil when absent or falsy
}

// ParseWebhookEvent decodes body into a WebhookEvent.
//
// String fields take JSON strings as-is and other scalars as their JSON text;
// objects, arrays and null count as absent. Tags keeps the non-empty strings
// of an array. Payload is kept verbatim unless it is null, false, 0 or "".
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return WebhookEvent{}, fmt.Errorf("decoding webhook event: %w", err)
	}
	if fields == nil {
		return WebhookEvent{}, ErrNotObject
	}

	ev := WebhookEvent{
		Title:     scalarText(fields["title"]),
		Content:   scalarText(fields["content"]),
		Event:     scalarText(fields["event"]),
		Source:    scalarText(fields["source"]),
		URL:       scalarText(fields["url"]),
		Timestamp: scalarText(fields["timestamp"]),
		Tags:      stringList(fields["tags"]),
	}
	if raw := bytes.TrimSpace(fields["payload"]); !falsy(raw) {
		ev.Payload = json.RawMessage(raw)
	}
	return ev, nil
}

func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func falsy(raw []byte) bool {
	switch string(raw) {
	case "", "null", "false", `""`:
		return true
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return f == 0
	}
	return false
}

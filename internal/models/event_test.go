package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent_Fields(t *testing.T) {
	body := []byte(`{
		"title": "Deploy finished",
		"event": "deploy",
		"source": "ci",
		"url": "https://ci.example.com/runs/1",
		"content": "all green",
		"timestamp": "2026-01-02T03:04:05Z",
		"tags": ["ops", "", 3, "ci"],
		"payload": {"run": 1}
	}`)

	ev, err := ParseWebhookEvent(body)
	require.NoError(t, err)

	assert.Equal(t, "Deploy finished", ev.Title)
	assert.Equal(t, "deploy", ev.Event)
	assert.Equal(t, "ci", ev.Source)
	assert.Equal(t, "https://ci.example.com/runs/1", ev.URL)
	assert.Equal(t, "all green", ev.Content)
	assert.Equal(t, "2026-01-02T03:04:05Z", ev.Timestamp)
	assert.Equal(t, []string{"ops", "ci"}, ev.Tags)
	assert.JSONEq(t, `{"run":1}`, string(ev.Payload))
}

func TestParseWebhookEvent_ScalarCoercion(t *testing.T) {
	ev, err := ParseWebhookEvent([]byte(`{"title": 42, "event": true, "source": {"x":1}, "url": null}`))
	require.NoError(t, err)

	assert.Equal(t, "42", ev.Title)
	assert.Equal(t, "true", ev.Event)
	assert.Empty(t, ev.Source)
	assert.Empty(t, ev.URL)
}

func TestParseWebhookEvent_FalsyPayload(t *testing.T) {
	for _, p := range []string{`null`, `false`, `0`, `0.0`, `""`} {
		ev, err := ParseWebhookEvent([]byte(`{"payload": ` + p + `}`))
		require.NoError(t, err, p)
		assert.Nil(t, ev.Payload, p)
	}

	ev, err := ParseWebhookEvent([]byte(`{"payload": [1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", string(ev.Payload))
}

func TestParseWebhookEvent_Rejects(t *testing.T) {
	_, err := ParseWebhookEvent([]byte(`null`))
	assert.True(t, errors.Is(err, ErrNotObject))

	for _, body := range []string{`[1,2]`, `"text"`, `12`, `{"title":`, ``} {
		_, err := ParseWebhookEvent([]byte(body))
		assert.Error(t, err, body)
	}
}

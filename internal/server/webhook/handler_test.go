package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traveler/traveler/internal/models"
	"traveler/traveler/internal/verify"
)

type fakeNotes struct {
	calls []models.NoteRequest
	err   error
}

func (f *fakeNotes) CreateNote(_ context.Context, req models.NoteRequest) (models.CreatedNote, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return models.CreatedNote{}, f.err
	}
	return models.CreatedNote{ID: "note-42", Title: req.Title}, nil
}

func newHandler(t *testing.T, token, secret string, n *fakeNotes) http.Handler {
	t.Helper()
	v, err := verify.New(verify.Config{Mode: verify.ModeFor(token, secret), Token: token, Secret: secret})
	require.NoError(t, err)
	return NewHandler(Deps{
		Path:        "/webhook",
		MaxBody:     64,
		Persona:     "Scout",
		DefaultTags: []string{"inbox", "traveler"},
		Verifier:    v,
		Notes:       n,
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhook_RejectionOrder(t *testing.T) {
	n := &fakeNotes{}
	h := newHandler(t, "tok", "", n)
	jsonAuth := map[string]string{"Content-Type": "application/json", "Authorization": "Bearer tok"}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		header map[string]string
		status int
		code   string
	}{
		{"wrong path", http.MethodPost, "/other", `{}`, jsonAuth, 404, "not_found"},
		{"wrong path and method", http.MethodGet, "/other", "", nil, 404, "not_found"},
		{"wrong method", http.MethodGet, "/webhook", "", nil, 405, "method_not_allowed"},
		{"no content type", http.MethodPost, "/webhook", `{}`, map[string]string{"Authorization": "Bearer tok"}, 415, "content_type"},
		{"text content type", http.MethodPost, "/webhook", `{}`, map[string]string{"Content-Type": "text/plain"}, 415, "content_type"},
		{"too large before auth", http.MethodPost, "/webhook", strings.Repeat("x", 65), map[string]string{"Content-Type": "application/json"}, 413, "payload_too_large"},
		{"bad token", http.MethodPost, "/webhook", `{}`, map[string]string{"Content-Type": "application/json", "Authorization": "Bearer nope"}, 401, "token_invalid"},
		{"invalid json", http.MethodPost, "/webhook", `{"title":`, jsonAuth, 400, "invalid_json"},
		{"array body", http.MethodPost, "/webhook", `[1]`, jsonAuth, 400, "invalid_json"},
		{"null body", http.MethodPost, "/webhook", `null`, jsonAuth, 400, "invalid_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, tt.body, tt.header)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, map[string]any{"ok": false, "error": tt.code}, decode(t, rec))
		})
	}
	assert.Empty(t, n.calls, "no rejected request may create a note")
}

func TestWebhook_CreatesNote(t *testing.T) {
	n := &fakeNotes{}
	h := newHandler(t, "tok", "", n)

	rec := do(h, http.MethodPost, "/webhook", `{"title":"Deploy","source":"ci","tags":["ops"]}`, map[string]string{
		"Content-Type":    "application/json; charset=utf-8",
		"X-Webhook-Token": "tok",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "id": "note-42"}, decode(t, rec))

	require.Len(t, n.calls, 1)
	assert.Equal(t, "[Webhook] Deploy", n.calls[0].Title)
	assert.Equal(t, []string{"ops"}, n.calls[0].Tags)
	assert.Equal(t, "Source: ci\nTimestamp: 2026-01-02T03:04:05.000Z\n— Scout", n.calls[0].Content)
}

func TestWebhook_DefaultTagsAndSignature(t *testing.T) {
	n := &fakeNotes{}
	h := newHandler(t, "", "shh", n)
	body := `{"event":"push"}`

	rec := do(h, http.MethodPost, "/webhook", body, map[string]string{
		"Content-Type":        "application/json",
		"X-Hub-Signature-256": "sha256=" + verify.Sign("shh", []byte(body)),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, n.calls, 1)
	assert.Equal(t, []string{"inbox", "traveler"}, n.calls[0].Tags)

	rec = do(h, http.MethodPost, "/webhook", body, map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "signature_missing", decode(t, rec)["error"])
}

func TestWebhook_ValidTokenWithoutContentType(t *testing.T) {
	n := &fakeNotes{}
	h := newHandler(t, "tok", "", n)

	rec := do(h, http.MethodPost, "/webhook", `{"title":"x"}`, map[string]string{"Authorization": "Bearer tok"})

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "content_type", decode(t, rec)["error"])
	assert.Empty(t, n.calls)
}

func TestWebhook_DownstreamFailure(t *testing.T) {
	n := &fakeNotes{err: errors.New("rote HTTP 503")}
	h := newHandler(t, "tok", "", n)

	rec := do(h, http.MethodPost, "/webhook", `{}`, map[string]string{"Content-Type": "application/json", "Authorization": "Bearer tok"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"ok": false, "error": "rote_failed"}, decode(t, rec))
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tools/invoke", r.URL.Path)
		assert.Equal(t, "Bearer gw-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL+"/", "gw-token").Invoke(context.Background(), InvokeRequest{
		Tool:   "cron",
		Action: "wake",
		Args:   map[string]any{"text": "hi", "mode": "now"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"ok": true}, resp)
	assert.Equal(t, map[string]any{
		"tool":   "cron",
		"action": "wake",
		"args":   map[string]any{"text": "hi", "mode": "now"},
	}, got)
}

func TestInvoke_SessionKeyAndEmptyArgs(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("accepted"))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "t").Invoke(context.Background(), InvokeRequest{Tool: "cron", SessionKey: "main"})
	require.NoError(t, err)

	assert.Equal(t, "accepted", resp)
	assert.Equal(t, map[string]any{"tool": "cron", "args": map[string]any{}, "sessionKey": "main"}, got)
}

func TestInvoke_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(strings.Repeat("e", 900)))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").Invoke(context.Background(), InvokeRequest{Tool: "cron"})

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.Status)
	assert.Len(t, upErr.Body, 500)
}

func TestInvoke_TruncatedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 64\r\n\r\n{\"ok\":")
		buf.Flush()
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "t").Invoke(context.Background(), InvokeRequest{Tool: "cron"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
	assert.Nil(t, got)

	var upErr *UpstreamError
	assert.False(t, errors.As(err, &upErr))
}

// Package rote creates notes through the Rote "openkey" API.
package rote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"traveler/traveler/internal/models"
)

const defaultTimeout = 30 * time.Second

// UpstreamError is returned when the API answers with a non-2xx status or a
// non-zero envelope code.
type UpstreamError struct {
	Status  int
	Body    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return "rote error: " + e.Message
	}
	return fmt.Sprintf("rote HTTP %d: %s", e.Status, e.Body)
}

// Client talks to one Rote deployment with one open key.
type Client struct {
	baseURL    string
	openKey    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. Trailing slashes are ignored.
func NewClient(baseURL, openKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		openKey: openKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type createNoteBody struct {
	OpenKey string `json:"openkey"`
	models.NoteRequest
}

type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateNote posts req and returns the created note.
func (c *Client) CreateNote(ctx context.Context, req models.NoteRequest) (models.CreatedNote, error) {
	body, err := json.Marshal(createNoteBody{OpenKey: c.openKey, NoteRequest: req})
	if err != nil {
		return models.CreatedNote{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/openkey/notes?" + url.Values{"openkey": {c.openKey}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.CreatedNote{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.CreatedNote{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CreatedNote{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.CreatedNote{}, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return models.CreatedNote{}, &UpstreamError{Status: resp.StatusCode, Body: string(respBody), Message: "malformed response"}
	}
	if env.Code == nil {
		return models.CreatedNote{}, &UpstreamError{Status: resp.StatusCode, Body: string(respBody), Message: "missing code"}
	}
	if *env.Code != 0 {
		msg := env.Message
		if msg == "" {
			msg = "unknown"
		}
		return models.CreatedNote{}, &UpstreamError{Status: resp.StatusCode, Body: string(respBody), Message: msg}
	}

	var note models.CreatedNote
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &note); err != nil {
			return models.CreatedNote{}, fmt.Errorf("decoding created note: %w", err)
		}
	}
	return note, nil
}

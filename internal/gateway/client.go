// Package gateway invokes tools on an agent gateway over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 500
)

// UpstreamError is returned when the gateway answers with a non-2xx status.
// Body holds at most the first 500 bytes of the response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gateway invoke failed: status=%d body=%s", e.Status, e.Body)
}

// InvokeRequest is the body of POST /tools/invoke.
type InvokeRequest struct {
	Tool       string         `json:"tool"`
	Action     string         `json:"action,omitempty"`
	Args       map[string]any `json:"args"`
	SessionKey string         `json:"sessionKey,omitempty"`
}

// Client calls one gateway with one bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a gateway client. Trailing slashes on baseURL are ignored.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Invoke posts req and returns the decoded response, or the raw text when it is not JSON.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (any, error) {
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if readErr != nil {
		return nil, fmt.Errorf("reading response: %w", readErr)
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return string(respBody), nil
	}
	return data, nil
}

// Package receiver accepts arbitrary signed webhooks and relays them to an agent gateway.
package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"traveler/traveler/internal/gateway"
	"traveler/traveler/internal/metrics"
	"traveler/traveler/internal/server"
	"traveler/traveler/internal/verify"
)

const (
	// ServiceName is reported by the health check.
	ServiceName = "traveler-receiver"

	SourceHeader    = "X-Traveler-Source"
	SignatureHeader = "X-Signature-256"

	githubEventHeader    = "X-Github-Event"
	githubDeliveryHeader = "X-Github-Delivery"

	serverName = "receiver"
)

// Relayer forwards a tool invocation to the gateway.
type Relayer interface {
	Invoke(ctx context.Context, req gateway.InvokeRequest) (any, error)
}

// Deps are the receiver's collaborators and settings.
type Deps struct {
	Path         string
	MaxBody      int64
	AllowSources []string
	// Verifier runs in verify.Open or verify.SignatureOnly mode.
	Verifier   *verify.Verifier
	Gateway    Relayer
	SessionKey string
	Metrics    http.Handler
	Now        func() time.Time
	NewID      func() string
}

// Envelope is the structured context relayed for every accepted event.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	ReceivedAt string          `json:"receivedAt"`
	Headers    EnvelopeHeaders `json:"headers"`
	Body       any             `json:"body"`
}

// EnvelopeHeaders are the selected request headers; absent headers are null.
type EnvelopeHeaders struct {
	GithubEvent    *string `json:"x-github-event"`
	GithubDelivery *string `json:"x-github-delivery"`
}

// NewHandler builds the receiver's routes.
func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		server.WriteJSON(w, r, http.StatusOK, map[string]any{"ok": true, "service": ServiceName})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Post(deps.Path, handleEvent(deps))

	// Method is checked before path, so a POST to a GET route is a 404.
	r.MethodNotAllowed(unmatched)
	r.NotFound(unmatched)
	return r
}

func unmatched(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		reply(w, r, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method_not_allowed"})
		return
	}
	reply(w, r, http.StatusNotFound, map[string]any{"ok": false, "error": "not_found"})
}

func handleEvent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		source := sourceOf(r.Header)
		if len(deps.AllowSources) > 0 && !slices.Contains(deps.AllowSources, source) {
			log.Info().Str("source", source).Msg("Ignoring event from source not on allow-list")
			reply(w, r, http.StatusOK, map[string]any{
				"ok":      true,
				"ignored": true,
				"reason":  "source_not_allowed:" + source,
			})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, deps.MaxBody+1))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read body")
			reply(w, r, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid_body"})
			return
		}
		if int64(len(body)) > deps.MaxBody {
			reply(w, r, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "error": "payload_too_large"})
			return
		}

		if err := deps.Verifier.Verify(body, r.Header); err != nil {
			log.Warn().Err(err).Str("source", source).Msg("Signature verification failed")
			reply(w, r, http.StatusUnauthorized, map[string]any{"ok": false, "error": "signature_verification_failed"})
			return
		}

		env := Envelope{
			ID:         deps.NewID(),
			Source:     source,
			ReceivedAt: deps.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			Headers: EnvelopeHeaders{
				GithubEvent:    headerOrNil(r.Header, githubEventHeader),
				GithubDelivery: headerOrNil(r.Header, githubDeliveryHeader),
			},
			Body: parseBody(body),
		}

		forwarded := deps.Gateway != nil
		if forwarded {
			text, err := RelayText(env)
			if err != nil {
				log.Error().Err(err).Msg("Failed to encode envelope")
				reply(w, r, http.StatusInternalServerError, map[string]any{"ok": false, "error": "encode_failed"})
				return
			}

			_, err = deps.Gateway.Invoke(r.Context(), gateway.InvokeRequest{
				Tool:       "cron",
				Action:     "wake",
				Args:       map[string]any{"text": text, "mode": "now"},
				SessionKey: deps.SessionKey,
			})
			metrics.RecordRelay(err)
			if err != nil {
				log.Error().Err(err).Str("id", env.ID).Msg("Gateway relay failed")
				reply(w, r, http.StatusBadGateway, map[string]any{"ok": false, "error": "gateway_failed"})
				return
			}
		}

		log.Info().
			Str("id", env.ID).
			Str("source", source).
			Bool("forwarded", forwarded).
			Msg("Event received")
		reply(w, r, http.StatusOK, map[string]any{"ok": true, "forwarded": forwarded})
	}
}

// RelayText renders the free-text instruction sent to the gateway.
func RelayText(env Envelope) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return "", err
	}
	encoded := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return strings.Join([]string{
		"[Traveler] Passive event received (" + env.Source + ")",
		"",
		"Context (structured):",
		string(encoded),
		"",
		"Instruction:",
		"- Decide whether to record this as a Rote note.",
		"- If you write to Rote, include the source + why it matters.",
	}, "\n"), nil
}

// sourceOf prefers the explicit source header, then recognizes GitHub.
func sourceOf(h http.Header) string {
	if s := strings.TrimSpace(h.Get(SourceHeader)); s != "" {
		return s
	}
	if h.Get(githubEventHeader) != "" {
		return "github"
	}
	return "custom"
}

func headerOrNil(h http.Header, name string) *string {
	if _, ok := h[http.CanonicalHeaderKey(name)]; !ok {
		return nil
	}
	v := h.Get(name)
	return &v
}

// parseBody returns the decoded JSON value, or the raw text when the body is not JSON.
func parseBody(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

func reply(w http.ResponseWriter, r *http.Request, status int, v map[string]any) {
	metrics.WebhookRequests.WithLabelValues(serverName, strconv.Itoa(status)).Inc()
	server.WriteJSON(w, r, status, v)
}

// Package webhook turns authenticated webhook events into notes.
package webhook

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"traveler/traveler/internal/metrics"
	"traveler/traveler/internal/models"
	"traveler/traveler/internal/notes"
	"traveler/traveler/internal/server"
	"traveler/traveler/internal/verify"
)

const serverName = "webhook"

// NoteCreator writes a note downstream.
type NoteCreator interface {
	CreateNote(ctx context.Context, req models.NoteRequest) (models.CreatedNote, error)
}

// Deps are the handler's collaborators and settings.
type Deps struct {
	Path        string
	MaxBody     int64
	Persona     string
	DefaultTags []string
	Verifier    *verify.Verifier
	Notes       NoteCreator
	Now         func() time.Time
}

// NewHandler routes POST deps.Path to the event handler. Any other path is
// 404 and any other method on the path is 405.
func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})
	r.Post(deps.Path, handleEvent(deps))
	return r
}

func handleEvent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)

		if !isJSON(r.Header.Get("Content-Type")) {
			reply(w, r, http.StatusUnsupportedMediaType, "content_type")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, deps.MaxBody+1))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read webhook body")
			reply(w, r, http.StatusBadRequest, "invalid_body")
			return
		}
		if int64(len(body)) > deps.MaxBody {
			reply(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}

		if err := deps.Verifier.Verify(body, r.Header); err != nil {
			var authErr *verify.AuthError
			if errors.As(err, &authErr) {
				log.Warn().Str("reason", authErr.Reason).Msg("Webhook rejected")
				reply(w, r, http.StatusUnauthorized, authErr.Reason)
				return
			}
			reply(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		ev, err := models.ParseWebhookEvent(body)
		if err != nil {
			reply(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		note := notes.FormatEvent(ev, deps.Persona, deps.Now())
		tags := ev.Tags
		if len(tags) == 0 {
			tags = deps.DefaultTags
		}

		created, err := deps.Notes.CreateNote(r.Context(), models.NewNoteRequest(note, tags))
		metrics.RecordNote(serverName, err)
		if err != nil {
			log.Error().Err(err).Str("title", note.Title).Msg("Failed to create note from webhook")
			reply(w, r, http.StatusInternalServerError, "rote_failed")
			return
		}

		log.Info().Str("id", created.ID).Str("title", note.Title).Msg("Wrote note from webhook")
		metrics.WebhookRequests.WithLabelValues(serverName, "200").Inc()
		server.WriteJSON(w, r, http.StatusOK, map[string]any{"ok": true, "id": created.ID})
	}
}

func reply(w http.ResponseWriter, r *http.Request, status int, code string) {
	metrics.WebhookRequests.WithLabelValues(serverName, strconv.Itoa(status)).Inc()
	server.WriteError(w, r, status, code)
}

// isJSON matches any content type whose value mentions application/json.
func isJSON(contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/json" {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

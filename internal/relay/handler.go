package relay

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storyproof/lead-relay/internal/config"
	"github.com/storyproof/lead-relay/internal/models"
	"github.com/storyproof/lead-relay/internal/providers/graph"
)

const livenessMessage = "lead relay is running"

// Option customises handler behaviour.
type Option func(*Handler)

// WithClock replaces the clock used for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// Handler is the submission relay endpoint. It routes HTTP methods
// internally so the CORS headers are applied uniformly: OPTIONS satisfies
// preflight, GET answers a liveness probe, POST runs the relay pipeline and
// everything else is rejected. Each invocation is independent; no state is
// shared across requests.
type Handler struct {
	logger        zerolog.Logger
	provider      graph.Provider
	recipient     string
	allowedOrigin string
	siteOrigin    string
	formName      string
	strictParsing bool
	now           func() time.Time
}

// NewHandler constructs the relay endpoint from its collaborators.
func NewHandler(provider graph.Provider, cfg config.RelayConfig, recipient string, logger zerolog.Logger, opts ...Option) (*Handler, error) {
	if provider == nil {
		return nil, errors.New("relay handler: provider dependency is required")
	}
	if recipient == "" {
		return nil, errors.New("relay handler: notify recipient is required")
	}
	if cfg.AllowedOrigin == "" {
		return nil, errors.New("relay handler: allowed origin is required")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	h := &Handler{
		logger:        logger,
		provider:      provider,
		recipient:     recipient,
		allowedOrigin: cfg.AllowedOrigin,
		siteOrigin:    cfg.DefaultSiteOrigin,
		formName:      cfg.DefaultFormName,
		strictParsing: cfg.StrictParsing,
		now:           time.Now,
	}
	if h.siteOrigin == "" {
		h.siteOrigin = cfg.AllowedOrigin
	}
	if h.formName == "" {
		h.formName = "contact"
	}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.applyCORS(w)

	log := h.logger.With().
		Str("invocation_id", uuid.NewString()).
		Str("method", r.Method).
		Logger()

	switch r.Method {
	case http.MethodOptions:
		log.Debug().Msg("relay: preflight satisfied")
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		log.Debug().Msg("relay: liveness probe")
		respond(w, http.StatusOK, livenessMessage)
	case http.MethodPost:
		h.handleSubmit(w, r, log)
	default:
		log.Debug().Msg("relay: unsupported method")
		respond(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// handleSubmit runs the single-invocation pipeline: parse, default, compose,
// token exchange and dispatch, then exactly one response. Failures converge
// to one top-level error mapping; nothing is retried.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("relay: failed to read request body")
		respond(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	log.Info().
		Int("body_bytes", len(body)).
		Bool("strict_parsing", h.strictParsing).
		Msg("relay: submission received")

	sub, err := models.ParseSubmission(body, h.strictParsing)
	if err != nil {
		log.Warn().Err(err).Msg("relay: rejecting malformed submission")
		respond(w, http.StatusBadRequest, "Error: "+err.Error())
		return
	}

	sub.ApplyDefaults(h.now(), h.siteOrigin, h.formName)

	log.Info().
		Str("form_name", sub.FormName).
		Str("site_origin", sub.Site.URL).
		Strs("field_keys", sub.Data.Keys()).
		Msg("relay: submission parsed")

	msg := BuildEmail(sub, h.recipient)

	raw, err := h.provider.Send(r.Context(), msg)
	if err != nil {
		stage := "send"
		if errors.Is(err, graph.ErrTokenRequest) {
			stage = "token"
		}
		log.Error().Err(err).Str("stage", stage).Msg("relay: submission relay failed")
		respond(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	if raw != nil {
		log.Info().Int("upstream_status", raw.Code).Msg("relay: notification email dispatched")
	}
	respond(w, http.StatusOK, "OK")
}

// applyCORS attaches the fixed CORS headers to every response, success or
// failure, so browser preflight and response handling behave uniformly.
func (h *Handler) applyCORS(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", h.allowedOrigin)
	header.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

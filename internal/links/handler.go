package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
	"github.com/sundayezeilo/shortlinks/internal/validation"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	TargetURL string `json:"targetUrl" validate:"notblank,max=2048"`
	Code      string `json:"code,omitempty" validate:"omitempty,alphanum,min=6,max=8"`
}

// LinkResponse is the JSON representation of a link.
type LinkResponse struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	TargetURL   string  `json:"target_url"`
	ShortURL    string  `json:"short_url"`
	Clicks      int64   `json:"clicks"`
	LastClicked *string `json:"last_clicked"`
	CreatedAt   string  `json:"created_at"`
}

// ResolveResponse is returned by the JSON redirect endpoint.
type ResolveResponse struct {
	TargetURL string `json:"target_url"`
}

// Handler provides HTTP handlers for the link store.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// ListLinks handles GET /links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := h.service.List(ctx)
	if err != nil {
		h.handleError(ctx, w, r, err)
		return
	}

	resp := make([]LinkResponse, 0, len(all))
	for _, link := range all {
		resp = append(resp, h.toResponse(link))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// CreateLink handles POST /links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if err := validation.Struct(req); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"error", err.Error(),
			"target_url", req.TargetURL,
			"code", req.Code,
		)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		TargetURL: req.TargetURL,
		Code:      req.Code,
	})
	if err != nil {
		h.handleError(ctx, w, r, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID.String(),
		"code", link.Code,
		"custom_code", req.Code != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// GetLink handles GET /links/{code}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.service.Get(ctx, r.PathValue("code"))
	if err != nil {
		h.handleError(ctx, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /links/{code}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	if err := h.service.Delete(ctx, code); err != nil {
		h.handleError(ctx, w, r, err)
		return
	}

	h.requestLogger(r).InfoContext(ctx, "link deleted", "code", code)
	httpx.WriteMessage(w, http.StatusOK, "Link deleted")
}

// ResolveLink handles GET /redirect/{code}: it records a click and returns the target as JSON.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetURL, err := h.service.Resolve(ctx, r.PathValue("code"))
	if err != nil {
		h.handleError(ctx, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ResolveResponse{TargetURL: targetURL})
}

// RedirectLink handles GET /{code}: it records a click and redirects the browser.
func (h *Handler) RedirectLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	targetURL, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.handleError(ctx, w, r, err)
		return
	}

	h.requestLogger(r).DebugContext(ctx, "redirecting",
		"code", code,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)
	// a cached redirect would skip click accounting
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, targetURL, http.StatusFound)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// handleError maps a service error onto the HTTP response.
func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	kind := errx.KindOf(err)
	logger := h.requestLogger(r)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	status := httpx.ErrorKindToStatus(kind)
	code := httpx.ErrorKindToCode(kind)

	switch kind {
	case errx.Invalid:
		logger.WarnContext(ctx, "invalid link request", logAttrs...)
		switch {
		case errors.Is(err, ErrInvalidURL):
			code = "invalid_url"
		case errors.Is(err, ErrInvalidCode):
			code = "invalid_code"
		}
		httpx.WriteError(w, status, code, rootMessage(err), nil)

	case errx.Conflict:
		logger.WarnContext(ctx, "code conflict", logAttrs...)
		httpx.WriteError(w, status, code, "Code already exists",
			map[string]string{
				"hint": "Try a different code or let one be generated for you",
			})

	case errx.NotFound:
		logger.DebugContext(ctx, "link not found", logAttrs...)
		httpx.WriteError(w, status, code, "Link not found", nil)

	case errx.Timeout:
		logger.ErrorContext(ctx, "storage timeout", logAttrs...)
		httpx.WriteError(w, status, code, "The request timed out. Please try again.", nil)

	default:
		logger.ErrorContext(ctx, "storage error", logAttrs...)
		httpx.WriteError(w, status, code, "Database error", nil)
	}
}

func (h *Handler) toResponse(link Link) LinkResponse {
	resp := LinkResponse{
		ID:        link.ID.String(),
		Code:      link.Code,
		TargetURL: link.TargetURL,
		ShortURL:  fmt.Sprintf("%s/%s", h.baseURL, link.Code),
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if link.LastClicked != nil {
		ts := link.LastClicked.UTC().Format(time.RFC3339Nano)
		resp.LastClicked = &ts
	}
	return resp
}

// rootMessage strips the op prefixes added on the way up, leaving the validation message.
func rootMessage(err error) string {
	for {
		var e *errx.Error
		if !errors.As(err, &e) || e.Err == nil {
			return err.Error()
		}
		err = e.Err
	}
}

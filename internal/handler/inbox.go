package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/inbox-sync-go/internal/audit"
	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/httputil"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/middleware"
	"github.com/openclaw/inbox-sync-go/internal/model"
)

// Sessions resolves the caller's inbox session.
type Sessions interface {
	Get(ctx context.Context, p model.Principal) (*inbox.Session, error)
	Lookup(p model.Principal) (*inbox.Session, bool)
	SignOut(ctx context.Context, p model.Principal) bool
}

type InboxHandler struct {
	sessions Sessions
}

func NewInboxHandler(sessions Sessions) *InboxHandler {
	return &InboxHandler{sessions: sessions}
}

func (h *InboxHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/context", h.GetContext)
	r.Post("/reload", h.Reload)
	r.Post("/sign-out", h.SignOut)

	r.Post("/selection/all", h.SelectAll)
	r.Post("/selection/single", h.SelectSingle)
	r.Post("/selection/toggle", h.ToggleInbox)
	r.Get("/selection/{inboxId}", h.IsInboxSelected)

	r.Post("/switch", h.SwitchInbox)
	r.Post("/refresh", h.RefreshContext)

	r.Post("/status/{inboxId}", h.UpdateInboxStatus)
	r.Post("/status/{inboxId}/refresh", h.RefreshInboxStatus)

	r.Get("/permissions/{permission}", h.HasPermission)
	r.Post("/visibility", h.SetVisibility)

	return r
}

type inboxIDRequest struct {
	InboxID string `json:"inboxId"`
}

func (h *InboxHandler) session(w http.ResponseWriter, r *http.Request) (*inbox.Session, bool) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return nil, false
	}

	s, err := h.sessions.Get(r.Context(), *principal)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return s, true
}

func (h *InboxHandler) readInboxID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req inboxIDRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	if req.InboxID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("inboxId"))
		return "", false
	}
	return req.InboxID, true
}

func writeSnapshot(w http.ResponseWriter, s *inbox.Session) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// GET /v1/inbox/context
func (h *InboxHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeSnapshot(w, s)
}

// POST /v1/inbox/reload
// Reruns the loader, e.g. after a load failure. A session created by this
// request has just been loaded and is not loaded again.
func (h *InboxHandler) Reload(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	s, ok := h.sessions.Lookup(*principal)
	if ok {
		if err := s.Load(r.Context()); err != nil {
			httputil.WriteError(w, err)
			return
		}
		writeSnapshot(w, s)
		return
	}

	s, ok = h.session(w, r)
	if !ok {
		return
	}
	if loadErr := s.Snapshot().Error; loadErr != nil && loadErr.Critical {
		code := apperrors.ErrorCode(loadErr.Code)
		httputil.WriteErrorWithStatus(w, httputil.StatusFromCode(code), apperrors.New(code, loadErr.Message))
		return
	}
	writeSnapshot(w, s)
}

// POST /v1/inbox/sign-out
func (h *InboxHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	if !h.sessions.SignOut(r.Context(), *principal) {
		log.Debug().Str("sessionId", principal.SessionID).Msg("sign-out without an active session")
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/inbox/selection/all
func (h *InboxHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SelectAll(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSnapshot(w, s)
}

// POST /v1/inbox/selection/single
func (h *InboxHandler) SelectSingle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	inboxID, ok := h.readInboxID(w, r)
	if !ok {
		return
	}
	if err := s.SelectSingle(inboxID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSnapshot(w, s)
}

// POST /v1/inbox/selection/toggle
func (h *InboxHandler) ToggleInbox(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	inboxID, ok := h.readInboxID(w, r)
	if !ok {
		return
	}
	if err := s.ToggleInbox(inboxID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSnapshot(w, s)
}

// GET /v1/inbox/selection/{inboxId}
func (h *InboxHandler) IsInboxSelected(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"selected": s.IsInboxSelected(chi.URLParam(r, "inboxId")),
	})
}

// POST /v1/inbox/switch
func (h *InboxHandler) SwitchInbox(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	inboxID, ok := h.readInboxID(w, r)
	if !ok {
		return
	}

	if err := s.SwitchInbox(r.Context(), inboxID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	event := audit.Event{
		Type:      audit.EventInboxSwitch,
		UserID:    principal.UserID,
		SessionID: principal.SessionID,
		Details:   map[string]interface{}{"inboxId": inboxID},
	}
	if ctx := s.GetState().Context; ctx != nil {
		event.AccountID = ctx.AccountID
	}
	audit.LogFromRequest(r, event)
	writeSnapshot(w, s)
}

// POST /v1/inbox/refresh
func (h *InboxHandler) RefreshContext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RefreshContext(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSnapshot(w, s)
}

// POST /v1/inbox/status/{inboxId}
// Pushes a status observed by the client, reconciled like a poll result.
func (h *InboxHandler) UpdateInboxStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		IsLoggedIn *bool `json:"isLoggedIn"`
	}
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.IsLoggedIn == nil {
		httputil.WriteError(w, apperrors.MissingRequired("isLoggedIn"))
		return
	}

	s.UpdateInboxStatus(chi.URLParam(r, "inboxId"), *req.IsLoggedIn)
	writeSnapshot(w, s)
}

// POST /v1/inbox/status/{inboxId}/refresh
func (h *InboxHandler) RefreshInboxStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := s.RefreshInboxStatus(r.Context(), chi.URLParam(r, "inboxId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /v1/inbox/permissions/{permission}
func (h *InboxHandler) HasPermission(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"allowed": s.HasPermission(chi.URLParam(r, "permission")),
	})
}

// POST /v1/inbox/visibility
// Reports whether the console is in the foreground.
func (h *InboxHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Visible == nil {
		httputil.WriteError(w, apperrors.MissingRequired("visible"))
		return
	}

	s.Touch()
	s.Visibility().Set(*req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

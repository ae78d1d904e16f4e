package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/careerpath/internal/conversation"
	"github.com/ashureev/careerpath/internal/domain"
	"github.com/ashureev/careerpath/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// maxInputBytes bounds the body of an input submission.
const maxInputBytes = 64 << 10

type inputRequest struct {
	Text string `json:"text"`
}

type selectResponse struct {
	Session  domain.Session `json:"session"`
	Fallback bool           `json:"fallback"`
}

type deleteResponse struct {
	Deleted  string `json:"deleted"`
	ActiveID string `json:"activeId"`
}

// RegisterRoutes registers the session and input routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", h.ListSessions)
		r.Post("/sessions", h.NewSession)
		r.Get("/sessions/active", h.ActiveSession)
		r.Post("/sessions/{id}/select", h.SelectSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Post("/input", h.SubmitInput)
		r.Post("/history/toggle", h.ToggleHistory)
	})
}

// ListSessions returns session summaries, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"sessions": h.ctrl.Sessions()})
}

// NewSession starts a new chat.
func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	sess := h.ctrl.StartNewChat(r.Context())
	JSON(w, http.StatusCreated, sess)
}

// ActiveSession returns the active session with its cursor state.
func (h *Handler) ActiveSession(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.ctrl.State())
}

// SelectSession loads a session. Unknown ids start a new chat instead.
func (h *Handler) SelectSession(w http.ResponseWriter, r *http.Request) {
	sess, fallback := h.ctrl.SelectSession(r.Context(), chi.URLParam(r, "id"))
	JSON(w, http.StatusOK, selectResponse{Session: sess, Fallback: fallback})
}

// DeleteSession removes a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ctrl.DeleteSession(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			Error(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("Failed to delete session", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	JSON(w, http.StatusOK, deleteResponse{Deleted: id, ActiveID: h.ctrl.ActiveID()})
}

// SubmitInput feeds one line of user input to the active session. Replies
// arrive asynchronously on the transcript stream.
func (h *Handler) SubmitInput(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		Error(w, http.StatusTooManyRequests, "too many messages, slow down")
		return
	}

	var req inputRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInputBytes)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, msg := inputStatus(h.ctrl.HandleInput(r.Context(), req.Text))
	if status != http.StatusAccepted {
		slog.Debug("Input rejected", "request_id", chiMiddleware.GetReqID(r.Context()), "reason", msg)
		Error(w, status, msg)
		return
	}
	JSON(w, http.StatusAccepted, map[string]any{"accepted": true, "state": h.ctrl.State()})
}

// ToggleHistory flips the history panel flag.
func (h *Handler) ToggleHistory(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]bool{"historyOpen": h.ctrl.ToggleHistory()})
}

func inputStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusAccepted, ""
	case errors.Is(err, conversation.ErrEmptyInput):
		return http.StatusBadRequest, "input is empty"
	case errors.Is(err, conversation.ErrNoActiveSession):
		return http.StatusConflict, "no active session"
	default:
		return http.StatusInternalServerError, "failed to handle input"
	}
}

package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	maxRequestBody = 1 << 20
	// failureMessage is the only error text clients ever see.
	failureMessage = "Failed to generate career path"
)

// Handler serves the generation endpoint on top of a Generator.
type Handler struct {
	gen Generator
}

// NewHandler returns a handler backed by gen. A nil gen answers every
// request with the generic failure.
func NewHandler(gen Generator) *Handler {
	return &Handler{gen: gen}
}

// RegisterRoutes mounts the endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/generate-career-path", h.HandleGenerate)
}

// HandleGenerate handles POST /api/generate-career-path.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid generation request", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Error: failureMessage})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusInternalServerError, Response{Error: failureMessage})
		return
	}
	if h.gen == nil {
		slog.Error("Error generating career path", "error", "no generator configured")
		writeJSON(w, http.StatusInternalServerError, Response{Error: failureMessage})
		return
	}

	text, err := h.gen.Generate(r.Context(), req.Prompt)
	if err != nil {
		slog.Error("Error generating career path", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Error: failureMessage})
		return
	}

	writeJSON(w, http.StatusOK, Response{Response: text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode generation response", "error", err)
	}
}

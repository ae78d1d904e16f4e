// Package api provides HTTP handlers for the career path assistant.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/careerpath/internal/conversation"
	"golang.org/x/time/rate"
)

// Handler exposes the conversation controller over HTTP.
type Handler struct {
	ctrl    *conversation.Controller
	limiter *rate.Limiter
}

// NewHandler creates a Handler. limiter throttles input submissions and
// may be shared with the transcript stream; nil disables throttling.
func NewHandler(ctrl *conversation.Controller, limiter *rate.Limiter) *Handler {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Handler{ctrl: ctrl, limiter: limiter}
}

// NewLimiter builds the input limiter from requests per second and burst.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

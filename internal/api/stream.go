package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/careerpath/internal/conversation"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"
)

const (
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// streamMessage is a frame sent by the client.
type streamMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// stateFrame is the first frame each client receives.
type stateFrame struct {
	Type  string             `json:"type"`
	State conversation.State `json:"state"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes controller events to every connected transcript client and
// accepts input frames from them.
type Hub struct {
	ctrl           *conversation.Controller
	limiter        *rate.Limiter
	allowedOrigins []string
	isDev          bool

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewHub creates a transcript hub. The controller is attached later with
// SetController since the controller publishes to the hub.
func NewHub(limiter *rate.Limiter, allowedOrigins []string, isDev bool) *Hub {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Hub{
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		clients:        make(map[*streamClient]struct{}),
	}
}

// SetController attaches the controller that receives input frames.
func (h *Hub) SetController(ctrl *conversation.Controller) {
	h.ctrl = ctrl
}

// OnEvent broadcasts e. Clients that cannot keep up are disconnected.
func (h *Hub) OnEvent(e conversation.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("Failed to encode transcript event", "error", err)
		return
	}

	h.mu.RLock()
	var slow []*streamClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("Transcript client too slow, disconnecting")
		h.unregister(c)
		_ = c.conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) register(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("Transcript client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	slog.Info("Transcript client disconnected", "clients", len(h.clients))
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &streamClient{conn: ws, send: make(chan []byte, clientBuffer)}
	snapshot, ok := h.attach(c)
	defer h.unregister(c)
	if ok {
		if err := writeFrame(ctx, ws, snapshot); err != nil {
			slog.Debug("Failed to send initial state", "error", err)
			return
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, c)
	}()

	h.readLoop(ctx, ws)
	cancel()
	wg.Wait()
}

// attach registers c before taking the state snapshot, so events published
// while the snapshot is written queue up in c.send instead of being lost.
// Such events may repeat what the snapshot already shows; message ids let
// clients drop the repeats.
func (h *Hub) attach(c *streamClient) (stateFrame, bool) {
	h.register(c)
	if h.ctrl == nil {
		return stateFrame{}, false
	}
	return stateFrame{Type: "state", State: h.ctrl.State()}, true
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		var msg streamMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("Transcript client closed")
			} else {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		switch msg.Type {
		case "input":
			if reason := h.handleInput(ctx, msg.Content); reason != "" {
				if err := writeFrame(ctx, ws, map[string]string{"type": "error", "error": reason}); err != nil {
					return
				}
			}
		case "ping":
			if err := writeFrame(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				return
			}
		default:
			slog.Debug("Ignoring unknown transcript frame", "type", msg.Type)
		}
	}
}

// handleInput returns the rejection reason, or "" when accepted.
func (h *Hub) handleInput(ctx context.Context, text string) string {
	if h.ctrl == nil {
		return "no active session"
	}
	if !h.limiter.Allow() {
		return "too many messages, slow down"
	}
	status, msg := inputStatus(h.ctrl.HandleInput(ctx, text))
	if status != http.StatusAccepted {
		return msg
	}
	return ""
}

func (h *Hub) writeLoop(ctx context.Context, c *streamClient) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, ws, v)
}

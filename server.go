package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/earshot-audio/earshot/internal/capture"
	"github.com/earshot-audio/earshot/internal/config"
	"github.com/earshot-audio/earshot/internal/eventlog"
	"github.com/earshot-audio/earshot/internal/storage"
	"github.com/earshot-audio/earshot/internal/types"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

// statusInterval is how often /ws clients receive a status push.
const statusInterval = 3 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin allows same-origin, localhost and private-network WebSocket
// clients. The daemon runs on a LAN; there is no public deployment story.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Same-origin requests omit the Origin header
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}
	host := u.Hostname()

	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	ip := net.ParseIP(host)
	if ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection: origin not allowed", "origin", origin)
	return false
}

// Server exposes the capture commands over HTTP and streams status and
// detections over WebSocket.
type Server struct {
	config   *config.Config
	engine   *capture.Engine
	events   *eventlog.Logger
	uploader *storage.Uploader
	version  *VersionChecker

	subMu sync.Mutex
	subs  map[chan wakeword.Detection]struct{}
}

// NewServer returns a Server wired to the capture engine.
func NewServer(cfg *config.Config, eng *capture.Engine, events *eventlog.Logger, uploader *storage.Uploader) *Server {
	return &Server{
		config:   cfg,
		engine:   eng,
		events:   events,
		uploader: uploader,
		version:  NewVersionChecker(),
		subs:     make(map[chan wakeword.Detection]struct{}),
	}
}

// BroadcastDetection pushes a detection to all connected WebSocket clients.
// Register it as an engine detection sink.
func (s *Server) BroadcastDetection(det wakeword.Detection) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- det:
		default: // slow client, drop rather than stall the dispatcher
		}
	}
}

func (s *Server) subscribe() chan wakeword.Detection {
	ch := make(chan wakeword.Detection, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan wakeword.Detection) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

// SetupRoutes returns an [http.Handler] configured with all application routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/recording/start", s.handleStartRecording)
	mux.HandleFunc("/api/recording/stop", s.handleStopRecording)
	mux.HandleFunc("/api/capture/save", s.handleSave)
	mux.HandleFunc("/api/halt", s.handleHalt)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return securityHeaders(mux)
}

// securityHeaders returns middleware that wraps handlers with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// handleStartRecording handles POST /api/recording/start.
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.engine.Status().Halting {
		writeError(w, http.StatusConflict, "daemon is halting")
		return
	}

	s.engine.StartRecording()
	_ = s.events.Log(eventlog.Event{Type: eventlog.RecordingStarted})
	writeJSON(w, http.StatusOK, types.AckResponse{Status: "recording_started"})
}

// handleStopRecording handles POST /api/recording/stop.
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.engine.StopRecording()
	_ = s.events.Log(eventlog.Event{Type: eventlog.RecordingStopped})
	writeJSON(w, http.StatusOK, types.AckResponse{Status: "recording_stopped"})
}

// handleSave handles POST /api/capture/save: flush the history buffer to a
// WAV file. The buffer keeps filling while the file is written.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.engine.Save()
	if err != nil {
		slog.Error("failed to save capture", "error", err)
		_ = s.events.Log(eventlog.Event{Type: eventlog.CaptureSaveError, Error: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = s.events.Log(eventlog.Event{Type: eventlog.CaptureSaved, Path: result.Path, Samples: result.Samples})
	s.uploader.Enqueue(result.Path)
	writeJSON(w, http.StatusOK, result)
}

// handleHalt handles POST /api/halt. The response is written before the
// process exits; the shutdown driver in main waits for the capture loop.
func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, types.AckResponse{Status: "halting"})
	s.engine.Halt()
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.buildStatus())
}

// handleEvents handles GET /api/events?n=50: the most recent journal entries.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			writeError(w, http.StatusBadRequest, "n must be between 1 and 1000")
			return
		}
		n = v
	}

	entries, err := s.events.Tail(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []eventlog.Event{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHealthz handles GET /healthz for liveness probes.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.engine.Status().Halting {
		http.Error(w, "halting", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleWebSocket streams status snapshots and live detections.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Only the writer goroutine writes to the connection, preventing race
	// conditions.
	send := make(chan any, 16)
	done := make(chan struct{})

	go s.runWebSocketWriter(conn, send)
	go s.runWebSocketReader(conn, done)

	s.runWebSocketEventLoop(send, done)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn *websocket.Conn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader drains the connection so pings are answered and signals
// when the client goes away. The stream is one-way; inbound frames are
// discarded.
func (s *Server) runWebSocketReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runWebSocketEventLoop pushes periodic status and live detections.
func (s *Server) runWebSocketEventLoop(send chan any, done <-chan struct{}) {
	detections := s.subscribe()
	defer s.unsubscribe(detections)

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	// Send initial status
	if !trySend(s.buildStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case det := <-detections:
			if !trySend(types.DetectionResponse{Type: "detection", Detection: det}) {
				close(send)
				return
			}
		case <-statusTicker.C:
			if !trySend(s.buildStatus()) {
				close(send)
				return
			}
		}
	}
}

// buildStatus returns the current status response.
func (s *Server) buildStatus() types.StatusResponse {
	return types.StatusResponse{
		Type:    "status",
		Capture: s.engine.Status(),
		Version: s.version.Info(),
	}
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.config.Snapshot().Port)
	slog.Info("starting command server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}

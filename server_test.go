package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/earshot-audio/earshot/internal/capture"
	"github.com/earshot-audio/earshot/internal/config"
	"github.com/earshot-audio/earshot/internal/types"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

// stubDetector never matches; the API tests only need a frame length.
type stubDetector struct{}

func (stubDetector) FrameLength() int             { return 512 }
func (stubDetector) Process([]int16) (int, error) { return wakeword.NoDetection, nil }
func (stubDetector) Keyword(int) string           { return "porcupine" }
func (stubDetector) Close() error                 { return nil }

func newTestServer(t *testing.T) (*Server, *capture.Engine, *capture.State) {
	t.Helper()

	state := capture.NewState(1024, t.TempDir())
	engine := capture.NewEngine(state, stubDetector{}, capture.Config{SampleRate: 16000, Channels: 1})

	srv := NewServer(config.New("unused.json"), engine, nil, nil)
	t.Cleanup(srv.version.Stop)
	return srv, engine, state
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) types.StatusResponse {
	t.Helper()
	var status types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return status
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	rec := doRequest(t, routes, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}

	status := decodeStatus(t, rec)
	if status.Type != "status" {
		t.Fatalf("type = %q, want status", status.Type)
	}
	if !status.Capture.Recording {
		t.Fatal("recording = false at startup, want true")
	}
	if status.Capture.BufferCapacity != 1024 {
		t.Fatalf("buffer capacity = %d, want 1024", status.Capture.BufferCapacity)
	}
}

func TestRecordingToggle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	rec := doRequest(t, routes, http.MethodPost, "/api/recording/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status code = %d, want 200", rec.Code)
	}
	if status := decodeStatus(t, doRequest(t, routes, http.MethodGet, "/api/status")); status.Capture.Recording {
		t.Fatal("recording still true after stop")
	}

	rec = doRequest(t, routes, http.MethodPost, "/api/recording/start")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status code = %d, want 200", rec.Code)
	}
	if status := decodeStatus(t, doRequest(t, routes, http.MethodGet, "/api/status")); !status.Capture.Recording {
		t.Fatal("recording still false after start")
	}
}

func TestCommandsRequirePost(t *testing.T) {
	srv, _, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	for _, path := range []string{
		"/api/recording/start",
		"/api/recording/stop",
		"/api/capture/save",
		"/api/halt",
	} {
		if rec := doRequest(t, routes, http.MethodGet, path); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s status code = %d, want 405", path, rec.Code)
		}
	}
}

func TestSaveEndpoint(t *testing.T) {
	srv, _, state := newTestServer(t)
	routes := srv.SetupRoutes()

	state.History.Push(make([]float32, 256))

	rec := doRequest(t, routes, http.MethodPost, "/api/capture/save")
	if rec.Code != http.StatusOK {
		t.Fatalf("save status code = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result types.SaveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode save result: %v", err)
	}
	if result.Samples != 256 {
		t.Fatalf("samples = %d, want 256", result.Samples)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
}

func TestHaltEndpoint(t *testing.T) {
	srv, engine, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	rec := doRequest(t, routes, http.MethodPost, "/api/halt")
	if rec.Code != http.StatusOK {
		t.Fatalf("halt status code = %d, want 200", rec.Code)
	}
	var ack types.AckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "halting" {
		t.Fatalf("ack = %q, want halting", ack.Status)
	}

	select {
	case <-engine.HaltRequested():
	default:
		t.Fatal("halt not propagated to the engine")
	}

	// Halting is terminal: the probe degrades and recording cannot restart.
	if rec := doRequest(t, routes, http.MethodGet, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz status code = %d, want 503", rec.Code)
	}
	if rec := doRequest(t, routes, http.MethodPost, "/api/recording/start"); rec.Code != http.StatusConflict {
		t.Fatalf("start while halting status code = %d, want 409", rec.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	// No journal configured: empty list, not an error.
	rec := doRequest(t, routes, http.MethodGet, "/api/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("events status code = %d, want 200", rec.Code)
	}
	var events []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d entries, want 0", len(events))
	}

	if rec := doRequest(t, routes, http.MethodGet, "/api/events?n=0"); rec.Code != http.StatusBadRequest {
		t.Fatalf("n=0 status code = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, routes, http.MethodGet, "/api/events?n=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("n=abc status code = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	rec := doRequest(t, routes, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status code = %d, want 200", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)
	routes := srv.SetupRoutes()

	rec := doRequest(t, routes, http.MethodGet, "/api/status")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}
}

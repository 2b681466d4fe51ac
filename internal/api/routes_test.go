package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

// MockVoiceClient records facade calls for testing
type MockVoiceClient struct {
	connectURL, connectLanguage string
	sessionID                   string
	synthesis                   usecase.SynthesisRequest
	rateLimit                   entities.RateLimitConfig
	recording                   bool
	cleared                     bool

	err error
}

func (m *MockVoiceClient) Connect(ctx context.Context, rawURL, language string) error {
	m.connectURL, m.connectLanguage = rawURL, language
	return m.err
}
func (m *MockVoiceClient) Disconnect(ctx context.Context) error { return m.err }
func (m *MockVoiceClient) StartSession(ctx context.Context) error { return m.err }
func (m *MockVoiceClient) SetSessionID(ctx context.Context, id string) error {
	m.sessionID = id
	return m.err
}
func (m *MockVoiceClient) Synthesize(ctx context.Context, req usecase.SynthesisRequest) error {
	m.synthesis = req
	return m.err
}
func (m *MockVoiceClient) ToggleRecording(ctx context.Context) (bool, error) {
	m.recording = !m.recording
	return m.recording, m.err
}
func (m *MockVoiceClient) SetRateLimit(ctx context.Context, cfg entities.RateLimitConfig) (entities.RateLimitConfig, error) {
	m.rateLimit = cfg.Clamp()
	return m.rateLimit, m.err
}
func (m *MockVoiceClient) ClearLog(ctx context.Context) error {
	m.cleared = true
	return m.err
}
func (m *MockVoiceClient) ExportLog(ctx context.Context) (string, error) {
	return "voice-test-log-2024-03-05T14-07-09.txt", m.err
}
func (m *MockVoiceClient) ClearAudio(ctx context.Context) error { return m.err }
func (m *MockVoiceClient) Snapshot(ctx context.Context) (entities.Snapshot, error) {
	return entities.Snapshot{Connection: "connected", Session: entities.Session{ID: m.sessionID}}, nil
}
func (m *MockVoiceClient) Log(ctx context.Context) ([]entities.LogEntry, error) {
	return nil, m.err
}

// MockLogHistory serves a fixed export list
type MockLogHistory struct {
	exports []entities.LogExport
	limit   int64
	err     error
}

func (m *MockLogHistory) Recent(ctx context.Context, limit int64) ([]entities.LogExport, error) {
	m.limit = limit
	if len(m.exports) > int(limit) {
		return m.exports[:limit], m.err
	}
	return m.exports, m.err
}

func setupTestServer(t *testing.T, client *MockVoiceClient) *echo.Echo {
	t.Helper()
	return setupTestServerWithHistory(t, client, nil)
}

func setupTestServerWithHistory(t *testing.T, client *MockVoiceClient, history repositories.LogHistory) *echo.Echo {
	t.Helper()
	e := echo.New()
	InitRoutes(e, client, history, websocket.NewHub(zap.NewNop()), Defaults{URL: "ws://default/ws", Language: "en"}, zap.NewNop())
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := setupTestServer(t, &MockVoiceClient{})

	rec := doRequest(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestConnect_UsesDefaults(t *testing.T) {
	client := &MockVoiceClient{}
	e := setupTestServer(t, client)

	rec := doRequest(e, http.MethodPost, "/api/v1/connect", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if client.connectURL != "ws://default/ws" || client.connectLanguage != "en" {
		t.Errorf("Expected defaults, got %s/%s", client.connectURL, client.connectLanguage)
	}

	doRequest(e, http.MethodPost, "/api/v1/connect", `{"url":"ws://other/ws","language":"id"}`)
	if client.connectURL != "ws://other/ws" || client.connectLanguage != "id" {
		t.Errorf("Expected request values, got %s/%s", client.connectURL, client.connectLanguage)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not connected", domain.ErrNotConnected, http.StatusConflict, "not_connected"},
		{"invalid url", domain.ErrInvalidURL, http.StatusBadRequest, "invalid_url"},
		{"empty text", domain.ErrEmptyText, http.StatusBadRequest, "empty_text"},
		{"closed", domain.ErrClientClosed, http.StatusServiceUnavailable, "client_closed"},
		{"transport", domain.ErrTransport, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupTestServer(t, &MockVoiceClient{err: tt.err})

			rec := doRequest(e, http.MethodPost, "/api/v1/session/start", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp ErrorResponse
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Error != tt.wantCode {
				t.Errorf("Expected error code %s, got %s", tt.wantCode, resp.Error)
			}
		})
	}
}

func TestSynthesize(t *testing.T) {
	client := &MockVoiceClient{}
	e := setupTestServer(t, client)

	rec := doRequest(e, http.MethodPost, "/api/v1/synthesize", `{"text":"hello","voice":"aria","speed":1.5}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rec.Code)
	}
	if client.synthesis != (usecase.SynthesisRequest{Text: "hello", Voice: "aria", Speed: 1.5}) {
		t.Errorf("Unexpected synthesis request %+v", client.synthesis)
	}

	rec = doRequest(e, http.MethodPost, "/api/v1/synthesize", `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed body, got %d", rec.Code)
	}
}

func TestSessionID(t *testing.T) {
	client := &MockVoiceClient{}
	e := setupTestServer(t, client)

	rec := doRequest(e, http.MethodPut, "/api/v1/session/id", `{"session_id":"operator-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var snapshot entities.Snapshot
	json.Unmarshal(rec.Body.Bytes(), &snapshot)
	if snapshot.Session.ID != "operator-1" {
		t.Errorf("Expected session id in status, got %q", snapshot.Session.ID)
	}
}

func TestRecordingToggle(t *testing.T) {
	e := setupTestServer(t, &MockVoiceClient{})

	rec := doRequest(e, http.MethodPost, "/api/v1/recording/toggle", "")
	var resp RecordingResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Recording {
		t.Error("Expected recording to be on after the first toggle")
	}
}

func TestRateLimit(t *testing.T) {
	e := setupTestServer(t, &MockVoiceClient{})

	rec := doRequest(e, http.MethodPut, "/api/v1/rate-limit", `{"capture_interval_ms":100,"chunk_duration_ms":300}`)
	var applied entities.RateLimitConfig
	json.Unmarshal(rec.Body.Bytes(), &applied)
	if applied.CaptureIntervalMs != 200 || applied.ChunkDurationMs != 300 {
		t.Errorf("Expected clamped config, got %+v", applied)
	}
}

func TestLogEndpoints(t *testing.T) {
	client := &MockVoiceClient{}
	e := setupTestServer(t, client)

	rec := doRequest(e, http.MethodGet, "/api/v1/log", "")
	if !strings.Contains(rec.Body.String(), `"entries":[]`) {
		t.Errorf("Expected an empty entry list, got %s", rec.Body.String())
	}

	rec = doRequest(e, http.MethodPost, "/api/v1/log/clear", "")
	if rec.Code != http.StatusNoContent || !client.cleared {
		t.Errorf("Expected log clear, got status %d", rec.Code)
	}

	rec = doRequest(e, http.MethodPost, "/api/v1/log/export", "")
	var resp ExportResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Filename != "voice-test-log-2024-03-05T14-07-09.txt" {
		t.Errorf("Unexpected export filename %q", resp.Filename)
	}
}

func TestLogExports(t *testing.T) {
	history := &MockLogHistory{exports: []entities.LogExport{
		{ID: "b", Filename: "voice-test-log-b.txt", LineCount: 1},
		{ID: "a", Filename: "voice-test-log-a.txt", LineCount: 2},
	}}
	e := setupTestServerWithHistory(t, &MockVoiceClient{}, history)

	rec := doRequest(e, http.MethodGet, "/api/v1/log/exports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if history.limit != defaultExportsLimit {
		t.Errorf("Expected default limit %d, got %d", defaultExportsLimit, history.limit)
	}

	var resp ExportsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Exports) != 2 || resp.Exports[0].Filename != "voice-test-log-b.txt" {
		t.Errorf("Unexpected exports: %+v", resp.Exports)
	}

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int64
	}{
		{"explicit limit", "?limit=1", http.StatusOK, 1},
		{"limit capped", "?limit=5000", http.StatusOK, maxExportsLimit},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
		{"non numeric", "?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history.limit = 0
			rec := doRequest(e, http.MethodGet, "/api/v1/log/exports"+tt.query, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if history.limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, history.limit)
			}
		})
	}
}

func TestLogExports_ArchiveDisabled(t *testing.T) {
	e := setupTestServer(t, &MockVoiceClient{})

	rec := doRequest(e, http.MethodGet, "/api/v1/log/exports", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

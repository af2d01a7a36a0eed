package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/engine"
)

// mockEngine implements EngineInterface for testing
type mockEngine struct {
	mu        sync.Mutex
	status    *engine.Status
	decisions []decision.Record
	resets    []string
}

func newMockEngine() *mockEngine {
	recs := make([]decision.Record, 0, 300)
	for i := range 300 {
		recs = append(recs, decision.Record{
			GameTime:   float64(i),
			Controller: decision.Tranquil,
			Action:     decision.ActionDisassemble,
		})
	}
	return &mockEngine{
		status:    &engine.Status{Sequence: 7, InSession: true, TranquilEnabled: true},
		decisions: recs,
	}
}

func (m *mockEngine) Status() *engine.Status { return m.status }

func (m *mockEngine) Decisions(n int) []decision.Record {
	return m.decisions[:min(n, len(m.decisions))]
}

func (m *mockEngine) Reset(reason string) {
	m.mu.Lock()
	m.resets = append(m.resets, reason)
	m.mu.Unlock()
}

func newTestRouter(t *testing.T, store SettingsStore, token string) http.Handler {
	t.Helper()
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
	t.Cleanup(rl.Stop)
	return NewRouter(RouterConfig{
		Engine:         newMockEngine(),
		Settings:       store,
		RateLimiter:    rl,
		Token:          token,
		DisableLogging: true,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestGetStatus verifies the status route returns the engine snapshot.
func TestGetStatus(t *testing.T) {
	h := newTestRouter(t, config.NewStore(config.DefaultSettings(), ""), "")

	rec := do(t, h, http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var st engine.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if st.Sequence != 7 || !st.InSession {
		t.Errorf("Expected sequence 7 in session, got %+v", st)
	}
}

// TestGetDecisionsLimit verifies limit parsing and clamping.
func TestGetDecisionsLimit(t *testing.T) {
	h := newTestRouter(t, config.NewStore(config.DefaultSettings(), ""), "")

	tests := []struct {
		name  string
		query string
		code  int
		count int
	}{
		{"default", "", http.StatusOK, DefaultDecisionLimit},
		{"explicit", "?limit=3", http.StatusOK, 3},
		{"clamped", "?limit=5000", http.StatusOK, MaxDecisionLimit},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"garbage", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/decisions"+tt.query, "", nil)
			if rec.Code != tt.code {
				t.Fatalf("Expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var recs []decision.Record
			if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if len(recs) != tt.count {
				t.Errorf("Expected %d decisions, got %d", tt.count, len(recs))
			}
		})
	}
}

// TestPutSettings verifies partial updates are merged, clamped and persisted.
func TestPutSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := config.NewStore(config.DefaultSettings(), path)
	h := newTestRouter(t, store, "")

	rec := do(t, h, http.MethodPut, "/api/settings",
		`{"tranquil":{"threatCooldown":5,"enabled":false}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := store.Settings()
	if got.Tranquil.Enabled {
		t.Error("Expected tranquil disabled")
	}
	if got.Tranquil.ThreatCooldown != config.MaxWindowSeconds {
		t.Errorf("Expected cooldown clamped to %v, got %v", config.MaxWindowSeconds, got.Tranquil.ThreatCooldown)
	}
	if got.Tranquil.HoldDisassembleKey != "N" {
		t.Errorf("Expected untouched hold key N, got %q", got.Tranquil.HoldDisassembleKey)
	}
	if !got.Khanda.Enabled {
		t.Error("Expected khanda to stay enabled")
	}

	fromFile, err := config.ReadSettingsFile(path)
	if err != nil {
		t.Fatalf("Settings file not written: %v", err)
	}
	if fromFile != got {
		t.Errorf("Expected file %+v, got %+v", got, fromFile)
	}

	getRec := do(t, h, http.MethodGet, "/api/settings", "", nil)
	var echoed config.Settings
	if err := json.Unmarshal(getRec.Body.Bytes(), &echoed); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if echoed != got {
		t.Errorf("Expected GET to echo %+v, got %+v", got, echoed)
	}
}

// TestPutSettingsRejectsBadBody verifies malformed bodies leave settings alone.
func TestPutSettingsRejectsBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown field", `{"tranquil":{"bogus":1}}`},
		{"wrong type", `{"khanda":{"enabled":"yes"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := config.NewStore(config.DefaultSettings(), "")
			h := newTestRouter(t, store, "")

			rec := do(t, h, http.MethodPut, "/api/settings", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
			if store.Settings() != config.DefaultSettings() {
				t.Error("Expected settings unchanged")
			}
		})
	}
}

// TestTokenAuth verifies mutating routes honour the bearer token.
func TestTokenAuth(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		code   int
	}{
		{"no token configured", "", "", http.StatusOK},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"correct token", "s3cret", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, config.NewStore(config.DefaultSettings(), ""), tt.token)
			header := map[string]string{}
			if tt.header != "" {
				header["Authorization"] = tt.header
			}
			rec := do(t, h, http.MethodPost, "/api/reset", "", header)
			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, rec.Code)
			}
		})
	}

	t.Run("reads stay open", func(t *testing.T) {
		h := newTestRouter(t, config.NewStore(config.DefaultSettings(), ""), "s3cret")
		if rec := do(t, h, http.MethodGet, "/api/settings", "", nil); rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

// TestResetRoute verifies the operator reset reaches the engine.
func TestResetRoute(t *testing.T) {
	eng := newMockEngine()
	h := NewRouter(RouterConfig{
		Engine:          eng,
		Settings:        config.NewStore(config.DefaultSettings(), ""),
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		DisableLogging:  true,
	})

	if rec := do(t, h, http.MethodPost, "/api/reset", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(eng.resets) != 1 || eng.resets[0] != engine.ReasonOperator {
		t.Errorf("Expected one operator reset, got %v", eng.resets)
	}
}

// TestRateLimiterRejects verifies requests beyond the burst get 429.
func TestRateLimiterRejects(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer rl.Stop()
	h := NewRouter(RouterConfig{
		Engine:         newMockEngine(),
		Settings:       config.NewStore(config.DefaultSettings(), ""),
		RateLimiter:    rl,
		DisableLogging: true,
	})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, h, http.MethodGet, "/api/status", "", nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 200 429], got %v", codes)
	}
	if st := rl.Stats(); st.Allowed != 2 || st.Rejected != 1 {
		t.Errorf("Expected 2 allowed 1 rejected, got %+v", st)
	}
}

// TestIsAllowedOrigin verifies only loopback origins pass.
func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://127.0.0.1:8443", true},
		{"http://[::1]:3000", true},
		{"http://localhost.evil.com", false},
		{"https://example.com", false},
		{"file://localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := IsAllowedOrigin(tt.origin); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestWebSocketLimiter verifies per-IP slots are reserved and released.
func TestWebSocketLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)
	if !wrl.Allow("a") || !wrl.Allow("a") {
		t.Fatal("Expected two slots")
	}
	if wrl.Allow("a") {
		t.Error("Expected third slot to be refused")
	}
	if !wrl.Allow("b") {
		t.Error("Expected other IP to have its own slots")
	}
	wrl.Release("a")
	if got := wrl.ConnectionCount("a"); got != 1 {
		t.Errorf("Expected 1 connection, got %d", got)
	}
	if wrl.Rejected() != 1 {
		t.Errorf("Expected 1 rejection, got %d", wrl.Rejected())
	}
}

// TestWebSocketReceivesDecisions verifies the hub forwards decisions to
// connected overlays.
func TestWebSocketReceivesDecisions(t *testing.T) {
	s := NewServer(newMockEngine(), config.NewStore(config.DefaultSettings(), ""), "")
	go s.Hub().Run()
	t.Cleanup(func() { s.Stop(context.Background()) })

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://localhost"}})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Hub().Record(decision.Record{
		Controller: decision.Khanda,
		Action:     decision.ActionDisassemble,
		Cause:      decision.CauseCastIntercept,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var msg struct {
		Event string          `json:"event"`
		Data  decision.Record `json:"data"`
	}
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&msg); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if msg.Event != EventDecision {
		t.Errorf("Expected event %q, got %q", EventDecision, msg.Event)
	}
	if msg.Data.Cause != decision.CauseCastIntercept {
		t.Errorf("Expected cause %s, got %s", decision.CauseCastIntercept, msg.Data.Cause)
	}
}

// TestWebSocketRejectsForeignOrigin verifies the upgrade fails for
// non-loopback origins.
func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s := NewServer(newMockEngine(), config.NewStore(config.DefaultSettings(), ""), "")
	go s.Hub().Run()
	t.Cleanup(func() { s.Stop(context.Background()) })

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://example.com"}})
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

// TestDebugHandler verifies health, metrics and basic auth.
func TestDebugHandler(t *testing.T) {
	open := DebugHandler(ObservabilityConfig{Enabled: true})
	if rec := do(t, open, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", rec.Code)
	}
	rec := do(t, open, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "splitguard_") {
		t.Errorf("Expected splitguard metrics, got %d", rec.Code)
	}

	guarded := DebugHandler(ObservabilityConfig{Enabled: true, BasicAuthUser: "u", BasicAuthPass: "p"})
	if rec := do(t, guarded, http.MethodGet, "/health", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("u", "p")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with credentials, got %d", rec.Code)
	}
}

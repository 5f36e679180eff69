package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/internal/publish"
	"github.com/dwsmith1983/tripwire/internal/testutil"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ts      *httptest.Server
	eng     *engine.Engine
	journal *journal.Memory
	hub     *publish.Hub
}

func setupTestServer(t *testing.T) *fixture {
	t.Helper()
	return setupTestServerWithKey(t, "")
}

func setupTestServerWithKey(t *testing.T, apiKey string) *fixture {
	t.Helper()
	zero := 0.0
	f := &fixture{journal: journal.NewMemory(20)}
	f.hub = publish.NewHub(testutil.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go f.hub.Run(ctx)

	f.eng = engine.New([]types.WatchConfig{
		{Condition: "t_value > 5", Message: "too hot", Gracetime: &zero, ScriptAction: types.ScriptActionPauseCount},
		{Condition: "p_value <", Message: "broken"},
	}, engine.Options{
		Publisher: f.hub,
		Journal:   f.journal,
		Logger:    testutil.DiscardLogger(),
		Clock:     func() time.Time { return t0 },
	})

	srv := New(":0", f.eng, f.journal, f.hub, apiKey, testutil.DiscardLogger())
	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		f.ts.Close()
		cancel()
	})
	return f
}

func (f *fixture) raise() {
	f.eng.HandleUpdate(types.Update{Time: t0, Key: "nicos/session/mastersetup", Op: types.OpTell, Value: "['base']"})
	f.eng.HandleUpdate(types.Update{Time: t0, Key: "nicos/t/value", Op: types.OpTell, Value: "6"})
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	f := setupTestServer(t)

	var body map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/health", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["entries"])
	assert.Equal(t, float64(0), body["warnings"])
}

func TestWarningEndpoints(t *testing.T) {
	f := setupTestServer(t)

	var warnings []types.WarningView
	assert.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/warnings", &warnings))
	assert.Empty(t, warnings)

	f.raise()

	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/warnings", &warnings))
	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Real)
	assert.Equal(t, "2026-03-01 12:00 -- too hot -- counting paused", warnings[0].Description)

	var pause struct {
		Paused  bool     `json:"paused"`
		Reasons []string `json:"reasons"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/pausecount", &pause))
	assert.True(t, pause.Paused)
	assert.Equal(t, []string{"too hot"}, pause.Reasons)

	var setups []string
	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/setups", &setups))
	assert.Equal(t, []string{"base"}, setups)
}

func TestEntryEndpoints(t *testing.T) {
	f := setupTestServer(t)

	var entries []types.EntryView
	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/entries", &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "t_value > 5", entries[0].Condition)
	assert.Equal(t, []string{"t_value"}, entries[0].Keys)

	var rejected []engine.Rejection
	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/rejected", &rejected))
	require.Len(t, rejected, 1)
	assert.Equal(t, 1, rejected[0].Index)
}

func TestListEvents(t *testing.T) {
	f := setupTestServer(t)
	f.raise()

	var events []types.Event
	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/events", &events))
	require.Len(t, events, 2)
	assert.Equal(t, types.EventWarning, events[0].Kind)
	assert.Equal(t, types.EventSetupChange, events[1].Kind)

	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/events?limit=1", &events))
	assert.Len(t, events, 1)
}

func TestDebugVars(t *testing.T) {
	f := setupTestServer(t)

	var vars map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/debug/vars", &vars))
	assert.Contains(t, vars, "warnings_raised")
}

func TestStreamEndpoint(t *testing.T) {
	f := setupTestServer(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	testutil.WaitFor(t, 2*time.Second, func() bool { return f.hub.Clients() == 1 }, "client registered")
	f.raise()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg types.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, types.MessagePauseCount, msg.Type)
}

func TestRequestIDHeader(t *testing.T) {
	f := setupTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "abc123", resp.Header.Get("X-Request-ID"))

	resp2, err := http.Get(f.ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Len(t, resp2.Header.Get("X-Request-ID"), 26)
}

func TestAPIKeyAuth_Valid(t *testing.T) {
	f := setupTestServerWithKey(t, "test-secret")

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/warnings", nil)
	req.Header.Set("X-API-Key", "test-secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIKeyAuth_QueryParam(t *testing.T) {
	f := setupTestServerWithKey(t, "test-secret")
	assert.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/warnings?apikey=test-secret", nil))
}

func TestAPIKeyAuth_Invalid(t *testing.T) {
	f := setupTestServerWithKey(t, "test-secret")

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/warnings", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIKeyAuth_Missing(t *testing.T) {
	f := setupTestServerWithKey(t, "test-secret")
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, f.ts.URL+"/debug/vars", nil))
}

func TestAPIKeyAuth_HealthBypass(t *testing.T) {
	f := setupTestServerWithKey(t, "test-secret")
	assert.Equal(t, http.StatusOK, getJSON(t, f.ts.URL+"/api/health", nil))
}

func TestStartStop(t *testing.T) {
	srv := New("127.0.0.1:0", nil, nil, nil, "", testutil.DiscardLogger())
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Stop(context.Background()))
	assert.NoError(t, <-done)
}

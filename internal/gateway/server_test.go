package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/steve/internal/agent"
	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/hooks"
	"github.com/soyeahso/steve/internal/logging"
	"github.com/soyeahso/steve/internal/tools"
)

const testKey = "test-key-123"

// stubModel replays replies in order and repeats the last one.
type stubModel struct {
	mu      sync.Mutex
	replies []*agent.Response
	err     error
	n       int
}

func (m *stubModel) Reason(context.Context, agent.Prompt) (*agent.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	i := m.n
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	m.n++
	return m.replies[i], nil
}

func (m *stubModel) StreamTokens(ctx context.Context, p agent.Prompt, onToken func(string)) (*agent.Response, error) {
	resp, err := m.Reason(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, tok := range strings.SplitAfter(resp.Content, " ") {
		if tok != "" {
			onToken(tok)
		}
	}
	return resp, nil
}

func (m *stubModel) Summarize(context.Context, string, []domain.Message) (string, error) {
	return "summary", nil
}

func silentLog() *logging.Logger { return logging.New(nil, "silent") }

func testGraph(t *testing.T, m agent.Model) *agent.Graph {
	t.Helper()
	reg := tools.NewRegistry(silentLog())
	require.NoError(t, reg.Register(tools.GitHubProfile{}))
	return agent.NewGraph(m, reg, agent.NewSessionStore(), agent.Options{}, silentLog())
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Auth.Keys = map[string]string{"rhyliieee": testKey}
	return cfg
}

func testServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(testConfig(), silentLog(), opts...)
	t.Cleanup(srv.limiter.close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doRequest(t *testing.T, method, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set(DefaultKeyHeader, key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["detail"]
}

// readEvents decodes an NDJSON body into generic maps.
func readEvents(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	var events []map[string]any
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	return events
}

func eventTypes(events []map[string]any) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i], _ = ev["type"].(string)
	}
	return out
}

func TestRootAuth(t *testing.T) {
	_, ts := testServer(t)

	resp := doRequest(t, "GET", ts.URL+"/ai", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not authenticated", decodeDetail(t, resp))

	resp = doRequest(t, "GET", ts.URL+"/ai", "wrong", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "INVALID API KEY", decodeDetail(t, resp))

	resp = doRequest(t, "GET", ts.URL+"/ai", testKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "You are now inside Rhyliieee's AI API.", body["Welcome"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRootAuthRejectsUnexpandedKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Keys["jomar"] = "${JOMAR_API_KEY}"
	srv := New(cfg, silentLog())
	t.Cleanup(srv.limiter.close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp := doRequest(t, "GET", ts.URL+"/ai", "${JOMAR_API_KEY}", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "INVALID API KEY", decodeDetail(t, resp))

	resp = doRequest(t, "GET", ts.URL+"/ai", testKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)
	resp := doRequest(t, "GET", ts.URL+"/ai/steve/v1/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.AgentInitialized)

	_, ts = testServer(t, WithGraph(testGraph(t, &stubModel{replies: []*agent.Response{{Content: "hi"}}})))
	resp = doRequest(t, "GET", ts.URL+"/ai/steve/v1/health", "", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.True(t, health.AgentInitialized)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)
	resp := doRequest(t, "GET", ts.URL+"/nonexistent", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found", decodeDetail(t, resp))
}

func TestChatNoStream(t *testing.T) {
	_, ts := testServer(t, WithGraph(testGraph(t, &stubModel{replies: []*agent.Response{{Content: "Hello, I'm Steve!"}}})))

	resp := doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/no-stream", testKey, `{"message":"hi","thread_id":"t1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "final_response", events[0]["type"])
	assert.Equal(t, "Hello, I'm Steve!", events[0]["content"])
}

func TestChatToolEvents(t *testing.T) {
	m := &stubModel{replies: []*agent.Response{{ToolCalls: []domain.ToolCall{{
		ID:   "call-1",
		Name: "github-profile",
		Args: map[string]any{},
	}}}}}
	_, ts := testServer(t, WithGraph(testGraph(t, m)))

	resp := doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/no-stream", testKey, `{"message":"GitHub?"}`)
	events := readEvents(t, resp)
	require.Equal(t, []string{"agent_tool_call", "tool_output", "final_response"}, eventTypes(events))

	calls := events[0]["tool_calls"].([]any)
	assert.Equal(t, "github-profile", calls[0].(map[string]any)["name"])
	assert.Equal(t, "call-1", events[1]["tool_call_id"])
	assert.Equal(t, "rhyliieee", events[1]["output"].(map[string]any)["username"])
	assert.True(t, strings.HasPrefix(events[2]["content"].(string), "name: Jomar Talambayan"))
}

func TestChatStreamTokens(t *testing.T) {
	_, ts := testServer(t, WithGraph(testGraph(t, &stubModel{replies: []*agent.Response{{Content: "Hi there"}}})))

	resp := doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/stream-tokens", testKey, `{"message":"hi"}`)
	events := readEvents(t, resp)
	assert.Equal(t, []string{"token", "token", "final_response"}, eventTypes(events))
	assert.Equal(t, "Hi ", events[0]["content"])
	assert.Equal(t, "there", events[1]["content"])
}

func TestChatDefaultsThread(t *testing.T) {
	g := testGraph(t, &stubModel{replies: []*agent.Response{{Content: "ok"}}})
	_, ts := testServer(t, WithGraph(g))

	doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/no-stream", testKey, `{"message":"hi"}`)
	assert.Equal(t, []string{"thread-1"}, g.Sessions().Threads())
}

func TestChatRejectsBadBodies(t *testing.T) {
	_, ts := testServer(t, WithGraph(testGraph(t, &stubModel{replies: []*agent.Response{{Content: "ok"}}})))

	for _, body := range []string{`{"message":"   "}`, `{"thread_id":"t"}`, `not json`} {
		resp := doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/no-stream", testKey, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestChatNotInitialized(t *testing.T) {
	_, ts := testServer(t)

	resp := doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/no-stream", testKey, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := readEvents(t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
	assert.Equal(t, "Steve Agent not initialized.", events[0]["content"])
}

func TestChatTurnError(t *testing.T) {
	m := &stubModel{err: &agent.UpstreamError{Op: "reason", Err: errors.New("backend down")}}
	_, ts := testServer(t, WithGraph(testGraph(t, m)))

	resp := doRequest(t, "POST", ts.URL+"/ai/steve/v1/chat/no-stream", testKey, `{"message":"hi"}`)
	events := readEvents(t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
	assert.Equal(t, "An error occurred: reason: backend down", events[0]["content"])
}

func TestAuthFailuresAreRateLimited(t *testing.T) {
	_, ts := testServer(t)

	for i := 0; i < authRateMaxFails; i++ {
		resp := doRequest(t, "GET", ts.URL+"/ai", "wrong", "")
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	resp := doRequest(t, "GET", ts.URL+"/ai", testKey, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// health stays reachable
	resp = doRequest(t, "GET", ts.URL+"/ai/steve/v1/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ai/steve/v1/chat/ws"
}

func TestWebSocketChat(t *testing.T) {
	_, ts := testServer(t, WithGraph(testGraph(t, &stubModel{replies: []*agent.Response{{Content: "Hello from Steve"}}})))

	header := http.Header{}
	header.Set(DefaultKeyHeader, testKey)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "hi", "thread_id": "ws-1", "stream": true}))

	var got []domain.EventType
	for {
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		got = append(got, domain.EventType(ev["type"].(string)))
		if ev["type"] == "final_response" {
			assert.Equal(t, "Hello from Steve", ev["content"])
			break
		}
	}
	assert.Equal(t, []domain.EventType{domain.EventToken, domain.EventToken, domain.EventToken, domain.EventFinalResponse}, got)

	require.NoError(t, conn.WriteJSON(map[string]any{"message": ""}))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev["type"])
}

func TestWebSocketQueryKey(t *testing.T) {
	_, ts := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts)+"?api_key="+testKey, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "hi"}))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "Steve Agent not initialized.", ev["content"])
}

func TestWebSocketRequiresKey(t *testing.T) {
	_, ts := testServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		bind string
		port int
		want string
	}{
		{"loopback", 8000, "127.0.0.1:8000"},
		{"lan", 9999, "0.0.0.0:9999"},
		{"auto", 8080, "0.0.0.0:8080"},
		{"custom", 3000, "0.0.0.0:3000"},
		{"unknown", 5000, "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.bind, func(t *testing.T) {
			addr := resolveBindAddr(config.GatewayConfig{Bind: tt.bind, Port: tt.port})
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestServerStartEmitsLifecycleHooks(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.Port = 0

	hm := hooks.NewManager(silentLog())
	fired := make(chan string, 2)
	for _, ev := range []string{hooks.EventGatewayStart, hooks.EventGatewayStop} {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			fired <- p.Event
			return nil
		})
	}

	srv := New(cfg, silentLog(), WithHooks(hm))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case ev := <-fired:
		assert.Equal(t, hooks.EventGatewayStart, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway_start not fired")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, hooks.EventGatewayStop, <-fired)
}

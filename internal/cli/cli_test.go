package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/gateway"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"8000", 8000},
		{"0.7", 0.7},
		{"loopback", "loopback"},
		{"v1-beta", "v1-beta"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "chat", "tools", "ingest", "config", "status", "version"} {
		assert.Contains(t, names, want)
	}

	serve, _, err := root.Find([]string{"gateway"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("STEVE_HOME", t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--log-level", "silent"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "steve "))
}

func TestRedactConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Keys = map[string]string{"rhyliieee": "secret"}
	cfg.Models.Providers = map[string]config.ProviderConfig{"gemini": {APIKey: "g-key"}}
	cfg.Retriever.APIKey = "gx"

	red := redactConfig(cfg)
	assert.Equal(t, "****", red.Auth.Keys["rhyliieee"])
	assert.Equal(t, "****", red.Models.Providers["gemini"].APIKey)
	assert.Equal(t, "****", red.Retriever.APIKey)
	assert.Empty(t, red.Weather.GeocodeAPIKey)

	// the input config is untouched
	assert.Equal(t, "secret", cfg.Auth.Keys["rhyliieee"])
	assert.Equal(t, "g-key", cfg.Models.Providers["gemini"].APIKey)
}

func TestChatPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &chatPrinter{w: &buf}

	p.emit(domain.Token("Hi "))
	p.emit(domain.Token("there"))
	p.emit(domain.FinalResponse("Hi there"))
	p.emit(domain.ToolCallsRequested([]domain.ToolCall{{Name: "github-profile"}}))
	p.emit(domain.FinalResponse("name: Jomar Talambayan"))
	p.emit(domain.ErrorEvent("An error occurred: boom"))

	assert.Equal(t, "Hi there\n[tool] github-profile\nname: Jomar Talambayan\nAn error occurred: boom\n", buf.String())
}

func TestChatPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &chatPrinter{w: &buf, json: true}

	p.emit(domain.FinalResponse("hello"))
	assert.Equal(t, `{"type":"final_response","content":"hello"}`+"\n", buf.String())
}

func TestChatLoop(t *testing.T) {
	var sent []string
	send := func(msg string) error {
		sent = append(sent, msg)
		if msg == "fail" {
			return errors.New("boom")
		}
		return nil
	}

	in := strings.NewReader("hello\n\n  fail  \nagain\n/quit\nignored\n")
	var prompt bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), in, &prompt, send))
	assert.Equal(t, []string{"hello", "fail", "again"}, sent)

	sent = nil
	require.NoError(t, chatLoop(context.Background(), strings.NewReader("only\n"), &prompt, send))
	assert.Equal(t, []string{"only"}, sent)
}

func TestCheckHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/steve/v1/health", r.URL.Path)
		json.NewEncoder(w).Encode(gateway.HealthResponse{Status: "ok", AgentInitialized: true, Version: "1.2.3"})
	}))
	defer ts.Close()

	_, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	got := checkHealth(context.Background(), config.GatewayConfig{Bind: "loopback", Port: port})
	assert.Equal(t, "ok version=1.2.3 agent_initialized=true", got)

	ts.Close()
	got = checkHealth(context.Background(), config.GatewayConfig{Bind: "loopback", Port: port})
	assert.Equal(t, "not running", got)
}

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/steve/internal/config"
)

const defaultCommandTimeout = 10 * time.Second

// RegisterCommands binds the shell commands from cfg to their events. Each
// command runs through "sh -c" with the JSON payload on stdin and the event
// name in STEVE_HOOK_EVENT.
func (m *Manager) RegisterCommands(cfg config.HooksConfig) int {
	bindings := map[string][]config.HookEntry{
		EventGatewayStart: cfg.GatewayStart,
		EventGatewayStop:  cfg.GatewayStop,
		EventTurnStart:    cfg.TurnStart,
		EventToolInvoked:  cfg.ToolInvoked,
		EventTurnEnd:      cfg.TurnEnd,
		EventTurnError:    cfg.TurnError,
	}
	n := 0
	for event, entries := range bindings {
		for i, e := range entries {
			if strings.TrimSpace(e.Command) == "" {
				continue
			}
			m.On(event, fmt.Sprintf("command:%s:%d", event, i), CommandHandler(e))
			n++
		}
	}
	return n
}

// CommandHandler returns a Handler that runs e.Command.
func CommandHandler(e config.HookEntry) Handler {
	timeout := defaultCommandTimeout
	if e.Timeout > 0 {
		timeout = time.Duration(e.Timeout) * time.Millisecond
	}
	return func(ctx context.Context, p Payload) error {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", e.Command)
		cmd.Stdin = bytes.NewReader(payload)
		cmd.Env = append(os.Environ(), "STEVE_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%s: %w: %s", e.Command, err, msg)
			}
			return fmt.Errorf("%s: %w", e.Command, err)
		}
		return nil
	}
}

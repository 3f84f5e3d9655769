package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/steve/internal/agent"
	"github.com/soyeahso/steve/internal/domain"
)

func newChatCmd() *cobra.Command {
	var (
		thread string
		stream bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to Steve from the terminal",
		Long:  "Sends one message when given as arguments, otherwise reads one message per line from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if thread == "" {
				thread = cfg.Gateway.DefaultThread
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg, log)
			defer rt.Close()
			if err != nil {
				return err
			}

			p := &chatPrinter{w: cmd.OutOrStdout(), json: asJSON}
			send := func(msg string) error {
				_, err := rt.graph.Run(ctx, agent.Turn{ThreadID: thread, Message: msg, StreamTokens: stream}, p.emit)
				if err != nil {
					p.emit(domain.ErrorEvent("An error occurred: " + err.Error()))
				}
				return err
			}

			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}
			return chatLoop(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), send)
		},
	}

	cmd.Flags().StringVar(&thread, "thread", "", "conversation thread id (default from gateway.defaultThread)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream tokens as they are generated")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as NDJSON, as the HTTP API does")

	return cmd
}

// chatLoop sends every non-blank input line as a turn. Turn errors are shown
// and the loop goes on.
func chatLoop(ctx context.Context, in io.Reader, prompt io.Writer, send func(string) error) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(prompt, "> ")
		if !sc.Scan() {
			fmt.Fprintln(prompt)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		send(line)
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
}

// chatPrinter renders turn events for a terminal.
type chatPrinter struct {
	w         io.Writer
	json      bool
	streaming bool
}

func (p *chatPrinter) emit(ev domain.Event) {
	if p.json {
		data, err := json.Marshal(ev)
		if err == nil {
			fmt.Fprintln(p.w, string(data))
		}
		return
	}

	switch ev.Type {
	case domain.EventToken:
		p.streaming = true
		fmt.Fprint(p.w, ev.Content)
	case domain.EventAgentToolCall:
		if p.streaming {
			p.streaming = false
			fmt.Fprintln(p.w)
		}
		for _, c := range ev.ToolCalls {
			fmt.Fprintf(p.w, "[tool] %s\n", c.Name)
		}
	case domain.EventToolOutput:
		// the final response repeats the output
	case domain.EventFinalResponse:
		if p.streaming {
			p.streaming = false
			fmt.Fprintln(p.w)
			return
		}
		fmt.Fprintln(p.w, ev.Content)
	case domain.EventError:
		if p.streaming {
			p.streaming = false
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, ev.Content)
	}
}

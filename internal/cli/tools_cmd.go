package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/hooks"
	"github.com/soyeahso/steve/internal/tools"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and run Steve's tools",
	}

	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsInvokeCmd())
	return cmd
}

// toolsRuntime builds the full runtime when models are available, so that
// github-repo works; otherwise only the tools, with github-repo reporting the
// missing provider.
func toolsRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt, err := buildRuntime(ctx, cfg, log)
	if !errors.Is(err, errNoProviders) {
		return rt, err
	}
	rt = &runtime{cfg: cfg, hooks: hooks.NewManager(log)}
	noModel := tools.AnswerFunc(func(context.Context, string) (string, error) {
		return "", errNoProviders
	})
	return rt, rt.buildTools(ctx, noModel, log)
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the enabled tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := toolsRuntime(cmd.Context(), cfg)
			defer rt.Close()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range rt.tools.Specs() {
				fmt.Fprintf(out, "%-20s route=%-9s %s\n", s.Name, s.Route, s.Description)
				for _, p := range s.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "    %-18s %-8s%s\n", p.Name, p.Type, req)
				}
			}
			return nil
		},
	}
}

func newToolsInvokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <tool> [json-args]",
		Short: "Run a tool directly and print its output",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			call := domain.ToolCall{ID: uuid.NewString(), Name: args[0], Args: map[string]any{}}
			if len(args) == 2 {
				dec := json.NewDecoder(strings.NewReader(args[1]))
				dec.UseNumber()
				if err := dec.Decode(&call.Args); err != nil {
					return fmt.Errorf("tool arguments must be a JSON object: %w", err)
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := toolsRuntime(ctx, cfg)
			defer rt.Close()
			if err != nil {
				return err
			}

			out, _, err := rt.tools.Invoke(ctx, call)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/gateway"
	"github.com/soyeahso/steve/internal/llm"
	"github.com/soyeahso/steve/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Steve status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Steve %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Env:       %s\n", paths.Env)
			fmt.Fprintf(out, "Logs:      %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Gateway:   port=%d bind=%s tls=%v keys=%d\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled, len(cfg.Auth.Keys))
			fmt.Fprintf(out, "Server:    %s\n", checkHealth(cmd.Context(), cfg.Gateway))

			registry, err := llm.NewRegistryFromConfig(cfg.Models, log)
			switch {
			case err != nil:
				fmt.Fprintf(out, "Providers: error: %v\n", err)
			case len(registry.List()) > 0:
				fmt.Fprintf(out, "Providers: %s\n", strings.Join(registry.List(), ", "))
			default:
				fmt.Fprintln(out, "Providers: (none with credentials)")
			}
			fmt.Fprintf(out, "Models:    reasoning=%s summarizer=%s repo=%s\n",
				cfg.Models.Reasoning, cfg.Models.Summarizer, cfg.Tools.GitHubRepo.Model)
			if len(cfg.Models.Fallbacks) > 0 {
				fmt.Fprintf(out, "Fallbacks: %s\n", strings.Join(cfg.Models.Fallbacks, ", "))
			}

			fmt.Fprintf(out, "Tools:     %s\n", strings.Join(cfg.Tools.Enabled, ", "))
			fmt.Fprintf(out, "Retriever: backend=%s top_k=%d\n", cfg.Retriever.Backend, cfg.Retriever.TopK)
			fmt.Fprintf(out, "Cache:     backend=%s ttl=%s\n", cfg.Cache.Backend, cfg.Cache.TTL)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			return nil
		},
	}

	return cmd
}

// checkHealth asks a locally running server for its health report.
func checkHealth(ctx context.Context, gw config.GatewayConfig) string {
	scheme, host := "http", "127.0.0.1"
	if gw.TLS.Enabled {
		scheme = "https"
	}
	if gw.Bind == "custom" && gw.CustomBindHost != "" && gw.CustomBindHost != "0.0.0.0" {
		host = gw.CustomBindHost
	}
	url := fmt.Sprintf("%s://%s/ai/steve/v1/health", scheme, net.JoinHostPort(host, strconv.Itoa(gw.Port)))

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "unknown (" + err.Error() + ")"
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "not running"
	}
	defer resp.Body.Close()

	var health gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Sprintf("responding with HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("%s version=%s agent_initialized=%v", health.Status, health.Version, health.AgentInitialized)
}

package cmd

import (
	"github.com/huangsam/perfscope/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP API, live feed and threshold checker.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API, live websocket feed and alert checks.",
	Long: `Run perfscope as a long-lived service.

Starts, under one supervisor:
- The HTTP API under /api/v1 with per-client rate limiting
- Prometheus metrics on /metrics
- The live websocket feed on /api/v1/live
- The alert threshold check every --check-interval

Rate limit counters and live connection slots live in the --kv-backend, so use
redis when running more than one instance.

Examples:
  perfscope serve --listen :8080
  perfscope serve --kv-backend redis --kv-connect redis://localhost:6379/0`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return server.New(cfg, storeManager).Run(rootCtx)
	},
}

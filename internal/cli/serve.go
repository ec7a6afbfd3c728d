package cli

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/adjudex/internal/metrics"
	"github.com/ppiankov/adjudex/internal/server"
	"github.com/ppiankov/adjudex/internal/store"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the adjudication HTTP API",
	Long: `Serve exposes the pipeline and the dossier history over HTTP:

  POST /v1/adjudications                      adjudicate a claim
  GET  /v1/claims/{claimID}/dossiers          list dossier versions
  GET  /v1/claims/{claimID}/dossiers/latest   latest dossier
  GET  /v1/claims/{claimID}/dossiers/{n}      one dossier version
  GET  /healthz                               liveness
  GET  /metrics                               Prometheus metrics

Example:
  adjudex serve
  adjudex serve --addr :9090 --oracle openai`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr from config)")
	addOracleFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	cfg := effectiveConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store: %w", closeErr)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	p, err := buildPipeline(ctx, cfg, st, m)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	slog.Info("Starting adjudex API",
		"addr", cfg.Server.Addr,
		"config_version", p.ConfigVersion(),
		"store", cfg.Store.Driver,
		"oracle", displayOracle(cfg.Oracle))

	return server.New(p, p.Store(), prometheus.DefaultGatherer, slog.Default()).Run(ctx, cfg.Server)
}

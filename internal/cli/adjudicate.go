package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/adjudex/internal/metrics"
	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/pipeline"
	"github.com/ppiankov/adjudex/internal/store"
	"github.com/ppiankov/adjudex/internal/worker"
)

var (
	outJSON     string
	outMD       string
	timeout     time.Duration
	noStore     bool
	noCache     bool
	oracleName  string
	oracleModel string
)

// adjudicateCmd represents the adjudicate command
var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate <claim.json>",
	Short: "Adjudicate a single claim and store the dossier",
	Long: `Adjudicate runs one claim through every decision stage:
- Deterministic rules and part-number catalog
- Vocabulary hints and the reasoning oracle for unresolved items
- Primary repair and labor linkage
- Screening checks, payout and verdict
- Advisory confidence score

The resulting dossier is stored as a new version of the claim.

Example:
  adjudex adjudicate claim.json
  adjudex adjudicate claim.json --json dossier.json --md dossier.md
  adjudex adjudicate claim.json --oracle openai --oracle-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAdjudicate,
}

func init() {
	rootCmd.AddCommand(adjudicateCmd)

	adjudicateCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	adjudicateCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	adjudicateCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall adjudication timeout")
	adjudicateCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist the dossier")
	addOracleFlags(adjudicateCmd)
}

// addOracleFlags registers the flags shared by every command that builds a pipeline
func addOracleFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the oracle response cache")
	cmd.Flags().StringVar(&oracleName, "oracle", "", "reasoning oracle provider (openai, anthropic, ollama, gemini)")
	cmd.Flags().StringVar(&oracleModel, "oracle-model", "", "reasoning oracle model name")
}

// effectiveConfig applies command flags on top of the loaded configuration
func effectiveConfig() model.Config {
	cfg := *appConfig
	if oracleName != "" {
		cfg.Oracle.Provider = oracleName
		applyAPIKeyEnv(&cfg.Oracle)
	}
	if oracleModel != "" {
		cfg.Oracle.Model = oracleModel
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	return cfg
}

// openStore opens the configured store, or an in-memory one when persist is false
func openStore(ctx context.Context, cfg model.Config, persist bool) (store.DecisionStore, error) {
	if !persist {
		return store.NewMemoryStore(), nil
	}
	return store.Open(ctx, cfg.Store)
}

// buildPipeline creates a pipeline bound to st
func buildPipeline(ctx context.Context, cfg model.Config, st store.DecisionStore, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{
		pipeline.WithStore(st),
		pipeline.WithLogger(slog.Default()),
	}
	if m != nil {
		opts = append(opts, pipeline.WithMetrics(m))
	}
	p, err := pipeline.NewPipeline(ctx, &cfg, opts...)
	if err != nil {
		return nil, err
	}
	preflightOracle(ctx, p, cfg.Oracle)
	return p, nil
}

const oraclePreflightTimeout = 15 * time.Second

// preflightOracle warns up front when the configured oracle cannot answer.
// The run still proceeds: unanswered items are routed to review
func preflightOracle(ctx context.Context, p *pipeline.Pipeline, oc model.OracleConfig) {
	ctx, cancel := context.WithTimeout(ctx, oraclePreflightTimeout)
	defer cancel()
	if err := p.CheckOracle(ctx); err != nil {
		slog.Warn("Oracle preflight failed, unresolved items will be routed to review",
			"oracle", displayOracle(oc),
			"error", err)
	}
}

func runAdjudicate(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	claim, err := worker.ReadClaimFile(args[0])
	if err != nil {
		return err
	}

	cfg := effectiveConfig()
	st, err := openStore(ctx, cfg, !noStore)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store: %w", closeErr)
		}
	}()

	p, err := buildPipeline(ctx, cfg, st, nil)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Adjudicating: %s (%d items)\n", claim.ClaimID, len(claim.Invoice.LineItems))
		fmt.Fprintf(os.Stderr, "Oracle: %s\n", displayOracle(cfg.Oracle))
		fmt.Fprintln(os.Stderr)
	}

	dossier, err := p.Adjudicate(ctx, claim)
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(os.Stdout)
	if outJSON != "" {
		if err := renderer.RenderJSON(dossier, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(dossier, outMD); err != nil {
			return fmt.Errorf("render Markdown: %w", err)
		}
	}

	renderer.RenderSummary(dossier)
	if outJSON != "" {
		fmt.Printf("  JSON:         %s\n", outJSON)
	}
	if outMD != "" {
		fmt.Printf("  Markdown:     %s\n", outMD)
	}
	return nil
}

func displayOracle(c model.OracleConfig) string {
	if c.Provider == "" {
		return "disabled (unresolved items go to review)"
	}
	if c.Model == "" {
		return c.Provider
	}
	return c.Provider + "/" + c.Model
}

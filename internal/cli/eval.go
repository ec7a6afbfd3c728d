package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/adjudex/internal/eval"
)

var (
	evalJSON      string
	evalTolerance float64
	evalStrict    bool
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval <labels.json>",
	Short: "Evaluate decisions and confidence bands on a labeled claim set",
	Long: `Eval adjudicates every labeled claim without storing dossiers and
compares the verdicts against the labels:
- Accuracy and a confusion matrix of expected against actual decisions
- Observed error rate per confidence band

Bands are valid only when the error rate does not decrease from HIGH to LOW.

Example:
  adjudex eval holdout.json
  adjudex eval holdout.json --json eval-report.json --strict`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalJSON, "json", "", "write the full report as JSON (optional)")
	evalCmd.Flags().Float64Var(&evalTolerance, "payout-tolerance", eval.DefaultPayoutTolerance, "largest payout difference counted as correct")
	evalCmd.Flags().BoolVar(&evalStrict, "strict", false, "fail when confidence bands do not track errors")
	evalCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the evaluation")
	addOracleFlags(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	labels, err := eval.LoadLabels(args[0])
	if err != nil {
		return err
	}

	cfg := effectiveConfig()
	st, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	p, err := buildPipeline(ctx, cfg, st, nil)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Evaluating %d labeled claims (labels %s, config %s)\n",
		len(labels.Cases), labelVersion(labels.Version), cfg.Version)

	report, err := eval.NewEvaluator(p, cfg.Concurrency.Claims, evalTolerance).Evaluate(ctx, labels.Cases)
	if err != nil {
		return err
	}

	report.WriteText(os.Stdout)

	if evalJSON != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(evalJSON, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("✓ Report written: %s\n", evalJSON)
	}

	if evalStrict && !report.BandsValid {
		return fmt.Errorf("confidence bands do not track observed errors")
	}
	return nil
}

func labelVersion(v string) string {
	if v == "" {
		return "unversioned"
	}
	return v
}

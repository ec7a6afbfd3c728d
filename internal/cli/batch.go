package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ppiankov/adjudex/internal/pipeline"
	"github.com/ppiankov/adjudex/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	noProgress   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Adjudicate every claim file in a directory in parallel",
	Long: `Batch adjudicates many claims concurrently:
- Read every *.json claim file from the directory
- Adjudicate claims in parallel with a configurable worker count
- Each claim runs its own pipeline; one failure does not stop the others
- Write a JSON and a Markdown dossier per claim

Example:
  adjudex batch ./claims
  adjudex batch ./claims --concurrency 8 --output-dir ./dossiers
  adjudex batch ./claims --timeout 30m --no-store`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent claims (default: concurrency.claims from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./adjudex-dossiers", "output directory for dossiers")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist dossiers")
	batchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	addOracleFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	dir := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg := effectiveConfig()
	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Claims
	}

	files, err := worker.ListClaimFiles(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  adjudex Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input dir:    %s (%d claims)\n", dir, len(files))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Oracle:       %s\n", displayOracle(cfg.Oracle))
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

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

	processor := worker.NewClaimBatchProcessor(p, workers)
	if !noProgress && len(files) > 0 {
		bar := newProgressBar(len(files))
		processor.OnDone(func(*worker.ClaimResult) {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		})
	}

	results, err := processor.ProcessDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("process dir: %w", err)
	}

	renderer := pipeline.NewRenderer(os.Stderr)
	successCount := 0
	failureCount := 0
	decisions := make(map[string]int)

	fmt.Fprintf(os.Stderr, "\n")
	for _, result := range results {
		name := filepath.Base(result.Source)
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", name, result.Error)
			continue
		}

		d := result.Dossier
		slug := sanitizeFilename(d.ClaimID)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(d, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", name, err)
			continue
		}
		if err := renderer.RenderMarkdown(d, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", name, err)
			continue
		}

		successCount++
		decisions[string(d.Verdict.Decision)]++
		fmt.Fprintf(os.Stderr, "✓ %s: %s %.2f (%s, v%d)\n",
			d.ClaimID, d.Verdict.Decision, d.Verdict.Payout, d.Confidence.Band, d.Version)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d claims\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d (approve %d, deny %d, refer %d)\n",
		successCount, decisions["APPROVE"], decisions["DENY"], decisions["REFER"])
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if ctx.Err() != nil {
		return fmt.Errorf("batch interrupted: %w", ctx.Err())
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Adjudicating claims...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// sanitizeFilename turns a claim id into a safe file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		s = "claim"
	}

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

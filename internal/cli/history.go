package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/pipeline"
	"github.com/ppiankov/adjudex/internal/store"
)

var historyVersion int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <claim-id>",
	Short: "List stored dossier versions of a claim",
	Long: `History lists every stored dossier version of a claim, oldest first.
With --version the full dossier of that version is printed as Markdown.

Example:
  adjudex history CLM-2026-0042
  adjudex history CLM-2026-0042 --version 2`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyVersion, "version", 0, "print this dossier version in full")
}

func runHistory(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	claimID := args[0]

	st, err := store.Open(ctx, appConfig.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store: %w", closeErr)
		}
	}()

	if historyVersion > 0 {
		d, err := st.Get(ctx, claimID, historyVersion)
		if err != nil {
			return err
		}
		fmt.Print(pipeline.Markdown(d))
		return nil
	}

	dossiers, err := st.List(ctx, claimID)
	if err != nil {
		return err
	}
	if len(dossiers) == 0 {
		return fmt.Errorf("claim %s: %w", claimID, store.ErrNotFound)
	}

	printHistory(dossiers)
	return nil
}

func printHistory(dossiers []model.Dossier) {
	fmt.Printf("\nClaim %s: %d version(s)\n\n", dossiers[0].ClaimID, len(dossiers))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tCREATED\tDECISION\tPAYOUT\tBAND\tCONFIG")
	for _, d := range dossiers {
		fmt.Fprintf(w, "v%d\t%s\t%s\t%.2f\t%s\t%s\n",
			d.Version,
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.Verdict.Decision,
			d.Verdict.Payout,
			d.Confidence.Band,
			d.ConfigVersion)
	}
	_ = w.Flush()
	fmt.Println()
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/persona-cli/internal/csvio"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <prospects.csv>",
	Short: "Classify prospect job titles into personas",
	Long:  "Reads a prospect CSV, classifies each job title into a persona via Claude using adaptive chunking with multi-pass recovery, and writes accepted and skipped CSVs.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		prospects, err := csvio.ReadProspects(source)
		if err != nil {
			return err
		}
		total := len(prospects)
		prospects = csvio.FilterEmails(prospects, cfg.Enrich.ExcludeEmails)
		if excluded := total - len(prospects); excluded > 0 {
			zap.L().Info("excluded prospects by email pattern", zap.Int("excluded", excluded))
		}
		if len(prospects) == 0 {
			return eris.New("enrich: no prospects to classify")
		}

		orch, err := buildOrchestrator()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		outcome, err := orch.Run(ctx, prospects)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		acceptedPath, err := csvio.WriteAccepted(cfg.Output.Dir, outcome.Accepted)
		if err != nil {
			return err
		}
		skippedPath := ""
		if len(outcome.Skipped) > 0 {
			skippedPath, err = csvio.WriteSkipped(cfg.Output.SkippedDir, outcome.Skipped)
			if err != nil {
				return err
			}
		}

		recordRun(ctx, st, source, outcome, len(prospects))
		logSummary(outcome, acceptedPath, skippedPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/persona-cli/internal/csvio"
)

var rerunCmd = &cobra.Command{
	Use:   "rerun <skipped.csv>",
	Short: "Retry previously skipped prospects one at a time",
	Long:  "Reads a skipped-output CSV and re-classifies each prospect individually in structured mode, which survives the formatting problems that cause batch rows to be dropped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source := args[0]

		prospects, err := csvio.ReadProspects(source)
		if err != nil {
			return err
		}
		if len(prospects) == 0 {
			return eris.New("rerun: no prospects to retry")
		}
		zap.L().Info("retrying skipped prospects", zap.Int("prospects", len(prospects)))

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

		outcome, err := orch.RunRecords(ctx, prospects)
		if err != nil {
			return eris.Wrap(err, "rerun")
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
	rootCmd.AddCommand(rerunCmd)
}

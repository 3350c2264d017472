package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/persona-cli/internal/csvio"
	"github.com/sells-group/persona-cli/internal/resilience"
	"github.com/sells-group/persona-cli/pkg/hubspot"
)

var importCmd = &cobra.Command{
	Use:   "import <personas.csv>",
	Short: "Write classified personas back to HubSpot contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, err := csvio.ReadAccepted(args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.New("import: no classified rows in input")
		}

		client, err := hubspotClient()
		if err != nil {
			return err
		}

		updates := make([]hubspot.PersonaUpdate, 0, len(records))
		for _, r := range records {
			updates = append(updates, hubspot.PersonaUpdate{
				ContactID: r.ID,
				Persona:   r.Persona,
			})
		}

		retryCfg := retryConfig()
		retryCfg.OnRetry = resilience.RetryLogger("hubspot", "batch update")
		updated, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (int, error) {
			return client.UpdatePersonas(ctx, updates)
		})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("personas imported",
			zap.Int("updated", updated),
			zap.Int("rows", len(records)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/persona-cli/internal/csvio"
	"github.com/sells-group/persona-cli/pkg/hubspot"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export HubSpot contacts missing a persona to CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		client, err := hubspotClient()
		if err != nil {
			return err
		}

		prospects, err := client.ListContactsMissingPersona(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if len(prospects) == 0 {
			zap.L().Info("no contacts missing a persona")
			return nil
		}

		if err := csvio.WriteProspects(exportOut, prospects); err != nil {
			return err
		}
		zap.L().Info("exported contacts",
			zap.Int("contacts", len(prospects)),
			zap.String("path", exportOut),
		)
		return nil
	},
}

func hubspotClient() (hubspot.Client, error) {
	if err := cfg.Validate("hubspot"); err != nil {
		return nil, err
	}

	opts := []hubspot.Option{
		hubspot.WithRateLimit(cfg.HubSpot.RPS),
		hubspot.WithPageSize(cfg.HubSpot.PageSize),
	}
	if cfg.HubSpot.BaseURL != "" {
		opts = append(opts, hubspot.WithBaseURL(cfg.HubSpot.BaseURL))
	}
	if cfg.HubSpot.MappingFile != "" {
		mapping, err := hubspot.LoadPersonaMapping(cfg.HubSpot.MappingFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hubspot.WithPersonaMapping(mapping))
	}
	return hubspot.NewClient(cfg.HubSpot.Key, cfg.HubSpot.WriteKey, opts...), nil
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "hubspot_prospects.csv", "output CSV path")
	rootCmd.AddCommand(exportCmd)
}

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the connection state and the remembered wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.service.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, status)
			}

			rendered, err := app.renderers.status(status, app.renderOptions(terminalWidth()))
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func newProbeCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "List the wallets reachable from this environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := app.service.Probe()

			if asJSON {
				return writeJSON(cmd, report)
			}

			rendered, err := app.renderers.probe(report, app.renderOptions(terminalWidth()))
			if err != nil {
				return fmt.Errorf("render probe: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the probe report as JSON")
	return cmd
}

func writeJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mw",
		Short:         "Marketplace wallet (mw): connect wallets and send transactions",
		Long:          "mw connects the marketplace to a wallet on the configured network, picking the best wallet available in this environment, and signs and follows transactions through it.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp(os.Stderr)
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		app.notifier.SetOutput(cmd.ErrOrStderr())
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.telemetry.Shutdown(ctx)
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newProbeCmd(app),
		newConnectCmd(app),
		newDisconnectCmd(app),
		newStatusCmd(app),
		newTxCmd(app),
		newDevKeyCmd(app),
	)

	return rootCmd
}

// terminalWidth is zero when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

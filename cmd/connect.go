package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

func newConnectCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "connect [wallet-type]",
		Short:     "Connect a wallet, or the best available one when no type is given",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: walletTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			walletType := domain.WalletAuto
			if len(args) == 1 {
				parsed, err := domain.ParseWalletType(args[0])
				if err != nil {
					return err
				}
				walletType = parsed
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			stop := app.watchProviders(ctx)
			defer stop()

			session, err := app.service.Connect(ctx, walletType)
			if err != nil {
				return fmt.Errorf("connect wallet: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Connected %s as %s\n", session.WalletType.DisplayName(), session.Account)
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up on the whole connection after this long")
	return cmd
}

func newDisconnectCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Drop the session and stop reconnecting to the remembered wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.service.Disconnect(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Disconnected")
			return err
		},
	}
}

// watchProviders follows the providers directory until the returned stop is called,
// so wallets that inject themselves mid-handshake are seen.
func (a *app) watchProviders(ctx context.Context) func() {
	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := a.env.Watch(watchCtx); err != nil {
			a.logger.Debug("providers watch stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func walletTypeNames() []string {
	types := domain.WalletTypes()
	names := make([]string, 0, len(types)+1)
	names = append(names, "auto")
	for _, walletType := range types {
		names = append(names, string(walletType))
	}
	return names
}

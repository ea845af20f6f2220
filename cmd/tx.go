package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/marketplace-wallet/internal/application"
	"github.com/bnema/marketplace-wallet/internal/domain"
)

func newTxCmd(app *app) *cobra.Command {
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Send transactions through the connected wallet",
	}

	txCmd.AddCommand(newTxSendCmd(app), newTxWaitCmd(app))
	return txCmd
}

type txSendFlags struct {
	to        string
	value     string
	data      string
	comment   string
	signer    string
	gas       uint64
	dependsOn string
	delegator string
	wait      bool
}

func newTxSendCmd(app *app) *cobra.Command {
	var flags txSendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and submit a single-clause transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			command := application.SendTransactionCommand{
				Clauses: []domain.Clause{{To: flags.to, Value: flags.value, Data: flags.data}},
				Options: domain.TxOptions{
					Signer:    flags.signer,
					Gas:       flags.gas,
					Comment:   flags.comment,
					DependsOn: flags.dependsOn,
					Delegator: flags.delegator,
				},
			}
			if err := command.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			stop := app.watchProviders(ctx)
			session, err := app.service.EnsureSession(ctx)
			stop()
			if err != nil {
				return fmt.Errorf("restore wallet session: %w", err)
			}
			app.logger.Debug("signing with session", "wallet", session.WalletType, "account", session.Account)

			txID, err := app.service.SubmitTransaction(ctx, command)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), txID); err != nil {
				return err
			}

			if !flags.wait {
				return nil
			}
			return waitAndRenderReceipt(cmd, app, txID)
		},
	}

	cmd.Flags().StringVar(&flags.to, "to", "", "Recipient address; empty deploys a contract")
	cmd.Flags().StringVar(&flags.value, "value", "0", "Amount in wei, decimal or 0x hex")
	cmd.Flags().StringVar(&flags.data, "data", "", "0x-prefixed call data")
	cmd.Flags().StringVar(&flags.comment, "comment", "", "Comment shown by the wallet")
	cmd.Flags().StringVar(&flags.signer, "signer", "", "Require this signer address")
	cmd.Flags().Uint64Var(&flags.gas, "gas", 0, "Gas limit; estimated when zero")
	cmd.Flags().StringVar(&flags.dependsOn, "depends-on", "", "Transaction id this one depends on")
	cmd.Flags().StringVar(&flags.delegator, "delegator", "", "Fee delegation service URL")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "Wait for the receipt")

	return cmd
}

func newTxWaitCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wait <txid>",
		Short: "Wait until the node has a receipt for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return waitAndRenderReceipt(cmd, app, args[0])
		},
	}
}

func waitAndRenderReceipt(cmd *cobra.Command, app *app, txID string) error {
	var receipt domain.Receipt
	wait := func(ctx context.Context) error {
		var err error
		receipt, err = app.service.WaitForReceipt(ctx, txID)
		return err
	}

	waitErr := runWaitSpinner(cmd.Context(), cmd.ErrOrStderr(), "Waiting for receipt...", wait)
	var reverted *domain.TransactionRevertedError
	if waitErr != nil && !errors.As(waitErr, &reverted) {
		return waitErr
	}

	// A reverted transaction still has a receipt worth showing.
	rendered, err := app.renderers.receipt(receipt, app.renderOptions(terminalWidth()))
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
		return err
	}
	return waitErr
}

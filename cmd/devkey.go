package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bnema/marketplace-wallet/internal/domain"
)

func newDevKeyCmd(app *app) *cobra.Command {
	devKeyCmd := &cobra.Command{
		Use:   "devkey",
		Short: "Manage the development signing key used by the devKey wallet",
	}

	devKeyCmd.AddCommand(
		newDevKeyGenerateCmd(app),
		newDevKeyImportCmd(app),
		newDevKeyShowCmd(app),
		newDevKeyRemoveCmd(app),
	)
	return devKeyCmd
}

func newDevKeyGenerateCmd(app *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a development key for the configured network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if address, err := app.keyring.Address(cmd.Context(), app.network.Name); err == nil {
					return fmt.Errorf("a development key already exists for %s (%s); pass --force to replace it", app.network.Name.Label(), address)
				}
			}

			address, err := app.keyring.Generate(cmd.Context(), app.network.Name)
			if err != nil {
				return err
			}
			app.refreshDevKey(cmd.Context())

			_, err = fmt.Fprintln(cmd.OutOrStdout(), address)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing key")
	return cmd
}

func newDevKeyImportCmd(app *app) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a hex-encoded private key for the configured network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := readPrivateKey(cmd, fromStdin)
			if err != nil {
				return err
			}

			address, err := app.keyring.Import(cmd.Context(), app.network.Name, key)
			if err != nil {
				return err
			}
			app.refreshDevKey(cmd.Context())

			_, err = fmt.Fprintln(cmd.OutOrStdout(), address)
			return err
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the key from standard input instead of prompting")
	return cmd
}

func newDevKeyShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the address of the development key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			address, err := app.keyring.Address(cmd.Context(), app.network.Name)
			if errors.Is(err, domain.ErrSecretNotFound) {
				return fmt.Errorf("no development key for %s; run `mw devkey generate`", app.network.Name.Label())
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), address)
			return err
		},
	}
}

func newDevKeyRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the development key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.keyring.Remove(cmd.Context(), app.network.Name); err != nil {
				return err
			}
			app.refreshDevKey(cmd.Context())

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Removed")
			return err
		},
	}
}

// readPrivateKey prompts without echo on a terminal and reads one line otherwise.
func readPrivateKey(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()

	if file, ok := in.(*os.File); ok && !fromStdin && term.IsTerminal(int(file.Fd())) {
		if _, err := fmt.Fprint(cmd.ErrOrStderr(), "Private key: "); err != nil {
			return "", err
		}
		raw, err := term.ReadPassword(int(file.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read private key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read private key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", errors.New("private key is empty")
	}
	return key, nil
}

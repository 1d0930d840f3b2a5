package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"memchain/crypto"
)

func (a *app) keysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Create and inspect signing keys",
	}

	var force bool
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a key and write it to --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(a.keyPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.keyPath)
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveKeyFile(a.keyPath, key); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"publicKey": key.PublicKey().String(), "file": a.keyPath})
		},
	}
	newCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the public key of --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := a.signer()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey().String())
			return nil
		},
	}

	keys.AddCommand(newCmd, showCmd)
	return keys
}

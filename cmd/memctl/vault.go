package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memchain/core/types"
	"memchain/indexer"
	"memchain/native/agentmemory"
	"memchain/rpc"
)

func (a *app) airdropCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "airdrop <lamports>",
		Short: "Request lamports from a node with airdrops enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("lamports: %w", err)
			}
			recipient, err := a.recipient(to)
			if err != nil {
				return err
			}
			slot, err := a.client().RequestAirdrop(cmd.Context(), recipient, lamports)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"recipient": recipient.String(), "lamports": lamports, "slot": slot})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient (defaults to --key)")
	return cmd
}

func (a *app) recipient(to string) (solana.PublicKey, error) {
	if to != "" {
		return parseKey("to", to)
	}
	key, err := a.signer()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

func (a *app) vaultCmd() *cobra.Command {
	vault := &cobra.Command{
		Use:   "vault",
		Short: "Initialize and inspect memory vaults",
	}

	var encryptionKey string
	initCmd := &cobra.Command{
		Use:   "init <agent>",
		Short: "Create the vault and profile of an agent owned by --key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := parseKey("agent", args[0])
			if err != nil {
				return err
			}
			var enc [32]byte
			if encryptionKey != "" {
				raw, err := hex.DecodeString(encryptionKey)
				if err != nil || len(raw) != len(enc) {
					return errors.New("--encryption-key must be 32 hex encoded bytes")
				}
				copy(enc[:], raw)
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.InitializeVault(owner, agent, enc)}, nil
			})
		},
	}
	initCmd.Flags().StringVar(&encryptionKey, "encryption-key", "", "hex x25519 public key for client-side encryption")

	showCmd := &cobra.Command{
		Use:   "show <vault> | show <owner> <agent>",
		Short: "Print a decoded vault",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseKey("vault", args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				agent, err := parseKey("agent", args[1])
				if err != nil {
					return err
				}
				addr, _ = agentmemory.VaultAddress(addr, agent)
			}
			res, err := a.client().GetVault(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	vault.AddCommand(initCmd, showCmd)
	return vault
}

func parsePermission(value string) (agentmemory.PermissionLevel, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for p := agentmemory.PermissionRead; p <= agentmemory.PermissionAdmin; p++ {
		if p.String() == value {
			return p, nil
		}
	}
	return agentmemory.PermissionNone, fmt.Errorf("unknown permission %q (read, write or admin)", value)
}

func (a *app) accessCmd() *cobra.Command {
	access := &cobra.Command{
		Use:   "access",
		Short: "Grant and revoke vault access",
	}

	var (
		level     string
		expiresAt int64
	)
	grantCmd := &cobra.Command{
		Use:   "grant <vault> <grantee>",
		Short: "Grant a permission level on a vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := keyArgs("vault", "grantee")(args)
			if err != nil {
				return err
			}
			perm, err := parsePermission(level)
			if err != nil {
				return err
			}
			var expires *int64
			if expiresAt > 0 {
				expires = &expiresAt
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.GrantAccess(owner, keys[0], keys[1], perm, expires)}, nil
			})
		},
	}
	grantCmd.Flags().StringVar(&level, "level", "read", "read, write or admin")
	grantCmd.Flags().Int64Var(&expiresAt, "expires-at", 0, "unix expiry (0 never expires)")

	revokeCmd := &cobra.Command{
		Use:   "revoke <vault> <grantee>",
		Short: "Revoke a grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := keyArgs("vault", "grantee")(args)
			if err != nil {
				return err
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.RevokeAccess(owner, keys[0], keys[1])}, nil
			})
		},
	}

	access.AddCommand(grantCmd, revokeCmd)
	return access
}

func (a *app) configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage the protocol config",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the protocol config with default parameters, making --key the admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.submit(cmd, func(admin solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.InitializeProtocolConfig(admin, agentmemory.DefaultProtocolConfigParams())}, nil
			})
		},
	}

	pause := func(use string, paused bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: fmt.Sprintf("Set the protocol pause flag to %t", paused),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.submit(cmd, func(admin solana.PublicKey) ([]types.Instruction, error) {
					return []types.Instruction{agentmemory.SetProtocolPause(admin, paused)}, nil
				})
			},
		}
	}

	transferCmd := &cobra.Command{
		Use:   "transfer-admin <new-admin>",
		Short: "Hand the admin role to another key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := parseKey("new-admin", args[0])
			if err != nil {
				return err
			}
			return a.submit(cmd, func(admin solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.TransferAdmin(admin, next)}, nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the protocol config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res rpc.ProtocolConfigResult
			if err := a.client().Call(cmd.Context(), "agentmemory_getProtocolConfig", &res); err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cfg.AddCommand(initCmd, pause("pause", true), pause("unpause", false), transferCmd, showCmd)
	return cfg
}

func (a *app) eventsCmd() *cobra.Command {
	var filter indexer.Filter
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query indexed program events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.client().GetEvents(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "event type")
	cmd.Flags().StringVar(&filter.Vault, "vault", "", "vault address")
	cmd.Flags().StringVar(&filter.Memory, "memory", "", "memory shard address")
	cmd.Flags().StringVar(&filter.TxHash, "tx", "", "transaction signature")
	cmd.Flags().Uint64Var(&filter.FromSlot, "from-slot", 0, "first slot")
	cmd.Flags().Uint64Var(&filter.ToSlot, "to-slot", 0, "last slot")
	cmd.Flags().Uint64Var(&filter.After, "after", 0, "resume after this event id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum events returned")
	return cmd
}

package main

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memchain/native/agentmemory"
)

type derivedAddress struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

// pdaDeriver resolves a program address from positional arguments.
type pdaDeriver struct {
	use    string
	short  string
	args   int
	derive func(args []string) (solana.PublicKey, uint8, error)
}

func keyArgs(names ...string) func(args []string) ([]solana.PublicKey, error) {
	return func(args []string) ([]solana.PublicKey, error) {
		out := make([]solana.PublicKey, len(names))
		for i, name := range names {
			key, err := parseKey(name, args[i])
			if err != nil {
				return nil, err
			}
			out[i] = key
		}
		return out, nil
	}
}

func pdaDerivers() []pdaDeriver {
	return []pdaDeriver{
		{"config", "Protocol config singleton", 0, func([]string) (solana.PublicKey, uint8, error) {
			addr, bump := agentmemory.ConfigAddress()
			return addr, bump, nil
		}},
		{"vault <owner> <agent>", "Memory vault of an owner and agent", 2, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("owner", "agent")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.VaultAddress(keys[0], keys[1])
			return addr, bump, nil
		}},
		{"profile <agent>", "Agent profile", 1, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("agent")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.ProfileAddress(keys[0])
			return addr, bump, nil
		}},
		{"memory <vault> <key>", "Memory shard", 2, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("vault")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.MemoryAddress(keys[0], args[1])
			return addr, bump, nil
		}},
		{"grant <vault> <grantee>", "Access grant", 2, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("vault", "grantee")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.AccessGrantAddress(keys[0], keys[1])
			return addr, bump, nil
		}},
		{"group <vault> <name>", "Sharing group", 2, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("vault")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.GroupAddress(keys[0], args[1])
			return addr, bump, nil
		}},
		{"access-log <memory> <accessor> <timestamp>", "Access log entry", 3, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("memory", "accessor")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			ts, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.AccessLogAddress(keys[0], keys[1], ts)
			return addr, bump, nil
		}},
		{"stake-account <vault>", "Token account holding a vault's stake", 1, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("vault")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.VaultTokenAddress(keys[0])
			return addr, bump, nil
		}},
		{"binding <identity> <agent-id>", "Identity memory binding", 2, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("identity")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.BindingAddress(keys[0], args[1])
			return addr, bump, nil
		}},
		{"registry <identity>", "Identity binding registry", 1, func(args []string) (solana.PublicKey, uint8, error) {
			keys, err := keyArgs("identity")(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			addr, bump := agentmemory.RegistryAddress(keys[0])
			return addr, bump, nil
		}},
	}
}

func pdaCmd() *cobra.Command {
	pda := &cobra.Command{
		Use:   "pda",
		Short: "Derive agent memory program addresses",
	}
	for _, d := range pdaDerivers() {
		d := d
		pda.AddCommand(&cobra.Command{
			Use:   d.use,
			Short: d.short,
			Args:  cobra.ExactArgs(d.args),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, bump, err := d.derive(args)
				if err != nil {
					return err
				}
				return printJSON(cmd, derivedAddress{Address: addr.String(), Bump: bump})
			},
		})
	}
	return pda
}

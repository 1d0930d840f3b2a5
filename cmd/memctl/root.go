package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memchain/core/types"
	"memchain/crypto"
	"memchain/rpc"
)

const (
	rpcEnv          = "MEMCHAIN_RPC_URL"
	defaultEndpoint = "http://127.0.0.1:8899"
	defaultKeyFile  = "./memctl-key.json"
)

// app holds the state shared by every subcommand.
type app struct {
	endpoint string
	keyPath  string
	http     *http.Client
	nonce    func() uint64
}

func defaultRPCEndpoint() string {
	if env := strings.TrimSpace(os.Getenv(rpcEnv)); env != "" {
		return env
	}
	return defaultEndpoint
}

func newRootCmd() *cobra.Command {
	a := &app{
		http:  &http.Client{Timeout: 30 * time.Second},
		nonce: func() uint64 { return uint64(time.Now().UnixNano()) },
	}
	root := &cobra.Command{
		Use:   "memctl",
		Short: "Client for the memchain agent memory network",
		Long: `memctl manages keys, derives program addresses, hashes memory content
and submits agent memory transactions to an agentmemd node.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.endpoint, "rpc", defaultRPCEndpoint(), "node JSON-RPC endpoint (env "+rpcEnv+")")
	root.PersistentFlags().StringVarP(&a.keyPath, "key", "k", defaultKeyFile, "signing key file")

	root.AddCommand(
		a.keysCmd(),
		pdaCmd(),
		hashCmd(),
		a.airdropCmd(),
		a.vaultCmd(),
		a.memoryCmd(),
		a.accessCmd(),
		a.configCmd(),
		a.eventsCmd(),
	)
	return root
}

func (a *app) client() *rpc.Client {
	return rpc.NewClient(a.endpoint, a.http)
}

func (a *app) signer() (solana.PrivateKey, error) {
	key, err := crypto.LoadKeyFile(a.keyPath)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", a.keyPath, err)
	}
	return key, nil
}

// submit signs ixs with the configured key as fee payer and prints the
// result. A transaction that executed but failed is returned as an error.
func (a *app) submit(cmd *cobra.Command, build func(payer solana.PublicKey) ([]types.Instruction, error)) error {
	key, err := a.signer()
	if err != nil {
		return err
	}
	ixs, err := build(key.PublicKey())
	if err != nil {
		return err
	}
	tx := types.NewTransaction(key.PublicKey(), a.nonce(), ixs...)
	if err := tx.Sign(key); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	res, err := a.client().SendTransaction(cmd.Context(), tx)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if res.Status != "success" {
		return fmt.Errorf("transaction %s failed: %s", res.Signature, res.Error)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseKey(name, value string) (solana.PublicKey, error) {
	key, err := crypto.ParsePublicKey(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", name, err)
	}
	return key, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"memchain/config"
	"memchain/core"
	"memchain/core/genesis"
	"memchain/core/runtime"
	"memchain/core/state"
	"memchain/crypto"
	"memchain/indexer"
	"memchain/observability/logging"
	"memchain/observability/metrics"
	"memchain/rpc"
	"memchain/storage"
)

const genesisPathEnv = "MEMCHAIN_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides MEMCHAIN_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "agentmemd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("MEMCHAIN_ENV"))
	if env == "" {
		env = cfg.Log.Env
	}
	logger, logCloser := logging.Setup("agentmemd", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	nodeKey, err := crypto.LoadKeyFile(cfg.NodeKeyPath)
	if err != nil {
		return fmt.Errorf("load node key: %w", err)
	}
	nodeID := nodeKey.PublicKey()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	ledger := state.NewLedger(db)

	if err := applyGenesis(ledger, resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv), cfg.NetworkName, nodeID, logger); err != nil {
		return err
	}

	nodeMetrics := metrics.Node()
	opts := core.Options{
		LamportsPerSignature: &cfg.LamportsPerSignature,
		EnableAirdrop:        cfg.EnableAirdrop,
		AirdropMaxLamports:   cfg.AirdropMaxLamports,
		Metrics:              nodeMetrics,
		Logger:               logger,
	}

	var index *indexer.Store
	if cfg.Indexer.Driver != config.IndexerNone {
		dsn := cfg.IndexerDSN()
		index, err = indexer.Open(cfg.Indexer.Driver, dsn)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer index.Close()
		opts.Index = index
		logger.Info("event indexer ready",
			slog.String("driver", cfg.Indexer.Driver),
			slog.String("dsn", logging.MaskDSN(dsn)))
	}

	node := core.NewNode(ledger, opts)
	server := rpc.NewServer(node, index, rpc.Options{
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		TrustProxyHeaders: cfg.RPC.TrustProxyHeaders,
		Metrics:           nodeMetrics,
		Logger:            logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadTimeout:       cfg.RPC.ReadTimeout(),
		ReadHeaderTimeout: cfg.RPC.ReadTimeout(),
		WriteTimeout:      cfg.RPC.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		slot, _ := node.Slot()
		logger.Info("agentmemd listening",
			slog.String("address", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName),
			slog.Uint64("slot", slot),
			slog.Bool("airdrop", cfg.EnableAirdrop),
			slog.String("node_id", nodeID.String()),
			logging.MaskField("node_key", cfg.NodeKeyPath))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// resolveGenesisPath prefers the flag, then the environment, then the config
// file.
func resolveGenesisPath(flagPath, configPath string, lookup func(string) (string, bool)) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	if p, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p)
	}
	return strings.TrimSpace(configPath)
}

// applyGenesis seeds an empty ledger. A ledger that already has history is
// left alone. A protocol config without an admin is administered by nodeID.
func applyGenesis(ledger *state.Ledger, path, network string, nodeID solana.PublicKey, logger *slog.Logger) error {
	slot, err := ledger.Slot()
	if err != nil {
		return fmt.Errorf("read slot: %w", err)
	}
	if slot > 0 {
		logger.Info("resuming ledger", slog.Uint64("slot", slot))
		return nil
	}
	if path == "" {
		logger.Warn("starting without genesis; protocol config must be initialized by transaction")
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if spec.Network != "" && spec.Network != network {
		return fmt.Errorf("genesis network %q does not match configured network %q", spec.Network, network)
	}
	spec.DefaultAdmin(nodeID)
	root, err := genesis.Apply(spec, ledger, runtime.DefaultRent())
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("genesis applied",
		slog.String("path", path),
		slog.String("network", spec.Network),
		slog.String("admin", spec.Admin().String()),
		slog.String("state_root", root.Hex()))
	return nil
}

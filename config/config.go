package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"memchain/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	GenesisFile          string `toml:"GenesisFile"`
	NodeKeyPath          string `toml:"NodeKeyPath"`
	NetworkName          string `toml:"NetworkName"`
	LamportsPerSignature uint64 `toml:"LamportsPerSignature"`
	EnableAirdrop        bool   `toml:"EnableAirdrop"`
	AirdropMaxLamports   uint64 `toml:"AirdropMaxLamports"`

	RPC     RPC     `toml:"rpc"`
	Indexer Indexer `toml:"indexer"`
	Log     Log     `toml:"log"`
}

// Load loads the configuration from the given path, writing a default file
// and node key when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
	}

	cfg.applyDefaults()
	// An explicit zero fee is honored; only an absent key takes the default.
	if !meta.IsDefined("LamportsPerSignature") {
		cfg.LamportsPerSignature = Default().LamportsPerSignature
	}
	if err := ensureNodeKey(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:           "127.0.0.1:8899",
		DataDir:              "./memchain-data",
		NetworkName:          "memchain-local",
		LamportsPerSignature: 5_000,
		AirdropMaxLamports:   10_000_000_000,
		RPC:                  DefaultRPC(),
		Indexer:              Indexer{Driver: IndexerSQLite},
		Log:                  Log{Env: "local"},
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = def.NetworkName
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = def.RPCAddress
	}
	if c.EnableAirdrop && c.AirdropMaxLamports == 0 {
		c.AirdropMaxLamports = def.AirdropMaxLamports
	}
	c.RPC.applyDefaults()
	if c.Indexer.Driver == "" {
		c.Indexer.Driver = IndexerSQLite
	}
}

// IndexerDSN resolves the indexer data source, defaulting the sqlite file
// into the data directory.
func (c *Config) IndexerDSN() string {
	if c.Indexer.DSN != "" || c.Indexer.Driver != IndexerSQLite {
		return c.Indexer.DSN
	}
	return filepath.Join(c.DataDir, "events.db")
}

func ensureNodeKey(configPath string, cfg *Config) error {
	keyPath := cfg.NodeKeyPath
	if keyPath == "" {
		keyPath = defaultNodeKeyPath(configPath)
	}
	if _, _, err := crypto.LoadOrCreateKeyFile(keyPath); err != nil {
		return err
	}
	if cfg.NodeKeyPath != keyPath {
		cfg.NodeKeyPath = keyPath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	keyPath := defaultNodeKeyPath(path)
	if _, _, err := crypto.LoadOrCreateKeyFile(keyPath); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.NodeKeyPath = keyPath
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultNodeKeyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "node-key.json")
}

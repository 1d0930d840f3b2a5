package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.RPCAddress); err != nil {
		return fmt.Errorf("rpc address %q: %w", c.RPCAddress, err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data dir must be set")
	}
	if c.RPC.RateLimitPerSec < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: max_body_bytes must not be negative")
	}
	switch c.Indexer.Driver {
	case IndexerSQLite, IndexerNone:
	case IndexerPostgres:
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: postgres driver requires a DSN")
		}
	default:
		return fmt.Errorf("indexer: unknown driver %q", c.Indexer.Driver)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	return nil
}

package config

import "time"

// Supported indexer drivers.
const (
	IndexerSQLite   = "sqlite"
	IndexerPostgres = "postgres"
	IndexerNone     = "none"
)

// RPC controls the JSON-RPC listener.
type RPC struct {
	ReadTimeoutSecs  uint32  `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs uint32  `toml:"WriteTimeoutSecs"`
	MaxBodyBytes     int64   `toml:"MaxBodyBytes"`
	RateLimitPerSec  float64 `toml:"RateLimitPerSec"`
	RateLimitBurst   int     `toml:"RateLimitBurst"`
	// TrustProxyHeaders keys rate limits on X-Forwarded-For instead of the
	// socket address.
	TrustProxyHeaders bool `toml:"TrustProxyHeaders"`
}

// DefaultRPC returns the listener defaults.
func DefaultRPC() RPC {
	return RPC{
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		MaxBodyBytes:     1 << 20,
		RateLimitPerSec:  20,
		RateLimitBurst:   40,
	}
}

func (r *RPC) applyDefaults() {
	def := DefaultRPC()
	if r.ReadTimeoutSecs == 0 {
		r.ReadTimeoutSecs = def.ReadTimeoutSecs
	}
	if r.WriteTimeoutSecs == 0 {
		r.WriteTimeoutSecs = def.WriteTimeoutSecs
	}
	if r.MaxBodyBytes == 0 {
		r.MaxBodyBytes = def.MaxBodyBytes
	}
	if r.RateLimitPerSec == 0 {
		r.RateLimitPerSec = def.RateLimitPerSec
	}
	if r.RateLimitBurst == 0 {
		r.RateLimitBurst = def.RateLimitBurst
	}
}

func (r RPC) ReadTimeout() time.Duration  { return time.Duration(r.ReadTimeoutSecs) * time.Second }
func (r RPC) WriteTimeout() time.Duration { return time.Duration(r.WriteTimeoutSecs) * time.Second }

// Indexer selects the event index backend.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Log configures the process logger. An empty File logs to stdout.
type Log struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

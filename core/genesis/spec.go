package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"memchain/native/agentmemory"
)

// GenesisSpec describes the ledger a fresh node starts from.
type GenesisSpec struct {
	GenesisTime    string              `yaml:"genesisTime"`
	Network        string              `yaml:"network"`
	Accounts       []AccountSpec       `yaml:"accounts"`
	Mints          []MintSpec          `yaml:"mints"`
	ProtocolConfig *ProtocolConfigSpec `yaml:"protocolConfig,omitempty"`

	genesisTimestamp time.Time
}

// AccountSpec prefunds a system account.
type AccountSpec struct {
	PublicKey string `yaml:"pubkey"`
	Lamports  uint64 `yaml:"lamports"`

	key solana.PublicKey
}

// MintSpec creates an initialized token mint together with its holders.
type MintSpec struct {
	Address   string       `yaml:"address"`
	Decimals  uint8        `yaml:"decimals"`
	Authority string       `yaml:"authority"`
	Holders   []HolderSpec `yaml:"holders"`

	key       solana.PublicKey
	authority solana.PublicKey
}

// HolderSpec creates a token account for Owner at Account.
type HolderSpec struct {
	Account string `yaml:"account"`
	Owner   string `yaml:"owner"`
	Amount  uint64 `yaml:"amount"`

	account solana.PublicKey
	owner   solana.PublicKey
}

// ProtocolConfigSpec bootstraps the agent memory protocol config. Zero limits
// take the program defaults and a blank admin takes the node key.
type ProtocolConfigSpec struct {
	Admin             string  `yaml:"admin"`
	StorageFeePerByte *uint64 `yaml:"storageFeePerByte,omitempty"`
	MinStakePerByte   *uint64 `yaml:"minStakePerByte,omitempty"`
	MaxBatchSize      uint32  `yaml:"maxBatchSize,omitempty"`
	MaxMemorySize     uint32  `yaml:"maxMemorySize,omitempty"`
	MaxKeyLength      uint32  `yaml:"maxKeyLength,omitempty"`
	RewardRate        *uint32 `yaml:"rewardRate,omitempty"`
	Paused            bool    `yaml:"paused"`

	admin  solana.PublicKey
	params agentmemory.ProtocolConfigParams
}

// LoadGenesisSpec reads and validates a YAML genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates raw YAML. Unknown fields are
// rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// DefaultAdmin sets the protocol config admin when the file leaves it blank.
// The node passes its own key here.
func (s *GenesisSpec) DefaultAdmin(key solana.PublicKey) {
	if cfg := s.ProtocolConfig; cfg != nil && cfg.admin.IsZero() {
		cfg.admin = key
	}
}

// Admin reports the resolved protocol config admin, zero when unset.
func (s *GenesisSpec) Admin() solana.PublicKey {
	if s.ProtocolConfig == nil {
		return solana.PublicKey{}
	}
	return s.ProtocolConfig.admin
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	seen := make(map[solana.PublicKey]string)
	claim := func(key solana.PublicKey, what string) error {
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%s: address %s already used by %s", what, key, prev)
		}
		seen[key] = what
		return nil
	}

	for i := range s.Accounts {
		acct := &s.Accounts[i]
		what := fmt.Sprintf("accounts[%d]", i)
		key, err := parseKey(acct.PublicKey)
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if acct.Lamports == 0 {
			return fmt.Errorf("%s: lamports must be greater than zero", what)
		}
		if err := claim(key, what); err != nil {
			return err
		}
		acct.key = key
	}

	for i := range s.Mints {
		mint := &s.Mints[i]
		what := fmt.Sprintf("mints[%d]", i)
		if mint.key, err = parseKey(mint.Address); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if mint.authority, err = parseKey(mint.Authority); err != nil {
			return fmt.Errorf("%s authority: %w", what, err)
		}
		if err := claim(mint.key, what); err != nil {
			return err
		}
		var supply uint64
		for j := range mint.Holders {
			holder := &mint.Holders[j]
			hwhat := fmt.Sprintf("%s.holders[%d]", what, j)
			if holder.account, err = parseKey(holder.Account); err != nil {
				return fmt.Errorf("%s: %w", hwhat, err)
			}
			if holder.owner, err = parseKey(holder.Owner); err != nil {
				return fmt.Errorf("%s owner: %w", hwhat, err)
			}
			if err := claim(holder.account, hwhat); err != nil {
				return err
			}
			if supply+holder.Amount < supply {
				return fmt.Errorf("%s: supply overflows", what)
			}
			supply += holder.Amount
		}
	}

	if cfg := s.ProtocolConfig; cfg != nil {
		if strings.TrimSpace(cfg.Admin) != "" {
			if cfg.admin, err = parseKey(cfg.Admin); err != nil {
				return fmt.Errorf("protocolConfig admin: %w", err)
			}
		}
		cfg.params = cfg.Params()
		if err := cfg.params.Validate(); err != nil {
			return fmt.Errorf("protocolConfig: %w", err)
		}
		addr, _ := agentmemory.ConfigAddress()
		if err := claim(addr, "protocolConfig"); err != nil {
			return err
		}
	}
	return nil
}

// Params merges the configured limits over the program defaults.
func (c *ProtocolConfigSpec) Params() agentmemory.ProtocolConfigParams {
	params := agentmemory.DefaultProtocolConfigParams()
	if c.StorageFeePerByte != nil {
		params.StorageFeePerByte = *c.StorageFeePerByte
	}
	if c.MinStakePerByte != nil {
		params.MinStakePerByte = *c.MinStakePerByte
	}
	if c.MaxBatchSize != 0 {
		params.MaxBatchSize = c.MaxBatchSize
	}
	if c.MaxMemorySize != 0 {
		params.MaxMemorySize = c.MaxMemorySize
	}
	if c.MaxKeyLength != 0 {
		params.MaxKeyLength = c.MaxKeyLength
	}
	if c.RewardRate != nil {
		params.RewardRate = *c.RewardRate
	}
	return params
}

func parseKey(value string) (solana.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("address must be provided")
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", value, err)
	}
	return key, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}

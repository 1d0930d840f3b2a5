package agentmemory

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the address the agent memory program is registered under.
var ProgramID = solana.PublicKeyFromBytes(crypto.Keccak256([]byte("memchain/agentmemory")))

const (
	MaxKeyLength        = 64
	MaxContentSize      = 10_000_000
	MaxNameLength       = 128
	MaxCapabilities     = 20
	MaxCapabilityLength = 64
	MaxGroupNameLength  = 64
	MaxGroupDescLength  = 256
	MaxGroupMembers     = 50
	MaxBatchSize        = 10
	MaxImportance       = 100
	MaxMemoryCount      = 1_000_000
	HistoryCapacity     = 10
	IPFSCIDLength       = 46

	MaxReputation        = 10_000
	ReputationPerTask    = 10
	TaskRateLimitSeconds = 60

	// MaxGrantDuration bounds how far in the future an access grant may
	// expire.
	MaxGrantDuration int64 = 365 * 24 * 60 * 60

	// RewardRateDenominator expresses ProtocolConfig.RewardRate in basis
	// points.
	RewardRateDenominator = 10_000

	MaxAgentIDLength       = 128
	MaxBindingsPerIdentity = 100
)

// PDA seed prefixes.
var (
	SeedVault            = []byte("vault")
	SeedProfile          = []byte("profile")
	SeedMemory           = []byte("memory")
	SeedAccess           = []byte("access")
	SeedGroup            = []byte("group")
	SeedConfig           = []byte("config")
	SeedLog              = []byte("log")
	SeedVaultTokens      = []byte("vault_tokens")
	SeedIdentityBinding  = []byte("identity_binding")
	SeedIdentityRegistry = []byte("identity_registry")
)

package agentmemory

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// chunkSeeds splits seeds longer than solana.MaxSeedLength into consecutive
// chunks. Address derivation hashes the concatenation of all seeds, so the
// chunked form derives the same address as the unsplit seed would.
func chunkSeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, 0, len(seeds)+2)
	for _, seed := range seeds {
		if len(seed) == 0 {
			continue
		}
		for len(seed) > solana.MaxSeedLength {
			out = append(out, seed[:solana.MaxSeedLength])
			seed = seed[solana.MaxSeedLength:]
		}
		out = append(out, seed)
	}
	return out
}

// FindAddress returns the canonical program address and bump for seeds.
func FindAddress(seeds ...[]byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(chunkSeeds(seeds), ProgramID)
}

// signerSeeds returns the seed list, bump included, used to sign a
// cross-program invocation on behalf of the address.
func signerSeeds(bump uint8, seeds ...[]byte) [][]byte {
	return append(chunkSeeds(seeds), []byte{bump})
}

func mustFind(seeds ...[]byte) (solana.PublicKey, uint8) {
	addr, bump, err := FindAddress(seeds...)
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// VaultAddress derives the vault of (owner, agent).
func VaultAddress(owner, agent solana.PublicKey) (solana.PublicKey, uint8) {
	return mustFind(SeedVault, owner[:], agent[:])
}

// ProfileAddress derives the profile of agent.
func ProfileAddress(agent solana.PublicKey) (solana.PublicKey, uint8) {
	return mustFind(SeedProfile, agent[:])
}

// MemoryAddress derives the shard stored under key in vault.
func MemoryAddress(vault solana.PublicKey, key string) (solana.PublicKey, uint8) {
	return mustFind(SeedMemory, vault[:], []byte(key))
}

// AccessGrantAddress derives the grant of grantee on vault.
func AccessGrantAddress(vault, grantee solana.PublicKey) (solana.PublicKey, uint8) {
	return mustFind(SeedAccess, vault[:], grantee[:])
}

// GroupAddress derives the sharing group name of vault.
func GroupAddress(vault solana.PublicKey, name string) (solana.PublicKey, uint8) {
	return mustFind(SeedGroup, vault[:], []byte(name))
}

// ConfigAddress derives the protocol config singleton.
func ConfigAddress() (solana.PublicKey, uint8) {
	return mustFind(SeedConfig)
}

// logTimestampSeed is the low four little-endian bytes of the unix time.
func logTimestampSeed(ts int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ts))
	return buf[:4]
}

// AccessLogAddress derives the log entry of accessor reading memory at ts.
func AccessLogAddress(memory, accessor solana.PublicKey, ts int64) (solana.PublicKey, uint8) {
	return mustFind(SeedLog, memory[:], accessor[:], logTimestampSeed(ts))
}

// VaultTokenAddress derives the token account holding a vault's stake.
func VaultTokenAddress(vault solana.PublicKey) (solana.PublicKey, uint8) {
	return mustFind(SeedVaultTokens, vault[:])
}

// BindingAddress derives the binding of identity to agentID.
func BindingAddress(identity solana.PublicKey, agentID string) (solana.PublicKey, uint8) {
	return mustFind(SeedIdentityBinding, identity[:], []byte(agentID))
}

// RegistryAddress derives the binding registry of identity.
func RegistryAddress(identity solana.PublicKey) (solana.PublicKey, uint8) {
	return mustFind(SeedIdentityRegistry, identity[:])
}

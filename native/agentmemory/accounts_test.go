package agentmemory

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func fullShard() *MemoryShard {
	var cid [IPFSCIDLength]byte
	copy(cid[:], "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi")
	deleted := int64(42)
	prev := [32]byte{9}
	meta := MemoryMetadata{MemoryType: MemoryTypeKnowledge, Importance: MaxImportance, Tags: [8]byte{1, 2}, IPFSCID: &cid}
	shard := &MemoryShard{
		Vault:               solana.PublicKey{1},
		Key:                 strings.Repeat("k", MaxKeyLength),
		ContentHash:         [32]byte{7},
		ContentSize:         MaxContentSize,
		Metadata:            meta,
		CreatedAt:           1,
		UpdatedAt:           2,
		Version:             HistoryCapacity + 1,
		IsDeleted:           true,
		DeletedAt:           &deleted,
		PreviousVersionHash: &prev,
		Bump:                254,
	}
	for i := 1; i <= HistoryCapacity; i++ {
		shard.History = append(shard.History, VersionEntry{Version: uint32(i), ContentSize: uint32(i), Metadata: meta.clone(), RecordedAt: int64(i)})
	}
	return shard
}

func TestAccountsRoundTripAtMaximumSize(t *testing.T) {
	expires := int64(1_800_000_000)
	caps := make([]string, MaxCapabilities)
	for i := range caps {
		caps[i] = strings.Repeat("c", MaxCapabilityLength)
	}
	members := make([]GroupMember, MaxGroupMembers)
	for i := range members {
		members[i] = GroupMember{Member: solana.PublicKey{byte(i)}, Permission: PermissionWrite, JoinedAt: int64(i)}
	}
	ids := make([]string, MaxBindingsPerIdentity)
	for i := range ids {
		ids[i] = strings.Repeat(string(rune('a'+i%26)), MaxAgentIDLength)
	}

	cases := []struct {
		name  string
		acct  programAccount
		fresh func() programAccount
	}{
		{"vault", &MemoryVault{Owner: solana.PublicKey{1}, AgentKey: solana.PublicKey{2}, MemoryCount: 3, TotalMemorySize: 4, StakedAmount: 5, RewardPoints: 6, IsActive: true, Bump: 255}, func() programAccount { return new(MemoryVault) }},
		{"shard", fullShard(), func() programAccount { return new(MemoryShard) }},
		{"profile", &AgentProfile{AgentKey: solana.PublicKey{3}, Name: strings.Repeat("n", MaxNameLength), Capabilities: caps, ReputationScore: MaxReputation, IsPublic: true, Bump: 253}, func() programAccount { return new(AgentProfile) }},
		{"grant", &AccessGrant{Vault: solana.PublicKey{4}, PermissionLevel: PermissionAdmin, ExpiresAt: &expires, RevokedAt: &expires, Bump: 1}, func() programAccount { return new(AccessGrant) }},
		{"group", &SharingGroup{Name: strings.Repeat("g", MaxGroupNameLength), Description: strings.Repeat("d", MaxGroupDescLength), Members: members, MemberCount: MaxGroupMembers, IsActive: true}, func() programAccount { return new(SharingGroup) }},
		{"log", &AccessLog{Memory: solana.PublicKey{5}, AccessType: AccessShare, Timestamp: 9, Bump: 2}, func() programAccount { return new(AccessLog) }},
		{"config", &ProtocolConfig{Admin: solana.PublicKey{6}, StorageFeePerByte: 10, MaxBatchSize: MaxBatchSize, IsPaused: true}, func() programAccount { return new(ProtocolConfig) }},
		{"binding", &IdentityMemoryBinding{Identity: solana.PublicKey{7}, AgentID: strings.Repeat("i", MaxAgentIDLength), Revoked: true, RevokedAt: &expires, Version: 4}, func() programAccount { return new(IdentityMemoryBinding) }},
		{"registry", &IdentityBindingRegistry{Identity: solana.PublicKey{8}, AgentIDs: ids, ActiveBindingCount: MaxBindingsPerIdentity}, func() programAccount { return new(IdentityBindingRegistry) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeAccount(tc.acct)
			require.NoError(t, err)
			require.Len(t, data, tc.acct.size())
			got := tc.fresh()
			require.NoError(t, DecodeAccount(data, got))
			require.Equal(t, tc.acct, got)
		})
	}
}

func TestDecodeAccountChecksTag(t *testing.T) {
	data, err := EncodeAccount(&MemoryVault{IsActive: true})
	require.NoError(t, err)

	require.ErrorIs(t, DecodeAccount(data, new(AgentProfile)), ErrAccountDiscriminatorMismatch)
	require.ErrorIs(t, DecodeAccount(data[:4], new(MemoryVault)), ErrAccountDiscriminatorMismatch)

	copy(data, ClosedDiscriminator[:])
	require.ErrorIs(t, DecodeAccount(data, new(MemoryVault)), ErrAccountClosed)
}

func TestDiscriminatorsAreDistinct(t *testing.T) {
	seen := map[Discriminator]string{ClosedDiscriminator: "closed"}
	for name, d := range map[string]Discriminator{
		"vault":    VaultDiscriminator,
		"shard":    ShardDiscriminator,
		"profile":  ProfileDiscriminator,
		"grant":    AccessGrantDiscriminator,
		"group":    SharingGroupDiscriminator,
		"log":      AccessLogDiscriminator,
		"config":   ProtocolConfigDiscriminator,
		"binding":  BindingDiscriminator,
		"registry": RegistryDiscriminator,
	} {
		other, dup := seen[d]
		require.False(t, dup, "%s collides with %s", name, other)
		seen[d] = name
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	shard := &MemoryShard{}
	for v := uint32(1); v <= HistoryCapacity+3; v++ {
		shard.pushHistory(VersionEntry{Version: v})
	}
	require.Len(t, shard.History, HistoryCapacity)
	require.EqualValues(t, 4, shard.History[0].Version)
	require.EqualValues(t, HistoryCapacity+3, shard.History[HistoryCapacity-1].Version)

	_, ok := shard.FindVersion(3)
	require.False(t, ok)
	entry, ok := shard.FindVersion(7)
	require.True(t, ok)
	require.EqualValues(t, 7, entry.Version)
}

func TestGrantAllows(t *testing.T) {
	expires := int64(100)
	grant := &AccessGrant{PermissionLevel: PermissionWrite, ExpiresAt: &expires, IsActive: true}
	require.NoError(t, grant.Allows(PermissionRead, 99))
	require.NoError(t, grant.Allows(PermissionWrite, 99))
	require.ErrorIs(t, grant.Allows(PermissionAdmin, 99), ErrAccessNotGranted)
	require.ErrorIs(t, grant.Allows(PermissionRead, 100), ErrAccessExpired)

	grant.IsActive = false
	require.ErrorIs(t, grant.Allows(PermissionRead, 0), ErrAccessNotGranted)
}

func TestBindingMessage(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	require.Equal(t, key.PublicKey().String()+":agent", string(BindingMessage(key.PublicKey(), "agent")))

	sig, err := SignBinding(key, "agent")
	require.NoError(t, err)
	binding := &IdentityMemoryBinding{Identity: key.PublicKey(), AgentID: "agent", BindingSignature: sig}
	require.True(t, binding.VerifyOwnership())
	binding.AgentID = "other"
	require.False(t, binding.VerifyOwnership())
}

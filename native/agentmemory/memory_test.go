package agentmemory

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestInitializeVault(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)

	vault := f.vaultState(t, v)
	require.Equal(t, v.owner.PublicKey(), vault.Owner)
	require.Equal(t, v.agent.PublicKey(), vault.AgentKey)
	require.True(t, vault.IsActive)
	require.Zero(t, vault.MemoryCount)
	require.EqualValues(t, genesisTime, vault.CreatedAt)

	profileAddr, _ := ProfileAddress(v.agent.PublicKey())
	profile := new(AgentProfile)
	f.load(t, profileAddr, profile)
	require.Equal(t, v.vault, profile.Vault)
	require.Equal(t, v.owner.PublicKey(), profile.Owner)

	res := f.send(t, v.signers(), InitializeVault(v.owner.PublicKey(), v.agent.PublicKey(), [32]byte{2}))
	require.Error(t, res.Err)
}

func TestMemoryLifecycle(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()

	res := f.mustSend(t, v.signers(), CreateMemory(owner, v.vault, memoryInput("k1", 100, 50)))
	ev := findEvent(t, res, EventTypeMemoryCreated)
	require.Equal(t, "k1", ev.Attr("key"))
	require.Equal(t, "1", ev.Attr("version"))

	vault := f.vaultState(t, v)
	require.EqualValues(t, 1, vault.MemoryCount)
	require.EqualValues(t, 100, vault.TotalMemorySize)
	shard := f.shardState(t, v, "k1")
	require.EqualValues(t, 1, shard.Version)
	require.Nil(t, shard.PreviousVersionHash)
	original := shard.ContentHash

	update := memoryInput("k1", 200, 60)
	res = f.mustSend(t, v.signers(), UpdateMemory(owner, v.vault, "k1", UpdateMemoryArgs{
		ContentHash: update.ContentHash,
		ContentSize: update.ContentSize,
		Metadata:    update.Metadata,
	}))
	require.Equal(t, "2", findEvent(t, res, EventTypeMemoryUpdated).Attr("new_version"))
	shard = f.shardState(t, v, "k1")
	require.EqualValues(t, 2, shard.Version)
	require.NotNil(t, shard.PreviousVersionHash)
	require.Equal(t, original, *shard.PreviousVersionHash)
	require.Len(t, shard.History, 1)
	require.EqualValues(t, 100, shard.History[0].ContentSize)
	require.EqualValues(t, 200, f.vaultState(t, v).TotalMemorySize)

	f.advance(5)
	res = f.mustSend(t, v.signers(), RollbackMemory(owner, v.vault, "k1", 1))
	ev = findEvent(t, res, EventTypeMemoryRolledBack)
	require.Equal(t, "2", ev.Attr("from_version"))
	require.Equal(t, "1", ev.Attr("to_version"))
	require.Equal(t, "3", ev.Attr("new_version"))
	shard = f.shardState(t, v, "k1")
	require.EqualValues(t, 3, shard.Version)
	require.EqualValues(t, 100, shard.ContentSize)
	require.Equal(t, original, shard.ContentHash)
	require.EqualValues(t, 50, shard.Metadata.Importance)
	require.Len(t, shard.History, 2)
	require.EqualValues(t, 100, f.vaultState(t, v).TotalMemorySize)

	res = f.send(t, v.signers(), RollbackMemory(owner, v.vault, "k1", 3))
	require.ErrorIs(t, res.Err, ErrInvalidRollbackVersion)
	res = f.send(t, v.signers(), RollbackMemory(owner, v.vault, "k1", 0))
	require.ErrorIs(t, res.Err, ErrInvalidRollbackVersion)
}

func TestSoftDeleteRestoreAndPurge(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()
	f.createMemory(t, v, "keep", 10)
	f.createMemory(t, v, "drop", 40)

	res := f.send(t, v.signers(), RestoreMemory(owner, v.vault, "drop"))
	require.ErrorIs(t, res.Err, ErrMemoryNotDeleted)
	res = f.send(t, v.signers(), PermanentDeleteMemory(owner, v.vault, "drop"))
	require.ErrorIs(t, res.Err, ErrMemoryNotDeleted)

	f.mustSend(t, v.signers(), DeleteMemory(owner, v.vault, "drop"))
	vault := f.vaultState(t, v)
	require.EqualValues(t, 1, vault.MemoryCount)
	require.EqualValues(t, 10, vault.TotalMemorySize)
	shard := f.shardState(t, v, "drop")
	require.True(t, shard.IsDeleted)
	require.NotNil(t, shard.DeletedAt)

	res = f.send(t, v.signers(), DeleteMemory(owner, v.vault, "drop"))
	require.ErrorIs(t, res.Err, ErrMemoryAlreadyDeleted)
	res = f.send(t, v.signers(), UpdateMemory(owner, v.vault, "drop", UpdateMemoryArgs{ContentSize: 5}))
	require.ErrorIs(t, res.Err, ErrMemoryAlreadyDeleted)

	f.mustSend(t, v.signers(), RestoreMemory(owner, v.vault, "drop"))
	vault = f.vaultState(t, v)
	require.EqualValues(t, 2, vault.MemoryCount)
	require.EqualValues(t, 50, vault.TotalMemorySize)

	f.mustSend(t, v.signers(), DeleteMemory(owner, v.vault, "drop"))
	shardAddr, _ := MemoryAddress(v.vault, "drop")
	before, err := f.ledger.GetAccount(owner)
	require.NoError(t, err)
	rent, err := f.ledger.GetAccount(shardAddr)
	require.NoError(t, err)

	f.mustSend(t, v.signers(), PermanentDeleteMemory(owner, v.vault, "drop"))
	require.False(t, f.exists(t, shardAddr))
	after, err := f.ledger.GetAccount(owner)
	require.NoError(t, err)
	require.Equal(t, before.Lamports+rent.Lamports, after.Lamports)

	vault = f.vaultState(t, v)
	require.EqualValues(t, 1, vault.MemoryCount)
	require.EqualValues(t, 10, vault.TotalMemorySize)

	// The key is free again once the shard is gone.
	f.createMemory(t, v, "drop", 7)
	require.EqualValues(t, 1, f.shardState(t, v, "drop").Version)
}

func TestCreateMemoryValidation(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()

	cases := []struct {
		name string
		in   MemoryInput
		err  error
	}{
		{"empty key", memoryInput("", 10, 1), ErrEmptyKey},
		{"key too long", memoryInput(strings.Repeat("k", MaxKeyLength+1), 10, 1), ErrKeyTooLong},
		{"zero size", memoryInput("zero", 0, 1), ErrInvalidContentSize},
		{"too large", memoryInput("big", MaxContentSize+1, 1), ErrContentTooLarge},
		{"importance", memoryInput("imp", 10, MaxImportance+1), ErrInvalidImportance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.send(t, v.signers(), CreateMemory(owner, v.vault, tc.in))
			require.ErrorIs(t, res.Err, tc.err)
		})
	}

	f.createMemory(t, v, strings.Repeat("k", MaxKeyLength), 1)
	f.createMemory(t, v, "max", MaxContentSize)
	require.EqualValues(t, MaxContentSize+1, f.vaultState(t, v).TotalMemorySize)

	res := f.send(t, v.signers(), CreateMemory(owner, v.vault, memoryInput("max", 1, 1)))
	require.Error(t, res.Err)
}

func TestConfigTightensLimits(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	maxSize := uint32(1_000)
	f.mustSend(t, []solana.PrivateKey{f.admin}, UpdateProtocolConfig(f.admin.PublicKey(), ProtocolConfigUpdate{MaxMemorySize: &maxSize}))

	res := f.send(t, v.signers(), CreateMemory(v.owner.PublicKey(), v.vault, memoryInput("big", 1_001, 1)))
	require.ErrorIs(t, res.Err, ErrContentTooLarge)
	f.createMemory(t, v, "fits", 1_000)
}

func TestHistoryKeepsLatestVersions(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()
	f.createMemory(t, v, "h", 1)

	for size := uint32(2); size <= 13; size++ {
		in := memoryInput("h", size, 1)
		f.mustSend(t, v.signers(), UpdateMemory(owner, v.vault, "h", UpdateMemoryArgs{
			ContentHash: in.ContentHash,
			ContentSize: in.ContentSize,
			Metadata:    in.Metadata,
		}))
	}
	shard := f.shardState(t, v, "h")
	require.EqualValues(t, 13, shard.Version)
	require.Len(t, shard.History, HistoryCapacity)
	for i, entry := range shard.History {
		require.EqualValues(t, i+3, entry.Version)
	}

	res := f.send(t, v.signers(), RollbackMemory(owner, v.vault, "h", 2))
	require.ErrorIs(t, res.Err, ErrVersionNotFound)
	f.mustSend(t, v.signers(), RollbackMemory(owner, v.vault, "h", 3))
	shard = f.shardState(t, v, "h")
	require.EqualValues(t, 14, shard.Version)
	require.EqualValues(t, 3, shard.ContentSize)
	require.EqualValues(t, 4, shard.History[0].Version)
}

func TestBatchCreateLimits(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()

	res := f.send(t, v.signers(), BatchCreateMemories(owner, v.vault, nil))
	require.ErrorIs(t, res.Err, ErrEmptyBatch)

	items := make([]MemoryInput, MaxBatchSize+1)
	var total uint64
	for i := range items {
		items[i] = memoryInput(fmt.Sprintf("b%d", i), uint32(100*(i+1)), 10)
		if i < MaxBatchSize {
			total += uint64(items[i].ContentSize)
		}
	}
	res = f.send(t, v.signers(), BatchCreateMemories(owner, v.vault, items))
	require.ErrorIs(t, res.Err, ErrBatchTooLarge)

	res = f.mustSend(t, v.signers(), BatchCreateMemories(owner, v.vault, items[:MaxBatchSize]))
	ev := findEvent(t, res, EventTypeBatchMemoryCreated)
	require.Equal(t, fmt.Sprint(MaxBatchSize), ev.Attr("count"))
	require.Equal(t, fmt.Sprint(total), ev.Attr("total_size"))
	require.Equal(t, fmt.Sprint(total*10), ev.Attr("storage_fee"))

	vault := f.vaultState(t, v)
	require.EqualValues(t, MaxBatchSize, vault.MemoryCount)
	require.Equal(t, total, vault.TotalMemorySize)
	require.EqualValues(t, 300, f.shardState(t, v, "b2").ContentSize)
}

func TestBatchCreateIsAtomic(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	items := []MemoryInput{memoryInput("ok", 10, 1), memoryInput("bad", 0, 1)}
	res := f.send(t, v.signers(), BatchCreateMemories(v.owner.PublicKey(), v.vault, items))
	require.ErrorIs(t, res.Err, ErrInvalidContentSize)

	okAddr, _ := MemoryAddress(v.vault, "ok")
	require.False(t, f.exists(t, okAddr))
	require.Zero(t, f.vaultState(t, v).MemoryCount)
}

func TestBatchDeleteAndTags(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()
	f.mustSend(t, v.signers(), BatchCreateMemories(owner, v.vault, []MemoryInput{
		memoryInput("a", 10, 1),
		memoryInput("b", 20, 1),
		memoryInput("c", 30, 1),
	}))

	tags := [8]byte{1, 2, 3}
	f.mustSend(t, v.signers(), BatchUpdateTags(owner, v.vault, []TagUpdate{{MemoryKey: "a", NewTags: tags}, {MemoryKey: "c", NewTags: tags}}))
	require.Equal(t, tags, f.shardState(t, v, "a").Metadata.Tags)
	require.Equal(t, [8]byte{}, f.shardState(t, v, "b").Metadata.Tags)
	require.EqualValues(t, 1, f.shardState(t, v, "c").Version)

	f.mustSend(t, v.signers(), BatchDeleteMemories(owner, v.vault, []string{"a", "b"}))
	vault := f.vaultState(t, v)
	require.EqualValues(t, 1, vault.MemoryCount)
	require.EqualValues(t, 30, vault.TotalMemorySize)
	require.True(t, f.shardState(t, v, "a").IsDeleted)

	res := f.send(t, v.signers(), BatchUpdateTags(owner, v.vault, []TagUpdate{{MemoryKey: "a", NewTags: tags}}))
	require.ErrorIs(t, res.Err, ErrMemoryAlreadyDeleted)
	res = f.send(t, v.signers(), BatchDeleteMemories(owner, v.vault, []string{"b", "c"}))
	require.ErrorIs(t, res.Err, ErrMemoryAlreadyDeleted)
	require.False(t, f.shardState(t, v, "c").IsDeleted)

	// Accounts must line up with the keys they claim to be.
	ix := BatchDeleteMemories(owner, v.vault, []string{"c"})
	ix.Accounts[3].PublicKey, _ = MemoryAddress(v.vault, "a")
	res = f.send(t, v.signers(), ix)
	require.ErrorIs(t, res.Err, ErrInvalidPDA)
}

func TestOtherOwnerCannotTouchVault(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	f.createMemory(t, v, "mine", 10)

	intruder := newKeypair(t)
	f.fund(t, intruder.PublicKey(), 1_000_000_000)
	res := f.send(t, []solana.PrivateKey{intruder}, DeleteMemory(intruder.PublicKey(), v.vault, "mine"))
	require.ErrorIs(t, res.Err, ErrUnauthorizedOwner)
	res = f.send(t, []solana.PrivateKey{intruder}, CreateMemory(intruder.PublicKey(), v.vault, memoryInput("theirs", 1, 1)))
	require.ErrorIs(t, res.Err, ErrUnauthorizedOwner)
	require.False(t, f.shardState(t, v, "mine").IsDeleted)
}

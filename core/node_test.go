package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"memchain/core/events"
	"memchain/core/state"
	"memchain/core/types"
	"memchain/indexer"
	"memchain/native/agentmemory"
	"memchain/observability/metrics"
	"memchain/storage"
)

type memoryIndex struct {
	mu      sync.Mutex
	entries []indexer.Entry
}

func (m *memoryIndex) Record(_ context.Context, entry indexer.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func lamports(v uint64) *uint64 { return &v }

type nodeFixture struct {
	node     *Node
	index    *memoryIndex
	recorder *events.Recorder
	payer    solana.PrivateKey
	nonce    uint64
}

func newNodeFixture(t *testing.T) *nodeFixture {
	t.Helper()
	f := &nodeFixture{index: &memoryIndex{}, recorder: &events.Recorder{}}
	f.node = NewNode(state.NewLedger(storage.NewMemDB()), Options{
		LamportsPerSignature: lamports(5000),
		EnableAirdrop:        true,
		AirdropMaxLamports:   50_000_000_000,
		Index:                f.index,
		Emitter:              f.recorder,
		Metrics:              metrics.NewNodeMetrics(prometheus.NewRegistry()),
		Now:                  func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	f.payer = key
	_, err = f.node.Airdrop(context.Background(), key.PublicKey(), 20_000_000_000)
	require.NoError(t, err)
	return f
}

func (f *nodeFixture) submit(t *testing.T, ixs ...types.Instruction) *types.Transaction {
	t.Helper()
	f.nonce++
	tx := types.NewTransaction(f.payer.PublicKey(), f.nonce, ixs...)
	require.NoError(t, tx.Sign(f.payer))
	return tx
}

func TestSubmitTransactionIndexesEvents(t *testing.T) {
	f := newNodeFixture(t)
	ctx := context.Background()
	payer := f.payer.PublicKey()
	agent := solana.PublicKey{9}
	vault, _ := agentmemory.VaultAddress(payer, agent)

	res, err := f.node.SubmitTransaction(ctx, f.submit(t,
		agentmemory.InitializeProtocolConfig(payer, agentmemory.DefaultProtocolConfigParams()),
		agentmemory.InitializeVault(payer, agent, [32]byte{1}),
		agentmemory.CreateMemory(payer, vault, agentmemory.MemoryInput{
			Key:         "notes",
			ContentHash: [32]byte{7},
			ContentSize: 128,
			Metadata:    agentmemory.MemoryMetadata{MemoryType: agentmemory.MemoryTypeKnowledge, Importance: 10},
		})))
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "%v", res.Err)
	require.EqualValues(t, 5000, res.Fee)

	require.Equal(t, []string{
		agentmemory.EventTypeProtocolConfigInitialized,
		agentmemory.EventTypeVaultInitialized,
		agentmemory.EventTypeMemoryCreated,
	}, f.recorder.Types())

	require.Len(t, f.index.entries, 1)
	entry := f.index.entries[0]
	require.Equal(t, res.Hash.Hex(), entry.Hash)
	require.Equal(t, res.Slot, entry.Slot)
	require.NoError(t, entry.Err)
	require.Len(t, entry.Events, 3)
	require.Equal(t, vault.String(), entry.Events[2].Attributes["vault"])

	vaults, err := f.node.ProgramAccounts(agentmemory.ProgramID, agentmemory.VaultDiscriminator[:])
	require.NoError(t, err)
	require.Len(t, vaults, 1)
	require.Equal(t, vault, vaults[0].PublicKey)

	all, err := f.node.ProgramAccounts(agentmemory.ProgramID, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestSubmitTransactionRecordsFailures(t *testing.T) {
	f := newNodeFixture(t)
	ctx := context.Background()
	payer := f.payer.PublicKey()
	before, err := f.node.GetAccount(payer)
	require.NoError(t, err)

	vault, _ := agentmemory.VaultAddress(payer, solana.PublicKey{3})
	res, err := f.node.SubmitTransaction(ctx, f.submit(t, agentmemory.DeleteMemory(payer, vault, "missing")))
	require.NoError(t, err)
	require.Error(t, res.Err)

	after, err := f.node.GetAccount(payer)
	require.NoError(t, err)
	require.Equal(t, before.Lamports-res.Fee, after.Lamports)

	require.Len(t, f.index.entries, 1)
	require.Error(t, f.index.entries[0].Err)
	require.Empty(t, f.index.entries[0].Events)
	require.Empty(t, f.recorder.Events())
}

func TestSubmitTransactionRejectsUnsigned(t *testing.T) {
	f := newNodeFixture(t)
	tx := types.NewTransaction(f.payer.PublicKey(), 1, agentmemory.SetProtocolPause(f.payer.PublicKey(), true))
	_, err := f.node.SubmitTransaction(context.Background(), tx)
	require.ErrorIs(t, err, types.ErrMissingSignature)
	require.Empty(t, f.index.entries)

	slot, err := f.node.Slot()
	require.NoError(t, err)
	require.EqualValues(t, 1, slot)
}

func TestSubmitTransactionHonoursContext(t *testing.T) {
	f := newNodeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.node.SubmitTransaction(ctx, f.submit(t, agentmemory.SetProtocolPause(f.payer.PublicKey(), true)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestAirdrop(t *testing.T) {
	f := newNodeFixture(t)
	ctx := context.Background()
	key := solana.PublicKey{42}

	slot, err := f.node.Airdrop(ctx, key, 1_000)
	require.NoError(t, err)
	require.EqualValues(t, 2, slot)
	acct, err := f.node.GetAccount(key)
	require.NoError(t, err)
	require.EqualValues(t, 1_000, acct.Lamports)

	_, err = f.node.Airdrop(ctx, key, 0)
	require.ErrorIs(t, err, ErrAirdropLimit)
	_, err = f.node.Airdrop(ctx, key, 50_000_000_001)
	require.ErrorIs(t, err, ErrAirdropLimit)
	_, err = f.node.Airdrop(ctx, agentmemory.ProgramID, 1)
	require.Error(t, err)

	closed := NewNode(state.NewLedger(storage.NewMemDB()), Options{})
	_, err = closed.Airdrop(ctx, key, 1)
	require.ErrorIs(t, err, ErrAirdropDisabled)
}

func TestConcurrentSubmissionsGetDistinctSlots(t *testing.T) {
	f := newNodeFixture(t)
	ctx := context.Background()
	payer := f.payer.PublicKey()

	txs := make([]*types.Transaction, 8)
	for i := range txs {
		txs[i] = f.submit(t, agentmemory.RecordTask(payer, solana.PublicKey{byte(i + 1)}))
	}
	slots := make(chan uint64, len(txs))
	var wg sync.WaitGroup
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *types.Transaction) {
			defer wg.Done()
			res, err := f.node.SubmitTransaction(ctx, tx)
			if err == nil {
				slots <- res.Slot
			}
		}(tx)
	}
	wg.Wait()
	close(slots)

	seen := make(map[uint64]bool)
	for slot := range slots {
		require.False(t, seen[slot], "slot %d assigned twice", slot)
		seen[slot] = true
	}
	require.Len(t, seen, len(txs))
}

// cancelAfterAdmission reports no error on the admission check and is
// cancelled from then on, like a client that hangs up mid-request.
type cancelAfterAdmission struct {
	context.Context
	checks atomic.Int32
	done   chan struct{}
}

func newCancelAfterAdmission() *cancelAfterAdmission {
	done := make(chan struct{})
	close(done)
	return &cancelAfterAdmission{Context: context.Background(), done: done}
}

func (c *cancelAfterAdmission) Err() error {
	if c.checks.Add(1) == 1 {
		return nil
	}
	return context.Canceled
}

func (c *cancelAfterAdmission) Done() <-chan struct{} {
	if c.checks.Load() == 0 {
		return nil
	}
	return c.done
}

func TestSubmitTransactionIndexesAfterClientCancel(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := indexer.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	node := NewNode(state.NewLedger(storage.NewMemDB()), Options{
		EnableAirdrop: true,
		Index:         store,
		Metrics:       metrics.NewNodeMetrics(prometheus.NewRegistry()),
	})
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = node.Airdrop(context.Background(), payer.PublicKey(), 10_000_000_000)
	require.NoError(t, err)

	tx := types.NewTransaction(payer.PublicKey(), 1,
		agentmemory.InitializeProtocolConfig(payer.PublicKey(), agentmemory.DefaultProtocolConfigParams()))
	require.NoError(t, tx.Sign(payer))

	ctx := newCancelAfterAdmission()
	res, err := node.SubmitTransaction(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	rec, err := store.Transaction(context.Background(), res.Hash.Hex())
	require.NoError(t, err)
	require.Equal(t, res.Slot, rec.Slot)
	require.True(t, rec.Succeeded)

	evts, err := store.Events(context.Background(), indexer.Filter{TxHash: res.Hash.Hex()})
	require.NoError(t, err)
	require.Len(t, evts, len(res.Events))
	require.NotEmpty(t, evts)
}

func TestZeroFeeNetwork(t *testing.T) {
	node := NewNode(state.NewLedger(storage.NewMemDB()), Options{
		LamportsPerSignature: lamports(0),
		EnableAirdrop:        true,
	})
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = node.Airdrop(context.Background(), payer.PublicKey(), 1_000_000)
	require.NoError(t, err)

	tx := types.NewTransaction(payer.PublicKey(), 1, agentmemory.SetProtocolPause(payer.PublicKey(), true))
	require.NoError(t, tx.Sign(payer))
	res, err := node.SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.Zero(t, res.Fee)

	acct, err := node.GetAccount(payer.PublicKey())
	require.NoError(t, err)
	require.EqualValues(t, 1_000_000, acct.Lamports)
}

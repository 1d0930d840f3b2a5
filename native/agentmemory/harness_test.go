package agentmemory

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"memchain/core/runtime"
	"memchain/core/state"
	"memchain/core/types"
	"memchain/native/token"
	"memchain/storage"
)

const genesisTime = 1_700_000_000

type fixture struct {
	rt     *runtime.Runtime
	ledger *state.Ledger
	payer  solana.PrivateKey
	admin  solana.PrivateKey
	clock  int64
	nonce  uint64
}

// newFixture boots a ledger with the token and agent memory programs and an
// initialized protocol config administered by f.admin.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := state.NewLedger(storage.NewMemDB())
	rt := runtime.New(ledger)
	rt.Register(token.Program{})
	rt.Register(Program{})
	f := &fixture{rt: rt, ledger: ledger, clock: genesisTime}
	rt.SetNowFunc(func() time.Time { return time.Unix(f.clock, 0) })

	f.payer = newKeypair(t)
	f.admin = newKeypair(t)
	f.fund(t, f.payer.PublicKey(), 100_000_000_000)
	f.fund(t, f.admin.PublicKey(), 10_000_000_000)

	params := DefaultProtocolConfigParams()
	params.MinStakePerByte = 1
	res := f.send(t, []solana.PrivateKey{f.admin}, InitializeProtocolConfig(f.admin.PublicKey(), params))
	require.True(t, res.Succeeded(), "%v", res.Err)
	return f
}

func newKeypair(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func (f *fixture) fund(t *testing.T, key solana.PublicKey, lamports uint64) {
	t.Helper()
	overlay := f.ledger.Overlay()
	acct, err := overlay.Get(key)
	require.NoError(t, err)
	acct.Lamports += lamports
	overlay.Set(key, acct)
	_, err = f.ledger.Commit(overlay, common.Hash{})
	require.NoError(t, err)
}

// put writes acct directly into the ledger, bypassing every program check.
func (f *fixture) put(t *testing.T, key solana.PublicKey, acct *types.Account) {
	t.Helper()
	overlay := f.ledger.Overlay()
	overlay.Set(key, acct)
	_, err := f.ledger.Commit(overlay, common.Hash{})
	require.NoError(t, err)
}

func (f *fixture) advance(seconds int64) { f.clock += seconds }

func (f *fixture) send(t *testing.T, signers []solana.PrivateKey, ixs ...types.Instruction) *runtime.Result {
	t.Helper()
	f.nonce++
	tx := types.NewTransaction(f.payer.PublicKey(), f.nonce, ixs...)
	require.NoError(t, tx.Sign(append([]solana.PrivateKey{f.payer}, signers...)...))
	res, err := f.rt.Execute(tx)
	require.NoError(t, err)
	return res
}

func (f *fixture) mustSend(t *testing.T, signers []solana.PrivateKey, ixs ...types.Instruction) *runtime.Result {
	t.Helper()
	res := f.send(t, signers, ixs...)
	require.True(t, res.Succeeded(), "%v", res.Err)
	return res
}

func (f *fixture) load(t *testing.T, key solana.PublicKey, acct programAccount) {
	t.Helper()
	raw, err := f.ledger.GetAccount(key)
	require.NoError(t, err)
	require.NoError(t, DecodeAccount(raw.Data, acct))
}

func (f *fixture) exists(t *testing.T, key solana.PublicKey) bool {
	t.Helper()
	ok, err := f.ledger.HasAccount(key)
	require.NoError(t, err)
	return ok
}

func (f *fixture) config(t *testing.T) *ProtocolConfig {
	t.Helper()
	addr, _ := ConfigAddress()
	cfg := new(ProtocolConfig)
	f.load(t, addr, cfg)
	return cfg
}

// agentVault is an initialized vault with its funded owner.
type agentVault struct {
	owner solana.PrivateKey
	agent solana.PrivateKey
	vault solana.PublicKey
}

func (f *fixture) newVault(t *testing.T) *agentVault {
	t.Helper()
	v := &agentVault{owner: newKeypair(t), agent: newKeypair(t)}
	f.fund(t, v.owner.PublicKey(), 10_000_000_000)
	v.vault, _ = VaultAddress(v.owner.PublicKey(), v.agent.PublicKey())
	f.mustSend(t, []solana.PrivateKey{v.owner},
		InitializeVault(v.owner.PublicKey(), v.agent.PublicKey(), [32]byte{1}))
	return v
}

func (v *agentVault) signers() []solana.PrivateKey { return []solana.PrivateKey{v.owner} }

func (f *fixture) vaultState(t *testing.T, v *agentVault) *MemoryVault {
	t.Helper()
	vault := new(MemoryVault)
	f.load(t, v.vault, vault)
	return vault
}

func (f *fixture) shardState(t *testing.T, v *agentVault, key string) *MemoryShard {
	t.Helper()
	addr, _ := MemoryAddress(v.vault, key)
	shard := new(MemoryShard)
	f.load(t, addr, shard)
	return shard
}

func memoryInput(key string, size uint32, importance uint8) MemoryInput {
	in := MemoryInput{Key: key, ContentSize: size}
	copy(in.ContentHash[:], key)
	in.ContentHash[31] = byte(size)
	in.Metadata = MemoryMetadata{MemoryType: MemoryTypeConversation, Importance: importance}
	return in
}

func (f *fixture) createMemory(t *testing.T, v *agentVault, key string, size uint32) {
	t.Helper()
	f.mustSend(t, v.signers(), CreateMemory(v.owner.PublicKey(), v.vault, memoryInput(key, size, 50)))
}

func findEvent(t *testing.T, res *runtime.Result, typ string) *Event {
	t.Helper()
	for _, ev := range res.Events {
		if ev.EventType() == typ {
			out, ok := ev.(*Event)
			require.True(t, ok)
			return out
		}
	}
	t.Fatalf("event %s not emitted", typ)
	return nil
}

package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"memchain/core/state"
	"memchain/core/types"
	"memchain/storage"
)

var errBoom = errors.New("boom")

// probeProgram is a test program whose behaviour is picked by the first data
// byte.
type probeProgram struct {
	id solana.PublicKey
}

const (
	probeWriteFirst byte = iota
	probeFail
	probeCreatePDA
	probeStealLamports
	probeEmit
)

type probeEvent struct{}

func (probeEvent) EventType() string   { return "probe.emitted" }
func (probeEvent) Event() *types.Event { return &types.Event{Type: "probe.emitted"} }

func (p probeProgram) ID() solana.PublicKey { return p.id }
func (p probeProgram) Name() string         { return "probe" }

func (p probeProgram) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	switch data[0] {
	case probeWriteFirst:
		accounts[0].Data[0] = data[1]
		return nil
	case probeFail:
		return errBoom
	case probeCreatePDA:
		payer, target := accounts[0], accounts[1]
		addr, bump, err := solana.FindProgramAddress([][]byte{[]byte("probe")}, p.id)
		if err != nil {
			return err
		}
		if !addr.Equals(target.Key) {
			return ErrInvalidArgument
		}
		space := uint64(16)
		return ctx.Invoke(
			CreateAccountInstruction(payer.Key, target.Key, ctx.Rent().MinimumBalance(space), space, p.id),
			[][]byte{[]byte("probe"), {bump}},
		)
	case probeStealLamports:
		accounts[0].Lamports -= 1
		accounts[1].Lamports += 1
		return nil
	case probeEmit:
		ctx.Emit(probeEvent{})
		ctx.Logf("emitted")
		ctx.SetReturnData([]byte{7})
		return nil
	}
	return ErrInvalidInstructionData
}

type harness struct {
	rt     *Runtime
	ledger *state.Ledger
	probe  probeProgram
	payer  solana.PrivateKey
	nonce  uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ledger := state.NewLedger(storage.NewMemDB())
	rt := New(ledger)
	rt.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	probeKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	probe := probeProgram{id: probeKey.PublicKey()}
	rt.Register(probe)

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	h := &harness{rt: rt, ledger: ledger, probe: probe, payer: payer}
	h.fund(t, payer.PublicKey(), 10_000_000_000)
	return h
}

func (h *harness) fund(t *testing.T, key solana.PublicKey, lamports uint64) {
	t.Helper()
	overlay := h.ledger.Overlay()
	acct, err := overlay.Get(key)
	require.NoError(t, err)
	acct.Lamports += lamports
	overlay.Set(key, acct)
	_, err = h.ledger.Commit(overlay, common.Hash{})
	require.NoError(t, err)
}

func (h *harness) put(t *testing.T, key solana.PublicKey, acct *types.Account) {
	t.Helper()
	overlay := h.ledger.Overlay()
	overlay.Set(key, acct)
	_, err := h.ledger.Commit(overlay, common.Hash{})
	require.NoError(t, err)
}

func (h *harness) send(t *testing.T, signers []solana.PrivateKey, ixs ...types.Instruction) *Result {
	t.Helper()
	h.nonce++
	tx := types.NewTransaction(h.payer.PublicKey(), h.nonce, ixs...)
	require.NoError(t, tx.Sign(append([]solana.PrivateKey{h.payer}, signers...)...))
	res, err := h.rt.Execute(tx)
	require.NoError(t, err)
	return res
}

func (h *harness) balance(t *testing.T, key solana.PublicKey) uint64 {
	t.Helper()
	acct, err := h.ledger.GetAccount(key)
	require.NoError(t, err)
	return acct.Lamports
}

func TestTransferChargesFee(t *testing.T) {
	h := newHarness(t)
	dest, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	res := h.send(t, nil, TransferInstruction(h.payer.PublicKey(), dest.PublicKey(), 1_000_000))
	require.True(t, res.Succeeded())
	require.Equal(t, DefaultLamportsPerSignature, res.Fee)
	require.Equal(t, uint64(1_000_000), h.balance(t, dest.PublicKey()))
	require.Equal(t, uint64(10_000_000_000-1_000_000-DefaultLamportsPerSignature), h.balance(t, h.payer.PublicKey()))
}

func TestFailedTransactionRollsBackButKeepsFee(t *testing.T) {
	h := newHarness(t)
	dest, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	res := h.send(t, nil,
		TransferInstruction(h.payer.PublicKey(), dest.PublicKey(), 1_000_000),
		types.Instruction{ProgramID: h.probe.id, Data: []byte{probeFail}},
	)
	require.False(t, res.Succeeded())
	require.ErrorIs(t, res.Err, errBoom)
	ixErr, ok := IsInstructionError(res.Err)
	require.True(t, ok)
	require.Equal(t, 1, ixErr.Index)

	require.Zero(t, h.balance(t, dest.PublicKey()))
	require.Equal(t, uint64(10_000_000_000-DefaultLamportsPerSignature), h.balance(t, h.payer.PublicKey()))
}

func TestDuplicateTransactionRejected(t *testing.T) {
	h := newHarness(t)
	tx := types.NewTransaction(h.payer.PublicKey(), 99, types.Instruction{ProgramID: h.probe.id, Data: []byte{probeEmit}})
	require.NoError(t, tx.Sign(h.payer))
	res, err := h.rt.Execute(tx)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.Equal(t, []byte{7}, res.ReturnData)
	require.Len(t, res.Events, 1)
	require.Len(t, res.Logs, 1)

	_, err = h.rt.Execute(tx)
	require.ErrorIs(t, err, ErrDuplicateTransaction)
}

func TestReadonlyAccountCannotBeModified(t *testing.T) {
	h := newHarness(t)
	target, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	h.put(t, target.PublicKey(), &types.Account{
		Lamports: h.rt.Rent().MinimumBalance(4),
		Owner:    h.probe.id,
		Data:     make([]byte, 4),
	})

	res := h.send(t, nil, types.Instruction{
		ProgramID: h.probe.id,
		Accounts:  []types.AccountMeta{types.Meta(target.PublicKey(), false, false)},
		Data:      []byte{probeWriteFirst, 9},
	})
	require.ErrorIs(t, res.Err, ErrReadonlyModified)

	res = h.send(t, nil, types.Instruction{
		ProgramID: h.probe.id,
		Accounts:  []types.AccountMeta{types.Meta(target.PublicKey(), false, true)},
		Data:      []byte{probeWriteFirst, 9},
	})
	require.True(t, res.Succeeded())
	acct, err := h.ledger.GetAccount(target.PublicKey())
	require.NoError(t, err)
	require.Equal(t, byte(9), acct.Data[0])
}

func TestProgramCannotWriteForeignAccount(t *testing.T) {
	h := newHarness(t)
	foreign, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	h.put(t, foreign.PublicKey(), &types.Account{
		Lamports: h.rt.Rent().MinimumBalance(4),
		Owner:    solana.TokenProgramID,
		Data:     make([]byte, 4),
	})

	res := h.send(t, nil, types.Instruction{
		ProgramID: h.probe.id,
		Accounts:  []types.AccountMeta{types.Meta(foreign.PublicKey(), false, true)},
		Data:      []byte{probeWriteFirst, 1},
	})
	require.ErrorIs(t, res.Err, ErrExternalAccountDataModified)

	res = h.send(t, nil, types.Instruction{
		ProgramID: h.probe.id,
		Accounts: []types.AccountMeta{
			types.Meta(foreign.PublicKey(), false, true),
			types.Meta(h.payer.PublicKey(), false, true),
		},
		Data: []byte{probeStealLamports},
	})
	require.ErrorIs(t, res.Err, ErrExternalAccountLamportSpend)
}

func TestInvokeSignedCreatesProgramAddress(t *testing.T) {
	h := newHarness(t)
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("probe")}, h.probe.id)
	require.NoError(t, err)

	ix := types.Instruction{
		ProgramID: h.probe.id,
		Accounts: []types.AccountMeta{
			types.Meta(h.payer.PublicKey(), true, true),
			types.Meta(addr, false, true),
			types.Meta(solana.SystemProgramID, false, false),
		},
		Data: []byte{probeCreatePDA},
	}
	res := h.send(t, nil, ix)
	require.True(t, res.Succeeded(), "%v", res.Err)

	acct, err := h.ledger.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, h.probe.id, acct.Owner)
	require.Len(t, acct.Data, 16)
	require.True(t, h.rt.Rent().IsExempt(acct.Lamports, 16))

	ix.Data = []byte{probeCreatePDA}
	res = h.send(t, nil, ix)
	require.ErrorIs(t, res.Err, ErrAccountAlreadyInUse)
}

func TestCreateAccountRequiresSignatureOfNewAccount(t *testing.T) {
	h := newHarness(t)
	target, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ix := CreateAccountInstruction(h.payer.PublicKey(), target.PublicKey(), h.rt.Rent().MinimumBalance(8), 8, h.probe.id)
	res := h.send(t, []solana.PrivateKey{target}, ix)
	require.True(t, res.Succeeded())

	tx := types.NewTransaction(h.payer.PublicKey(), 500, ix)
	require.ErrorIs(t, tx.Sign(h.payer), types.ErrMissingSigner)
}

func TestRentExemptionEnforced(t *testing.T) {
	h := newHarness(t)
	target, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ix := CreateAccountInstruction(h.payer.PublicKey(), target.PublicKey(), 1, 64, h.probe.id)
	res := h.send(t, []solana.PrivateKey{target}, ix)
	require.ErrorIs(t, res.Err, ErrInsufficientFundsForRent)
}

func TestUnknownProgramRejectedBeforeExecution(t *testing.T) {
	h := newHarness(t)
	unknown, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	tx := types.NewTransaction(h.payer.PublicKey(), 1, types.Instruction{ProgramID: unknown.PublicKey()})
	require.NoError(t, tx.Sign(h.payer))
	_, err = h.rt.Execute(tx)
	require.ErrorIs(t, err, ErrUnknownProgram)
}

func TestRentMinimumBalance(t *testing.T) {
	rent := DefaultRent()
	require.Equal(t, uint64(890_880), rent.MinimumBalance(0))
	require.True(t, rent.IsExempt(rent.MinimumBalance(100), 100))
	require.False(t, rent.IsExempt(rent.MinimumBalance(100)-1, 100))
}

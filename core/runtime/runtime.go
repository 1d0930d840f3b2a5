package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"memchain/core/events"
	"memchain/core/state"
	"memchain/core/types"
)

// Result describes an executed transaction. A transaction that reached
// execution always commits its fee; Err is set when an instruction failed and
// every other change was discarded.
type Result struct {
	Hash       common.Hash
	Slot       uint64
	Timestamp  int64
	Fee        uint64
	Err        error
	Logs       []string
	Events     []events.Event
	ReturnData []byte
	ReturnFrom solana.PublicKey
}

// Succeeded reports whether every instruction executed.
func (r *Result) Succeeded() bool { return r != nil && r.Err == nil }

// Runtime executes transactions against a ledger. Execution is serialised by
// the caller; the runtime itself holds no locks.
type Runtime struct {
	ledger               *state.Ledger
	programs             map[solana.PublicKey]Program
	rent                 Rent
	lamportsPerSignature uint64
	nowFn                func() time.Time
	logger               *slog.Logger
}

// New creates a runtime with the system program registered.
func New(ledger *state.Ledger) *Runtime {
	rt := &Runtime{
		ledger:               ledger,
		programs:             make(map[solana.PublicKey]Program),
		rent:                 DefaultRent(),
		lamportsPerSignature: DefaultLamportsPerSignature,
		nowFn:                time.Now,
		logger:               slog.Default(),
	}
	rt.Register(SystemProgram{})
	return rt
}

// Register makes program callable. Registering the same id twice replaces the
// earlier program.
func (rt *Runtime) Register(program Program) {
	rt.programs[program.ID()] = program
}

// Program returns the registered program with the given id.
func (rt *Runtime) Program(id solana.PublicKey) (Program, bool) {
	p, ok := rt.programs[id]
	return p, ok
}

// SetNowFunc overrides the clock used for the Clock sysvar. Intended for tests.
func (rt *Runtime) SetNowFunc(now func() time.Time) {
	if now == nil {
		rt.nowFn = time.Now
		return
	}
	rt.nowFn = now
}

// SetLamportsPerSignature configures the flat fee.
func (rt *Runtime) SetLamportsPerSignature(fee uint64) {
	rt.lamportsPerSignature = fee
}

// SetLogger replaces the runtime logger.
func (rt *Runtime) SetLogger(logger *slog.Logger) {
	if logger != nil {
		rt.logger = logger
	}
}

// Rent returns the configured rent schedule.
func (rt *Runtime) Rent() Rent { return rt.rent }

// Ledger exposes the backing ledger.
func (rt *Runtime) Ledger() *state.Ledger { return rt.ledger }

func (rt *Runtime) now() time.Time {
	if rt.nowFn == nil {
		return time.Now()
	}
	return rt.nowFn()
}

// loadAccount reads key through the overlay, synthesising executable
// accounts for registered programs.
func (rt *Runtime) loadAccount(overlay *state.Overlay, key solana.PublicKey) (*types.Account, error) {
	if _, ok := rt.programs[key]; ok {
		return &types.Account{Lamports: 1, Owner: NativeLoaderID, Executable: true}, nil
	}
	return overlay.Get(key)
}

// Execute verifies, runs and commits tx. The returned error is non-nil only
// when the transaction was rejected before execution (nothing committed).
func (rt *Runtime) Execute(tx *types.Transaction) (*Result, error) {
	if tx == nil {
		return nil, types.ErrNoInstructions
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	seen, err := rt.ledger.SignatureSeen(hash)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, ErrDuplicateTransaction
	}
	for _, ix := range tx.Message.Instructions {
		if _, ok := rt.programs[ix.ProgramID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
		}
	}

	fee := rt.lamportsPerSignature * uint64(len(tx.Signatures))
	payer := tx.Message.FeePayer
	if _, isProgram := rt.programs[payer]; isProgram {
		return nil, ErrInvalidFeePayer
	}
	feeOverlay := rt.ledger.Overlay()
	payerAcct, err := feeOverlay.Get(payer)
	if err != nil {
		return nil, err
	}
	if !payerAcct.Owner.Equals(solana.SystemProgramID) || len(payerAcct.Data) != 0 {
		return nil, ErrInvalidFeePayer
	}
	if payerAcct.Lamports < fee {
		return nil, ErrInsufficientFundsForFee
	}
	payerAcct.Lamports -= fee

	slot, err := rt.ledger.Slot()
	if err != nil {
		return nil, err
	}
	clock := Clock{Slot: slot + 1, UnixTimestamp: rt.now().Unix()}
	result := &Result{Hash: hash, Slot: clock.Slot, Timestamp: clock.UnixTimestamp, Fee: fee}

	overlay := rt.ledger.Overlay()
	overlay.Set(payer, payerAcct)
	scope := &txScope{}
	execErr := rt.executeInstructions(tx, overlay, clock, scope)
	result.Logs = scope.logs

	commit := overlay
	if execErr != nil {
		result.Err = execErr
		feeOverlay.Set(payer, payerAcct)
		commit = feeOverlay
		rt.logger.Debug("transaction failed", slog.String("hash", hash.Hex()), slog.String("error", execErr.Error()))
	} else {
		result.Events = scope.events
		result.ReturnData = scope.returnData
		result.ReturnFrom = scope.returnFrom
	}
	committed, err := rt.ledger.Commit(commit, hash)
	if err != nil {
		return nil, err
	}
	result.Slot = committed
	return result, nil
}

func (rt *Runtime) executeInstructions(tx *types.Transaction, overlay *state.Overlay, clock Clock, scope *txScope) error {
	touched := make(map[solana.PublicKey]struct{})
	for idx, ix := range tx.Message.Instructions {
		program := rt.programs[ix.ProgramID]
		if err := rt.executeInstruction(tx, overlay, clock, scope, program, ix, touched); err != nil {
			return &InstructionError{Index: idx, Program: program.Name(), Err: err}
		}
	}
	for key := range touched {
		acct, err := overlay.Get(key)
		if err != nil {
			return err
		}
		if acct.Lamports > 0 && len(acct.Data) > 0 && !rt.rent.IsExempt(acct.Lamports, uint64(len(acct.Data))) {
			return fmt.Errorf("%w: %s", ErrInsufficientFundsForRent, key)
		}
	}
	return nil
}

func (rt *Runtime) executeInstruction(
	tx *types.Transaction,
	overlay *state.Overlay,
	clock Clock,
	scope *txScope,
	program Program,
	ix types.Instruction,
	touched map[solana.PublicKey]struct{},
) error {
	infos := make(map[solana.PublicKey]*AccountInfo, len(ix.Accounts))
	list := make([]*AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		info, ok := infos[meta.PublicKey]
		if !ok {
			acct, err := rt.loadAccount(overlay, meta.PublicKey)
			if err != nil {
				return err
			}
			info = newAccountInfo(meta.PublicKey, acct)
			info.IsSigner = tx.IsSigner(meta.PublicKey)
			infos[meta.PublicKey] = info
		}
		if meta.IsWritable {
			if info.Executable {
				return fmt.Errorf("%w: %s", ErrExecutableWritable, meta.PublicKey)
			}
			info.IsWritable = true
		}
		list = append(list, info)
	}

	pre := make(map[solana.PublicKey]accountSnapshot, len(infos))
	for key, info := range infos {
		pre[key] = info.snapshot()
	}
	ctx := &InvokeContext{
		rt:        rt,
		programID: program.ID(),
		accounts:  infos,
		pre:       pre,
		clock:     clock,
		stack:     []solana.PublicKey{program.ID()},
		tx:        scope,
	}
	if err := program.Process(ctx, list, ix.Data); err != nil {
		return err
	}
	if err := verifyChanges(program.ID(), pre, infos); err != nil {
		return err
	}
	for key, info := range infos {
		if !info.IsWritable || info.Executable {
			continue
		}
		overlay.Set(key, info.account())
		touched[key] = struct{}{}
	}
	return nil
}

// IsInstructionError reports whether err came from instruction execution and
// returns the wrapped error.
func IsInstructionError(err error) (*InstructionError, bool) {
	var ixErr *InstructionError
	if errors.As(err, &ixErr) {
		return ixErr, true
	}
	return nil, false
}

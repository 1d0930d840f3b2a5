package runtime

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"memchain/core/events"
	"memchain/core/types"
)

// Program is a native program the runtime can dispatch instructions to.
type Program interface {
	ID() solana.PublicKey
	Name() string
	Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// AccountInfo is the mutable view of an account handed to a program. Programs
// edit Lamports, Owner and Data in place; the runtime checks the result
// against the account's state before the call.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Owner      solana.PublicKey
	Executable bool
	Data       []byte
}

func newAccountInfo(key solana.PublicKey, acct *types.Account) *AccountInfo {
	return &AccountInfo{
		Key:        key,
		Lamports:   acct.Lamports,
		Owner:      acct.Owner,
		Executable: acct.Executable,
		Data:       append([]byte(nil), acct.Data...),
	}
}

func (a *AccountInfo) snapshot() accountSnapshot {
	return accountSnapshot{
		lamports:   a.Lamports,
		owner:      a.Owner,
		executable: a.Executable,
		data:       append([]byte(nil), a.Data...),
	}
}

func (a *AccountInfo) account() *types.Account {
	return &types.Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		Data:       append([]byte(nil), a.Data...),
	}
}

// IsOwnedBy reports whether program owns the account.
func (a *AccountInfo) IsOwnedBy(program solana.PublicKey) bool {
	return a.Owner.Equals(program)
}

// DataIsEmpty reports whether the account holds no bytes or only zero bytes.
func (a *AccountInfo) DataIsEmpty() bool {
	return zeroed(a.Data)
}

type accountSnapshot struct {
	lamports   uint64
	owner      solana.PublicKey
	executable bool
	data       []byte
}

// InvokeContext carries the per-instruction environment: clock, rent, logs,
// events, return data and cross-program invocation.
type InvokeContext struct {
	rt        *Runtime
	programID solana.PublicKey
	accounts  map[solana.PublicKey]*AccountInfo
	pre       map[solana.PublicKey]accountSnapshot
	clock     Clock
	depth     int
	stack     []solana.PublicKey
	tx        *txScope
}

// txScope holds output shared by every instruction of a transaction.
type txScope struct {
	logs       []string
	events     []events.Event
	returnData []byte
	returnFrom solana.PublicKey
}

// ProgramID returns the currently executing program.
func (c *InvokeContext) ProgramID() solana.PublicKey { return c.programID }

// Clock returns the ledger clock for this transaction.
func (c *InvokeContext) Clock() Clock { return c.clock }

// Rent returns the rent schedule.
func (c *InvokeContext) Rent() Rent { return c.rt.rent }

// Logf appends a program log line.
func (c *InvokeContext) Logf(format string, args ...any) {
	c.tx.logs = append(c.tx.logs, fmt.Sprintf("Program %s: %s", c.programID, fmt.Sprintf(format, args...)))
}

// Emit records an event. Events only leave the runtime if the transaction
// commits.
func (c *InvokeContext) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	c.tx.events = append(c.tx.events, evt)
}

// SetReturnData replaces the transaction return data.
func (c *InvokeContext) SetReturnData(data []byte) {
	c.tx.returnData = append([]byte(nil), data...)
	c.tx.returnFrom = c.programID
}

// Invoke runs ix as a cross-program invocation. Every account ix names must
// already be available to the caller. Signer privilege is granted to keys
// the caller holds as signers and to program addresses derived from the
// caller's program id with one of signerSeeds.
func (c *InvokeContext) Invoke(ix types.Instruction, signerSeeds ...[][]byte) error {
	if c.depth+1 >= MaxInvokeDepth {
		return ErrCallDepth
	}
	for _, caller := range c.stack {
		if caller.Equals(ix.ProgramID) && !caller.Equals(c.programID) {
			return ErrReentrancy
		}
	}
	program, ok := c.rt.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}
	// The caller's own edits are checked now so the callee cannot launder them.
	if err := verifyChanges(c.programID, c.pre, c.accounts); err != nil {
		return err
	}
	c.resetPre()

	pdaSigners := make(map[solana.PublicKey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, c.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPrivilegeEscalation, err)
		}
		pdaSigners[addr] = struct{}{}
	}

	calleeInfos := make(map[solana.PublicKey]*AccountInfo, len(ix.Accounts))
	list := make([]*AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		callerInfo, ok := c.accounts[meta.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.PublicKey)
		}
		info, seen := calleeInfos[meta.PublicKey]
		if !seen {
			info = &AccountInfo{
				Key:        callerInfo.Key,
				Lamports:   callerInfo.Lamports,
				Owner:      callerInfo.Owner,
				Executable: callerInfo.Executable,
				Data:       append([]byte(nil), callerInfo.Data...),
			}
			calleeInfos[meta.PublicKey] = info
		}
		if meta.IsSigner {
			_, derived := pdaSigners[meta.PublicKey]
			if !callerInfo.IsSigner && !derived {
				return fmt.Errorf("%w: signer %s", ErrPrivilegeEscalation, meta.PublicKey)
			}
			info.IsSigner = true
		}
		if meta.IsWritable {
			if !callerInfo.IsWritable {
				return fmt.Errorf("%w: writable %s", ErrPrivilegeEscalation, meta.PublicKey)
			}
			info.IsWritable = true
		}
		list = append(list, info)
	}

	pre := make(map[solana.PublicKey]accountSnapshot, len(calleeInfos))
	for key, info := range calleeInfos {
		pre[key] = info.snapshot()
	}

	child := &InvokeContext{
		rt:        c.rt,
		programID: program.ID(),
		accounts:  calleeInfos,
		pre:       pre,
		clock:     c.clock,
		depth:     c.depth + 1,
		stack:     append(append([]solana.PublicKey(nil), c.stack...), program.ID()),
		tx:        c.tx,
	}
	if err := program.Process(child, list, ix.Data); err != nil {
		return err
	}
	if err := verifyChanges(program.ID(), pre, calleeInfos); err != nil {
		return err
	}
	for key, info := range calleeInfos {
		callerInfo := c.accounts[key]
		callerInfo.Lamports = info.Lamports
		callerInfo.Owner = info.Owner
		callerInfo.Executable = info.Executable
		callerInfo.Data = info.Data
	}
	c.resetPre()
	return nil
}

func (c *InvokeContext) resetPre() {
	for key, info := range c.accounts {
		c.pre[key] = info.snapshot()
	}
}

// verifyChanges enforces the account modification rules for programID.
func verifyChanges(programID solana.PublicKey, pre map[solana.PublicKey]accountSnapshot, post map[solana.PublicKey]*AccountInfo) error {
	var before, after uint64
	for key, info := range post {
		snap := pre[key]
		before += snap.lamports
		after += info.Lamports

		ownedBefore := snap.owner.Equals(programID)
		dataChanged := !bytes.Equal(snap.data, info.Data)
		ownerChanged := !snap.owner.Equals(info.Owner)

		if !info.IsWritable {
			if snap.lamports != info.Lamports || dataChanged || ownerChanged {
				return fmt.Errorf("%w: %s", ErrReadonlyModified, key)
			}
			continue
		}
		if snap.executable != info.Executable {
			return fmt.Errorf("%w: %s", ErrExecutableModified, key)
		}
		if ownerChanged {
			if !ownedBefore || snap.executable || !zeroed(info.Data) {
				return fmt.Errorf("%w: %s", ErrModifiedProgramID, key)
			}
		}
		if info.Lamports < snap.lamports && !ownedBefore {
			return fmt.Errorf("%w: %s", ErrExternalAccountLamportSpend, key)
		}
		if len(snap.data) != len(info.Data) && !ownedBefore {
			return fmt.Errorf("%w: %s", ErrAccountDataSizeChanged, key)
		}
		if dataChanged && !ownedBefore {
			return fmt.Errorf("%w: %s", ErrExternalAccountDataModified, key)
		}
		if uint64(len(info.Data)) > MaxPermittedDataLength {
			return fmt.Errorf("%w: %s", ErrMaxAccountDataLengthExceeded, key)
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func zeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

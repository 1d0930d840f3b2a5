package runtime

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"memchain/core/types"
)

// System instruction tags, matching the upstream enum order.
const (
	SystemCreateAccount uint32 = 0
	SystemAssign        uint32 = 1
	SystemTransfer      uint32 = 2
	SystemAllocate      uint32 = 8
)

// SystemProgram creates accounts, moves lamports and assigns ownership.
type SystemProgram struct{}

func (SystemProgram) ID() solana.PublicKey { return solana.SystemProgramID }

func (SystemProgram) Name() string { return "system" }

func (SystemProgram) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return ErrInvalidInstructionData
	}
	switch tag {
	case SystemCreateAccount:
		lamports, space, owner, err := readCreateAccount(dec)
		if err != nil {
			return err
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return createAccount(accounts[0], accounts[1], lamports, space, owner)
	case SystemAssign:
		owner, err := readPublicKey(dec)
		if err != nil {
			return err
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		return assign(accounts[0], owner)
	case SystemTransfer:
		lamports, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return transfer(accounts[0], accounts[1], lamports)
	case SystemAllocate:
		space, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		return allocate(accounts[0], space)
	default:
		return fmt.Errorf("%w: unknown system instruction %d", ErrInvalidInstructionData, tag)
	}
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, ErrInvalidInstructionData
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func readCreateAccount(dec *bin.Decoder) (uint64, uint64, solana.PublicKey, error) {
	lamports, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return 0, 0, solana.PublicKey{}, ErrInvalidInstructionData
	}
	space, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return 0, 0, solana.PublicKey{}, ErrInvalidInstructionData
	}
	owner, err := readPublicKey(dec)
	if err != nil {
		return 0, 0, solana.PublicKey{}, err
	}
	return lamports, space, owner, nil
}

func requireSignedWritable(info *AccountInfo) error {
	if !info.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, info.Key)
	}
	if !info.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, info.Key)
	}
	return nil
}

func createAccount(from, to *AccountInfo, lamports, space uint64, owner solana.PublicKey) error {
	if err := requireSignedWritable(from); err != nil {
		return err
	}
	if err := requireSignedWritable(to); err != nil {
		return err
	}
	if from.Key.Equals(to.Key) {
		return ErrInvalidArgument
	}
	if to.Lamports > 0 || len(to.Data) > 0 || !to.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, to.Key)
	}
	if err := allocate(to, space); err != nil {
		return err
	}
	if err := assign(to, owner); err != nil {
		return err
	}
	return transfer(from, to, lamports)
}

func allocate(info *AccountInfo, space uint64) error {
	if err := requireSignedWritable(info); err != nil {
		return err
	}
	if len(info.Data) > 0 || !info.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, info.Key)
	}
	if space > MaxPermittedDataLength {
		return ErrMaxAccountDataLengthExceeded
	}
	info.Data = make([]byte, space)
	return nil
}

func assign(info *AccountInfo, owner solana.PublicKey) error {
	if info.Owner.Equals(owner) {
		return nil
	}
	if err := requireSignedWritable(info); err != nil {
		return err
	}
	if !info.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, info.Key)
	}
	info.Owner = owner
	return nil
}

func transfer(from, to *AccountInfo, lamports uint64) error {
	if err := requireSignedWritable(from); err != nil {
		return err
	}
	if !to.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, to.Key)
	}
	if !from.Owner.Equals(solana.SystemProgramID) || len(from.Data) > 0 {
		return fmt.Errorf("%w: transfer source must be a plain system account", ErrInvalidArgument)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, lamports, from.Lamports)
	}
	if to.Lamports+lamports < to.Lamports {
		return ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func encodeSystem(tag uint32, fn func(enc *bin.Encoder) error) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint32(tag, bin.LE)
	if fn != nil {
		_ = fn(enc)
	}
	return buf.Bytes()
}

// CreateAccountInstruction funds, allocates and assigns a new account.
func CreateAccountInstruction(from, to solana.PublicKey, lamports, space uint64, owner solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []types.AccountMeta{
			types.Meta(from, true, true),
			types.Meta(to, true, true),
		},
		Data: encodeSystem(SystemCreateAccount, func(enc *bin.Encoder) error {
			if err := enc.WriteUint64(lamports, bin.LE); err != nil {
				return err
			}
			if err := enc.WriteUint64(space, bin.LE); err != nil {
				return err
			}
			return enc.WriteBytes(owner[:], false)
		}),
	}
}

// TransferInstruction moves lamports between system accounts.
func TransferInstruction(from, to solana.PublicKey, lamports uint64) types.Instruction {
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []types.AccountMeta{
			types.Meta(from, true, true),
			types.Meta(to, false, true),
		},
		Data: encodeSystem(SystemTransfer, func(enc *bin.Encoder) error {
			return enc.WriteUint64(lamports, bin.LE)
		}),
	}
}

// AssignInstruction hands a system account to owner.
func AssignInstruction(account, owner solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []types.AccountMeta{types.Meta(account, true, true)},
		Data: encodeSystem(SystemAssign, func(enc *bin.Encoder) error {
			return enc.WriteBytes(owner[:], false)
		}),
	}
}

// AllocateInstruction sizes the data of an empty system account.
func AllocateInstruction(account solana.PublicKey, space uint64) types.Instruction {
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []types.AccountMeta{types.Meta(account, true, true)},
		Data: encodeSystem(SystemAllocate, func(enc *bin.Encoder) error {
			return enc.WriteUint64(space, bin.LE)
		}),
	}
}

package token

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// Instruction tags, a subset of the SPL token enum.
const (
	InstructionInitializeMint    uint8 = 0
	InstructionInitializeAccount uint8 = 1
	InstructionTransfer          uint8 = 3
	InstructionMintTo            uint8 = 7
)

// ProgramID is the token program address.
var ProgramID = solana.TokenProgramID

// Program implements runtime.Program for fungible token balances.
type Program struct{}

func (Program) ID() solana.PublicKey { return ProgramID }

func (Program) Name() string { return "token" }

func (p Program) Process(ctx *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	dec := bin.NewBorshDecoder(data[1:])
	switch data[0] {
	case InstructionInitializeMint:
		decimals, err := dec.ReadUint8()
		if err != nil {
			return ErrInvalidInstruction
		}
		raw, err := dec.ReadNBytes(32)
		if err != nil {
			return ErrInvalidInstruction
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccounts
		}
		return initializeMint(accounts[0], decimals, solana.PublicKeyFromBytes(raw))
	case InstructionInitializeAccount:
		raw, err := dec.ReadNBytes(32)
		if err != nil {
			return ErrInvalidInstruction
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccounts
		}
		return initializeAccount(accounts[0], accounts[1], solana.PublicKeyFromBytes(raw))
	case InstructionTransfer:
		amount, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return ErrInvalidInstruction
		}
		if len(accounts) < 3 {
			return ErrNotEnoughAccounts
		}
		if err := transfer(accounts[0], accounts[1], accounts[2], amount); err != nil {
			return err
		}
		ctx.Logf("transfer %d from %s to %s", amount, accounts[0].Key, accounts[1].Key)
		return nil
	case InstructionMintTo:
		amount, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return ErrInvalidInstruction
		}
		if len(accounts) < 3 {
			return ErrNotEnoughAccounts
		}
		return mintTo(accounts[0], accounts[1], accounts[2], amount)
	default:
		return fmt.Errorf("%w: tag %d", ErrInvalidInstruction, data[0])
	}
}

func requireProgramAccount(info *runtime.AccountInfo, size int) error {
	if !info.IsOwnedBy(ProgramID) {
		return fmt.Errorf("%w: %s", ErrInvalidOwner, info.Key)
	}
	if len(info.Data) != size {
		return fmt.Errorf("%w: %s", ErrInvalidAccountData, info.Key)
	}
	return nil
}

func initializeMint(mintInfo *runtime.AccountInfo, decimals uint8, authority solana.PublicKey) error {
	if err := requireProgramAccount(mintInfo, MintSize); err != nil {
		return err
	}
	if !mintInfo.IsWritable {
		return ErrNotWritable
	}
	mint, err := DecodeMint(mintInfo.Data)
	if err != nil {
		return err
	}
	if mint.IsInitialized {
		return ErrAlreadyInitialized
	}
	mint = &Mint{IsInitialized: true, Decimals: decimals, MintAuthority: authority}
	return encodeInto(mintInfo.Data, mint)
}

func initializeAccount(acctInfo, mintInfo *runtime.AccountInfo, owner solana.PublicKey) error {
	if err := requireProgramAccount(acctInfo, AccountSize); err != nil {
		return err
	}
	if !acctInfo.IsWritable {
		return ErrNotWritable
	}
	if err := requireProgramAccount(mintInfo, MintSize); err != nil {
		return err
	}
	mint, err := DecodeMint(mintInfo.Data)
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return ErrUninitialized
	}
	acct, err := DecodeAccount(acctInfo.Data)
	if err != nil {
		return err
	}
	if acct.IsInitialized {
		return ErrAlreadyInitialized
	}
	acct = &Account{IsInitialized: true, Mint: mintInfo.Key, Owner: owner}
	return encodeInto(acctInfo.Data, acct)
}

func loadInitialized(info *runtime.AccountInfo) (*Account, error) {
	if err := requireProgramAccount(info, AccountSize); err != nil {
		return nil, err
	}
	acct, err := DecodeAccount(info.Data)
	if err != nil {
		return nil, err
	}
	if !acct.IsInitialized {
		return nil, ErrUninitialized
	}
	return acct, nil
}

func transfer(srcInfo, dstInfo, authority *runtime.AccountInfo, amount uint64) error {
	if !srcInfo.IsWritable || !dstInfo.IsWritable {
		return ErrNotWritable
	}
	src, err := loadInitialized(srcInfo)
	if err != nil {
		return err
	}
	dst, err := loadInitialized(dstInfo)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrMintMismatch
	}
	if !src.Owner.Equals(authority.Key) {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return ErrMissingSignature
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if srcInfo.Key.Equals(dstInfo.Key) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := encodeInto(srcInfo.Data, src); err != nil {
		return err
	}
	return encodeInto(dstInfo.Data, dst)
}

func mintTo(mintInfo, dstInfo, authority *runtime.AccountInfo, amount uint64) error {
	if !mintInfo.IsWritable || !dstInfo.IsWritable {
		return ErrNotWritable
	}
	if err := requireProgramAccount(mintInfo, MintSize); err != nil {
		return err
	}
	mint, err := DecodeMint(mintInfo.Data)
	if err != nil {
		return err
	}
	if !mint.IsInitialized {
		return ErrUninitialized
	}
	dst, err := loadInitialized(dstInfo)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(mintInfo.Key) {
		return ErrMintMismatch
	}
	if !mint.MintAuthority.Equals(authority.Key) {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return ErrMissingSignature
	}
	if mint.Supply+amount < mint.Supply || dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	mint.Supply += amount
	dst.Amount += amount
	if err := encodeInto(mintInfo.Data, mint); err != nil {
		return err
	}
	return encodeInto(dstInfo.Data, dst)
}

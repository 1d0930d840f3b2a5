package token

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
	"memchain/core/types"
)

func withTag(tag uint8, body ...[]byte) []byte {
	out := []byte{tag}
	for _, b := range body {
		out = append(out, b...)
	}
	return out
}

func le64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// InitializeMintInstruction initialises an allocated mint account.
func InitializeMintInstruction(mint solana.PublicKey, decimals uint8, authority solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.Meta(mint, false, true)},
		Data:      withTag(InstructionInitializeMint, []byte{decimals}, authority[:]),
	}
}

// InitializeAccountInstruction initialises an allocated token account for owner.
func InitializeAccountInstruction(account, mint, owner solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Meta(account, false, true),
			types.Meta(mint, false, false),
		},
		Data: withTag(InstructionInitializeAccount, owner[:]),
	}
}

// TransferInstruction moves amount between two token accounts of the same mint.
func TransferInstruction(source, destination, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Meta(source, false, true),
			types.Meta(destination, false, true),
			types.Meta(authority, true, false),
		},
		Data: withTag(InstructionTransfer, le64(amount)),
	}
}

// MintToInstruction credits amount to destination.
func MintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Meta(mint, false, true),
			types.Meta(destination, false, true),
			types.Meta(authority, true, false),
		},
		Data: withTag(InstructionMintTo, le64(amount)),
	}
}

// CreateMintInstructions allocates and initialises a mint at a fresh keypair
// address.
func CreateMintInstructions(rent runtime.Rent, payer, mint, authority solana.PublicKey, decimals uint8) []types.Instruction {
	return []types.Instruction{
		runtime.CreateAccountInstruction(payer, mint, rent.MinimumBalance(MintSize), MintSize, ProgramID),
		InitializeMintInstruction(mint, decimals, authority),
	}
}

// CreateAccountInstructions allocates and initialises a token account at a
// fresh keypair address.
func CreateAccountInstructions(rent runtime.Rent, payer, account, mint, owner solana.PublicKey) []types.Instruction {
	return []types.Instruction{
		runtime.CreateAccountInstruction(payer, account, rent.MinimumBalance(AccountSize), AccountSize, ProgramID),
		InitializeAccountInstruction(account, mint, owner),
	}
}

package runtime

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProgram               = errors.New("runtime: unknown program")
	ErrDuplicateTransaction         = errors.New("runtime: transaction already processed")
	ErrInsufficientFundsForFee      = errors.New("runtime: insufficient funds for fee")
	ErrInvalidFeePayer              = errors.New("runtime: fee payer must be a writable system account")
	ErrExecutableWritable           = errors.New("runtime: executable account cannot be writable")
	ErrMissingAccount               = errors.New("runtime: account not available to instruction")
	ErrPrivilegeEscalation          = errors.New("runtime: cross-program invocation privilege escalation")
	ErrCallDepth                    = errors.New("runtime: cross-program invocation depth exceeded")
	ErrReentrancy                   = errors.New("runtime: cross-program invocation reentrancy not allowed")
	ErrReadonlyModified             = errors.New("runtime: instruction modified a read-only account")
	ErrExternalAccountDataModified  = errors.New("runtime: instruction modified data of an account it does not own")
	ErrExternalAccountLamportSpend  = errors.New("runtime: instruction spent from an account it does not own")
	ErrModifiedProgramID            = errors.New("runtime: instruction illegally modified the account owner")
	ErrExecutableModified           = errors.New("runtime: instruction changed the executable flag")
	ErrUnbalancedInstruction        = errors.New("runtime: sum of account balances before and after instruction do not match")
	ErrInsufficientFundsForRent     = errors.New("runtime: account is not rent exempt")
	ErrAccountDataSizeChanged       = errors.New("runtime: instruction resized an account it does not own")
	ErrInvalidInstructionData       = errors.New("runtime: invalid instruction data")
	ErrNotEnoughAccountKeys         = errors.New("runtime: not enough account keys")
	ErrMissingRequiredSignature     = errors.New("runtime: missing required signature")
	ErrAccountAlreadyInUse          = errors.New("runtime: account already in use")
	ErrInsufficientFunds            = errors.New("runtime: insufficient funds")
	ErrInvalidAccountOwner          = errors.New("runtime: invalid account owner")
	ErrInvalidAccountData           = errors.New("runtime: invalid account data")
	ErrInvalidArgument              = errors.New("runtime: invalid argument")
	ErrAccountNotWritable           = errors.New("runtime: account not writable")
	ErrArithmeticOverflow           = errors.New("runtime: arithmetic overflow")
	ErrMaxAccountDataLengthExceeded = errors.New("runtime: requested account data length exceeds limit")
)

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index   int
	Program string
	Err     error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.Program, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

package token

import "errors"

var (
	ErrInvalidInstruction = errors.New("token: invalid instruction")
	ErrNotEnoughAccounts  = errors.New("token: not enough account keys")
	ErrInvalidOwner       = errors.New("token: account not owned by token program")
	ErrUninitialized      = errors.New("token: account not initialized")
	ErrAlreadyInitialized = errors.New("token: account already initialized")
	ErrMintMismatch       = errors.New("token: mint mismatch")
	ErrOwnerMismatch      = errors.New("token: owner does not match")
	ErrMissingSignature   = errors.New("token: authority signature required")
	ErrNotWritable        = errors.New("token: account not writable")
	ErrInsufficientFunds  = errors.New("token: insufficient funds")
	ErrOverflow           = errors.New("token: arithmetic overflow")
	ErrInvalidAccountData = errors.New("token: invalid account data")
)

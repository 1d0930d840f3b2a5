package types

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Account is a host-managed storage slot. Only the owner program may change
// its data or debit its lamports; the runtime enforces this after every
// instruction.
type Account struct {
	Lamports   uint64           `json:"lamports"`
	Owner      solana.PublicKey `json:"owner"`
	Executable bool             `json:"executable"`
	Data       []byte           `json:"data"`
}

// NewAccount returns an empty system-owned account.
func NewAccount() *Account {
	return &Account{Owner: solana.SystemProgramID}
}

// Copy returns a deep copy so callers can mutate data without aliasing
// ledger state.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = append([]byte(nil), a.Data...)
	return &clone
}

// IsEmpty reports whether the account holds neither lamports nor data and is
// still owned by the system program.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Lamports == 0 && len(a.Data) == 0 && a.Owner.Equals(solana.SystemProgramID))
}

// Equal compares every field.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Lamports == other.Lamports &&
		a.Owner.Equals(other.Owner) &&
		a.Executable == other.Executable &&
		bytes.Equal(a.Data, other.Data)
}

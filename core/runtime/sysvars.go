package runtime

import "github.com/gagliardetto/solana-go"

// NativeLoaderID owns every built-in program account.
var NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

const (
	// AccountStorageOverhead is charged on top of the data length when
	// computing the rent-exempt minimum.
	AccountStorageOverhead uint64 = 128
	// DefaultLamportsPerByteYear matches the mainnet default.
	DefaultLamportsPerByteYear uint64 = 3480
	// DefaultExemptionThreshold is the number of years of rent an account
	// must hold to be exempt.
	DefaultExemptionThreshold uint64 = 2
	// MaxPermittedDataLength bounds a single account allocation.
	MaxPermittedDataLength uint64 = 10 * 1024 * 1024
	// DefaultLamportsPerSignature is the flat transaction fee per signature.
	DefaultLamportsPerSignature uint64 = 5000
	// MaxInvokeDepth bounds nested cross-program invocations.
	MaxInvokeDepth = 4
)

// Rent describes the deposit schedule for account storage.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// DefaultRent returns the mainnet rent schedule.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: DefaultLamportsPerByteYear, ExemptionThreshold: DefaultExemptionThreshold}
}

// MinimumBalance returns the lamports an account of dataLen bytes must hold
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	return (AccountStorageOverhead + dataLen) * r.LamportsPerByteYear * r.ExemptionThreshold
}

// IsExempt reports whether lamports cover the exemption minimum.
func (r Rent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

// Clock is the execution-time view of the ledger clock.
type Clock struct {
	Slot          uint64
	UnixTimestamp int64
}

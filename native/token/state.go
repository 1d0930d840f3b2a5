package token

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	// MintSize is the fixed data length of a mint account.
	MintSize = 1 + 1 + 32 + 8
	// AccountSize is the fixed data length of a token account.
	AccountSize = 1 + 32 + 32 + 8
)

// Mint describes a fungible token.
type Mint struct {
	IsInitialized bool
	Decimals      uint8
	MintAuthority solana.PublicKey
	Supply        uint64
}

func (m *Mint) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBool(m.IsInitialized); err != nil {
		return err
	}
	if err := enc.WriteUint8(m.Decimals); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.MintAuthority[:], false); err != nil {
		return err
	}
	return enc.WriteUint64(m.Supply, bin.LE)
}

func (m *Mint) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.IsInitialized, err = dec.ReadBool(); err != nil {
		return err
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return err
	}
	raw, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	m.MintAuthority = solana.PublicKeyFromBytes(raw)
	m.Supply, err = dec.ReadUint64(bin.LE)
	return err
}

// Account holds a balance of one mint for one owner.
type Account struct {
	IsInitialized bool
	Mint          solana.PublicKey
	Owner         solana.PublicKey
	Amount        uint64
}

func (a *Account) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBool(a.IsInitialized); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Mint[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return err
	}
	return enc.WriteUint64(a.Amount, bin.LE)
}

func (a *Account) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.IsInitialized, err = dec.ReadBool(); err != nil {
		return err
	}
	raw, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	a.Mint = solana.PublicKeyFromBytes(raw)
	if raw, err = dec.ReadNBytes(32); err != nil {
		return err
	}
	a.Owner = solana.PublicKeyFromBytes(raw)
	a.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

func encodeInto(dst []byte, v bin.BinaryMarshaler) error {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return err
	}
	if buf.Len() > len(dst) {
		return ErrInvalidAccountData
	}
	copy(dst, buf.Bytes())
	return nil
}

// DecodeMint parses mint account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, ErrInvalidAccountData
	}
	m := new(Mint)
	if err := m.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, ErrInvalidAccountData
	}
	return m, nil
}

// DecodeAccount parses token account data.
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, ErrInvalidAccountData
	}
	a := new(Account)
	if err := a.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, ErrInvalidAccountData
	}
	return a, nil
}

// EncodeMint serialises m into a MintSize buffer.
func EncodeMint(m *Mint) ([]byte, error) {
	out := make([]byte, MintSize)
	if err := encodeInto(out, m); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeAccount serialises a into an AccountSize buffer.
func EncodeAccount(a *Account) ([]byte, error) {
	out := make([]byte, AccountSize)
	if err := encodeInto(out, a); err != nil {
		return nil, err
	}
	return out, nil
}

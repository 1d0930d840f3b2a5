package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrNoInstructions      = errors.New("transaction: no instructions")
	ErrMissingSigner       = errors.New("transaction: missing private key for required signer")
	ErrMissingSignature    = errors.New("transaction: missing signature for required signer")
	ErrInvalidSignature    = errors.New("transaction: signature verification failed")
	ErrUnexpectedSignature = errors.New("transaction: signature from non-signer account")
)

// AccountMeta names an account an instruction touches and the privileges the
// client requests for it.
type AccountMeta struct {
	PublicKey  solana.PublicKey `json:"pubkey"`
	IsSigner   bool             `json:"isSigner"`
	IsWritable bool             `json:"isWritable"`
}

// Meta is shorthand for building an AccountMeta.
func Meta(key solana.PublicKey, signer, writable bool) AccountMeta {
	return AccountMeta{PublicKey: key, IsSigner: signer, IsWritable: writable}
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID solana.PublicKey `json:"programId"`
	Accounts  []AccountMeta    `json:"accounts"`
	Data      []byte           `json:"data"`
}

// Message is the signed portion of a transaction. Nonce lets a client submit
// otherwise identical messages more than once.
type Message struct {
	FeePayer     solana.PublicKey `json:"feePayer"`
	Nonce        uint64           `json:"nonce"`
	Instructions []Instruction    `json:"instructions"`
}

// Signature pairs a signer key with its ed25519 signature over the message.
type Signature struct {
	PublicKey solana.PublicKey `json:"pubkey"`
	Signature solana.Signature `json:"signature"`
}

// Transaction is an ordered list of instructions executed atomically.
type Transaction struct {
	Message    Message     `json:"message"`
	Signatures []Signature `json:"signatures"`
}

// NewTransaction builds an unsigned transaction paid for by feePayer.
func NewTransaction(feePayer solana.PublicKey, nonce uint64, instructions ...Instruction) *Transaction {
	return &Transaction{
		Message: Message{
			FeePayer:     feePayer,
			Nonce:        nonce,
			Instructions: instructions,
		},
	}
}

// SigningPayload returns the canonical RLP encoding of the message.
func (m *Message) SigningPayload() ([]byte, error) {
	return rlp.EncodeToBytes(m)
}

// RequiredSigners lists the fee payer followed by every account flagged as a
// signer, deduplicated and in first-seen order.
func (m *Message) RequiredSigners() []solana.PublicKey {
	seen := map[solana.PublicKey]struct{}{m.FeePayer: {}}
	signers := []solana.PublicKey{m.FeePayer}
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.PublicKey]; ok {
				continue
			}
			seen[meta.PublicKey] = struct{}{}
			signers = append(signers, meta.PublicKey)
		}
	}
	return signers
}

// Hash returns keccak256 over the signing payload.
func (tx *Transaction) Hash() (common.Hash, error) {
	payload, err := tx.Message.SigningPayload()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(payload), nil
}

// Sign attaches a signature for every required signer. Every required signer
// must have a matching key; extra keys are ignored.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	payload, err := tx.Message.SigningPayload()
	if err != nil {
		return err
	}
	byKey := make(map[solana.PublicKey]solana.PrivateKey, len(keys))
	for _, key := range keys {
		byKey[key.PublicKey()] = key
	}
	required := tx.Message.RequiredSigners()
	sigs := make([]Signature, 0, len(required))
	for _, signer := range required {
		key, ok := byKey[signer]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, signer)
		}
		sig, err := key.Sign(payload)
		if err != nil {
			return err
		}
		sigs = append(sigs, Signature{PublicKey: signer, Signature: sig})
	}
	tx.Signatures = sigs
	return nil
}

// VerifySignatures checks that every required signer produced a valid
// signature and that no signature comes from an account outside that set.
func (tx *Transaction) VerifySignatures() error {
	if len(tx.Message.Instructions) == 0 {
		return ErrNoInstructions
	}
	payload, err := tx.Message.SigningPayload()
	if err != nil {
		return err
	}
	provided := make(map[solana.PublicKey]solana.Signature, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		provided[sig.PublicKey] = sig.Signature
	}
	required := make(map[solana.PublicKey]struct{})
	for _, signer := range tx.Message.RequiredSigners() {
		sig, ok := provided[signer]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if !signer.Verify(payload, sig) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, signer)
		}
		required[signer] = struct{}{}
	}
	for _, sig := range tx.Signatures {
		if _, ok := required[sig.PublicKey]; !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedSignature, sig.PublicKey)
		}
	}
	return nil
}

// IsSigner reports whether key carries a verified signature on this
// transaction. Callers must run VerifySignatures first.
func (tx *Transaction) IsSigner(key solana.PublicKey) bool {
	for _, sig := range tx.Signatures {
		if sig.PublicKey.Equals(key) {
			return true
		}
	}
	return false
}

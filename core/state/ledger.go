package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"memchain/core/types"
	"memchain/storage"
	"memchain/storage/trie"
)

var (
	accountPrefix   = []byte("acct:")
	signaturePrefix = []byte("sig:")
	slotKey         = []byte("meta:slot")
)

// accountRecord is the persisted form of an account. The public key travels
// with the record because storage keys are hashed.
type accountRecord struct {
	PublicKey  solana.PublicKey
	Lamports   uint64
	Owner      solana.PublicKey
	Executable bool
	Data       []byte
}

func accountKey(key solana.PublicKey) []byte {
	hashed := ethcrypto.Keccak256(key[:])
	out := make([]byte, 0, len(accountPrefix)+len(hashed))
	out = append(out, accountPrefix...)
	return append(out, hashed...)
}

func signatureKey(hash common.Hash) []byte {
	out := make([]byte, 0, len(signaturePrefix)+common.HashLength)
	out = append(out, signaturePrefix...)
	return append(out, hash[:]...)
}

// Ledger persists accounts and the slot counter. Reads always return copies;
// writes only happen through Commit so a failed transaction leaves no trace.
type Ledger struct {
	mu sync.RWMutex
	db storage.Database
}

// NewLedger wraps the supplied database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// GetAccount returns the account stored under key, or an empty system-owned
// account when none exists.
func (l *Ledger) GetAccount(key solana.PublicKey) (*types.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getAccount(key)
}

func (l *Ledger) getAccount(key solana.PublicKey) (*types.Account, error) {
	data, err := l.db.Get(accountKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return types.NewAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	var rec accountRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", key, err)
	}
	return &types.Account{
		Lamports:   rec.Lamports,
		Owner:      rec.Owner,
		Executable: rec.Executable,
		Data:       rec.Data,
	}, nil
}

// HasAccount reports whether key has a persisted account.
func (l *Ledger) HasAccount(key solana.PublicKey) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.db.Has(accountKey(key))
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot()
}

func (l *Ledger) slot() (uint64, error) {
	data, err := l.db.Get(slotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: corrupt slot record")
	}
	return binary.BigEndian.Uint64(data), nil
}

// SignatureSeen reports whether a transaction with the given hash was already
// committed.
func (l *Ledger) SignatureSeen(hash common.Hash) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.db.Has(signatureKey(hash))
}

// ForEachAccount visits every persisted account in storage-key order.
func (l *Ledger) ForEachAccount(fn func(key solana.PublicKey, acct *types.Account) bool) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var decodeErr error
	err := l.db.Iterate(accountPrefix, func(_, value []byte) bool {
		var rec accountRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			decodeErr = err
			return false
		}
		return fn(rec.PublicKey, &types.Account{
			Lamports:   rec.Lamports,
			Owner:      rec.Owner,
			Executable: rec.Executable,
			Data:       rec.Data,
		})
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// StateRoot hashes every account into a Merkle-Patricia root keyed by
// keccak256(pubkey).
func (l *Ledger) StateRoot() (common.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	hasher := trie.NewRootHasher()
	var updateErr error
	err := l.db.Iterate(accountPrefix, func(key, value []byte) bool {
		if err := hasher.Update(key[len(accountPrefix):], value); err != nil {
			updateErr = err
			return false
		}
		return true
	})
	if err != nil {
		return common.Hash{}, err
	}
	if updateErr != nil {
		return common.Hash{}, updateErr
	}
	return hasher.Root(), nil
}

// Overlay starts a write set on top of the current ledger state.
func (l *Ledger) Overlay() *Overlay {
	return &Overlay{ledger: l, dirty: make(map[solana.PublicKey]*types.Account)}
}

// Commit persists the overlay, records the transaction hash and advances the
// slot in one storage batch. Accounts left with zero lamports are garbage
// collected.
func (l *Ledger) Commit(o *Overlay, txHash common.Hash) (uint64, error) {
	if o == nil || o.ledger != l {
		return 0, fmt.Errorf("state: overlay does not belong to this ledger")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := new(storage.Batch)
	for _, key := range o.order {
		acct := o.dirty[key]
		if acct.Lamports == 0 {
			batch.Delete(accountKey(key))
			continue
		}
		encoded, err := rlp.EncodeToBytes(&accountRecord{
			PublicKey:  key,
			Lamports:   acct.Lamports,
			Owner:      acct.Owner,
			Executable: acct.Executable,
			Data:       acct.Data,
		})
		if err != nil {
			return 0, err
		}
		batch.Put(accountKey(key), encoded)
	}
	if txHash != (common.Hash{}) {
		batch.Put(signatureKey(txHash), []byte{1})
	}
	slot, err := l.slot()
	if err != nil {
		return 0, err
	}
	slot++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], slot)
	batch.Put(slotKey, buf[:])
	if err := l.db.Write(batch); err != nil {
		return 0, fmt.Errorf("state: commit slot %d: %w", slot, err)
	}
	return slot, nil
}

// Overlay buffers account writes for one transaction. It is not safe for
// concurrent use; the runtime executes one transaction at a time.
type Overlay struct {
	ledger *Ledger
	dirty  map[solana.PublicKey]*types.Account
	order  []solana.PublicKey
}

// Get returns a copy of the account as seen through the overlay.
func (o *Overlay) Get(key solana.PublicKey) (*types.Account, error) {
	if acct, ok := o.dirty[key]; ok {
		return acct.Copy(), nil
	}
	return o.ledger.GetAccount(key)
}

// Set stages acct under key.
func (o *Overlay) Set(key solana.PublicKey, acct *types.Account) {
	if _, ok := o.dirty[key]; !ok {
		o.order = append(o.order, key)
	}
	o.dirty[key] = acct.Copy()
}

// Dirty lists the staged keys in first-write order.
func (o *Overlay) Dirty() []solana.PublicKey {
	return append([]solana.PublicKey(nil), o.order...)
}

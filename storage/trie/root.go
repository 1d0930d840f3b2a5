package trie

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
)

// ErrUnsortedKey is returned when keys are not fed in strictly ascending order.
var ErrUnsortedKey = errors.New("trie: keys must be inserted in ascending order")

// RootHasher computes a Merkle-Patricia root over a stream of key/value pairs
// without keeping the trie around. Keys are expected to be fully hashed
// (keccak256) and must arrive in strictly ascending byte order, which is the
// order the storage backends iterate in.
//
// RootHasher is not safe for concurrent use.
type RootHasher struct {
	stack   *gethtrie.StackTrie
	lastKey []byte
	count   int
}

// NewRootHasher returns an empty hasher.
func NewRootHasher() *RootHasher {
	return &RootHasher{stack: gethtrie.NewStackTrie(nil)}
}

// Update inserts the next pair.
func (h *RootHasher) Update(key, value []byte) error {
	if h.lastKey != nil && bytes.Compare(key, h.lastKey) <= 0 {
		return ErrUnsortedKey
	}
	if err := h.stack.Update(key, value); err != nil {
		return err
	}
	h.lastKey = append(h.lastKey[:0], key...)
	h.count++
	return nil
}

// Len reports how many pairs were inserted.
func (h *RootHasher) Len() int { return h.count }

// Root returns the root hash; the empty trie hashes to EmptyRootHash.
func (h *RootHasher) Root() common.Hash {
	if h.count == 0 {
		return gethtypes.EmptyRootHash
	}
	return h.stack.Hash()
}

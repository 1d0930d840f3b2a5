package main

import (
	"encoding/hex"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"lukechampine.com/blake3"
)

// contentDigest is the off-chain commitment stored in a memory shard.
type contentDigest struct {
	Hash [32]byte
	Size uint32
}

func digestBytes(content []byte) (contentDigest, error) {
	if uint64(len(content)) > math.MaxUint32 {
		return contentDigest{}, fmt.Errorf("content of %d bytes is too large", len(content))
	}
	return contentDigest{Hash: blake3.Sum256(content), Size: uint32(len(content))}, nil
}

func digestFile(path string) (contentDigest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return contentDigest{}, err
	}
	return digestBytes(content)
}

func parseHash(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil {
		return out, fmt.Errorf("content hash: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("content hash: expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Compute the blake3 content hash and size of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := digestFile(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"contentHash": hex.EncodeToString(digest.Hash[:]),
				"contentSize": digest.Size,
			})
		},
	}
}

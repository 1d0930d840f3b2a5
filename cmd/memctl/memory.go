package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"memchain/core/types"
	"memchain/native/agentmemory"
)

// contentFlags collects the content and metadata of a create or update.
type contentFlags struct {
	file       string
	hash       string
	size       uint32
	memoryType string
	importance uint8
	tags       string
	cid        string
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "hash and size this file's content")
	cmd.Flags().StringVar(&f.hash, "hash", "", "hex content hash (with --size, instead of --file)")
	cmd.Flags().Uint32Var(&f.size, "size", 0, "content size in bytes")
	cmd.Flags().StringVar(&f.memoryType, "type", agentmemory.MemoryTypeConversation.String(), "memory type")
	cmd.Flags().Uint8Var(&f.importance, "importance", 50, "importance 0-100")
	cmd.Flags().StringVar(&f.tags, "tags", "", "comma separated tag bytes (at most 8)")
	cmd.Flags().StringVar(&f.cid, "cid", "", "IPFS CID of the content")
}

func (f *contentFlags) digest() (contentDigest, error) {
	switch {
	case f.file != "" && f.hash != "":
		return contentDigest{}, errors.New("--file and --hash are mutually exclusive")
	case f.file != "":
		return digestFile(f.file)
	case f.hash != "":
		hash, err := parseHash(f.hash)
		if err != nil {
			return contentDigest{}, err
		}
		return contentDigest{Hash: hash, Size: f.size}, nil
	}
	return contentDigest{}, errors.New("one of --file or --hash is required")
}

func (f *contentFlags) metadata() (agentmemory.MemoryMetadata, error) {
	memoryType, err := agentmemory.ParseMemoryType(strings.ToLower(strings.TrimSpace(f.memoryType)))
	if err != nil {
		return agentmemory.MemoryMetadata{}, err
	}
	tags, err := parseTags(f.tags)
	if err != nil {
		return agentmemory.MemoryMetadata{}, err
	}
	meta := agentmemory.MemoryMetadata{MemoryType: memoryType, Importance: f.importance, Tags: tags}
	if f.cid != "" {
		if len(f.cid) > agentmemory.IPFSCIDLength {
			return agentmemory.MemoryMetadata{}, fmt.Errorf("cid longer than %d bytes", agentmemory.IPFSCIDLength)
		}
		var cid [agentmemory.IPFSCIDLength]byte
		copy(cid[:], f.cid)
		meta.IPFSCID = &cid
	}
	return meta, nil
}

func (f *contentFlags) input(key string) (agentmemory.MemoryInput, error) {
	digest, err := f.digest()
	if err != nil {
		return agentmemory.MemoryInput{}, err
	}
	meta, err := f.metadata()
	if err != nil {
		return agentmemory.MemoryInput{}, err
	}
	return agentmemory.MemoryInput{Key: key, ContentHash: digest.Hash, ContentSize: digest.Size, Metadata: meta}, nil
}

func parseTags(value string) ([8]byte, error) {
	var tags [8]byte
	value = strings.TrimSpace(value)
	if value == "" {
		return tags, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) > len(tags) {
		return tags, fmt.Errorf("at most %d tags allowed", len(tags))
	}
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return tags, fmt.Errorf("tag %q: %w", part, err)
		}
		tags[i] = byte(v)
	}
	return tags, nil
}

func (a *app) memoryCmd() *cobra.Command {
	memory := &cobra.Command{
		Use:   "memory",
		Short: "Create, update and inspect memory shards",
	}

	var vaultFlag string
	memory.PersistentFlags().StringVar(&vaultFlag, "vault", "", "vault address")
	vault := func() (solana.PublicKey, error) {
		if vaultFlag == "" {
			return solana.PublicKey{}, errors.New("--vault is required")
		}
		return parseKey("vault", vaultFlag)
	}
	// keyed wraps a single-instruction command taking a memory key.
	keyed := func(use, short string, build func(owner, vault solana.PublicKey, key string) types.Instruction) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <key>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := vault()
				if err != nil {
					return err
				}
				return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
					return []types.Instruction{build(owner, v, args[0])}, nil
				})
			},
		}
	}

	var create contentFlags
	createCmd := &cobra.Command{
		Use:   "create <key>",
		Short: "Create a memory shard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault()
			if err != nil {
				return err
			}
			in, err := create.input(args[0])
			if err != nil {
				return err
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.CreateMemory(owner, v, in)}, nil
			})
		},
	}
	create.register(createCmd)

	var update contentFlags
	updateCmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Write a new version of a memory shard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault()
			if err != nil {
				return err
			}
			in, err := update.input(args[0])
			if err != nil {
				return err
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.UpdateMemory(owner, v, args[0], agentmemory.UpdateMemoryArgs{
					ContentHash: in.ContentHash,
					ContentSize: in.ContentSize,
					Metadata:    in.Metadata,
				})}, nil
			})
		},
	}
	update.register(updateCmd)

	var target uint32
	rollbackCmd := &cobra.Command{
		Use:   "rollback <key>",
		Short: "Restore a retained version as the next version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault()
			if err != nil {
				return err
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.RollbackMemory(owner, v, args[0], target)}, nil
			})
		},
	}
	rollbackCmd.Flags().Uint32Var(&target, "version", 0, "version to restore")
	_ = rollbackCmd.MarkFlagRequired("version")

	var tags string
	tagCmd := &cobra.Command{
		Use:   "tag <key>...",
		Short: "Replace the tags of one or more shards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault()
			if err != nil {
				return err
			}
			parsed, err := parseTags(tags)
			if err != nil {
				return err
			}
			updates := make([]agentmemory.TagUpdate, len(args))
			for i, key := range args {
				updates[i] = agentmemory.TagUpdate{MemoryKey: key, NewTags: parsed}
			}
			return a.submit(cmd, func(owner solana.PublicKey) ([]types.Instruction, error) {
				return []types.Instruction{agentmemory.BatchUpdateTags(owner, v, updates)}, nil
			})
		},
	}
	tagCmd.Flags().StringVar(&tags, "tags", "", "comma separated tag bytes")

	showCmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Print a decoded memory shard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vault()
			if err != nil {
				return err
			}
			res, err := a.client().GetMemory(cmd.Context(), v, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	memory.AddCommand(
		createCmd,
		updateCmd,
		keyed("delete", "Soft delete a memory shard", agentmemory.DeleteMemory),
		keyed("restore", "Restore a soft deleted shard", agentmemory.RestoreMemory),
		keyed("purge", "Permanently delete a soft deleted shard", agentmemory.PermanentDeleteMemory),
		rollbackCmd,
		tagCmd,
		showCmd,
	)
	return memory
}

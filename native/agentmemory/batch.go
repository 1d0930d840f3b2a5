package agentmemory

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"memchain/core/runtime"
)

// checkBatch enforces the batch size bounds.
func checkBatch(cfg *ProtocolConfig, n int) error {
	if n == 0 {
		return ErrEmptyBatch
	}
	limit := MaxBatchSize
	if cfg.MaxBatchSize > 0 && int(cfg.MaxBatchSize) < limit {
		limit = int(cfg.MaxBatchSize)
	}
	if n > limit {
		return ErrBatchTooLarge
	}
	return nil
}

// batchShards returns the trailing shard accounts, one per batch item.
func batchShards(accounts *accountList, n int) ([]*runtime.AccountInfo, error) {
	shards := accounts.rest()
	if len(shards) < n {
		return nil, fmt.Errorf("%w: %d shard accounts for %d items", ErrNotEnoughAccountKeys, len(shards), n)
	}
	return shards[:n], nil
}

// storageFee prices size bytes at the configured per-byte fee.
func storageFee(cfg *ProtocolConfig, size uint64) (uint64, error) {
	fee, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(size), uint256.NewInt(cfg.StorageFeePerByte))
	if overflow || !fee.IsUint64() {
		return 0, ErrOverflow
	}
	return fee.Uint64(), nil
}

// batchCreateMemories creates one shard per item, in the order the shard
// accounts follow the fixed accounts.
func batchCreateMemories(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args BatchCreateArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	owner, err := accounts.nextSigner("owner", true)
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return err
	}
	system, err := accounts.next("system_program")
	if err != nil {
		return err
	}
	if err := requireProgram(system, solana.SystemProgramID); err != nil {
		return err
	}
	vault, err := loadVault(vaultInfo, owner.Key)
	if err != nil {
		return err
	}
	if err := requireWritable(vaultInfo); err != nil {
		return err
	}
	cfg, err := loadActiveConfig(configInfo)
	if err != nil {
		return err
	}
	if err := checkBatch(cfg, len(args.Items)); err != nil {
		return err
	}
	shardInfos, err := batchShards(accounts, len(args.Items))
	if err != nil {
		return err
	}

	var total uint64
	for _, item := range args.Items {
		if err := validateKey(cfg, item.Key); err != nil {
			return err
		}
		if err := validateContent(cfg, item.ContentSize, item.Metadata); err != nil {
			return err
		}
		if total, err = checkedAdd(total, uint64(item.ContentSize)); err != nil {
			return err
		}
		if err := vault.addMemory(item.ContentSize); err != nil {
			return err
		}
	}
	fee, err := storageFee(cfg, total)
	if err != nil {
		return err
	}

	ts := now(ctx)
	for i, item := range args.Items {
		info := shardInfos[i]
		bump, err := initAccount(ctx, owner, info, ShardSize, SeedMemory, vaultInfo.Key[:], []byte(item.Key))
		if err != nil {
			return err
		}
		if err := store(info, newShard(vaultInfo.Key, item, ts, bump)); err != nil {
			return err
		}
	}
	vault.UpdatedAt = ts
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeBatchMemoryCreated).
		key("vault", vaultInfo.Key).
		key("owner", owner.Key).
		uint("count", uint64(len(args.Items))).
		uint("total_size", total).
		uint("storage_fee", fee).
		at(ts))
	return nil
}

// batchDeleteMemories soft-deletes one shard per key.
func batchDeleteMemories(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args BatchDeleteArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return err
	}
	vault, err := loadVault(vaultInfo, owner.Key)
	if err != nil {
		return err
	}
	if err := requireWritable(vaultInfo); err != nil {
		return err
	}
	cfg, err := loadActiveConfig(configInfo)
	if err != nil {
		return err
	}
	if err := checkBatch(cfg, len(args.Keys)); err != nil {
		return err
	}
	shardInfos, err := batchShards(accounts, len(args.Keys))
	if err != nil {
		return err
	}

	ts := now(ctx)
	for i, key := range args.Keys {
		info := shardInfos[i]
		if err := requireWritable(info); err != nil {
			return err
		}
		shard, err := loadShard(info, vaultInfo.Key)
		if err != nil {
			return err
		}
		if shard.Key != key {
			return fmt.Errorf("%w: shard %s holds key %q", ErrInvalidPDA, info.Key, shard.Key)
		}
		if err := softDelete(vault, shard, ts); err != nil {
			return err
		}
		// Stored per item so a key repeated in the batch is seen as deleted.
		if err := store(info, shard); err != nil {
			return err
		}
	}
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeBatchMemoryDeleted).
		key("vault", vaultInfo.Key).
		key("owner", owner.Key).
		uint("count", uint64(len(args.Keys))).
		at(ts))
	return nil
}

// batchUpdateTags replaces the tag bitmask of live shards without creating a
// new version.
func batchUpdateTags(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args BatchUpdateTagsArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return err
	}
	if _, err := loadVault(vaultInfo, owner.Key); err != nil {
		return err
	}
	cfg, err := loadActiveConfig(configInfo)
	if err != nil {
		return err
	}
	if err := checkBatch(cfg, len(args.Updates)); err != nil {
		return err
	}
	shardInfos, err := batchShards(accounts, len(args.Updates))
	if err != nil {
		return err
	}

	ts := now(ctx)
	for i, u := range args.Updates {
		info := shardInfos[i]
		if err := requireWritable(info); err != nil {
			return err
		}
		shard, err := loadShard(info, vaultInfo.Key)
		if err != nil {
			return err
		}
		if shard.Key != u.MemoryKey {
			return fmt.Errorf("%w: shard %s holds key %q", ErrInvalidPDA, info.Key, shard.Key)
		}
		if shard.IsDeleted {
			return ErrMemoryAlreadyDeleted
		}
		shard.Metadata.Tags = u.NewTags
		shard.UpdatedAt = ts
		if err := store(info, shard); err != nil {
			return err
		}
	}
	ctx.Emit(newEvent(EventTypeBatchTagsUpdated).
		key("vault", vaultInfo.Key).
		key("owner", owner.Key).
		uint("count", uint64(len(args.Updates))).
		at(ts))
	return nil
}

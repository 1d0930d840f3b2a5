package agentmemory

import (
	"math"

	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

func validateKey(cfg *ProtocolConfig, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	limit := MaxKeyLength
	if cfg.MaxKeyLength > 0 && int(cfg.MaxKeyLength) < limit {
		limit = int(cfg.MaxKeyLength)
	}
	if len(key) > limit {
		return ErrKeyTooLong
	}
	return nil
}

func validateContent(cfg *ProtocolConfig, size uint32, meta MemoryMetadata) error {
	if size == 0 {
		return ErrInvalidContentSize
	}
	limit := uint32(MaxContentSize)
	if cfg.MaxMemorySize > 0 && cfg.MaxMemorySize < limit {
		limit = cfg.MaxMemorySize
	}
	if size > limit {
		return ErrContentTooLarge
	}
	if meta.Importance > MaxImportance {
		return ErrInvalidImportance
	}
	return nil
}

// addMemory accounts for a new live shard of size bytes.
func (v *MemoryVault) addMemory(size uint32) error {
	if v.MemoryCount >= MaxMemoryCount {
		return ErrOverflow
	}
	total, err := checkedAdd(v.TotalMemorySize, uint64(size))
	if err != nil {
		return err
	}
	v.MemoryCount++
	v.TotalMemorySize = total
	return nil
}

// removeMemory drops a shard of size bytes from the live counters. Both
// counters saturate at zero.
func (v *MemoryVault) removeMemory(size uint32) {
	if v.MemoryCount > 0 {
		v.MemoryCount--
	}
	v.TotalMemorySize = saturatingSub(v.TotalMemorySize, uint64(size))
}

// resize moves the size counter from oldSize to newSize.
func (v *MemoryVault) resize(oldSize, newSize uint32) error {
	if newSize >= oldSize {
		total, err := checkedAdd(v.TotalMemorySize, uint64(newSize-oldSize))
		if err != nil {
			return err
		}
		v.TotalMemorySize = total
		return nil
	}
	v.TotalMemorySize = saturatingSub(v.TotalMemorySize, uint64(oldSize-newSize))
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

func checkedAdd32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// shardAccounts are the accounts shared by every single-shard instruction.
type shardAccounts struct {
	owner     *runtime.AccountInfo
	vaultInfo *runtime.AccountInfo
	shardInfo *runtime.AccountInfo
	vault     *MemoryVault
	shard     *MemoryShard
	config    *ProtocolConfig
}

// loadShardAccounts consumes [owner, vault, shard, config] and runs the
// validation layer over them.
func loadShardAccounts(accounts *accountList, ownerWritable bool) (*shardAccounts, error) {
	owner, err := accounts.nextSigner("owner", ownerWritable)
	if err != nil {
		return nil, err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return nil, err
	}
	shardInfo, err := accounts.next("memory_shard")
	if err != nil {
		return nil, err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return nil, err
	}
	vault, err := loadVault(vaultInfo, owner.Key)
	if err != nil {
		return nil, err
	}
	shard, err := loadShard(shardInfo, vaultInfo.Key)
	if err != nil {
		return nil, err
	}
	cfg, err := loadActiveConfig(configInfo)
	if err != nil {
		return nil, err
	}
	if err := requireWritable(vaultInfo); err != nil {
		return nil, err
	}
	if err := requireWritable(shardInfo); err != nil {
		return nil, err
	}
	return &shardAccounts{
		owner:     owner,
		vaultInfo: vaultInfo,
		shardInfo: shardInfo,
		vault:     vault,
		shard:     shard,
		config:    cfg,
	}, nil
}

func (s *shardAccounts) save() error {
	if err := store(s.vaultInfo, s.vault); err != nil {
		return err
	}
	return store(s.shardInfo, s.shard)
}

func (s *shardAccounts) event(typ string, ts int64) *Event {
	return newEvent(typ).
		key("vault", s.vaultInfo.Key).
		key("memory", s.shardInfo.Key).
		str("key", s.shard.Key).
		at(ts)
}

// newShard initialises a live shard at version 1.
func newShard(vault solana.PublicKey, in MemoryInput, ts int64, bump uint8) *MemoryShard {
	return &MemoryShard{
		Vault:       vault,
		Key:         in.Key,
		ContentHash: in.ContentHash,
		ContentSize: in.ContentSize,
		Metadata:    in.Metadata.clone(),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Version:     1,
		Bump:        bump,
	}
}

func createMemory(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args CreateMemoryArgs
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
	shardInfo, err := accounts.next("memory_shard")
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
	if err := validateKey(cfg, args.Key); err != nil {
		return err
	}
	if err := validateContent(cfg, args.ContentSize, args.Metadata); err != nil {
		return err
	}
	if err := vault.addMemory(args.ContentSize); err != nil {
		return err
	}
	bump, err := initAccount(ctx, owner, shardInfo, ShardSize, SeedMemory, vaultInfo.Key[:], []byte(args.Key))
	if err != nil {
		return err
	}

	ts := now(ctx)
	vault.UpdatedAt = ts
	shard := newShard(vaultInfo.Key, args.MemoryInput, ts, bump)
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	if err := store(shardInfo, shard); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeMemoryCreated).
		key("vault", vaultInfo.Key).
		key("memory", shardInfo.Key).
		str("key", shard.Key).
		uint("version", uint64(shard.Version)).
		uint("content_size", uint64(shard.ContentSize)).
		at(ts))
	return nil
}

// updateMemory replaces the content of a live shard. The superseded content
// is pushed onto the history ring.
func updateMemory(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args UpdateMemoryArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	s, err := loadShardAccounts(accounts, false)
	if err != nil {
		return err
	}
	if s.shard.IsDeleted {
		return ErrMemoryAlreadyDeleted
	}
	if err := validateContent(s.config, args.ContentSize, args.Metadata); err != nil {
		return err
	}
	version, err := checkedAdd32(s.shard.Version, 1)
	if err != nil {
		return err
	}
	if err := s.vault.resize(s.shard.ContentSize, args.ContentSize); err != nil {
		return err
	}

	ts := now(ctx)
	oldVersion := s.shard.Version
	prev := s.shard.ContentHash
	s.shard.pushHistory(s.shard.snapshot(ts))
	s.shard.PreviousVersionHash = &prev
	s.shard.ContentHash = args.ContentHash
	s.shard.ContentSize = args.ContentSize
	s.shard.Metadata = args.Metadata.clone()
	s.shard.Version = version
	s.shard.UpdatedAt = ts
	s.vault.UpdatedAt = ts
	if err := s.save(); err != nil {
		return err
	}
	ctx.Emit(s.event(EventTypeMemoryUpdated, ts).
		uint("old_version", uint64(oldVersion)).
		uint("new_version", uint64(version)).
		uint("content_size", uint64(args.ContentSize)))
	return nil
}

// softDelete marks shard deleted and removes it from the vault counters.
func softDelete(vault *MemoryVault, shard *MemoryShard, ts int64) error {
	if shard.IsDeleted {
		return ErrMemoryAlreadyDeleted
	}
	vault.removeMemory(shard.ContentSize)
	vault.UpdatedAt = ts
	shard.IsDeleted = true
	shard.DeletedAt = &ts
	shard.UpdatedAt = ts
	return nil
}

func deleteMemory(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	s, err := loadShardAccounts(accounts, false)
	if err != nil {
		return err
	}
	ts := now(ctx)
	if err := softDelete(s.vault, s.shard, ts); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		return err
	}
	ctx.Emit(s.event(EventTypeMemoryDeleted, ts))
	return nil
}

func restoreMemory(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	s, err := loadShardAccounts(accounts, false)
	if err != nil {
		return err
	}
	if !s.shard.IsDeleted {
		return ErrMemoryNotDeleted
	}
	if err := s.vault.addMemory(s.shard.ContentSize); err != nil {
		return err
	}
	ts := now(ctx)
	s.vault.UpdatedAt = ts
	s.shard.IsDeleted = false
	s.shard.DeletedAt = nil
	s.shard.UpdatedAt = ts
	if err := s.save(); err != nil {
		return err
	}
	ctx.Emit(s.event(EventTypeMemoryRestored, ts))
	return nil
}

// permanentDeleteMemory closes a soft-deleted shard and refunds its rent to
// the owner. The vault counters already excluded the shard when it was
// soft-deleted.
func permanentDeleteMemory(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	s, err := loadShardAccounts(accounts, true)
	if err != nil {
		return err
	}
	if !s.shard.IsDeleted {
		return ErrMemoryNotDeleted
	}
	ts := now(ctx)
	s.vault.UpdatedAt = ts
	if err := store(s.vaultInfo, s.vault); err != nil {
		return err
	}
	ev := s.event(EventTypeMemoryPermanentlyDeleted, ts)
	if err := closeAccount(s.shardInfo, s.owner); err != nil {
		return err
	}
	ctx.Emit(ev)
	return nil
}

// rollbackMemory restores the content recorded for an earlier version as a
// new version.
func rollbackMemory(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args RollbackMemoryArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	s, err := loadShardAccounts(accounts, false)
	if err != nil {
		return err
	}
	if s.shard.IsDeleted {
		return ErrMemoryAlreadyDeleted
	}
	if args.TargetVersion == 0 || args.TargetVersion >= s.shard.Version {
		return ErrInvalidRollbackVersion
	}
	target, ok := s.shard.FindVersion(args.TargetVersion)
	if !ok {
		return ErrVersionNotFound
	}
	version, err := checkedAdd32(s.shard.Version, 1)
	if err != nil {
		return err
	}
	if err := s.vault.resize(s.shard.ContentSize, target.ContentSize); err != nil {
		return err
	}

	ts := now(ctx)
	from := s.shard.Version
	prev := s.shard.ContentHash
	s.shard.pushHistory(s.shard.snapshot(ts))
	s.shard.PreviousVersionHash = &prev
	s.shard.ContentHash = target.ContentHash
	s.shard.ContentSize = target.ContentSize
	s.shard.Metadata = target.Metadata.clone()
	s.shard.Version = version
	s.shard.UpdatedAt = ts
	s.vault.UpdatedAt = ts
	if err := s.save(); err != nil {
		return err
	}
	ctx.Emit(s.event(EventTypeMemoryRolledBack, ts).
		uint("from_version", uint64(from)).
		uint("to_version", uint64(args.TargetVersion)).
		uint("new_version", uint64(version)))
	return nil
}

package agentmemory

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// logMemoryAccess records that accessor touched a shard. The vault owner may
// always log; anyone else passes their access grant as a trailing account and
// needs the permission level the access type requires.
func logMemoryAccess(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args LogAccessArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	accessor, err := accounts.nextSigner("accessor", true)
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
	logInfo, err := accounts.next("access_log")
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
	vault, err := loadAnyVault(vaultInfo)
	if err != nil {
		return err
	}
	if _, err := loadShard(shardInfo, vaultInfo.Key); err != nil {
		return err
	}
	if _, err := loadActiveConfig(configInfo); err != nil {
		return err
	}

	ts := now(ctx)
	if !vault.Owner.Equals(accessor.Key) {
		grantInfo, err := accounts.next("access_grant")
		if err != nil {
			return ErrAccessNotGranted
		}
		if err := checkGrant(grantInfo, vaultInfo.Key, accessor.Key, args.AccessType.RequiredPermission(), ts); err != nil {
			return err
		}
	}

	bump, err := initAccount(ctx, accessor, logInfo, AccessLogSize,
		SeedLog, shardInfo.Key[:], accessor.Key[:], logTimestampSeed(ts))
	if err != nil {
		return err
	}
	entry := &AccessLog{
		Memory:     shardInfo.Key,
		Accessor:   accessor.Key,
		AccessType: args.AccessType,
		Timestamp:  ts,
		Bump:       bump,
	}
	if err := store(logInfo, entry); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeMemoryAccessLogged).
		key("memory", shardInfo.Key).
		key("accessor", accessor.Key).
		uint("access_type", uint64(args.AccessType)).
		at(ts))
	return nil
}

// checkGrant loads the grant of grantee on vault and checks it permits level
// at ts.
func checkGrant(info *runtime.AccountInfo, vault, grantee solana.PublicKey, level PermissionLevel, ts int64) error {
	grant := new(AccessGrant)
	if err := load(info, grant); err != nil {
		if errors.Is(err, ErrAccountNotInitialized) {
			return ErrAccessNotGranted
		}
		return err
	}
	if !grant.Vault.Equals(vault) || !grant.Grantee.Equals(grantee) {
		return ErrAccessNotGranted
	}
	if err := verifyAddress(info, grant.Bump, SeedAccess, grant.Vault[:], grant.Grantee[:]); err != nil {
		return err
	}
	return grant.Allows(level, ts)
}

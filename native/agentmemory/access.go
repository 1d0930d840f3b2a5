package agentmemory

import (
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// grantAccess creates the grant of grantee on the owner's vault. A second
// grant to the same grantee collides with the existing account, revoked or
// not.
func grantAccess(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args GrantAccessArgs
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
	grantee, err := accounts.next("grantee")
	if err != nil {
		return err
	}
	grantInfo, err := accounts.next("access_grant")
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
	if _, err := loadVault(vaultInfo, owner.Key); err != nil {
		return err
	}
	if _, err := loadActiveConfig(configInfo); err != nil {
		return err
	}
	if grantee.Key.Equals(owner.Key) {
		return ErrCannotGrantToOwner
	}
	if args.PermissionLevel == PermissionNone {
		return ErrInvalidPermission
	}
	ts := now(ctx)
	if args.ExpiresAt != nil {
		if *args.ExpiresAt <= ts {
			return ErrInvalidExpiration
		}
		if *args.ExpiresAt-ts > MaxGrantDuration {
			return ErrExpirationTooFar
		}
	}

	bump, err := initAccount(ctx, owner, grantInfo, AccessGrantSize, SeedAccess, vaultInfo.Key[:], grantee.Key[:])
	if err != nil {
		return err
	}
	grant := &AccessGrant{
		Vault:           vaultInfo.Key,
		Grantee:         grantee.Key,
		PermissionLevel: args.PermissionLevel,
		GrantedAt:       ts,
		ExpiresAt:       args.ExpiresAt,
		IsActive:        true,
		Bump:            bump,
	}
	if err := store(grantInfo, grant); err != nil {
		return err
	}
	ev := newEvent(EventTypeAccessGranted).
		key("vault", vaultInfo.Key).
		key("grantee", grantee.Key).
		key("granted_by", owner.Key).
		uint("permission_level", uint64(args.PermissionLevel)).
		int("granted_at", ts)
	if args.ExpiresAt != nil {
		ev.int("expires_at", *args.ExpiresAt)
	}
	ctx.Emit(ev)
	return nil
}

// revokeAccess deactivates a grant. The account stays as an audit record.
func revokeAccess(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	grantInfo, err := accounts.next("access_grant")
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
	grant := new(AccessGrant)
	if err := load(grantInfo, grant); err != nil {
		return err
	}
	if !grant.Vault.Equals(vaultInfo.Key) {
		return ErrUnauthorizedOwner
	}
	if err := verifyAddress(grantInfo, grant.Bump, SeedAccess, grant.Vault[:], grant.Grantee[:]); err != nil {
		return err
	}
	if _, err := loadActiveConfig(configInfo); err != nil {
		return err
	}
	if err := requireWritable(grantInfo); err != nil {
		return err
	}
	if !grant.IsActive {
		return ErrAccessAlreadyRevoked
	}
	ts := now(ctx)
	grant.IsActive = false
	grant.RevokedAt = &ts
	if err := store(grantInfo, grant); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeAccessRevoked).
		key("vault", vaultInfo.Key).
		key("grantee", grant.Grantee).
		key("revoked_by", owner.Key).
		at(ts))
	return nil
}

package agentmemory

import (
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// createSharingGroup creates a group over the owner's vault with the creator
// as its first Admin member.
func createSharingGroup(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args CreateGroupArgs
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
	groupInfo, err := accounts.next("sharing_group")
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
	switch {
	case args.Name == "":
		return ErrEmptyGroupName
	case len(args.Name) > MaxGroupNameLength:
		return ErrGroupNameTooLong
	case len(args.Description) > MaxGroupDescLength:
		return ErrGroupDescTooLong
	}

	bump, err := initAccount(ctx, owner, groupInfo, SharingGroupSize, SeedGroup, vaultInfo.Key[:], []byte(args.Name))
	if err != nil {
		return err
	}
	ts := now(ctx)
	group := &SharingGroup{
		Creator:     owner.Key,
		Vault:       vaultInfo.Key,
		Name:        args.Name,
		Description: args.Description,
		Members:     []GroupMember{{Member: owner.Key, Permission: PermissionAdmin, JoinedAt: ts}},
		MemberCount: 1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		IsActive:    true,
		Bump:        bump,
	}
	if err := store(groupInfo, group); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeSharingGroupCreated).
		key("group", groupInfo.Key).
		key("creator", owner.Key).
		key("vault", vaultInfo.Key).
		str("name", args.Name).
		at(ts))
	return nil
}

// loadCreatorGroup consumes [creator, group, config] and requires the signer
// to be the group creator.
func loadCreatorGroup(accounts *accountList) (*runtime.AccountInfo, *SharingGroup, error) {
	creator, err := accounts.nextSigner("creator", false)
	if err != nil {
		return nil, nil, err
	}
	info, err := accounts.next("sharing_group")
	if err != nil {
		return nil, nil, err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return nil, nil, err
	}
	group := new(SharingGroup)
	if err := load(info, group); err != nil {
		return nil, nil, err
	}
	if !group.Creator.Equals(creator.Key) {
		return nil, nil, ErrNotGroupCreator
	}
	if err := verifyAddress(info, group.Bump, SeedGroup, group.Vault[:], []byte(group.Name)); err != nil {
		return nil, nil, err
	}
	if _, err := loadActiveConfig(configInfo); err != nil {
		return nil, nil, err
	}
	if err := requireWritable(info); err != nil {
		return nil, nil, err
	}
	return info, group, nil
}

func addGroupMember(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args GroupMemberArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	info, group, err := loadCreatorGroup(accounts)
	if err != nil {
		return err
	}
	if args.Permission == PermissionNone {
		return ErrInvalidPermission
	}
	if group.IndexOf(args.Member) >= 0 {
		return ErrMemberAlreadyExists
	}
	if len(group.Members) >= MaxGroupMembers {
		return ErrGroupTooLarge
	}
	count, err := checkedAdd32(group.MemberCount, 1)
	if err != nil {
		return err
	}
	ts := now(ctx)
	group.Members = append(group.Members, GroupMember{Member: args.Member, Permission: args.Permission, JoinedAt: ts})
	group.MemberCount = count
	group.UpdatedAt = ts
	if err := store(info, group); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeGroupMemberAdded).
		key("group", info.Key).
		key("member", args.Member).
		uint("permission", uint64(args.Permission)).
		at(ts))
	return nil
}

func removeGroupMember(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args pubkeyArg
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	info, group, err := loadCreatorGroup(accounts)
	if err != nil {
		return err
	}
	if args.Key.Equals(group.Creator) {
		return ErrCannotRemoveCreator
	}
	idx := group.IndexOf(args.Key)
	if idx < 0 {
		return ErrMemberNotFound
	}
	ts := now(ctx)
	group.Members = append(group.Members[:idx], group.Members[idx+1:]...)
	if group.MemberCount > 0 {
		group.MemberCount--
	}
	group.UpdatedAt = ts
	if err := store(info, group); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeGroupMemberRemoved).
		key("group", info.Key).
		key("member", args.Key).
		at(ts))
	return nil
}

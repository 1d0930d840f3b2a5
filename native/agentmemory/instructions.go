package agentmemory

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"memchain/core/types"
	"memchain/native/token"
)

// Instruction names. The payload of each instruction starts with the
// discriminator derived from its name.
const (
	NameInitializeVault          = "initialize_vault"
	NameCreateMemory             = "create_memory"
	NameUpdateMemory             = "update_memory"
	NameDeleteMemory             = "delete_memory"
	NameRestoreMemory            = "restore_memory"
	NamePermanentDeleteMemory    = "permanent_delete_memory"
	NameRollbackMemory           = "rollback_memory"
	NameBatchCreateMemories      = "batch_create_memories"
	NameBatchDeleteMemories      = "batch_delete_memories"
	NameBatchUpdateTags          = "batch_update_tags"
	NameLogMemoryAccess          = "log_memory_access"
	NameUpdateProfile            = "update_profile"
	NameRecordTask               = "record_task"
	NameGrantAccess              = "grant_access"
	NameRevokeAccess             = "revoke_access"
	NameCreateSharingGroup       = "create_sharing_group"
	NameAddGroupMember           = "add_group_member"
	NameRemoveGroupMember        = "remove_group_member"
	NameStakeForStorage          = "stake_for_storage"
	NameUnstakeTokens            = "unstake_tokens"
	NameClaimRewards             = "claim_rewards"
	NameInitializeProtocolConfig = "initialize_protocol_config"
	NameUpdateProtocolConfig     = "update_protocol_config"
	NameSetProtocolPause         = "set_protocol_pause"
	NameTransferAdmin            = "transfer_admin"
	NameInitializeRegistry       = "initialize_registry"
	NameBindIdentity             = "bind_identity"
	NameVerifyBinding            = "verify_binding"
	NameRevokeBinding            = "revoke_binding"
	NameReactivateBinding        = "reactivate_binding"
	NameRotateBindingSignature   = "rotate_binding_signature"
)

var instructionNames = map[Discriminator]string{}

func init() {
	for _, name := range []string{
		NameInitializeVault, NameCreateMemory, NameUpdateMemory, NameDeleteMemory,
		NameRestoreMemory, NamePermanentDeleteMemory, NameRollbackMemory,
		NameBatchCreateMemories, NameBatchDeleteMemories, NameBatchUpdateTags,
		NameLogMemoryAccess, NameUpdateProfile, NameRecordTask, NameGrantAccess,
		NameRevokeAccess, NameCreateSharingGroup, NameAddGroupMember,
		NameRemoveGroupMember, NameStakeForStorage, NameUnstakeTokens,
		NameClaimRewards, NameInitializeProtocolConfig, NameUpdateProtocolConfig,
		NameSetProtocolPause, NameTransferAdmin, NameInitializeRegistry,
		NameBindIdentity, NameVerifyBinding, NameRevokeBinding,
		NameReactivateBinding, NameRotateBindingSignature,
	} {
		instructionNames[instructionDiscriminator(name)] = name
	}
}

// InstructionName returns the instruction name encoded in data, or "" when
// the discriminator is unknown.
func InstructionName(data []byte) string {
	if len(data) < 8 {
		return ""
	}
	var d Discriminator
	copy(d[:], data[:8])
	return instructionNames[d]
}

func (r *reader) optU64() *uint64 {
	if !r.option() {
		return nil
	}
	v := r.u64()
	return &v
}

func (r *reader) optU32() *uint32 {
	if !r.option() {
		return nil
	}
	v := r.u32()
	return &v
}

func (w *writer) optU64(v *uint64) {
	w.option(v != nil)
	if v != nil {
		w.u64(*v)
	}
}

func (w *writer) optU32(v *uint32) {
	w.option(v != nil)
	if v != nil {
		w.u32(*v)
	}
}

// maxArgString bounds strings decoded from instruction data. Domain limits
// are enforced by the handlers so oversized inputs report the precise error.
const maxArgString = 1024

// maxArgItems bounds vectors decoded from instruction data.
const maxArgItems = 256

type InitializeVaultArgs struct {
	EncryptionPubkey [32]byte
}

func (a *InitializeVaultArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(a.EncryptionPubkey[:])
	return w.err
}

func (a *InitializeVaultArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	r.fixed(a.EncryptionPubkey[:])
	return r.err
}

// MemoryInput carries the content fields shared by create, update and batch
// create.
type MemoryInput struct {
	Key         string
	ContentHash [32]byte
	ContentSize uint32
	Metadata    MemoryMetadata
}

func (m *MemoryInput) write(w *writer, withKey bool) {
	if withKey {
		w.str(m.Key)
	}
	w.fixed(m.ContentHash[:])
	w.u32(m.ContentSize)
	m.Metadata.write(w)
}

func (m *MemoryInput) read(r *reader, withKey bool) {
	if withKey {
		m.Key = r.str(maxArgString)
	}
	r.fixed(m.ContentHash[:])
	m.ContentSize = r.u32()
	m.Metadata.read(r)
}

type CreateMemoryArgs struct{ MemoryInput }

func (a *CreateMemoryArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	a.write(w, true)
	return w.err
}

func (a *CreateMemoryArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.read(r, true)
	return r.err
}

type UpdateMemoryArgs struct {
	ContentHash [32]byte
	ContentSize uint32
	Metadata    MemoryMetadata
}

func (a *UpdateMemoryArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	in := MemoryInput{ContentHash: a.ContentHash, ContentSize: a.ContentSize, Metadata: a.Metadata}
	in.write(w, false)
	return w.err
}

func (a *UpdateMemoryArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	var in MemoryInput
	in.read(r, false)
	a.ContentHash, a.ContentSize, a.Metadata = in.ContentHash, in.ContentSize, in.Metadata
	return r.err
}

type RollbackMemoryArgs struct {
	TargetVersion uint32
}

func (a *RollbackMemoryArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u32(a.TargetVersion)
	return w.err
}

func (a *RollbackMemoryArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.TargetVersion = r.u32()
	return r.err
}

type BatchCreateArgs struct {
	Items []MemoryInput
}

func (a *BatchCreateArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u32(uint32(len(a.Items)))
	for i := range a.Items {
		a.Items[i].write(w, true)
	}
	return w.err
}

func (a *BatchCreateArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	n := r.length(maxArgItems)
	a.Items = make([]MemoryInput, n)
	for i := range a.Items {
		a.Items[i].read(r, true)
	}
	return r.err
}

type BatchDeleteArgs struct {
	Keys []string
}

func (a *BatchDeleteArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u32(uint32(len(a.Keys)))
	for _, k := range a.Keys {
		w.str(k)
	}
	return w.err
}

func (a *BatchDeleteArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	n := r.length(maxArgItems)
	a.Keys = make([]string, n)
	for i := range a.Keys {
		a.Keys[i] = r.str(maxArgString)
	}
	return r.err
}

// TagUpdate replaces the tag bitmask of one shard.
type TagUpdate struct {
	MemoryKey string
	NewTags   [8]byte
}

type BatchUpdateTagsArgs struct {
	Updates []TagUpdate
}

func (a *BatchUpdateTagsArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u32(uint32(len(a.Updates)))
	for _, u := range a.Updates {
		w.str(u.MemoryKey)
		w.fixed(u.NewTags[:])
	}
	return w.err
}

func (a *BatchUpdateTagsArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	n := r.length(maxArgItems)
	a.Updates = make([]TagUpdate, n)
	for i := range a.Updates {
		a.Updates[i].MemoryKey = r.str(maxArgString)
		r.fixed(a.Updates[i].NewTags[:])
	}
	return r.err
}

type LogAccessArgs struct {
	AccessType AccessType
}

func (a *LogAccessArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u8(uint8(a.AccessType))
	return w.err
}

func (a *LogAccessArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.AccessType = r.accessType()
	return r.err
}

// UpdateProfileArgs leaves a field untouched when it is nil.
type UpdateProfileArgs struct {
	Name         *string
	Capabilities *[]string
	IsPublic     *bool
}

func (a *UpdateProfileArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.option(a.Name != nil)
	if a.Name != nil {
		w.str(*a.Name)
	}
	w.option(a.Capabilities != nil)
	if a.Capabilities != nil {
		w.u32(uint32(len(*a.Capabilities)))
		for _, c := range *a.Capabilities {
			w.str(c)
		}
	}
	w.option(a.IsPublic != nil)
	if a.IsPublic != nil {
		w.boolean(*a.IsPublic)
	}
	return w.err
}

func (a *UpdateProfileArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	if r.option() {
		name := r.str(maxArgString)
		a.Name = &name
	}
	if r.option() {
		caps := make([]string, r.length(maxArgItems))
		for i := range caps {
			caps[i] = r.str(maxArgString)
		}
		a.Capabilities = &caps
	}
	if r.option() {
		public := r.boolean()
		a.IsPublic = &public
	}
	return r.err
}

type GrantAccessArgs struct {
	PermissionLevel PermissionLevel
	ExpiresAt       *int64
}

func (a *GrantAccessArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u8(uint8(a.PermissionLevel))
	w.optI64(a.ExpiresAt)
	return w.err
}

func (a *GrantAccessArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.PermissionLevel = r.permission()
	a.ExpiresAt = r.optI64()
	return r.err
}

type CreateGroupArgs struct {
	Name        string
	Description string
}

func (a *CreateGroupArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.str(a.Name)
	w.str(a.Description)
	return w.err
}

func (a *CreateGroupArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.Name = r.str(maxArgString)
	a.Description = r.str(maxArgString)
	return r.err
}

type GroupMemberArgs struct {
	Member     solana.PublicKey
	Permission PermissionLevel
}

func (a *GroupMemberArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(a.Member[:])
	w.u8(uint8(a.Permission))
	return w.err
}

func (a *GroupMemberArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.Member = r.pubkey()
	a.Permission = r.permission()
	return r.err
}

// pubkeyArg is the payload of instructions taking a single public key.
type pubkeyArg struct {
	Key solana.PublicKey
}

func (a *pubkeyArg) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(a.Key[:])
	return w.err
}

func (a *pubkeyArg) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.Key = r.pubkey()
	return r.err
}

type amountArg struct {
	Amount uint64
}

func (a *amountArg) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u64(a.Amount)
	return w.err
}

func (a *amountArg) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.Amount = r.u64()
	return r.err
}

type boolArg struct {
	Value bool
}

func (a *boolArg) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.boolean(a.Value)
	return w.err
}

func (a *boolArg) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.Value = r.boolean()
	return r.err
}

// ProtocolConfigParams initialises the protocol config.
type ProtocolConfigParams struct {
	StorageFeePerByte uint64
	MinStakePerByte   uint64
	MaxBatchSize      uint32
	MaxMemorySize     uint32
	MaxKeyLength      uint32
	RewardRate        uint32
}

// DefaultProtocolConfigParams returns the limits the program is built for.
func DefaultProtocolConfigParams() ProtocolConfigParams {
	return ProtocolConfigParams{
		StorageFeePerByte: 10,
		MinStakePerByte:   1,
		MaxBatchSize:      MaxBatchSize,
		MaxMemorySize:     MaxContentSize,
		MaxKeyLength:      MaxKeyLength,
		RewardRate:        100,
	}
}

func (p *ProtocolConfigParams) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.u64(p.StorageFeePerByte)
	w.u64(p.MinStakePerByte)
	w.u32(p.MaxBatchSize)
	w.u32(p.MaxMemorySize)
	w.u32(p.MaxKeyLength)
	w.u32(p.RewardRate)
	return w.err
}

func (p *ProtocolConfigParams) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	p.StorageFeePerByte = r.u64()
	p.MinStakePerByte = r.u64()
	p.MaxBatchSize = r.u32()
	p.MaxMemorySize = r.u32()
	p.MaxKeyLength = r.u32()
	p.RewardRate = r.u32()
	return r.err
}

// ProtocolConfigUpdate changes only the non-nil fields.
type ProtocolConfigUpdate struct {
	StorageFeePerByte *uint64
	MinStakePerByte   *uint64
	MaxBatchSize      *uint32
	MaxMemorySize     *uint32
	RewardRate        *uint32
}

// Bits reported in ProtocolConfigUpdated.UpdatedFields.
const (
	ConfigFieldStorageFee uint8 = 1 << iota
	ConfigFieldMinStake
	ConfigFieldMaxBatchSize
	ConfigFieldMaxMemorySize
	ConfigFieldRewardRate
)

func (u *ProtocolConfigUpdate) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.optU64(u.StorageFeePerByte)
	w.optU64(u.MinStakePerByte)
	w.optU32(u.MaxBatchSize)
	w.optU32(u.MaxMemorySize)
	w.optU32(u.RewardRate)
	return w.err
}

func (u *ProtocolConfigUpdate) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	u.StorageFeePerByte = r.optU64()
	u.MinStakePerByte = r.optU64()
	u.MaxBatchSize = r.optU32()
	u.MaxMemorySize = r.optU32()
	u.RewardRate = r.optU32()
	return r.err
}

type BindIdentityArgs struct {
	AgentID   string
	Signature solana.Signature
}

func (a *BindIdentityArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.str(a.AgentID)
	w.fixed(a.Signature[:])
	return w.err
}

func (a *BindIdentityArgs) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	a.AgentID = r.str(maxArgString)
	r.fixed(a.Signature[:])
	return r.err
}

type signatureArg struct {
	Signature solana.Signature
}

func (a *signatureArg) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(a.Signature[:])
	return w.err
}

func (a *signatureArg) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	r.fixed(a.Signature[:])
	return r.err
}

// ---------------------------------------------------------------------------
// Client builders. Each derives the program addresses it needs and lists the
// accounts in the order the handler consumes them.

func build(name string, args encodable, metas ...types.AccountMeta) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  metas,
		Data:      encodeInstruction(instructionDiscriminator(name), args),
	}
}

func ro(key solana.PublicKey) types.AccountMeta { return types.Meta(key, false, false) }
func rw(key solana.PublicKey) types.AccountMeta { return types.Meta(key, false, true) }

func signer(key solana.PublicKey, writable bool) types.AccountMeta {
	return types.Meta(key, true, writable)
}

func configMeta() types.AccountMeta {
	addr, _ := ConfigAddress()
	return ro(addr)
}

func InitializeVault(owner, agent solana.PublicKey, encryptionPubkey [32]byte) types.Instruction {
	vault, _ := VaultAddress(owner, agent)
	profile, _ := ProfileAddress(agent)
	return build(NameInitializeVault, &InitializeVaultArgs{EncryptionPubkey: encryptionPubkey},
		signer(owner, true), ro(agent), rw(vault), rw(profile), configMeta(), ro(solana.SystemProgramID))
}

func CreateMemory(owner, vault solana.PublicKey, in MemoryInput) types.Instruction {
	shard, _ := MemoryAddress(vault, in.Key)
	return build(NameCreateMemory, &CreateMemoryArgs{MemoryInput: in},
		signer(owner, true), rw(vault), rw(shard), configMeta(), ro(solana.SystemProgramID))
}

func UpdateMemory(owner, vault solana.PublicKey, key string, args UpdateMemoryArgs) types.Instruction {
	shard, _ := MemoryAddress(vault, key)
	return build(NameUpdateMemory, &args, signer(owner, false), rw(vault), rw(shard), configMeta())
}

func DeleteMemory(owner, vault solana.PublicKey, key string) types.Instruction {
	shard, _ := MemoryAddress(vault, key)
	return build(NameDeleteMemory, nil, signer(owner, false), rw(vault), rw(shard), configMeta())
}

func RestoreMemory(owner, vault solana.PublicKey, key string) types.Instruction {
	shard, _ := MemoryAddress(vault, key)
	return build(NameRestoreMemory, nil, signer(owner, false), rw(vault), rw(shard), configMeta())
}

func PermanentDeleteMemory(owner, vault solana.PublicKey, key string) types.Instruction {
	shard, _ := MemoryAddress(vault, key)
	return build(NamePermanentDeleteMemory, nil, signer(owner, true), rw(vault), rw(shard), configMeta())
}

func RollbackMemory(owner, vault solana.PublicKey, key string, target uint32) types.Instruction {
	shard, _ := MemoryAddress(vault, key)
	return build(NameRollbackMemory, &RollbackMemoryArgs{TargetVersion: target},
		signer(owner, false), rw(vault), rw(shard), configMeta())
}

func BatchCreateMemories(owner, vault solana.PublicKey, items []MemoryInput) types.Instruction {
	metas := []types.AccountMeta{signer(owner, true), rw(vault), configMeta(), ro(solana.SystemProgramID)}
	for _, item := range items {
		shard, _ := MemoryAddress(vault, item.Key)
		metas = append(metas, rw(shard))
	}
	return build(NameBatchCreateMemories, &BatchCreateArgs{Items: items}, metas...)
}

func BatchDeleteMemories(owner, vault solana.PublicKey, keys []string) types.Instruction {
	metas := []types.AccountMeta{signer(owner, false), rw(vault), configMeta()}
	for _, key := range keys {
		shard, _ := MemoryAddress(vault, key)
		metas = append(metas, rw(shard))
	}
	return build(NameBatchDeleteMemories, &BatchDeleteArgs{Keys: keys}, metas...)
}

func BatchUpdateTags(owner, vault solana.PublicKey, updates []TagUpdate) types.Instruction {
	metas := []types.AccountMeta{signer(owner, false), ro(vault), configMeta()}
	for _, u := range updates {
		shard, _ := MemoryAddress(vault, u.MemoryKey)
		metas = append(metas, rw(shard))
	}
	return build(NameBatchUpdateTags, &BatchUpdateTagsArgs{Updates: updates}, metas...)
}

// LogMemoryAccess records an access at unix time ts, which must equal the
// clock of the slot the transaction lands in.
func LogMemoryAccess(accessor, vault solana.PublicKey, key string, access AccessType, ts int64) types.Instruction {
	shard, _ := MemoryAddress(vault, key)
	logAddr, _ := AccessLogAddress(shard, accessor, ts)
	grant, _ := AccessGrantAddress(vault, accessor)
	return build(NameLogMemoryAccess, &LogAccessArgs{AccessType: access},
		signer(accessor, true), ro(vault), ro(shard), rw(logAddr), configMeta(), ro(solana.SystemProgramID), ro(grant))
}

func UpdateProfile(owner, agent solana.PublicKey, args UpdateProfileArgs) types.Instruction {
	profile, _ := ProfileAddress(agent)
	return build(NameUpdateProfile, &args, signer(owner, false), rw(profile), configMeta())
}

func RecordTask(owner, agent solana.PublicKey) types.Instruction {
	profile, _ := ProfileAddress(agent)
	return build(NameRecordTask, nil, signer(owner, false), rw(profile), configMeta())
}

func GrantAccess(owner, vault, grantee solana.PublicKey, level PermissionLevel, expiresAt *int64) types.Instruction {
	grant, _ := AccessGrantAddress(vault, grantee)
	return build(NameGrantAccess, &GrantAccessArgs{PermissionLevel: level, ExpiresAt: expiresAt},
		signer(owner, true), ro(vault), ro(grantee), rw(grant), configMeta(), ro(solana.SystemProgramID))
}

func RevokeAccess(owner, vault, grantee solana.PublicKey) types.Instruction {
	grant, _ := AccessGrantAddress(vault, grantee)
	return build(NameRevokeAccess, nil, signer(owner, false), ro(vault), rw(grant), configMeta())
}

func CreateSharingGroup(owner, vault solana.PublicKey, name, description string) types.Instruction {
	group, _ := GroupAddress(vault, name)
	return build(NameCreateSharingGroup, &CreateGroupArgs{Name: name, Description: description},
		signer(owner, true), ro(vault), rw(group), configMeta(), ro(solana.SystemProgramID))
}

func AddGroupMember(owner, group, member solana.PublicKey, permission PermissionLevel) types.Instruction {
	return build(NameAddGroupMember, &GroupMemberArgs{Member: member, Permission: permission},
		signer(owner, false), rw(group), configMeta())
}

func RemoveGroupMember(owner, group, member solana.PublicKey) types.Instruction {
	return build(NameRemoveGroupMember, &pubkeyArg{Key: member}, signer(owner, false), rw(group), configMeta())
}

func StakeForStorage(owner, vault, ownerTokens, mint solana.PublicKey, amount uint64) types.Instruction {
	vaultTokens, _ := VaultTokenAddress(vault)
	return build(NameStakeForStorage, &amountArg{Amount: amount},
		signer(owner, true), rw(vault), rw(ownerTokens), rw(vaultTokens), ro(mint), configMeta(),
		ro(token.ProgramID), ro(solana.SystemProgramID))
}

func UnstakeTokens(owner, vault, ownerTokens solana.PublicKey, amount uint64) types.Instruction {
	vaultTokens, _ := VaultTokenAddress(vault)
	return build(NameUnstakeTokens, &amountArg{Amount: amount},
		signer(owner, false), rw(vault), rw(vaultTokens), rw(ownerTokens), configMeta(), ro(token.ProgramID))
}

func ClaimRewards(owner, vault solana.PublicKey) types.Instruction {
	return build(NameClaimRewards, nil, signer(owner, false), rw(vault), configMeta())
}

func InitializeProtocolConfig(admin solana.PublicKey, params ProtocolConfigParams) types.Instruction {
	config, _ := ConfigAddress()
	return build(NameInitializeProtocolConfig, &params, signer(admin, true), rw(config), ro(solana.SystemProgramID))
}

func UpdateProtocolConfig(admin solana.PublicKey, update ProtocolConfigUpdate) types.Instruction {
	config, _ := ConfigAddress()
	return build(NameUpdateProtocolConfig, &update, signer(admin, false), rw(config))
}

func SetProtocolPause(admin solana.PublicKey, paused bool) types.Instruction {
	config, _ := ConfigAddress()
	return build(NameSetProtocolPause, &boolArg{Value: paused}, signer(admin, false), rw(config))
}

func TransferAdmin(admin, newAdmin solana.PublicKey) types.Instruction {
	config, _ := ConfigAddress()
	return build(NameTransferAdmin, &pubkeyArg{Key: newAdmin}, signer(admin, false), rw(config))
}

func InitializeRegistry(payer, identity solana.PublicKey) types.Instruction {
	registry, _ := RegistryAddress(identity)
	return build(NameInitializeRegistry, nil, signer(payer, true), ro(identity), rw(registry), ro(solana.SystemProgramID))
}

func BindIdentity(payer, identity, vault solana.PublicKey, agentID string, sig solana.Signature) types.Instruction {
	binding, _ := BindingAddress(identity, agentID)
	registry, _ := RegistryAddress(identity)
	return build(NameBindIdentity, &BindIdentityArgs{AgentID: agentID, Signature: sig},
		signer(payer, true), ro(identity), ro(vault), rw(binding), rw(registry), ro(solana.SystemProgramID))
}

func VerifyBinding(binding solana.PublicKey) types.Instruction {
	return build(NameVerifyBinding, nil, ro(binding))
}

func RevokeBinding(identity solana.PublicKey, agentID string) types.Instruction {
	binding, _ := BindingAddress(identity, agentID)
	registry, _ := RegistryAddress(identity)
	return build(NameRevokeBinding, nil, signer(identity, false), rw(binding), rw(registry))
}

func ReactivateBinding(identity solana.PublicKey, agentID string, sig solana.Signature) types.Instruction {
	binding, _ := BindingAddress(identity, agentID)
	registry, _ := RegistryAddress(identity)
	return build(NameReactivateBinding, &signatureArg{Signature: sig},
		signer(identity, false), ro(identity), rw(binding), rw(registry))
}

func RotateBindingSignature(identity solana.PublicKey, agentID string, sig solana.Signature) types.Instruction {
	binding, _ := BindingAddress(identity, agentID)
	return build(NameRotateBindingSignature, &signatureArg{Signature: sig},
		signer(identity, false), ro(identity), rw(binding))
}

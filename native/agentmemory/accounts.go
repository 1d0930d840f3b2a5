package agentmemory

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MemoryType classifies a memory shard.
type MemoryType uint8

const (
	MemoryTypeConversation MemoryType = iota
	MemoryTypeLearning
	MemoryTypePreference
	MemoryTypeTask
	MemoryTypeRelationship
	MemoryTypeKnowledge
	MemoryTypeSystem
)

var memoryTypeNames = [...]string{"conversation", "learning", "preference", "task", "relationship", "knowledge", "system"}

func (t MemoryType) String() string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}
	return fmt.Sprintf("memory_type(%d)", uint8(t))
}

// ParseMemoryType maps a lower-case name back to its MemoryType.
func ParseMemoryType(name string) (MemoryType, error) {
	for i, n := range memoryTypeNames {
		if n == name {
			return MemoryType(i), nil
		}
	}
	return 0, fmt.Errorf("agentmemory: unknown memory type %q", name)
}

// PermissionLevel is totally ordered: None < Read < Write < Admin.
type PermissionLevel uint8

const (
	PermissionNone PermissionLevel = iota
	PermissionRead
	PermissionWrite
	PermissionAdmin
)

func (p PermissionLevel) String() string {
	switch p {
	case PermissionNone:
		return "none"
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionAdmin:
		return "admin"
	}
	return fmt.Sprintf("permission(%d)", uint8(p))
}

// AccessType is recorded by access log entries.
type AccessType uint8

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessDelete
	AccessShare
)

// RequiredPermission is the minimum grant level needed for a.
func (a AccessType) RequiredPermission() PermissionLevel {
	switch a {
	case AccessRead:
		return PermissionRead
	case AccessWrite, AccessDelete:
		return PermissionWrite
	default:
		return PermissionAdmin
	}
}

func (r *reader) memoryType() MemoryType {
	v := r.u8()
	if v > uint8(MemoryTypeSystem) {
		r.fail(fmt.Errorf("invalid memory type %d", v))
	}
	return MemoryType(v)
}

func (r *reader) permission() PermissionLevel {
	v := r.u8()
	if v > uint8(PermissionAdmin) {
		r.fail(fmt.Errorf("invalid permission level %d", v))
	}
	return PermissionLevel(v)
}

func (r *reader) accessType() AccessType {
	v := r.u8()
	if v > uint8(AccessShare) {
		r.fail(fmt.Errorf("invalid access type %d", v))
	}
	return AccessType(v)
}

// MemoryMetadata describes a shard's content without revealing it.
type MemoryMetadata struct {
	MemoryType MemoryType
	Importance uint8
	Tags       [8]byte
	IPFSCID    *[IPFSCIDLength]byte
}

const metadataSize = 1 + 1 + 8 + 1 + IPFSCIDLength

func (m *MemoryMetadata) write(w *writer) {
	w.u8(uint8(m.MemoryType))
	w.u8(m.Importance)
	w.fixed(m.Tags[:])
	w.option(m.IPFSCID != nil)
	if m.IPFSCID != nil {
		w.fixed(m.IPFSCID[:])
	}
}

func (m *MemoryMetadata) read(r *reader) {
	m.MemoryType = r.memoryType()
	m.Importance = r.u8()
	r.fixed(m.Tags[:])
	m.IPFSCID = nil
	if r.option() {
		var cid [IPFSCIDLength]byte
		r.fixed(cid[:])
		m.IPFSCID = &cid
	}
}

// VersionEntry is one superseded shard revision kept in the history ring.
type VersionEntry struct {
	Version     uint32
	ContentHash [32]byte
	ContentSize uint32
	Metadata    MemoryMetadata
	RecordedAt  int64
}

const versionEntrySize = 4 + 32 + 4 + metadataSize + 8

func (v *VersionEntry) write(w *writer) {
	w.u32(v.Version)
	w.fixed(v.ContentHash[:])
	w.u32(v.ContentSize)
	v.Metadata.write(w)
	w.i64(v.RecordedAt)
}

func (v *VersionEntry) read(r *reader) {
	v.Version = r.u32()
	r.fixed(v.ContentHash[:])
	v.ContentSize = r.u32()
	v.Metadata.read(r)
	v.RecordedAt = r.i64()
}

// MemoryVault is the per (owner, agent) container of memory shards.
type MemoryVault struct {
	Owner            solana.PublicKey
	AgentKey         solana.PublicKey
	EncryptionPubkey [32]byte
	CreatedAt        int64
	UpdatedAt        int64
	MemoryCount      uint32
	TotalMemorySize  uint64
	StakedAmount     uint64
	RewardPoints     uint32
	IsActive         bool
	Bump             uint8
}

func (v *MemoryVault) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(v.Owner[:])
	w.fixed(v.AgentKey[:])
	w.fixed(v.EncryptionPubkey[:])
	w.i64(v.CreatedAt)
	w.i64(v.UpdatedAt)
	w.u32(v.MemoryCount)
	w.u64(v.TotalMemorySize)
	w.u64(v.StakedAmount)
	w.u32(v.RewardPoints)
	w.boolean(v.IsActive)
	w.u8(v.Bump)
	return w.err
}

func (v *MemoryVault) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	v.Owner = r.pubkey()
	v.AgentKey = r.pubkey()
	r.fixed(v.EncryptionPubkey[:])
	v.CreatedAt = r.i64()
	v.UpdatedAt = r.i64()
	v.MemoryCount = r.u32()
	v.TotalMemorySize = r.u64()
	v.StakedAmount = r.u64()
	v.RewardPoints = r.u32()
	v.IsActive = r.boolean()
	v.Bump = r.u8()
	return r.err
}

// MemoryShard is one versioned memory entry. Only the content hash lives on
// the ledger.
type MemoryShard struct {
	Vault               solana.PublicKey
	Key                 string
	ContentHash         [32]byte
	ContentSize         uint32
	Metadata            MemoryMetadata
	CreatedAt           int64
	UpdatedAt           int64
	Version             uint32
	IsDeleted           bool
	DeletedAt           *int64
	PreviousVersionHash *[32]byte
	History             []VersionEntry
	Bump                uint8
}

func (s *MemoryShard) MarshalWithEncoder(enc *bin.Encoder) error {
	if len(s.History) > HistoryCapacity {
		return fmt.Errorf("history holds %d entries", len(s.History))
	}
	w := newWriter(enc)
	w.fixed(s.Vault[:])
	w.str(s.Key)
	w.fixed(s.ContentHash[:])
	w.u32(s.ContentSize)
	s.Metadata.write(w)
	w.i64(s.CreatedAt)
	w.i64(s.UpdatedAt)
	w.u32(s.Version)
	w.boolean(s.IsDeleted)
	w.optI64(s.DeletedAt)
	w.option(s.PreviousVersionHash != nil)
	if s.PreviousVersionHash != nil {
		w.fixed(s.PreviousVersionHash[:])
	}
	w.u32(uint32(len(s.History)))
	for i := range s.History {
		s.History[i].write(w)
	}
	w.u8(s.Bump)
	return w.err
}

func (s *MemoryShard) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	s.Vault = r.pubkey()
	s.Key = r.str(MaxKeyLength)
	r.fixed(s.ContentHash[:])
	s.ContentSize = r.u32()
	s.Metadata.read(r)
	s.CreatedAt = r.i64()
	s.UpdatedAt = r.i64()
	s.Version = r.u32()
	s.IsDeleted = r.boolean()
	s.DeletedAt = r.optI64()
	s.PreviousVersionHash = nil
	if r.option() {
		var h [32]byte
		r.fixed(h[:])
		s.PreviousVersionHash = &h
	}
	s.History = nil
	if n := r.length(HistoryCapacity); n > 0 {
		s.History = make([]VersionEntry, n)
		for i := range s.History {
			s.History[i].read(r)
		}
	}
	s.Bump = r.u8()
	return r.err
}

// pushHistory appends entry, evicting the oldest entry once the ring is full.
func (s *MemoryShard) pushHistory(entry VersionEntry) {
	if len(s.History) >= HistoryCapacity {
		s.History = append(s.History[:0:0], s.History[len(s.History)-HistoryCapacity+1:]...)
	}
	s.History = append(s.History, entry)
}

// snapshot captures the live content as a history entry.
func (s *MemoryShard) snapshot(now int64) VersionEntry {
	return VersionEntry{
		Version:     s.Version,
		ContentHash: s.ContentHash,
		ContentSize: s.ContentSize,
		Metadata:    s.Metadata.clone(),
		RecordedAt:  now,
	}
}

// FindVersion returns the history entry recorded for version.
func (s *MemoryShard) FindVersion(version uint32) (VersionEntry, bool) {
	for _, e := range s.History {
		if e.Version == version {
			return e, true
		}
	}
	return VersionEntry{}, false
}

func (m MemoryMetadata) clone() MemoryMetadata {
	if m.IPFSCID != nil {
		cid := *m.IPFSCID
		m.IPFSCID = &cid
	}
	return m
}

// AgentProfile is the public face of an agent.
type AgentProfile struct {
	AgentKey        solana.PublicKey
	Owner           solana.PublicKey
	Vault           solana.PublicKey
	Name            string
	Capabilities    []string
	ReputationScore uint32
	TasksCompleted  uint32
	CreatedAt       int64
	UpdatedAt       int64
	LastTaskAt      int64
	IsPublic        bool
	Bump            uint8
}

func (p *AgentProfile) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(p.AgentKey[:])
	w.fixed(p.Owner[:])
	w.fixed(p.Vault[:])
	w.str(p.Name)
	w.u32(uint32(len(p.Capabilities)))
	for _, c := range p.Capabilities {
		w.str(c)
	}
	w.u32(p.ReputationScore)
	w.u32(p.TasksCompleted)
	w.i64(p.CreatedAt)
	w.i64(p.UpdatedAt)
	w.i64(p.LastTaskAt)
	w.boolean(p.IsPublic)
	w.u8(p.Bump)
	return w.err
}

func (p *AgentProfile) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	p.AgentKey = r.pubkey()
	p.Owner = r.pubkey()
	p.Vault = r.pubkey()
	p.Name = r.str(MaxNameLength)
	p.Capabilities = nil
	if n := r.length(MaxCapabilities); n > 0 {
		p.Capabilities = make([]string, n)
		for i := range p.Capabilities {
			p.Capabilities[i] = r.str(MaxCapabilityLength)
		}
	}
	p.ReputationScore = r.u32()
	p.TasksCompleted = r.u32()
	p.CreatedAt = r.i64()
	p.UpdatedAt = r.i64()
	p.LastTaskAt = r.i64()
	p.IsPublic = r.boolean()
	p.Bump = r.u8()
	return r.err
}

// AccessGrant gives one grantee access to a vault. Revoked grants keep their
// account as an audit record.
type AccessGrant struct {
	Vault           solana.PublicKey
	Grantee         solana.PublicKey
	PermissionLevel PermissionLevel
	GrantedAt       int64
	ExpiresAt       *int64
	IsActive        bool
	RevokedAt       *int64
	Bump            uint8
}

func (g *AccessGrant) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(g.Vault[:])
	w.fixed(g.Grantee[:])
	w.u8(uint8(g.PermissionLevel))
	w.i64(g.GrantedAt)
	w.optI64(g.ExpiresAt)
	w.boolean(g.IsActive)
	w.optI64(g.RevokedAt)
	w.u8(g.Bump)
	return w.err
}

func (g *AccessGrant) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	g.Vault = r.pubkey()
	g.Grantee = r.pubkey()
	g.PermissionLevel = r.permission()
	g.GrantedAt = r.i64()
	g.ExpiresAt = r.optI64()
	g.IsActive = r.boolean()
	g.RevokedAt = r.optI64()
	g.Bump = r.u8()
	return r.err
}

// Allows reports whether the grant currently permits access at level.
func (g *AccessGrant) Allows(level PermissionLevel, now int64) error {
	if !g.IsActive || g.PermissionLevel < level {
		return ErrAccessNotGranted
	}
	if g.ExpiresAt != nil && now >= *g.ExpiresAt {
		return ErrAccessExpired
	}
	return nil
}

// GroupMember is one roster entry of a sharing group.
type GroupMember struct {
	Member     solana.PublicKey
	Permission PermissionLevel
	JoinedAt   int64
}

const groupMemberSize = 32 + 1 + 8

// SharingGroup grants a roster of members shared access to a vault.
type SharingGroup struct {
	Creator     solana.PublicKey
	Vault       solana.PublicKey
	Name        string
	Description string
	Members     []GroupMember
	MemberCount uint32
	CreatedAt   int64
	UpdatedAt   int64
	IsActive    bool
	Bump        uint8
}

func (g *SharingGroup) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(g.Creator[:])
	w.fixed(g.Vault[:])
	w.str(g.Name)
	w.str(g.Description)
	w.u32(uint32(len(g.Members)))
	for _, m := range g.Members {
		w.fixed(m.Member[:])
		w.u8(uint8(m.Permission))
		w.i64(m.JoinedAt)
	}
	w.u32(g.MemberCount)
	w.i64(g.CreatedAt)
	w.i64(g.UpdatedAt)
	w.boolean(g.IsActive)
	w.u8(g.Bump)
	return w.err
}

func (g *SharingGroup) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	g.Creator = r.pubkey()
	g.Vault = r.pubkey()
	g.Name = r.str(MaxGroupNameLength)
	g.Description = r.str(MaxGroupDescLength)
	g.Members = nil
	if n := r.length(MaxGroupMembers); n > 0 {
		g.Members = make([]GroupMember, n)
		for i := range g.Members {
			g.Members[i].Member = r.pubkey()
			g.Members[i].Permission = r.permission()
			g.Members[i].JoinedAt = r.i64()
		}
	}
	g.MemberCount = r.u32()
	g.CreatedAt = r.i64()
	g.UpdatedAt = r.i64()
	g.IsActive = r.boolean()
	g.Bump = r.u8()
	return r.err
}

// IndexOf returns the roster position of member or -1.
func (g *SharingGroup) IndexOf(member solana.PublicKey) int {
	for i, m := range g.Members {
		if m.Member.Equals(member) {
			return i
		}
	}
	return -1
}

// AccessLog records a single access to a memory shard.
type AccessLog struct {
	Memory     solana.PublicKey
	Accessor   solana.PublicKey
	AccessType AccessType
	Timestamp  int64
	Bump       uint8
}

func (l *AccessLog) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(l.Memory[:])
	w.fixed(l.Accessor[:])
	w.u8(uint8(l.AccessType))
	w.i64(l.Timestamp)
	w.u8(l.Bump)
	return w.err
}

func (l *AccessLog) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	l.Memory = r.pubkey()
	l.Accessor = r.pubkey()
	l.AccessType = r.accessType()
	l.Timestamp = r.i64()
	l.Bump = r.u8()
	return r.err
}

// ProtocolConfig is the singleton governing fees, limits and the pause flag.
type ProtocolConfig struct {
	Admin             solana.PublicKey
	StorageFeePerByte uint64
	MinStakePerByte   uint64
	MaxBatchSize      uint32
	MaxMemorySize     uint32
	MaxKeyLength      uint32
	RewardRate        uint32
	CreatedAt         int64
	UpdatedAt         int64
	IsPaused          bool
	Bump              uint8
}

func (c *ProtocolConfig) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(c.Admin[:])
	w.u64(c.StorageFeePerByte)
	w.u64(c.MinStakePerByte)
	w.u32(c.MaxBatchSize)
	w.u32(c.MaxMemorySize)
	w.u32(c.MaxKeyLength)
	w.u32(c.RewardRate)
	w.i64(c.CreatedAt)
	w.i64(c.UpdatedAt)
	w.boolean(c.IsPaused)
	w.u8(c.Bump)
	return w.err
}

func (c *ProtocolConfig) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	c.Admin = r.pubkey()
	c.StorageFeePerByte = r.u64()
	c.MinStakePerByte = r.u64()
	c.MaxBatchSize = r.u32()
	c.MaxMemorySize = r.u32()
	c.MaxKeyLength = r.u32()
	c.RewardRate = r.u32()
	c.CreatedAt = r.i64()
	c.UpdatedAt = r.i64()
	c.IsPaused = r.boolean()
	c.Bump = r.u8()
	return r.err
}

// IdentityMemoryBinding ties an external identity key to an agent id.
type IdentityMemoryBinding struct {
	Identity         solana.PublicKey
	AgentID          string
	BindingSignature solana.Signature
	BoundAt          int64
	Revoked          bool
	RevokedAt        *int64
	Vault            solana.PublicKey
	Version          uint32
	Bump             uint8
}

func (b *IdentityMemoryBinding) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(b.Identity[:])
	w.str(b.AgentID)
	w.fixed(b.BindingSignature[:])
	w.i64(b.BoundAt)
	w.boolean(b.Revoked)
	w.optI64(b.RevokedAt)
	w.fixed(b.Vault[:])
	w.u32(b.Version)
	w.u8(b.Bump)
	return w.err
}

func (b *IdentityMemoryBinding) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	b.Identity = r.pubkey()
	b.AgentID = r.str(MaxAgentIDLength)
	r.fixed(b.BindingSignature[:])
	b.BoundAt = r.i64()
	b.Revoked = r.boolean()
	b.RevokedAt = r.optI64()
	b.Vault = r.pubkey()
	b.Version = r.u32()
	b.Bump = r.u8()
	return r.err
}

// VerifyOwnership checks the stored signature against the identity key.
func (b *IdentityMemoryBinding) VerifyOwnership() bool {
	return b.Identity.Verify(BindingMessage(b.Identity, b.AgentID), b.BindingSignature)
}

// IdentityBindingRegistry lists the agent ids bound to one identity.
type IdentityBindingRegistry struct {
	Identity           solana.PublicKey
	AgentIDs           []string
	ActiveBindingCount uint32
	CreatedAt          int64
	UpdatedAt          int64
	Bump               uint8
}

func (g *IdentityBindingRegistry) MarshalWithEncoder(enc *bin.Encoder) error {
	w := newWriter(enc)
	w.fixed(g.Identity[:])
	w.u32(uint32(len(g.AgentIDs)))
	for _, id := range g.AgentIDs {
		w.str(id)
	}
	w.u32(g.ActiveBindingCount)
	w.i64(g.CreatedAt)
	w.i64(g.UpdatedAt)
	w.u8(g.Bump)
	return w.err
}

func (g *IdentityBindingRegistry) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := newReader(dec)
	g.Identity = r.pubkey()
	g.AgentIDs = nil
	if n := r.length(MaxBindingsPerIdentity); n > 0 {
		g.AgentIDs = make([]string, n)
		for i := range g.AgentIDs {
			g.AgentIDs[i] = r.str(MaxAgentIDLength)
		}
	}
	g.ActiveBindingCount = r.u32()
	g.CreatedAt = r.i64()
	g.UpdatedAt = r.i64()
	g.Bump = r.u8()
	return r.err
}

// Contains reports whether agentID was ever bound through this registry.
func (g *IdentityBindingRegistry) Contains(agentID string) bool {
	for _, id := range g.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// Account sizes include the discriminator and the maximum length of every
// variable field. Accounts are allocated once and never resized.
const (
	VaultSize          = 8 + 32 + 32 + 32 + 8 + 8 + 4 + 8 + 8 + 4 + 1 + 1
	ShardSize          = 8 + 32 + (4 + MaxKeyLength) + 32 + 4 + metadataSize + 8 + 8 + 4 + 1 + 9 + 33 + (4 + HistoryCapacity*versionEntrySize) + 1
	ProfileSize        = 8 + 32*3 + (4 + MaxNameLength) + (4 + MaxCapabilities*(4+MaxCapabilityLength)) + 4 + 4 + 8 + 8 + 8 + 1 + 1
	AccessGrantSize    = 8 + 32 + 32 + 1 + 8 + 9 + 1 + 9 + 1
	SharingGroupSize   = 8 + 32 + 32 + (4 + MaxGroupNameLength) + (4 + MaxGroupDescLength) + (4 + MaxGroupMembers*groupMemberSize) + 4 + 8 + 8 + 1 + 1
	AccessLogSize      = 8 + 32 + 32 + 1 + 8 + 1
	ProtocolConfigSize = 8 + 32 + 8 + 8 + 4 + 4 + 4 + 4 + 8 + 8 + 1 + 1
	BindingSize        = 8 + 32 + (4 + MaxAgentIDLength) + 64 + 8 + 1 + 9 + 32 + 4 + 1
	RegistrySize       = 8 + 32 + (4 + MaxBindingsPerIdentity*(4+MaxAgentIDLength)) + 4 + 8 + 8 + 1
)

// Account discriminators.
var (
	VaultDiscriminator          = accountDiscriminator("MemoryVault")
	ShardDiscriminator          = accountDiscriminator("MemoryShard")
	ProfileDiscriminator        = accountDiscriminator("AgentProfile")
	AccessGrantDiscriminator    = accountDiscriminator("AccessGrant")
	SharingGroupDiscriminator   = accountDiscriminator("SharingGroup")
	AccessLogDiscriminator      = accountDiscriminator("AccessLog")
	ProtocolConfigDiscriminator = accountDiscriminator("ProtocolConfig")
	BindingDiscriminator        = accountDiscriminator("IdentityMemoryBinding")
	RegistryDiscriminator       = accountDiscriminator("IdentityBindingRegistry")
)

// programAccount is a typed account body with its tag and allocation size.
type programAccount interface {
	encodable
	decodable
	discriminator() Discriminator
	size() int
}

func (*MemoryVault) discriminator() Discriminator             { return VaultDiscriminator }
func (*MemoryShard) discriminator() Discriminator             { return ShardDiscriminator }
func (*AgentProfile) discriminator() Discriminator            { return ProfileDiscriminator }
func (*AccessGrant) discriminator() Discriminator             { return AccessGrantDiscriminator }
func (*SharingGroup) discriminator() Discriminator            { return SharingGroupDiscriminator }
func (*AccessLog) discriminator() Discriminator               { return AccessLogDiscriminator }
func (*ProtocolConfig) discriminator() Discriminator          { return ProtocolConfigDiscriminator }
func (*IdentityMemoryBinding) discriminator() Discriminator   { return BindingDiscriminator }
func (*IdentityBindingRegistry) discriminator() Discriminator { return RegistryDiscriminator }

func (*MemoryVault) size() int             { return VaultSize }
func (*MemoryShard) size() int             { return ShardSize }
func (*AgentProfile) size() int            { return ProfileSize }
func (*AccessGrant) size() int             { return AccessGrantSize }
func (*SharingGroup) size() int            { return SharingGroupSize }
func (*AccessLog) size() int               { return AccessLogSize }
func (*ProtocolConfig) size() int          { return ProtocolConfigSize }
func (*IdentityMemoryBinding) size() int   { return BindingSize }
func (*IdentityBindingRegistry) size() int { return RegistrySize }

// EncodeAccount renders acct into a freshly allocated buffer of its account
// size.
func EncodeAccount(acct programAccount) ([]byte, error) {
	buf := make([]byte, acct.size())
	if err := encodeAccountInto(buf, acct); err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeAccountInto(dst []byte, acct programAccount) error {
	body, err := marshal(acct)
	if err != nil {
		return err
	}
	d := acct.discriminator()
	if len(d)+len(body) > len(dst) {
		return fmt.Errorf("agentmemory: encoded account needs %d bytes, have %d", len(d)+len(body), len(dst))
	}
	n := copy(dst, d[:])
	n += copy(dst[n:], body)
	clear(dst[n:])
	return nil
}

// DecodeAccount checks the discriminator of data and decodes the body into
// acct. Closed accounts are reported as ErrAccountClosed.
func DecodeAccount(data []byte, acct programAccount) error {
	if len(data) < 8 {
		return ErrAccountDiscriminatorMismatch
	}
	var d Discriminator
	copy(d[:], data[:8])
	if d == ClosedDiscriminator {
		return ErrAccountClosed
	}
	if d != acct.discriminator() {
		return ErrAccountDiscriminatorMismatch
	}
	if err := acct.UnmarshalWithDecoder(bin.NewBorshDecoder(data[8:])); err != nil {
		return fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	return nil
}

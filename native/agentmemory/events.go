package agentmemory

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"memchain/core/types"
)

const (
	EventTypeVaultInitialized           = "agentmemory.vault_initialized"
	EventTypeMemoryCreated              = "agentmemory.memory_created"
	EventTypeMemoryUpdated              = "agentmemory.memory_updated"
	EventTypeMemoryDeleted              = "agentmemory.memory_deleted"
	EventTypeMemoryRestored             = "agentmemory.memory_restored"
	EventTypeMemoryPermanentlyDeleted   = "agentmemory.memory_permanently_deleted"
	EventTypeMemoryRolledBack           = "agentmemory.memory_rolled_back"
	EventTypeBatchMemoryCreated         = "agentmemory.batch_memory_created"
	EventTypeBatchMemoryDeleted         = "agentmemory.batch_memory_deleted"
	EventTypeBatchTagsUpdated           = "agentmemory.batch_tags_updated"
	EventTypeProfileUpdated             = "agentmemory.profile_updated"
	EventTypeTaskCompleted              = "agentmemory.task_completed"
	EventTypeAccessGranted              = "agentmemory.access_granted"
	EventTypeAccessRevoked              = "agentmemory.access_revoked"
	EventTypeSharingGroupCreated        = "agentmemory.sharing_group_created"
	EventTypeGroupMemberAdded           = "agentmemory.group_member_added"
	EventTypeGroupMemberRemoved         = "agentmemory.group_member_removed"
	EventTypeMemoryAccessLogged         = "agentmemory.memory_access_logged"
	EventTypeTokensStaked               = "agentmemory.tokens_staked"
	EventTypeTokensUnstaked             = "agentmemory.tokens_unstaked"
	EventTypeRewardsClaimed             = "agentmemory.rewards_claimed"
	EventTypeProtocolConfigInitialized  = "agentmemory.protocol_config_initialized"
	EventTypeProtocolConfigUpdated      = "agentmemory.protocol_config_updated"
	EventTypeProtocolPauseChanged       = "agentmemory.protocol_pause_changed"
	EventTypeAdminTransferred           = "agentmemory.admin_transferred"
	EventTypeRegistryInitialized        = "agentmemory.registry_initialized"
	EventTypeIdentityBound              = "agentmemory.identity_bound"
	EventTypeBindingVerified            = "agentmemory.binding_verified"
	EventTypeIdentityBindingRevoked     = "agentmemory.identity_binding_revoked"
	EventTypeIdentityBindingReactivated = "agentmemory.identity_binding_reactivated"
	EventTypeBindingSignatureRotated    = "agentmemory.binding_signature_rotated"
)

// Event is a program event. Attribute values are rendered as strings:
// public keys in base58, integers in base 10 and booleans as "true"/"false".
type Event struct {
	typ   string
	attrs map[string]string
}

func newEvent(typ string) *Event {
	return &Event{typ: typ, attrs: make(map[string]string)}
}

// EventType implements events.Event.
func (e *Event) EventType() string { return e.typ }

// Event implements events.Event.
func (e *Event) Event() *types.Event {
	attrs := make(map[string]string, len(e.attrs))
	for k, v := range e.attrs {
		attrs[k] = v
	}
	return &types.Event{Type: e.typ, Attributes: attrs}
}

// Attr returns a single attribute value.
func (e *Event) Attr(name string) string { return e.attrs[name] }

func (e *Event) key(name string, k solana.PublicKey) *Event {
	e.attrs[name] = k.String()
	return e
}

func (e *Event) str(name, v string) *Event {
	e.attrs[name] = v
	return e
}

func (e *Event) uint(name string, v uint64) *Event {
	e.attrs[name] = strconv.FormatUint(v, 10)
	return e
}

func (e *Event) int(name string, v int64) *Event {
	e.attrs[name] = strconv.FormatInt(v, 10)
	return e
}

func (e *Event) flag(name string, v bool) *Event {
	e.attrs[name] = strconv.FormatBool(v)
	return e
}

func (e *Event) at(ts int64) *Event { return e.int("timestamp", ts) }

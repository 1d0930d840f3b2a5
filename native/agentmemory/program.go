package agentmemory

import (
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// handler executes one instruction. data excludes the discriminator.
type handler func(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error

var handlers = map[Discriminator]handler{
	instructionDiscriminator(NameInitializeVault):          initializeVault,
	instructionDiscriminator(NameCreateMemory):             createMemory,
	instructionDiscriminator(NameUpdateMemory):             updateMemory,
	instructionDiscriminator(NameDeleteMemory):             deleteMemory,
	instructionDiscriminator(NameRestoreMemory):            restoreMemory,
	instructionDiscriminator(NamePermanentDeleteMemory):    permanentDeleteMemory,
	instructionDiscriminator(NameRollbackMemory):           rollbackMemory,
	instructionDiscriminator(NameBatchCreateMemories):      batchCreateMemories,
	instructionDiscriminator(NameBatchDeleteMemories):      batchDeleteMemories,
	instructionDiscriminator(NameBatchUpdateTags):          batchUpdateTags,
	instructionDiscriminator(NameLogMemoryAccess):          logMemoryAccess,
	instructionDiscriminator(NameUpdateProfile):            updateProfile,
	instructionDiscriminator(NameRecordTask):               recordTask,
	instructionDiscriminator(NameGrantAccess):              grantAccess,
	instructionDiscriminator(NameRevokeAccess):             revokeAccess,
	instructionDiscriminator(NameCreateSharingGroup):       createSharingGroup,
	instructionDiscriminator(NameAddGroupMember):           addGroupMember,
	instructionDiscriminator(NameRemoveGroupMember):        removeGroupMember,
	instructionDiscriminator(NameStakeForStorage):          stakeForStorage,
	instructionDiscriminator(NameUnstakeTokens):            unstakeTokens,
	instructionDiscriminator(NameClaimRewards):             claimRewards,
	instructionDiscriminator(NameInitializeProtocolConfig): initializeProtocolConfig,
	instructionDiscriminator(NameUpdateProtocolConfig):     updateProtocolConfig,
	instructionDiscriminator(NameSetProtocolPause):         setProtocolPause,
	instructionDiscriminator(NameTransferAdmin):            transferAdmin,
	instructionDiscriminator(NameInitializeRegistry):       initializeRegistry,
	instructionDiscriminator(NameBindIdentity):             bindIdentity,
	instructionDiscriminator(NameVerifyBinding):            verifyBinding,
	instructionDiscriminator(NameRevokeBinding):            revokeBinding,
	instructionDiscriminator(NameReactivateBinding):        reactivateBinding,
	instructionDiscriminator(NameRotateBindingSignature):   rotateBindingSignature,
}

// Program implements runtime.Program for agent memory vaults.
type Program struct{}

func (Program) ID() solana.PublicKey { return ProgramID }

func (Program) Name() string { return "agentmemory" }

func (Program) Process(ctx *runtime.InvokeContext, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) < 8 {
		return ErrInstructionFallbackNotFound
	}
	var d Discriminator
	copy(d[:], data[:8])
	h, ok := handlers[d]
	if !ok {
		return ErrInstructionFallbackNotFound
	}
	ctx.Logf("Instruction: %s", instructionNames[d])
	return h(ctx, &accountList{infos: accounts}, data[8:])
}

func now(ctx *runtime.InvokeContext) int64 { return ctx.Clock().UnixTimestamp }

// loadConfig loads the protocol config singleton.
func loadConfig(info *runtime.AccountInfo) (*ProtocolConfig, error) {
	cfg := new(ProtocolConfig)
	if err := load(info, cfg); err != nil {
		return nil, err
	}
	if err := verifyAddress(info, cfg.Bump, SeedConfig); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadActiveConfig loads the protocol config and rejects the call while the
// protocol is paused.
func loadActiveConfig(info *runtime.AccountInfo) (*ProtocolConfig, error) {
	cfg, err := loadConfig(info)
	if err != nil {
		return nil, err
	}
	if cfg.IsPaused {
		return nil, ErrProtocolPaused
	}
	return cfg, nil
}

// loadVault loads a vault and checks that owner controls it.
func loadVault(info *runtime.AccountInfo, owner solana.PublicKey) (*MemoryVault, error) {
	vault := new(MemoryVault)
	if err := load(info, vault); err != nil {
		return nil, err
	}
	if !vault.Owner.Equals(owner) {
		return nil, ErrUnauthorizedOwner
	}
	if err := verifyAddress(info, vault.Bump, SeedVault, vault.Owner[:], vault.AgentKey[:]); err != nil {
		return nil, err
	}
	return vault, nil
}

// loadAnyVault loads a vault without checking who controls it.
func loadAnyVault(info *runtime.AccountInfo) (*MemoryVault, error) {
	vault := new(MemoryVault)
	if err := load(info, vault); err != nil {
		return nil, err
	}
	if err := verifyAddress(info, vault.Bump, SeedVault, vault.Owner[:], vault.AgentKey[:]); err != nil {
		return nil, err
	}
	return vault, nil
}

// loadShard loads a shard of the vault at vaultKey.
func loadShard(info *runtime.AccountInfo, vaultKey solana.PublicKey) (*MemoryShard, error) {
	shard := new(MemoryShard)
	if err := load(info, shard); err != nil {
		return nil, err
	}
	if !shard.Vault.Equals(vaultKey) {
		return nil, ErrUnauthorizedOwner
	}
	if err := verifyAddress(info, shard.Bump, SeedMemory, shard.Vault[:], []byte(shard.Key)); err != nil {
		return nil, err
	}
	return shard, nil
}

package agentmemory

import (
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// initializeVault creates the vault of (owner, agent) together with the
// agent's empty profile.
func initializeVault(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args InitializeVaultArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	owner, err := accounts.nextSigner("owner", true)
	if err != nil {
		return err
	}
	agent, err := accounts.next("agent_key")
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	profileInfo, err := accounts.next("agent_profile")
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
	if _, err := loadActiveConfig(configInfo); err != nil {
		return err
	}

	vaultBump, err := initAccount(ctx, owner, vaultInfo, VaultSize, SeedVault, owner.Key[:], agent.Key[:])
	if err != nil {
		return err
	}
	profileBump, err := initAccount(ctx, owner, profileInfo, ProfileSize, SeedProfile, agent.Key[:])
	if err != nil {
		return err
	}

	ts := now(ctx)
	vault := &MemoryVault{
		Owner:            owner.Key,
		AgentKey:         agent.Key,
		EncryptionPubkey: args.EncryptionPubkey,
		CreatedAt:        ts,
		UpdatedAt:        ts,
		IsActive:         true,
		Bump:             vaultBump,
	}
	profile := &AgentProfile{
		AgentKey:  agent.Key,
		Owner:     owner.Key,
		Vault:     vaultInfo.Key,
		CreatedAt: ts,
		UpdatedAt: ts,
		Bump:      profileBump,
	}
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	if err := store(profileInfo, profile); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeVaultInitialized).
		key("vault", vaultInfo.Key).
		key("profile", profileInfo.Key).
		key("owner", owner.Key).
		key("agent_key", agent.Key).
		at(ts))
	return nil
}

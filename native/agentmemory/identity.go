package agentmemory

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// SignBinding produces the signature identity must present to bind itself to
// agentID.
func SignBinding(identity solana.PrivateKey, agentID string) (solana.Signature, error) {
	return identity.Sign(BindingMessage(identity.PublicKey(), agentID))
}

func verifyBindingSignature(identity solana.PublicKey, agentID string, sig solana.Signature) error {
	if !identity.Verify(BindingMessage(identity, agentID), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func loadRegistry(info *runtime.AccountInfo, identity solana.PublicKey) (*IdentityBindingRegistry, error) {
	registry := new(IdentityBindingRegistry)
	if err := load(info, registry); err != nil {
		return nil, err
	}
	if !registry.Identity.Equals(identity) {
		return nil, ErrRegistryNotInitialized
	}
	if err := verifyAddress(info, registry.Bump, SeedIdentityRegistry, registry.Identity[:]); err != nil {
		return nil, err
	}
	return registry, nil
}

func loadBinding(info *runtime.AccountInfo) (*IdentityMemoryBinding, error) {
	binding := new(IdentityMemoryBinding)
	if err := load(info, binding); err != nil {
		return nil, err
	}
	if err := verifyAddress(info, binding.Bump, SeedIdentityBinding, binding.Identity[:], []byte(binding.AgentID)); err != nil {
		return nil, err
	}
	return binding, nil
}

func initializeRegistry(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	payer, err := accounts.nextSigner("owner", true)
	if err != nil {
		return err
	}
	identity, err := accounts.next("identity")
	if err != nil {
		return err
	}
	registryInfo, err := accounts.next("registry")
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
	bump, err := initAccount(ctx, payer, registryInfo, RegistrySize, SeedIdentityRegistry, identity.Key[:])
	if err != nil {
		return err
	}
	ts := now(ctx)
	registry := &IdentityBindingRegistry{
		Identity:  identity.Key,
		CreatedAt: ts,
		UpdatedAt: ts,
		Bump:      bump,
	}
	if err := store(registryInfo, registry); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeRegistryInitialized).
		key("identity", identity.Key).
		key("registry", registryInfo.Key).
		at(ts))
	return nil
}

// bindIdentity binds identity to agentID for a vault. The signature must be
// the identity's signature over BindingMessage.
func bindIdentity(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args BindIdentityArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	payer, err := accounts.nextSigner("owner", true)
	if err != nil {
		return err
	}
	identity, err := accounts.next("identity")
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	bindingInfo, err := accounts.next("binding")
	if err != nil {
		return err
	}
	registryInfo, err := accounts.next("registry")
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
	if _, err := loadAnyVault(vaultInfo); err != nil {
		return err
	}
	registry, err := loadRegistry(registryInfo, identity.Key)
	if err != nil {
		if errors.Is(err, ErrAccountNotInitialized) {
			return ErrRegistryNotInitialized
		}
		return err
	}
	if err := requireWritable(registryInfo); err != nil {
		return err
	}
	if args.AgentID == "" || len(args.AgentID) > MaxAgentIDLength {
		return ErrInvalidAgentID
	}
	if err := verifyBindingSignature(identity.Key, args.AgentID, args.Signature); err != nil {
		return err
	}

	ts := now(ctx)
	if !registry.Contains(args.AgentID) {
		if len(registry.AgentIDs) >= MaxBindingsPerIdentity {
			return ErrMaxBindingsReached
		}
		active, err := checkedAdd32(registry.ActiveBindingCount, 1)
		if err != nil {
			return err
		}
		registry.AgentIDs = append(registry.AgentIDs, args.AgentID)
		registry.ActiveBindingCount = active
	}
	registry.UpdatedAt = ts

	bump, err := initAccount(ctx, payer, bindingInfo, BindingSize, SeedIdentityBinding, identity.Key[:], []byte(args.AgentID))
	if err != nil {
		return err
	}
	binding := &IdentityMemoryBinding{
		Identity:         identity.Key,
		AgentID:          args.AgentID,
		BindingSignature: args.Signature,
		BoundAt:          ts,
		Vault:            vaultInfo.Key,
		Version:          1,
		Bump:             bump,
	}
	if err := store(bindingInfo, binding); err != nil {
		return err
	}
	if err := store(registryInfo, registry); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeIdentityBound).
		key("identity", identity.Key).
		str("agent_id", args.AgentID).
		key("binding", bindingInfo.Key).
		key("vault", vaultInfo.Key).
		at(ts))
	return nil
}

// verifyBinding reports through the return data whether a binding is live
// and carries a valid signature: 1 if so, 0 otherwise.
func verifyBinding(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	bindingInfo, err := accounts.next("binding")
	if err != nil {
		return err
	}
	binding, err := loadBinding(bindingInfo)
	if err != nil {
		return err
	}
	valid := !binding.Revoked && binding.VerifyOwnership()
	if valid {
		ctx.SetReturnData([]byte{1})
	} else {
		ctx.SetReturnData([]byte{0})
	}
	ctx.Emit(newEvent(EventTypeBindingVerified).
		key("identity", binding.Identity).
		str("agent_id", binding.AgentID).
		key("binding", bindingInfo.Key).
		flag("valid", valid).
		at(now(ctx)))
	return nil
}

func revokeBinding(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return err
	}
	bindingInfo, err := accounts.next("binding")
	if err != nil {
		return err
	}
	registryInfo, err := accounts.next("registry")
	if err != nil {
		return err
	}
	binding, err := loadBinding(bindingInfo)
	if err != nil {
		return err
	}
	if !binding.Identity.Equals(owner.Key) {
		return ErrUnauthorizedRevocation
	}
	registry, err := loadRegistry(registryInfo, binding.Identity)
	if err != nil {
		return err
	}
	if err := requireWritable(bindingInfo); err != nil {
		return err
	}
	if err := requireWritable(registryInfo); err != nil {
		return err
	}
	if binding.Revoked {
		return ErrAlreadyRevoked
	}
	ts := now(ctx)
	binding.Revoked = true
	binding.RevokedAt = &ts
	if registry.ActiveBindingCount > 0 {
		registry.ActiveBindingCount--
	}
	registry.UpdatedAt = ts
	if err := store(bindingInfo, binding); err != nil {
		return err
	}
	if err := store(registryInfo, registry); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeIdentityBindingRevoked).
		key("identity", binding.Identity).
		str("agent_id", binding.AgentID).
		key("binding", bindingInfo.Key).
		at(ts))
	return nil
}

// loadIdentityBinding consumes [owner, identity, binding] and requires the
// signer to be the bound identity. unauthorized is returned otherwise.
func loadIdentityBinding(accounts *accountList, unauthorized error) (*runtime.AccountInfo, *IdentityMemoryBinding, error) {
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return nil, nil, err
	}
	identity, err := accounts.next("identity")
	if err != nil {
		return nil, nil, err
	}
	bindingInfo, err := accounts.next("binding")
	if err != nil {
		return nil, nil, err
	}
	binding, err := loadBinding(bindingInfo)
	if err != nil {
		return nil, nil, err
	}
	if !binding.Identity.Equals(owner.Key) || !identity.Key.Equals(binding.Identity) {
		return nil, nil, unauthorized
	}
	if err := requireWritable(bindingInfo); err != nil {
		return nil, nil, err
	}
	return bindingInfo, binding, nil
}

// reactivateBinding revives a revoked binding with a fresh signature and
// bumps its version.
func reactivateBinding(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args signatureArg
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	bindingInfo, binding, err := loadIdentityBinding(accounts, ErrUnauthorizedReactivation)
	if err != nil {
		return err
	}
	registryInfo, err := accounts.next("registry")
	if err != nil {
		return err
	}
	registry, err := loadRegistry(registryInfo, binding.Identity)
	if err != nil {
		return err
	}
	if err := requireWritable(registryInfo); err != nil {
		return err
	}
	if err := verifyBindingSignature(binding.Identity, binding.AgentID, args.Signature); err != nil {
		return err
	}
	if !binding.Revoked {
		return ErrNotRevoked
	}
	version, err := checkedAdd32(binding.Version, 1)
	if err != nil {
		return err
	}
	active, err := checkedAdd32(registry.ActiveBindingCount, 1)
	if err != nil {
		return err
	}
	ts := now(ctx)
	binding.Revoked = false
	binding.RevokedAt = nil
	binding.BindingSignature = args.Signature
	binding.Version = version
	binding.BoundAt = ts
	registry.ActiveBindingCount = active
	registry.UpdatedAt = ts
	if err := store(bindingInfo, binding); err != nil {
		return err
	}
	if err := store(registryInfo, registry); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeIdentityBindingReactivated).
		key("identity", binding.Identity).
		str("agent_id", binding.AgentID).
		key("binding", bindingInfo.Key).
		uint("new_version", uint64(version)).
		at(ts))
	return nil
}

// rotateBindingSignature replaces the stored signature and bumps the version.
func rotateBindingSignature(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args signatureArg
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	bindingInfo, binding, err := loadIdentityBinding(accounts, ErrUnauthorizedRotation)
	if err != nil {
		return err
	}
	if err := verifyBindingSignature(binding.Identity, binding.AgentID, args.Signature); err != nil {
		return err
	}
	version, err := checkedAdd32(binding.Version, 1)
	if err != nil {
		return err
	}
	ts := now(ctx)
	binding.BindingSignature = args.Signature
	binding.Version = version
	binding.BoundAt = ts
	if err := store(bindingInfo, binding); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeBindingSignatureRotated).
		key("identity", binding.Identity).
		str("agent_id", binding.AgentID).
		key("binding", bindingInfo.Key).
		uint("new_version", uint64(version)).
		at(ts))
	return nil
}

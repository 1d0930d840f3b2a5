package agentmemory

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"memchain/core/runtime"
	"memchain/native/token"
)

// tokenAccount decodes a token account owned by holder.
func tokenAccount(info *runtime.AccountInfo, holder solana.PublicKey) (*token.Account, error) {
	if !info.IsOwnedBy(token.ProgramID) {
		return nil, fmt.Errorf("%w: %s not owned by the token program", ErrInvalidTokenAccount, info.Key)
	}
	acct, err := token.DecodeAccount(info.Data)
	if err != nil || !acct.IsInitialized {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTokenAccount, info.Key)
	}
	if !acct.Owner.Equals(holder) {
		return nil, fmt.Errorf("%w: %s held by %s", ErrInvalidTokenAccount, info.Key, acct.Owner)
	}
	return acct, nil
}

// rewardPoints accrues amount * rate / RewardRateDenominator points.
func rewardPoints(amount uint64, rate uint32) (uint32, error) {
	points := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(rate)))
	points.Div(points, uint256.NewInt(RewardRateDenominator))
	if !points.IsUint64() || points.Uint64() > math.MaxUint32 {
		return 0, ErrOverflow
	}
	return uint32(points.Uint64()), nil
}

// MinimumStake is the stake a vault must keep for totalSize live bytes.
func MinimumStake(totalSize, perByte uint64) (uint64, error) {
	floor, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(totalSize), uint256.NewInt(perByte))
	if overflow || !floor.IsUint64() {
		return 0, ErrOverflow
	}
	return floor.Uint64(), nil
}

// stakeForStorage moves amount tokens from the owner's token account into the
// vault token account, creating the latter on first stake.
func stakeForStorage(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args amountArg
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
	ownerTokens, err := accounts.next("owner_token_account")
	if err != nil {
		return err
	}
	vaultTokens, err := accounts.next("vault_token_account")
	if err != nil {
		return err
	}
	mintInfo, err := accounts.next("mint")
	if err != nil {
		return err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return err
	}
	tokenProgram, err := accounts.next("token_program")
	if err != nil {
		return err
	}
	system, err := accounts.next("system_program")
	if err != nil {
		return err
	}
	if err := requireProgram(tokenProgram, token.ProgramID); err != nil {
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
	if args.Amount == 0 {
		return ErrInvalidStakeAmount
	}
	src, err := tokenAccount(ownerTokens, owner.Key)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(mintInfo.Key) {
		return fmt.Errorf("%w: owner account holds mint %s", ErrInvalidTokenAccount, src.Mint)
	}
	if src.Amount < args.Amount {
		return ErrInsufficientBalance
	}

	addr, bump, err := FindAddress(SeedVaultTokens, vaultInfo.Key[:])
	if err != nil || !vaultTokens.Key.Equals(addr) {
		return fmt.Errorf("%w: %s", ErrInvalidPDA, vaultTokens.Key)
	}
	if vaultTokens.IsOwnedBy(token.ProgramID) {
		dst, err := tokenAccount(vaultTokens, vaultInfo.Key)
		if err != nil {
			return err
		}
		if !dst.Mint.Equals(mintInfo.Key) {
			return fmt.Errorf("%w: vault account holds mint %s", ErrInvalidTokenAccount, dst.Mint)
		}
	} else {
		seeds := signerSeeds(bump, SeedVaultTokens, vaultInfo.Key[:])
		if err := createAt(ctx, owner, vaultTokens, token.ProgramID, token.AccountSize, seeds); err != nil {
			return err
		}
		if err := ctx.Invoke(token.InitializeAccountInstruction(vaultTokens.Key, mintInfo.Key, vaultInfo.Key)); err != nil {
			return err
		}
	}

	staked, err := checkedAdd(vault.StakedAmount, args.Amount)
	if err != nil {
		return err
	}
	accrued, err := rewardPoints(args.Amount, cfg.RewardRate)
	if err != nil {
		return err
	}
	points, err := checkedAdd32(vault.RewardPoints, accrued)
	if err != nil {
		return err
	}
	if err := ctx.Invoke(token.TransferInstruction(ownerTokens.Key, vaultTokens.Key, owner.Key, args.Amount)); err != nil {
		return err
	}

	ts := now(ctx)
	vault.StakedAmount = staked
	vault.RewardPoints = points
	vault.UpdatedAt = ts
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeTokensStaked).
		key("vault", vaultInfo.Key).
		key("owner", owner.Key).
		uint("amount", args.Amount).
		uint("total_staked", staked).
		at(ts))
	return nil
}

// unstakeTokens returns amount tokens to the owner as long as the remaining
// stake still covers the vault's live bytes.
func unstakeTokens(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args amountArg
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	vaultTokens, err := accounts.next("vault_token_account")
	if err != nil {
		return err
	}
	ownerTokens, err := accounts.next("owner_token_account")
	if err != nil {
		return err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return err
	}
	tokenProgram, err := accounts.next("token_program")
	if err != nil {
		return err
	}
	if err := requireProgram(tokenProgram, token.ProgramID); err != nil {
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
	if addr, _, err := FindAddress(SeedVaultTokens, vaultInfo.Key[:]); err != nil || !vaultTokens.Key.Equals(addr) {
		return fmt.Errorf("%w: %s", ErrInvalidPDA, vaultTokens.Key)
	}
	src, err := tokenAccount(vaultTokens, vaultInfo.Key)
	if err != nil {
		return err
	}
	dst, err := tokenAccount(ownerTokens, owner.Key)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: mint mismatch", ErrInvalidTokenAccount)
	}
	if args.Amount == 0 {
		return ErrInvalidUnstakeAmount
	}
	if args.Amount > vault.StakedAmount {
		return ErrInsufficientStake
	}
	remaining := vault.StakedAmount - args.Amount
	floor, err := MinimumStake(vault.TotalMemorySize, cfg.MinStakePerByte)
	if err != nil {
		return err
	}
	if remaining < floor {
		return ErrStakeBelowMinimum
	}

	seeds := signerSeeds(vault.Bump, SeedVault, vault.Owner[:], vault.AgentKey[:])
	if err := ctx.Invoke(token.TransferInstruction(vaultTokens.Key, ownerTokens.Key, vaultInfo.Key, args.Amount), seeds); err != nil {
		return err
	}
	ts := now(ctx)
	vault.StakedAmount = remaining
	vault.UpdatedAt = ts
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeTokensUnstaked).
		key("vault", vaultInfo.Key).
		key("owner", owner.Key).
		uint("amount", args.Amount).
		uint("remaining_stake", remaining).
		at(ts))
	return nil
}

// claimRewards pays out every accrued reward point by zeroing the counter.
func claimRewards(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return err
	}
	vaultInfo, err := accounts.next("vault")
	if err != nil {
		return err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return err
	}
	vault, err := loadVault(vaultInfo, owner.Key)
	if err != nil {
		return err
	}
	if err := requireWritable(vaultInfo); err != nil {
		return err
	}
	if _, err := loadActiveConfig(configInfo); err != nil {
		return err
	}
	if vault.RewardPoints == 0 {
		return ErrNoRewardsAvailable
	}
	ts := now(ctx)
	points := vault.RewardPoints
	vault.RewardPoints = 0
	vault.UpdatedAt = ts
	if err := store(vaultInfo, vault); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeRewardsClaimed).
		key("vault", vaultInfo.Key).
		key("owner", owner.Key).
		uint("points", uint64(points)).
		at(ts))
	return nil
}

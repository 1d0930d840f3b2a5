package agentmemory

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"memchain/native/token"
)

// stakeSetup mints supply tokens into a fresh token account held by the
// vault owner.
type stakeSetup struct {
	mint        solana.PublicKey
	ownerTokens solana.PublicKey
	vaultTokens solana.PublicKey
}

func (f *fixture) newStake(t *testing.T, v *agentVault, supply uint64) *stakeSetup {
	t.Helper()
	mint := newKeypair(t)
	ownerTokens := newKeypair(t)
	rent := f.rt.Rent()
	payer := f.payer.PublicKey()

	ixs := token.CreateMintInstructions(rent, payer, mint.PublicKey(), payer, 6)
	ixs = append(ixs, token.CreateAccountInstructions(rent, payer, ownerTokens.PublicKey(), mint.PublicKey(), v.owner.PublicKey())...)
	ixs = append(ixs, token.MintToInstruction(mint.PublicKey(), ownerTokens.PublicKey(), payer, supply))
	f.mustSend(t, []solana.PrivateKey{mint, ownerTokens}, ixs...)

	vaultTokens, _ := VaultTokenAddress(v.vault)
	return &stakeSetup{mint: mint.PublicKey(), ownerTokens: ownerTokens.PublicKey(), vaultTokens: vaultTokens}
}

func (f *fixture) tokenBalance(t *testing.T, key solana.PublicKey) uint64 {
	t.Helper()
	raw, err := f.ledger.GetAccount(key)
	require.NoError(t, err)
	acct, err := token.DecodeAccount(raw.Data)
	require.NoError(t, err)
	return acct.Amount
}

func TestStakeAndUnstake(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()
	s := f.newStake(t, v, 5_000)
	f.createMemory(t, v, "floor", 500)

	res := f.send(t, v.signers(), StakeForStorage(owner, v.vault, s.ownerTokens, s.mint, 0))
	require.ErrorIs(t, res.Err, ErrInvalidStakeAmount)
	res = f.send(t, v.signers(), StakeForStorage(owner, v.vault, s.ownerTokens, s.mint, 5_001))
	require.ErrorIs(t, res.Err, ErrInsufficientBalance)

	res = f.mustSend(t, v.signers(), StakeForStorage(owner, v.vault, s.ownerTokens, s.mint, 1_000))
	require.Equal(t, "1000", findEvent(t, res, EventTypeTokensStaked).Attr("total_staked"))
	require.EqualValues(t, 4_000, f.tokenBalance(t, s.ownerTokens))
	require.EqualValues(t, 1_000, f.tokenBalance(t, s.vaultTokens))

	vault := f.vaultState(t, v)
	require.EqualValues(t, 1_000, vault.StakedAmount)
	require.EqualValues(t, 10, vault.RewardPoints)

	// 500 live bytes at one token per byte keep 500 tokens locked.
	res = f.send(t, v.signers(), UnstakeTokens(owner, v.vault, s.ownerTokens, 1_000))
	require.ErrorIs(t, res.Err, ErrStakeBelowMinimum)
	res = f.send(t, v.signers(), UnstakeTokens(owner, v.vault, s.ownerTokens, 1_001))
	require.ErrorIs(t, res.Err, ErrInsufficientStake)
	res = f.send(t, v.signers(), UnstakeTokens(owner, v.vault, s.ownerTokens, 0))
	require.ErrorIs(t, res.Err, ErrInvalidUnstakeAmount)

	res = f.mustSend(t, v.signers(), UnstakeTokens(owner, v.vault, s.ownerTokens, 400))
	require.Equal(t, "600", findEvent(t, res, EventTypeTokensUnstaked).Attr("remaining_stake"))
	require.EqualValues(t, 600, f.vaultState(t, v).StakedAmount)
	require.EqualValues(t, 4_400, f.tokenBalance(t, s.ownerTokens))
	require.EqualValues(t, 600, f.tokenBalance(t, s.vaultTokens))

	// A second stake reuses the vault token account.
	f.mustSend(t, v.signers(), StakeForStorage(owner, v.vault, s.ownerTokens, s.mint, 2_000))
	require.EqualValues(t, 2_600, f.vaultState(t, v).StakedAmount)
	require.EqualValues(t, 2_600, f.tokenBalance(t, s.vaultTokens))
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()
	s := f.newStake(t, v, 100_000)

	res := f.send(t, v.signers(), ClaimRewards(owner, v.vault))
	require.ErrorIs(t, res.Err, ErrNoRewardsAvailable)

	f.mustSend(t, v.signers(), StakeForStorage(owner, v.vault, s.ownerTokens, s.mint, 50_000))
	res = f.mustSend(t, v.signers(), ClaimRewards(owner, v.vault))
	require.Equal(t, "500", findEvent(t, res, EventTypeRewardsClaimed).Attr("points"))
	require.Zero(t, f.vaultState(t, v).RewardPoints)

	res = f.send(t, v.signers(), ClaimRewards(owner, v.vault))
	require.ErrorIs(t, res.Err, ErrNoRewardsAvailable)
}

func TestStakeRejectsForeignTokenAccount(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	other := f.newVault(t)
	s := f.newStake(t, other, 1_000)

	res := f.send(t, v.signers(), StakeForStorage(v.owner.PublicKey(), v.vault, s.ownerTokens, s.mint, 10))
	require.ErrorIs(t, res.Err, ErrInvalidTokenAccount)
}

func TestRewardPoints(t *testing.T) {
	points, err := rewardPoints(1_000, 100)
	require.NoError(t, err)
	require.EqualValues(t, 10, points)

	points, err = rewardPoints(99, 100)
	require.NoError(t, err)
	require.Zero(t, points)

	_, err = rewardPoints(^uint64(0), 10_000)
	require.ErrorIs(t, err, ErrOverflow)

	floor, err := MinimumStake(500, 1)
	require.NoError(t, err)
	require.EqualValues(t, 500, floor)
	_, err = MinimumStake(^uint64(0), 2)
	require.ErrorIs(t, err, ErrOverflow)
}

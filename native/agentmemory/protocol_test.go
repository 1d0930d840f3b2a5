package agentmemory

import (
	"strconv"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestProtocolConfigSingleton(t *testing.T) {
	f := newFixture(t)
	cfg := f.config(t)
	require.Equal(t, f.admin.PublicKey(), cfg.Admin)
	require.EqualValues(t, 10, cfg.StorageFeePerByte)
	require.EqualValues(t, MaxBatchSize, cfg.MaxBatchSize)
	require.False(t, cfg.IsPaused)

	other := newKeypair(t)
	f.fund(t, other.PublicKey(), 1_000_000_000)
	res := f.send(t, []solana.PrivateKey{other}, InitializeProtocolConfig(other.PublicKey(), DefaultProtocolConfigParams()))
	require.Error(t, res.Err)
	require.Equal(t, f.admin.PublicKey(), f.config(t).Admin)
}

func TestProtocolConfigParamsValidate(t *testing.T) {
	params := DefaultProtocolConfigParams()
	require.NoError(t, params.Validate())

	bad := params
	bad.MaxBatchSize = MaxBatchSize + 1
	require.ErrorIs(t, bad.Validate(), ErrInvalidBatchSize)

	bad = params
	bad.MaxMemorySize = 0
	require.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = params
	bad.MaxKeyLength = MaxKeyLength + 1
	require.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestUpdateProtocolConfig(t *testing.T) {
	f := newFixture(t)
	admin := f.admin.PublicKey()
	signers := []solana.PrivateKey{f.admin}

	fee := uint64(3)
	rate := uint32(250)
	res := f.mustSend(t, signers, UpdateProtocolConfig(admin, ProtocolConfigUpdate{StorageFeePerByte: &fee, RewardRate: &rate}))
	fields := ConfigFieldStorageFee | ConfigFieldRewardRate
	require.Equal(t, strconv.FormatUint(uint64(fields), 10), findEvent(t, res, EventTypeProtocolConfigUpdated).Attr("updated_fields"))
	cfg := f.config(t)
	require.EqualValues(t, 3, cfg.StorageFeePerByte)
	require.EqualValues(t, 250, cfg.RewardRate)
	require.EqualValues(t, 1, cfg.MinStakePerByte)

	batch := uint32(0)
	res = f.send(t, signers, UpdateProtocolConfig(admin, ProtocolConfigUpdate{MaxBatchSize: &batch}))
	require.ErrorIs(t, res.Err, ErrInvalidBatchSize)
	size := uint32(MaxContentSize + 1)
	res = f.send(t, signers, UpdateProtocolConfig(admin, ProtocolConfigUpdate{MaxMemorySize: &size}))
	require.ErrorIs(t, res.Err, ErrInvalidConfig)

	intruder := newKeypair(t)
	res = f.send(t, []solana.PrivateKey{intruder}, UpdateProtocolConfig(intruder.PublicKey(), ProtocolConfigUpdate{StorageFeePerByte: &fee}))
	require.ErrorIs(t, res.Err, ErrUnauthorizedAdmin)
}

func TestPauseBlocksUserInstructions(t *testing.T) {
	f := newFixture(t)
	v := f.newVault(t)
	owner := v.owner.PublicKey()
	f.createMemory(t, v, "before", 10)

	intruder := newKeypair(t)
	res := f.send(t, []solana.PrivateKey{intruder}, SetProtocolPause(intruder.PublicKey(), true))
	require.ErrorIs(t, res.Err, ErrUnauthorizedAdmin)

	res = f.mustSend(t, []solana.PrivateKey{f.admin}, SetProtocolPause(f.admin.PublicKey(), true))
	require.Equal(t, "true", findEvent(t, res, EventTypeProtocolPauseChanged).Attr("paused"))
	require.True(t, f.config(t).IsPaused)

	res = f.send(t, v.signers(), CreateMemory(owner, v.vault, memoryInput("during", 10, 1)))
	require.ErrorIs(t, res.Err, ErrProtocolPaused)
	res = f.send(t, v.signers(), DeleteMemory(owner, v.vault, "before"))
	require.ErrorIs(t, res.Err, ErrProtocolPaused)
	res = f.send(t, v.signers(), RecordTask(owner, v.agent.PublicKey()))
	require.ErrorIs(t, res.Err, ErrProtocolPaused)

	// Admin instructions keep working while paused.
	fee := uint64(1)
	f.mustSend(t, []solana.PrivateKey{f.admin}, UpdateProtocolConfig(f.admin.PublicKey(), ProtocolConfigUpdate{StorageFeePerByte: &fee}))

	f.mustSend(t, []solana.PrivateKey{f.admin}, SetProtocolPause(f.admin.PublicKey(), false))
	f.createMemory(t, v, "during", 10)
	require.EqualValues(t, 2, f.vaultState(t, v).MemoryCount)
}

func TestTransferAdmin(t *testing.T) {
	f := newFixture(t)
	successor := newKeypair(t)

	res := f.mustSend(t, []solana.PrivateKey{f.admin}, TransferAdmin(f.admin.PublicKey(), successor.PublicKey()))
	ev := findEvent(t, res, EventTypeAdminTransferred)
	require.Equal(t, f.admin.PublicKey().String(), ev.Attr("old_admin"))
	require.Equal(t, successor.PublicKey().String(), ev.Attr("new_admin"))
	require.Equal(t, successor.PublicKey(), f.config(t).Admin)

	res = f.send(t, []solana.PrivateKey{f.admin}, SetProtocolPause(f.admin.PublicKey(), true))
	require.ErrorIs(t, res.Err, ErrUnauthorizedAdmin)
	f.mustSend(t, []solana.PrivateKey{successor}, SetProtocolPause(successor.PublicKey(), true))
}

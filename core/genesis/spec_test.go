package genesis

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"memchain/core/runtime"
	"memchain/core/state"
	"memchain/native/agentmemory"
	"memchain/native/token"
	"memchain/storage"
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = b
	return k
}

func sampleGenesis() string {
	return fmt.Sprintf(`genesisTime: "2024-01-01T00:00:00Z"
network: memchain-test
accounts:
  - pubkey: %s
    lamports: 5000000000
  - pubkey: %s
    lamports: 1000
mints:
  - address: %s
    decimals: 6
    authority: %s
    holders:
      - account: %s
        owner: %s
        amount: 700
      - account: %s
        owner: %s
        amount: 300
protocolConfig:
  admin: %s
  storageFeePerByte: 0
  rewardRate: 250
  paused: true
`, key(1), key(2), key(3), key(1), key(4), key(1), key(5), key(2), key(1))
}

func TestLoadGenesisSpecAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis()), 0o644))

	spec, err := LoadGenesisSpec(path)
	require.NoError(t, err)
	require.Equal(t, int64(1_704_067_200), spec.GenesisTimestamp().Unix())
	require.Equal(t, "memchain-test", spec.Network)

	ledger := state.NewLedger(storage.NewMemDB())
	rent := runtime.DefaultRent()
	root, err := Apply(spec, ledger, rent)
	require.NoError(t, err)
	require.NotZero(t, root)

	slot, err := ledger.Slot()
	require.NoError(t, err)
	require.EqualValues(t, 1, slot)

	payer, err := ledger.GetAccount(key(1))
	require.NoError(t, err)
	require.EqualValues(t, 5_000_000_000, payer.Lamports)
	require.Equal(t, solana.SystemProgramID, payer.Owner)

	mintAcct, err := ledger.GetAccount(key(3))
	require.NoError(t, err)
	require.Equal(t, token.ProgramID, mintAcct.Owner)
	require.Equal(t, rent.MinimumBalance(token.MintSize), mintAcct.Lamports)
	mint, err := token.DecodeMint(mintAcct.Data)
	require.NoError(t, err)
	require.EqualValues(t, 1000, mint.Supply)
	require.Equal(t, key(1), mint.MintAuthority)

	holderAcct, err := ledger.GetAccount(key(5))
	require.NoError(t, err)
	holder, err := token.DecodeAccount(holderAcct.Data)
	require.NoError(t, err)
	require.EqualValues(t, 300, holder.Amount)
	require.Equal(t, key(2), holder.Owner)
	require.Equal(t, key(3), holder.Mint)

	cfgAddr, bump := agentmemory.ConfigAddress()
	cfgAcct, err := ledger.GetAccount(cfgAddr)
	require.NoError(t, err)
	require.Equal(t, agentmemory.ProgramID, cfgAcct.Owner)
	cfg := new(agentmemory.ProtocolConfig)
	require.NoError(t, agentmemory.DecodeAccount(cfgAcct.Data, cfg))
	require.Equal(t, key(1), cfg.Admin)
	require.Zero(t, cfg.StorageFeePerByte)
	require.EqualValues(t, 250, cfg.RewardRate)
	require.EqualValues(t, agentmemory.MaxBatchSize, cfg.MaxBatchSize)
	require.True(t, cfg.IsPaused)
	require.Equal(t, bump, cfg.Bump)
	require.Equal(t, spec.GenesisTimestamp().Unix(), cfg.CreatedAt)

	_, err = Apply(spec, ledger, rent)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestApplyIsDeterministic(t *testing.T) {
	spec, err := ParseGenesisSpec([]byte(sampleGenesis()))
	require.NoError(t, err)

	a, err := Apply(spec, state.NewLedger(storage.NewMemDB()), runtime.DefaultRent())
	require.NoError(t, err)
	b, err := Apply(spec, state.NewLedger(storage.NewMemDB()), runtime.DefaultRent())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestParseGenesisSpecRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing time", "accounts: []\n", "genesisTime must be provided"},
		{"bad time", "genesisTime: yesterday\n", "invalid genesisTime"},
		{"unknown field", "genesisTime: \"2024-01-01T00:00:00Z\"\nvalidators: []\n", "decode"},
		{"bad key", "genesisTime: \"2024-01-01T00:00:00Z\"\naccounts:\n  - pubkey: nope\n    lamports: 1\n", "invalid address"},
		{"zero lamports", fmt.Sprintf("genesisTime: \"2024-01-01T00:00:00Z\"\naccounts:\n  - pubkey: %s\n    lamports: 0\n", key(1)), "greater than zero"},
		{"duplicate", fmt.Sprintf("genesisTime: \"2024-01-01T00:00:00Z\"\naccounts:\n  - pubkey: %s\n    lamports: 1\n  - pubkey: %s\n    lamports: 2\n", key(1), key(1)), "already used"},
		{"bad batch", fmt.Sprintf("genesisTime: \"2024-01-01T00:00:00Z\"\nprotocolConfig:\n  admin: %s\n  maxBatchSize: 99\n", key(1)), "protocolConfig"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGenesisSpec([]byte(tc.yaml))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestDefaultAdminFillsOnlyBlankAdmin(t *testing.T) {
	blank, err := ParseGenesisSpec([]byte("genesisTime: \"2024-01-01T00:00:00Z\"\nprotocolConfig:\n  paused: false\n"))
	require.NoError(t, err)
	require.True(t, blank.Admin().IsZero())
	_, err = Apply(blank, state.NewLedger(storage.NewMemDB()), runtime.DefaultRent())
	require.ErrorIs(t, err, ErrMissingAdmin)

	blank.DefaultAdmin(key(7))
	require.Equal(t, key(7), blank.Admin())
	_, err = Apply(blank, state.NewLedger(storage.NewMemDB()), runtime.DefaultRent())
	require.NoError(t, err)

	explicit, err := ParseGenesisSpec([]byte(sampleGenesis()))
	require.NoError(t, err)
	explicit.DefaultAdmin(key(7))
	require.Equal(t, key(1), explicit.Admin())
}

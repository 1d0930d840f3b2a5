package genesis

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
	"memchain/core/state"
	"memchain/core/types"
	"memchain/native/agentmemory"
	"memchain/native/token"
)

// ErrAlreadyInitialized is returned when genesis is applied to a ledger that
// has already committed a slot.
var ErrAlreadyInitialized = fmt.Errorf("genesis: ledger already initialized")

// ErrMissingAdmin is returned when a protocol config has no admin and no
// default was supplied.
var ErrMissingAdmin = fmt.Errorf("genesis: protocolConfig admin not set")

// Apply writes the genesis accounts into an empty ledger as slot 1 and returns
// the resulting state root. Program-owned accounts are funded at the rent
// exempt minimum.
func Apply(spec *GenesisSpec, ledger *state.Ledger, rent runtime.Rent) (common.Hash, error) {
	if spec == nil {
		return common.Hash{}, fmt.Errorf("genesis spec must not be nil")
	}
	if ledger == nil {
		return common.Hash{}, fmt.Errorf("ledger must not be nil")
	}
	if spec.genesisTimestamp.IsZero() {
		if err := spec.validate(); err != nil {
			return common.Hash{}, err
		}
	}
	slot, err := ledger.Slot()
	if err != nil {
		return common.Hash{}, err
	}
	if slot != 0 {
		return common.Hash{}, ErrAlreadyInitialized
	}

	overlay := ledger.Overlay()

	// 1) Prefunded system accounts, in file order.
	for _, acct := range spec.Accounts {
		overlay.Set(acct.key, &types.Account{Lamports: acct.Lamports, Owner: solana.SystemProgramID})
	}

	// 2) Mints and their holders.
	for _, mint := range spec.Mints {
		var supply uint64
		for _, holder := range mint.Holders {
			data, err := token.EncodeAccount(&token.Account{
				IsInitialized: true,
				Mint:          mint.key,
				Owner:         holder.owner,
				Amount:        holder.Amount,
			})
			if err != nil {
				return common.Hash{}, fmt.Errorf("mint %s holder %s: %w", mint.key, holder.account, err)
			}
			overlay.Set(holder.account, programAccount(rent, token.ProgramID, data))
			supply += holder.Amount
		}
		data, err := token.EncodeMint(&token.Mint{
			IsInitialized: true,
			Decimals:      mint.Decimals,
			MintAuthority: mint.authority,
			Supply:        supply,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("mint %s: %w", mint.key, err)
		}
		overlay.Set(mint.key, programAccount(rent, token.ProgramID, data))
	}

	// 3) Protocol config.
	if cfg := spec.ProtocolConfig; cfg != nil {
		if cfg.admin.IsZero() {
			return common.Hash{}, ErrMissingAdmin
		}
		addr, bump := agentmemory.ConfigAddress()
		ts := spec.genesisTimestamp.Unix()
		data, err := agentmemory.EncodeAccount(&agentmemory.ProtocolConfig{
			Admin:             cfg.admin,
			StorageFeePerByte: cfg.params.StorageFeePerByte,
			MinStakePerByte:   cfg.params.MinStakePerByte,
			MaxBatchSize:      cfg.params.MaxBatchSize,
			MaxMemorySize:     cfg.params.MaxMemorySize,
			MaxKeyLength:      cfg.params.MaxKeyLength,
			RewardRate:        cfg.params.RewardRate,
			CreatedAt:         ts,
			UpdatedAt:         ts,
			IsPaused:          cfg.Paused,
			Bump:              bump,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("protocol config: %w", err)
		}
		overlay.Set(addr, programAccount(rent, agentmemory.ProgramID, data))
	}

	if _, err := ledger.Commit(overlay, common.Hash{}); err != nil {
		return common.Hash{}, fmt.Errorf("commit genesis: %w", err)
	}
	return ledger.StateRoot()
}

func programAccount(rent runtime.Rent, owner solana.PublicKey, data []byte) *types.Account {
	return &types.Account{
		Lamports: rent.MinimumBalance(uint64(len(data))),
		Owner:    owner,
		Data:     data,
	}
}

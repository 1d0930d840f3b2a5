package agentmemory

import (
	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

func validateBatchSize(n uint32) error {
	if n == 0 || n > MaxBatchSize {
		return ErrInvalidBatchSize
	}
	return nil
}

func validateMemorySize(n uint32) error {
	if n == 0 || n > MaxContentSize {
		return ErrInvalidConfig
	}
	return nil
}

// Validate checks the parameters against the limits accounts are sized for.
func (p *ProtocolConfigParams) Validate() error {
	if err := validateBatchSize(p.MaxBatchSize); err != nil {
		return err
	}
	if err := validateMemorySize(p.MaxMemorySize); err != nil {
		return err
	}
	if p.MaxKeyLength == 0 || p.MaxKeyLength > MaxKeyLength {
		return ErrInvalidConfig
	}
	return nil
}

// initializeProtocolConfig creates the config singleton. The signer becomes
// its admin.
func initializeProtocolConfig(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var params ProtocolConfigParams
	if err := decodeArgs(data, &params); err != nil {
		return err
	}
	admin, err := accounts.nextSigner("admin", true)
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
	if err := params.Validate(); err != nil {
		return err
	}
	bump, err := initAccount(ctx, admin, configInfo, ProtocolConfigSize, SeedConfig)
	if err != nil {
		return err
	}
	ts := now(ctx)
	cfg := &ProtocolConfig{
		Admin:             admin.Key,
		StorageFeePerByte: params.StorageFeePerByte,
		MinStakePerByte:   params.MinStakePerByte,
		MaxBatchSize:      params.MaxBatchSize,
		MaxMemorySize:     params.MaxMemorySize,
		MaxKeyLength:      params.MaxKeyLength,
		RewardRate:        params.RewardRate,
		CreatedAt:         ts,
		UpdatedAt:         ts,
		Bump:              bump,
	}
	if err := store(configInfo, cfg); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeProtocolConfigInitialized).
		key("config", configInfo.Key).
		key("admin", admin.Key).
		at(ts))
	return nil
}

// loadAdminConfig consumes [admin, config] and requires the signer to be the
// current admin. Admin instructions work while the protocol is paused.
func loadAdminConfig(accounts *accountList) (*runtime.AccountInfo, *ProtocolConfig, error) {
	admin, err := accounts.nextSigner("admin", false)
	if err != nil {
		return nil, nil, err
	}
	info, err := accounts.next("protocol_config")
	if err != nil {
		return nil, nil, err
	}
	cfg := new(ProtocolConfig)
	if err := load(info, cfg); err != nil {
		return nil, nil, err
	}
	if !cfg.Admin.Equals(admin.Key) {
		return nil, nil, ErrUnauthorizedAdmin
	}
	if err := verifyAddress(info, cfg.Bump, SeedConfig); err != nil {
		return nil, nil, err
	}
	if err := requireWritable(info); err != nil {
		return nil, nil, err
	}
	return info, cfg, nil
}

func updateProtocolConfig(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var update ProtocolConfigUpdate
	if err := decodeArgs(data, &update); err != nil {
		return err
	}
	info, cfg, err := loadAdminConfig(accounts)
	if err != nil {
		return err
	}
	var fields uint8
	if update.StorageFeePerByte != nil {
		cfg.StorageFeePerByte = *update.StorageFeePerByte
		fields |= ConfigFieldStorageFee
	}
	if update.MinStakePerByte != nil {
		cfg.MinStakePerByte = *update.MinStakePerByte
		fields |= ConfigFieldMinStake
	}
	if update.MaxBatchSize != nil {
		if err := validateBatchSize(*update.MaxBatchSize); err != nil {
			return err
		}
		cfg.MaxBatchSize = *update.MaxBatchSize
		fields |= ConfigFieldMaxBatchSize
	}
	if update.MaxMemorySize != nil {
		if err := validateMemorySize(*update.MaxMemorySize); err != nil {
			return err
		}
		cfg.MaxMemorySize = *update.MaxMemorySize
		fields |= ConfigFieldMaxMemorySize
	}
	if update.RewardRate != nil {
		cfg.RewardRate = *update.RewardRate
		fields |= ConfigFieldRewardRate
	}
	ts := now(ctx)
	cfg.UpdatedAt = ts
	if err := store(info, cfg); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeProtocolConfigUpdated).
		key("config", info.Key).
		key("admin", cfg.Admin).
		uint("updated_fields", uint64(fields)).
		at(ts))
	return nil
}

func setProtocolPause(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args boolArg
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	info, cfg, err := loadAdminConfig(accounts)
	if err != nil {
		return err
	}
	ts := now(ctx)
	cfg.IsPaused = args.Value
	cfg.UpdatedAt = ts
	if err := store(info, cfg); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeProtocolPauseChanged).
		key("config", info.Key).
		key("admin", cfg.Admin).
		flag("paused", args.Value).
		at(ts))
	return nil
}

func transferAdmin(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args pubkeyArg
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	info, cfg, err := loadAdminConfig(accounts)
	if err != nil {
		return err
	}
	ts := now(ctx)
	old := cfg.Admin
	cfg.Admin = args.Key
	cfg.UpdatedAt = ts
	if err := store(info, cfg); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeAdminTransferred).
		key("config", info.Key).
		key("old_admin", old).
		key("new_admin", args.Key).
		at(ts))
	return nil
}

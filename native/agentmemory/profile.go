package agentmemory

import (
	"memchain/core/runtime"
)

// Bits reported in ProfileUpdated.UpdatedFields.
const (
	ProfileFieldName uint8 = 1 << iota
	ProfileFieldCapabilities
	ProfileFieldIsPublic
)

// loadProfileAccounts consumes [owner, profile, config].
func loadProfileAccounts(accounts *accountList) (*runtime.AccountInfo, *AgentProfile, error) {
	owner, err := accounts.nextSigner("owner", false)
	if err != nil {
		return nil, nil, err
	}
	info, err := accounts.next("agent_profile")
	if err != nil {
		return nil, nil, err
	}
	configInfo, err := accounts.next("protocol_config")
	if err != nil {
		return nil, nil, err
	}
	profile := new(AgentProfile)
	if err := load(info, profile); err != nil {
		return nil, nil, err
	}
	if !profile.Owner.Equals(owner.Key) {
		return nil, nil, ErrUnauthorizedOwner
	}
	if err := verifyAddress(info, profile.Bump, SeedProfile, profile.AgentKey[:]); err != nil {
		return nil, nil, err
	}
	if _, err := loadActiveConfig(configInfo); err != nil {
		return nil, nil, err
	}
	if err := requireWritable(info); err != nil {
		return nil, nil, err
	}
	return info, profile, nil
}

func validateCapabilities(caps []string) error {
	if len(caps) > MaxCapabilities {
		return ErrTooManyCapabilities
	}
	for _, c := range caps {
		if c == "" {
			return ErrEmptyCapability
		}
		if len(c) > MaxCapabilityLength {
			return ErrCapabilityTooLong
		}
	}
	return nil
}

func updateProfile(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	var args UpdateProfileArgs
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	info, profile, err := loadProfileAccounts(accounts)
	if err != nil {
		return err
	}

	var fields uint8
	if args.Name != nil {
		if *args.Name == "" {
			return ErrEmptyName
		}
		if len(*args.Name) > MaxNameLength {
			return ErrNameTooLong
		}
		profile.Name = *args.Name
		fields |= ProfileFieldName
	}
	if args.Capabilities != nil {
		if err := validateCapabilities(*args.Capabilities); err != nil {
			return err
		}
		profile.Capabilities = append([]string(nil), *args.Capabilities...)
		fields |= ProfileFieldCapabilities
	}
	if args.IsPublic != nil {
		profile.IsPublic = *args.IsPublic
		fields |= ProfileFieldIsPublic
	}
	ts := now(ctx)
	profile.UpdatedAt = ts
	if err := store(info, profile); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeProfileUpdated).
		key("profile", info.Key).
		key("agent_key", profile.AgentKey).
		uint("updated_fields", uint64(fields)).
		at(ts))
	return nil
}

// recordTask credits one completed task. At most one task per agent is
// accepted every TaskRateLimitSeconds.
func recordTask(ctx *runtime.InvokeContext, accounts *accountList, data []byte) error {
	info, profile, err := loadProfileAccounts(accounts)
	if err != nil {
		return err
	}
	ts := now(ctx)
	if profile.LastTaskAt != 0 && ts-profile.LastTaskAt < TaskRateLimitSeconds {
		return ErrTaskRateLimitExceeded
	}
	tasks, err := checkedAdd32(profile.TasksCompleted, 1)
	if err != nil {
		return err
	}
	reputation, err := checkedAdd32(profile.ReputationScore, ReputationPerTask)
	if err != nil {
		return err
	}
	profile.TasksCompleted = tasks
	profile.ReputationScore = min(reputation, MaxReputation)
	profile.LastTaskAt = ts
	profile.UpdatedAt = ts
	if err := store(info, profile); err != nil {
		return err
	}
	ctx.Emit(newEvent(EventTypeTaskCompleted).
		key("profile", info.Key).
		key("agent_key", profile.AgentKey).
		uint("tasks_completed", uint64(tasks)).
		uint("reputation_score", uint64(profile.ReputationScore)).
		at(ts))
	return nil
}

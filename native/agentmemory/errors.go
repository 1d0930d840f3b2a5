package agentmemory

import (
	"errors"
	"fmt"
)

// ProgramError is a typed program failure carrying a stable numeric code.
// Two ProgramErrors match under errors.Is when their codes are equal.
type ProgramError struct {
	Code uint32
	Name string
	Msg  string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("agentmemory: %s (%s, code %d)", e.Msg, e.Name, e.Code)
}

// Is matches another ProgramError by code.
func (e *ProgramError) Is(target error) bool {
	var pe *ProgramError
	if errors.As(target, &pe) {
		return pe.Code == e.Code
	}
	return false
}

func newError(code uint32, name, msg string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Msg: msg}
}

// ErrorCode extracts the program error code from err.
func ErrorCode(err error) (uint32, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// Account and instruction decoding failures use the framework code range.
var (
	ErrInstructionFallbackNotFound  = newError(101, "InstructionFallbackNotFound", "Fallback functions are not supported")
	ErrInstructionDidNotDeserialize = newError(102, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction")
	ErrAccountNotMutable            = newError(2000, "ConstraintMut", "A mut constraint was violated")
	ErrMissingSignature             = newError(2002, "MissingSignature", "A signer constraint was violated")
	ErrInvalidPDA                   = newError(2006, "ConstraintSeeds", "A seeds constraint was violated")
	ErrAccountDiscriminatorMismatch = newError(3002, "AccountDiscriminatorMismatch", "Account discriminator did not match what was expected")
	ErrAccountDidNotDeserialize     = newError(3003, "AccountDidNotDeserialize", "Failed to deserialize the account")
	ErrNotEnoughAccountKeys         = newError(3005, "AccountNotEnoughKeys", "Not enough account keys given to the instruction")
	ErrInvalidAccountOwner          = newError(3007, "InvalidAccountOwner", "The given account is owned by a different program than expected")
	ErrInvalidProgramID             = newError(3008, "InvalidProgramId", "Program ID was not as expected")
	ErrAccountNotInitialized        = newError(3012, "AccountNotInitialized", "The program expected this account to be already initialized")
)

var (
	ErrKeyTooLong             = newError(6000, "KeyTooLong", "Memory key too long (max 64 characters)")
	ErrContentTooLarge        = newError(6001, "ContentTooLarge", "Content too large (max 10MB)")
	ErrInvalidContentSize     = newError(6002, "InvalidContentSize", "Invalid content size (must be > 0)")
	ErrNameTooLong            = newError(6003, "NameTooLong", "Name too long (max 128 characters)")
	ErrTooManyCapabilities    = newError(6004, "TooManyCapabilities", "Too many capabilities (max 20)")
	ErrCapabilityTooLong      = newError(6005, "CapabilityTooLong", "Capability description too long (max 64 characters)")
	ErrAccessExpired          = newError(6006, "AccessExpired", "Access expired")
	ErrAccessNotGranted       = newError(6007, "AccessNotGranted", "Access not granted")
	ErrInvalidExpiration      = newError(6008, "InvalidExpiration", "Invalid expiration time (must be in the future)")
	ErrExpirationTooFar       = newError(6009, "ExpirationTooFar", "Expiration too far (max 1 year)")
	ErrInvalidImportance      = newError(6010, "InvalidImportance", "Invalid importance value (must be 0-100)")
	ErrMemoryAlreadyExists    = newError(6011, "MemoryAlreadyExists", "Memory shard already exists")
	ErrOverflow               = newError(6012, "Overflow", "Arithmetic overflow")
	ErrEmptyKey               = newError(6013, "EmptyKey", "Empty key not allowed")
	ErrEmptyName              = newError(6014, "EmptyName", "Empty name not allowed")
	ErrEmptyCapability        = newError(6015, "EmptyCapability", "Empty capability not allowed")
	ErrTaskRateLimitExceeded  = newError(6016, "TaskRateLimitExceeded", "Task rate limit exceeded (max 1 per minute)")
	ErrInvalidVersion         = newError(6017, "InvalidVersion", "Invalid version number")
	ErrInvalidRollbackVersion = newError(6018, "InvalidRollbackVersion", "Invalid rollback version")
	ErrVersionNotFound        = newError(6019, "VersionNotFound", "Version not found in history")
	ErrEmptyBatch             = newError(6020, "EmptyBatch", "Empty batch not allowed")
	ErrBatchTooLarge          = newError(6021, "BatchTooLarge", "Batch too large (max 10 items)")
	ErrMemoryNotDeleted       = newError(6022, "MemoryNotDeleted", "Memory not soft-deleted")
	ErrMemoryAlreadyDeleted   = newError(6023, "MemoryAlreadyDeleted", "Memory already deleted")
	ErrEmptyGroupName         = newError(6024, "EmptyGroupName", "Empty group name not allowed")
	ErrGroupNameTooLong       = newError(6025, "GroupNameTooLong", "Group name too long (max 64 characters)")
	ErrGroupDescTooLong       = newError(6026, "GroupDescTooLong", "Group description too long (max 256 characters)")
	ErrGroupTooLarge          = newError(6027, "GroupTooLarge", "Group too large (max 50 members)")
	ErrMemberAlreadyExists    = newError(6028, "MemberAlreadyExists", "Member already exists in group")
	ErrMemberNotFound         = newError(6029, "MemberNotFound", "Member not found in group")
	ErrNotGroupCreator        = newError(6030, "NotGroupCreator", "Not group creator")
	ErrCannotRemoveCreator    = newError(6031, "CannotRemoveCreator", "Cannot remove group creator")
	ErrInvalidStakeAmount     = newError(6032, "InvalidStakeAmount", "Invalid stake amount")
	ErrInvalidUnstakeAmount   = newError(6033, "InvalidUnstakeAmount", "Invalid unstake amount")
	ErrInsufficientStake      = newError(6034, "InsufficientStake", "Insufficient stake")
	ErrStakeBelowMinimum      = newError(6035, "StakeBelowMinimum", "Stake below minimum required for storage")
	ErrNoRewardsAvailable     = newError(6036, "NoRewardsAvailable", "No rewards available")
	ErrInvalidBatchSize       = newError(6037, "InvalidBatchSize", "Invalid batch size")
	ErrProtocolPaused         = newError(6038, "ProtocolPaused", "Program is currently paused")
	ErrUnauthorizedOwner      = newError(6039, "UnauthorizedOwner", "Unauthorized owner")
	ErrUnauthorizedAdmin      = newError(6040, "UnauthorizedAdmin", "Unauthorized admin")
	ErrInvalidTokenAccount    = newError(6041, "InvalidTokenAccount", "Invalid token account")
	ErrInsufficientBalance    = newError(6042, "InsufficientBalance", "Insufficient token balance")
	ErrCannotGrantToOwner     = newError(6043, "CannotGrantToOwner", "Cannot grant access to owner")
	ErrInvalidPermission      = newError(6044, "InvalidPermission", "Invalid access permission")
	ErrArithmeticOverflow     = newError(6045, "ArithmeticOverflow", "Arithmetic overflow occurred")
	ErrAccessAlreadyRevoked   = newError(6046, "AccessAlreadyRevoked", "Access already revoked")
	ErrInvalidConfig          = newError(6047, "InvalidConfig", "Protocol config value out of range")
)

// Identity binding failures.
var (
	ErrInvalidSignature         = newError(6100, "InvalidSignature", "Invalid signature")
	ErrUnauthorizedRevocation   = newError(6101, "UnauthorizedRevocation", "Unauthorized to revoke this binding")
	ErrUnauthorizedReactivation = newError(6102, "UnauthorizedReactivation", "Unauthorized to reactivate this binding")
	ErrUnauthorizedRotation     = newError(6103, "UnauthorizedRotation", "Unauthorized to rotate this binding's signature")
	ErrAlreadyRevoked           = newError(6104, "AlreadyRevoked", "Binding is already revoked")
	ErrNotRevoked               = newError(6105, "NotRevoked", "Binding is not revoked")
	ErrInvalidAgentID           = newError(6106, "InvalidAgentId", "Invalid agent ID (empty or too long)")
	ErrMaxBindingsReached       = newError(6107, "MaxBindingsReached", "Maximum number of bindings reached for this identity")
	ErrRegistryNotInitialized   = newError(6108, "RegistryNotInitialized", "Registry not initialized")
	ErrBindingNotFound          = newError(6109, "BindingNotFound", "Binding not found")
)

// Account lifecycle failures.
var (
	ErrAccountClosed    = newError(6200, "AccountClosed", "Account has been closed")
	ErrNonCanonicalBump = newError(6201, "NonCanonicalBump", "Stored bump is not the canonical bump for its seeds")
)

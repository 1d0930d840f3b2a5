package agentmemory

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
)

// accountList hands out the instruction accounts in order.
type accountList struct {
	infos []*runtime.AccountInfo
	pos   int
}

func (l *accountList) next(name string) (*runtime.AccountInfo, error) {
	if l.pos >= len(l.infos) {
		return nil, fmt.Errorf("%w: missing %s", ErrNotEnoughAccountKeys, name)
	}
	info := l.infos[l.pos]
	l.pos++
	return info, nil
}

// rest returns every account not consumed yet.
func (l *accountList) rest() []*runtime.AccountInfo {
	out := l.infos[l.pos:]
	l.pos = len(l.infos)
	return out
}

func requireSigner(info *runtime.AccountInfo) error {
	if !info.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingSignature, info.Key)
	}
	return nil
}

func requireWritable(info *runtime.AccountInfo) error {
	if !info.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotMutable, info.Key)
	}
	return nil
}

func requireProgram(info *runtime.AccountInfo, id solana.PublicKey) error {
	if !info.Key.Equals(id) {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidProgramID, id, info.Key)
	}
	return nil
}

// nextSigner takes the next account and requires its signature.
func (l *accountList) nextSigner(name string, writable bool) (*runtime.AccountInfo, error) {
	info, err := l.next(name)
	if err != nil {
		return nil, err
	}
	if err := requireSigner(info); err != nil {
		return nil, err
	}
	if writable {
		if err := requireWritable(info); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// load decodes a program owned account after checking owner and
// discriminator.
func load(info *runtime.AccountInfo, acct programAccount) error {
	if !info.IsOwnedBy(ProgramID) {
		if info.IsOwnedBy(solana.SystemProgramID) && info.Lamports == 0 && len(info.Data) == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotInitialized, info.Key)
		}
		return fmt.Errorf("%w: %s owned by %s", ErrInvalidAccountOwner, info.Key, info.Owner)
	}
	if err := DecodeAccount(info.Data, acct); err != nil {
		return fmt.Errorf("%w: %s", err, info.Key)
	}
	return nil
}

// store writes acct back into the account data.
func store(info *runtime.AccountInfo, acct programAccount) error {
	return encodeAccountInto(info.Data, acct)
}

// verifyAddress checks that info lives at the canonical address for seeds
// and that the bump recorded in the account is the canonical one.
func verifyAddress(info *runtime.AccountInfo, storedBump uint8, seeds ...[]byte) error {
	addr, bump, err := FindAddress(seeds...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPDA, err)
	}
	if storedBump != bump {
		return fmt.Errorf("%w: %s stores %d, canonical %d", ErrNonCanonicalBump, info.Key, storedBump, bump)
	}
	if !info.Key.Equals(addr) {
		return fmt.Errorf("%w: %s", ErrInvalidPDA, info.Key)
	}
	return nil
}

// initAccount allocates a program account at the canonical address for seeds,
// funded by payer, and returns the bump. A pre-funded system account is
// topped up, allocated and assigned; any other existing account is rejected.
func initAccount(ctx *runtime.InvokeContext, payer, target *runtime.AccountInfo, space int, seeds ...[]byte) (uint8, error) {
	if err := requireWritable(target); err != nil {
		return 0, err
	}
	addr, bump, err := FindAddress(seeds...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDA, err)
	}
	if !target.Key.Equals(addr) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPDA, target.Key)
	}
	if err := createAt(ctx, payer, target, ProgramID, uint64(space), signerSeeds(bump, seeds...)); err != nil {
		return 0, err
	}
	return bump, nil
}

// createAt creates target at a program address through the system program.
func createAt(ctx *runtime.InvokeContext, payer, target *runtime.AccountInfo, owner solana.PublicKey, space uint64, seeds [][]byte) error {
	rent := ctx.Rent().MinimumBalance(space)
	if target.Lamports == 0 {
		return ctx.Invoke(runtime.CreateAccountInstruction(payer.Key, target.Key, rent, space, owner), seeds)
	}
	if !target.IsOwnedBy(solana.SystemProgramID) || len(target.Data) > 0 {
		return fmt.Errorf("%w: %s", runtime.ErrAccountAlreadyInUse, target.Key)
	}
	if target.Lamports < rent {
		if err := ctx.Invoke(runtime.TransferInstruction(payer.Key, target.Key, rent-target.Lamports)); err != nil {
			return err
		}
	}
	if err := ctx.Invoke(runtime.AllocateInstruction(target.Key, space), seeds); err != nil {
		return err
	}
	return ctx.Invoke(runtime.AssignInstruction(target.Key, owner), seeds)
}

// closeAccount moves every lamport of info to dest and stamps the closed
// discriminator. The runtime drops the account at commit; if lamports are
// sent back before then the account survives but can never be loaded.
func closeAccount(info, dest *runtime.AccountInfo) error {
	if err := requireWritable(info); err != nil {
		return err
	}
	if err := requireWritable(dest); err != nil {
		return err
	}
	if dest.Lamports+info.Lamports < dest.Lamports {
		return ErrOverflow
	}
	dest.Lamports += info.Lamports
	info.Lamports = 0
	clear(info.Data)
	copy(info.Data, ClosedDiscriminator[:])
	return nil
}

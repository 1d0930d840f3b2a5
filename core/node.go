package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"memchain/core/events"
	"memchain/core/runtime"
	"memchain/core/state"
	"memchain/core/types"
	"memchain/indexer"
	"memchain/native/agentmemory"
	"memchain/native/token"
	"memchain/observability/metrics"
)

var (
	ErrAirdropDisabled = errors.New("node: airdrop disabled")
	ErrAirdropLimit    = errors.New("node: airdrop amount outside allowed range")
)

const indexTimeout = 10 * time.Second

// EventIndex receives every committed transaction.
type EventIndex interface {
	Record(ctx context.Context, entry indexer.Entry) error
}

// Options configures a Node. Zero values select defaults.
type Options struct {
	// LamportsPerSignature overrides the runtime fee when set; a pointer to
	// zero runs a fee-free network.
	LamportsPerSignature *uint64
	EnableAirdrop        bool
	AirdropMaxLamports   uint64
	Index                EventIndex
	Emitter              events.Emitter
	Metrics              *metrics.NodeMetrics
	Logger               *slog.Logger
	Now                  func() time.Time
}

// Node owns the ledger and executes transactions one at a time, which gives
// every transaction a total order by slot.
type Node struct {
	mu      sync.Mutex
	ledger  *state.Ledger
	rt      *runtime.Runtime
	index   EventIndex
	emitter events.Emitter
	metrics *metrics.NodeMetrics
	logger  *slog.Logger

	airdrop    bool
	airdropMax uint64
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	PublicKey solana.PublicKey
	Account   *types.Account
}

// NewNode builds a node over ledger with the token and agent memory programs
// registered.
func NewNode(ledger *state.Ledger, opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	rt := runtime.New(ledger)
	rt.Register(token.Program{})
	rt.Register(agentmemory.Program{})
	rt.SetLogger(logger.With(slog.String("component", "runtime")))
	if opts.LamportsPerSignature != nil {
		rt.SetLamportsPerSignature(*opts.LamportsPerSignature)
	}
	if opts.Now != nil {
		rt.SetNowFunc(opts.Now)
	}
	return &Node{
		ledger:     ledger,
		rt:         rt,
		index:      opts.Index,
		emitter:    emitter,
		metrics:    opts.Metrics,
		logger:     logger,
		airdrop:    opts.EnableAirdrop,
		airdropMax: opts.AirdropMaxLamports,
	}
}

// Runtime exposes the executor, mainly for rent queries.
func (n *Node) Runtime() *runtime.Runtime { return n.rt }

// SubmitTransaction executes tx and indexes the outcome. A non-nil error means
// the transaction was rejected and nothing was committed; instruction failures
// are reported through Result.Err.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*runtime.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	res, err := n.rt.Execute(tx)
	if err != nil {
		n.metrics.ObserveRejected()
		return nil, err
	}

	var (
		program string
		code    uint32
	)
	if res.Err != nil {
		if ixErr, ok := runtime.IsInstructionError(res.Err); ok {
			program = ixErr.Program
		}
		code, _ = agentmemory.ErrorCode(res.Err)
		n.logger.Info("transaction failed",
			slog.String("signature", res.Hash.Hex()),
			slog.Uint64("slot", res.Slot),
			slog.String("error", res.Err.Error()))
	} else {
		for _, ix := range tx.Message.Instructions {
			if p, ok := n.rt.Program(ix.ProgramID); ok {
				name := ""
				if ix.ProgramID.Equals(agentmemory.ProgramID) {
					name = agentmemory.InstructionName(ix.Data)
				}
				n.metrics.ObserveInstruction(p.Name(), name)
			}
		}
	}
	n.metrics.ObserveTransaction(res.Slot, res.Fee, res.Err != nil, program, code, time.Since(start))

	evts := make([]*types.Event, 0, len(res.Events))
	for _, evt := range res.Events {
		n.emitter.Emit(evt)
		n.metrics.ObserveEvent(evt.EventType())
		evts = append(evts, evt.Event())
	}

	if n.index != nil {
		entry := indexer.Entry{
			Hash:      res.Hash.Hex(),
			Slot:      res.Slot,
			FeePayer:  tx.Message.FeePayer.String(),
			Fee:       res.Fee,
			Err:       res.Err,
			ErrorCode: code,
			Timestamp: res.Timestamp,
			Events:    evts,
		}
		// The transaction is already committed, so indexing outlives the
		// caller's context. The ledger is authoritative; an index miss is
		// logged, not fatal.
		indexCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
		err := n.index.Record(indexCtx, entry)
		cancel()
		if err != nil {
			n.metrics.ObserveIndexError()
			n.logger.Error("index transaction",
				slog.String("signature", entry.Hash),
				slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// Airdrop credits lamports to key on networks that allow it and returns the
// committed slot.
func (n *Node) Airdrop(ctx context.Context, key solana.PublicKey, lamports uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !n.airdrop {
		return 0, ErrAirdropDisabled
	}
	if lamports == 0 || (n.airdropMax > 0 && lamports > n.airdropMax) {
		return 0, fmt.Errorf("%w: %d", ErrAirdropLimit, lamports)
	}
	if _, isProgram := n.rt.Program(key); isProgram {
		return 0, fmt.Errorf("node: cannot airdrop to program %s", key)
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	overlay := n.ledger.Overlay()
	acct, err := overlay.Get(key)
	if err != nil {
		return 0, err
	}
	if acct.Lamports+lamports < acct.Lamports {
		return 0, runtime.ErrArithmeticOverflow
	}
	acct.Lamports += lamports
	overlay.Set(key, acct)
	slot, err := n.ledger.Commit(overlay, common.Hash{})
	if err != nil {
		return 0, err
	}
	n.logger.Info("airdrop", slog.String("recipient", key.String()), slog.Uint64("lamports", lamports))
	return slot, nil
}

// GetAccount returns the account at key; missing accounts come back empty.
func (n *Node) GetAccount(key solana.PublicKey) (*types.Account, error) {
	return n.ledger.GetAccount(key)
}

// ProgramAccounts lists accounts owned by program whose data starts with
// prefix.
func (n *Node) ProgramAccounts(program solana.PublicKey, prefix []byte) ([]KeyedAccount, error) {
	var out []KeyedAccount
	err := n.ledger.ForEachAccount(func(key solana.PublicKey, acct *types.Account) bool {
		if !acct.Owner.Equals(program) || len(acct.Data) < len(prefix) {
			return true
		}
		for i := range prefix {
			if acct.Data[i] != prefix[i] {
				return true
			}
		}
		out = append(out, KeyedAccount{PublicKey: key, Account: acct})
		return true
	})
	return out, err
}

// Slot returns the latest committed slot.
func (n *Node) Slot() (uint64, error) { return n.ledger.Slot() }

// StateRoot hashes the current ledger.
func (n *Node) StateRoot() (common.Hash, error) { return n.ledger.StateRoot() }

// MinimumBalance is the rent exempt balance for dataLen bytes.
func (n *Node) MinimumBalance(dataLen uint64) uint64 {
	return n.rt.Rent().MinimumBalance(dataLen)
}

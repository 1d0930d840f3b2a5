package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"

	"memchain/core"
	"memchain/core/types"
	"memchain/indexer"
	"memchain/native/agentmemory"
)

type handlerFunc func(r *http.Request, params []json.RawMessage) (interface{}, *RPCError)

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"getHealth":                         s.handleGetHealth,
		"getSlot":                           s.handleGetSlot,
		"getStateRoot":                      s.handleGetStateRoot,
		"getAccountInfo":                    s.handleGetAccountInfo,
		"getProgramAccounts":                s.handleGetProgramAccounts,
		"getMinimumBalanceForRentExemption": s.handleGetMinimumBalance,
		"sendTransaction":                   s.handleSendTransaction,
		"requestAirdrop":                    s.handleRequestAirdrop,
		"getTransaction":                    s.handleGetTransaction,
		"getEvents":                         s.handleGetEvents,
		"agentmemory_getVault":              s.handleGetVault,
		"agentmemory_getMemory":             s.handleGetMemory,
		"agentmemory_getProtocolConfig":     s.handleGetProtocolConfig,
	}
}

// accountTypes maps the getProgramAccounts filter names onto discriminators.
var accountTypes = map[string]agentmemory.Discriminator{
	"vault":          agentmemory.VaultDiscriminator,
	"memory":         agentmemory.ShardDiscriminator,
	"profile":        agentmemory.ProfileDiscriminator,
	"accessGrant":    agentmemory.AccessGrantDiscriminator,
	"sharingGroup":   agentmemory.SharingGroupDiscriminator,
	"accessLog":      agentmemory.AccessLogDiscriminator,
	"protocolConfig": agentmemory.ProtocolConfigDiscriminator,
	"binding":        agentmemory.BindingDiscriminator,
	"registry":       agentmemory.RegistryDiscriminator,
}

func invalidParams(format string, args ...interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func serverError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: err.Error()}
}

func param(params []json.RawMessage, idx int, out interface{}) *RPCError {
	if idx >= len(params) {
		return invalidParams("missing parameter %d", idx)
	}
	if err := json.Unmarshal(params[idx], out); err != nil {
		return invalidParams("parameter %d: %v", idx, err)
	}
	return nil
}

func optionalParam(params []json.RawMessage, idx int, out interface{}) *RPCError {
	if idx >= len(params) || string(params[idx]) == "null" {
		return nil
	}
	return param(params, idx, out)
}

func pubkeyParam(params []json.RawMessage, idx int) (solana.PublicKey, *RPCError) {
	var raw string
	if err := param(params, idx, &raw); err != nil {
		return solana.PublicKey{}, err
	}
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(raw))
	if err != nil {
		return solana.PublicKey{}, invalidParams("parameter %d: invalid public key: %v", idx, err)
	}
	return key, nil
}

func (s *Server) handleGetHealth(*http.Request, []json.RawMessage) (interface{}, *RPCError) {
	return "ok", nil
}

func (s *Server) handleGetSlot(*http.Request, []json.RawMessage) (interface{}, *RPCError) {
	slot, err := s.node.Slot()
	if err != nil {
		return nil, serverError(err)
	}
	return slot, nil
}

func (s *Server) handleGetStateRoot(*http.Request, []json.RawMessage) (interface{}, *RPCError) {
	root, err := s.node.StateRoot()
	if err != nil {
		return nil, serverError(err)
	}
	return root.Hex(), nil
}

func (s *Server) handleGetAccountInfo(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	key, rpcErr := pubkeyParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, err := s.node.GetAccount(key)
	if err != nil {
		return nil, serverError(err)
	}
	if acct.IsEmpty() {
		return nil, nil
	}
	return newAccountResult(key, acct, false), nil
}

func (s *Server) handleGetProgramAccounts(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	program, rpcErr := pubkeyParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var filter struct {
		AccountType string `json:"accountType"`
	}
	if rpcErr := optionalParam(params, 1, &filter); rpcErr != nil {
		return nil, rpcErr
	}
	var prefix []byte
	if filter.AccountType != "" {
		if !program.Equals(agentmemory.ProgramID) {
			return nil, invalidParams("accountType filter only applies to %s", agentmemory.ProgramID)
		}
		disc, ok := accountTypes[filter.AccountType]
		if !ok {
			return nil, invalidParams("unknown accountType %q", filter.AccountType)
		}
		prefix = disc[:]
	}
	accounts, err := s.node.ProgramAccounts(program, prefix)
	if err != nil {
		return nil, serverError(err)
	}
	out := make([]*AccountResult, 0, len(accounts))
	for _, ka := range accounts {
		out = append(out, newAccountResult(ka.PublicKey, ka.Account, true))
	}
	return out, nil
}

func (s *Server) handleGetMinimumBalance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var size uint64
	if rpcErr := param(params, 0, &size); rpcErr != nil {
		return nil, rpcErr
	}
	return s.node.MinimumBalance(size), nil
}

func (s *Server) handleSendTransaction(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var tx types.Transaction
	if rpcErr := param(params, 0, &tx); rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.node.SubmitTransaction(r.Context(), &tx)
	if err != nil {
		return nil, &RPCError{Code: codeRejected, Message: "transaction rejected", Data: err.Error()}
	}
	return newTransactionResult(res), nil
}

func (s *Server) handleRequestAirdrop(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	key, rpcErr := pubkeyParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var lamports uint64
	if rpcErr := param(params, 1, &lamports); rpcErr != nil {
		return nil, rpcErr
	}
	slot, err := s.node.Airdrop(r.Context(), key, lamports)
	if err != nil {
		if errors.Is(err, core.ErrAirdropDisabled) || errors.Is(err, core.ErrAirdropLimit) {
			return nil, &RPCError{Code: codeRejected, Message: err.Error()}
		}
		return nil, serverError(err)
	}
	return slot, nil
}

func (s *Server) handleGetTransaction(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, &RPCError{Code: codeIndexerDisabled, Message: "indexer disabled"}
	}
	var hash string
	if rpcErr := param(params, 0, &hash); rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := s.index.Transaction(r.Context(), strings.TrimSpace(hash))
	if errors.Is(err, indexer.ErrNotFound) {
		return nil, &RPCError{Code: codeNotFound, Message: "transaction not found"}
	}
	if err != nil {
		return nil, serverError(err)
	}
	return newIndexedTransactionResult(rec), nil
}

func (s *Server) handleGetEvents(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.index == nil {
		return nil, &RPCError{Code: codeIndexerDisabled, Message: "indexer disabled"}
	}
	var filter indexer.Filter
	if rpcErr := optionalParam(params, 0, &filter); rpcErr != nil {
		return nil, rpcErr
	}
	if filter.Limit < 0 || filter.Limit > indexer.MaxLimit {
		return nil, invalidParams("limit must be between 0 and %d", indexer.MaxLimit)
	}
	records, err := s.index.Events(r.Context(), filter)
	if err != nil {
		return nil, serverError(err)
	}
	return newEventResults(records), nil
}

// programAccountData returns the data of an agent memory account, or
// codeNotFound when nothing lives at key.
func (s *Server) programAccountData(key solana.PublicKey) ([]byte, *RPCError) {
	acct, err := s.node.GetAccount(key)
	if err != nil {
		return nil, serverError(err)
	}
	if !acct.Owner.Equals(agentmemory.ProgramID) || len(acct.Data) == 0 {
		return nil, &RPCError{Code: codeNotFound, Message: fmt.Sprintf("account %s not found", key)}
	}
	return acct.Data, nil
}

func decodeError(key solana.PublicKey, err error) *RPCError {
	if errors.Is(err, agentmemory.ErrAccountClosed) {
		return &RPCError{Code: codeNotFound, Message: fmt.Sprintf("account %s is closed", key)}
	}
	return invalidParams("account %s: %v", key, err)
}

// handleGetVault accepts either [vault] or [owner, agent].
func (s *Server) handleGetVault(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	addr, rpcErr := pubkeyParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(params) > 1 {
		agent, rpcErr := pubkeyParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, _ = agentmemory.VaultAddress(addr, agent)
	}
	data, rpcErr := s.programAccountData(addr)
	if rpcErr != nil {
		return nil, rpcErr
	}
	vault := new(agentmemory.MemoryVault)
	if err := agentmemory.DecodeAccount(data, vault); err != nil {
		return nil, decodeError(addr, err)
	}
	return newVaultResult(addr, vault), nil
}

// handleGetMemory takes [vault, key].
func (s *Server) handleGetMemory(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	vault, rpcErr := pubkeyParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var key string
	if rpcErr := param(params, 1, &key); rpcErr != nil {
		return nil, rpcErr
	}
	addr, _ := agentmemory.MemoryAddress(vault, key)
	data, rpcErr := s.programAccountData(addr)
	if rpcErr != nil {
		return nil, rpcErr
	}
	shard := new(agentmemory.MemoryShard)
	if err := agentmemory.DecodeAccount(data, shard); err != nil {
		return nil, decodeError(addr, err)
	}
	return newMemoryResult(addr, shard), nil
}

func (s *Server) handleGetProtocolConfig(*http.Request, []json.RawMessage) (interface{}, *RPCError) {
	addr, _ := agentmemory.ConfigAddress()
	data, rpcErr := s.programAccountData(addr)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cfg := new(agentmemory.ProtocolConfig)
	if err := agentmemory.DecodeAccount(data, cfg); err != nil {
		return nil, decodeError(addr, err)
	}
	return newProtocolConfigResult(addr, cfg), nil
}

package rpc

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"

	"github.com/gagliardetto/solana-go"

	"memchain/core/runtime"
	"memchain/core/types"
	"memchain/indexer"
	"memchain/native/agentmemory"
)

// AccountResult is the raw view of a ledger account.
type AccountResult struct {
	PublicKey  string `json:"pubkey,omitempty"`
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Executable bool   `json:"executable"`
	Data       string `json:"data"`
	Space      int    `json:"space"`
}

func newAccountResult(key solana.PublicKey, acct *types.Account, withKey bool) *AccountResult {
	res := &AccountResult{
		Lamports:   acct.Lamports,
		Owner:      acct.Owner.String(),
		Executable: acct.Executable,
		Data:       base64.StdEncoding.EncodeToString(acct.Data),
		Space:      len(acct.Data),
	}
	if withKey {
		res.PublicKey = key.String()
	}
	return res
}

// TransactionResult summarises an executed transaction for RPC consumers.
type TransactionResult struct {
	Signature  string            `json:"signature"`
	Slot       uint64            `json:"slot"`
	Timestamp  int64             `json:"timestamp"`
	Fee        uint64            `json:"fee"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	ErrorCode  uint32            `json:"errorCode,omitempty"`
	Logs       []string          `json:"logs,omitempty"`
	Events     []*types.Event    `json:"events,omitempty"`
	ReturnData *ReturnDataResult `json:"returnData,omitempty"`
}

// ReturnDataResult carries the bytes a program set with set_return_data.
type ReturnDataResult struct {
	ProgramID string `json:"programId"`
	Data      string `json:"data"`
}

func newTransactionResult(res *runtime.Result) *TransactionResult {
	out := &TransactionResult{
		Signature: res.Hash.Hex(),
		Slot:      res.Slot,
		Timestamp: res.Timestamp,
		Fee:       res.Fee,
		Status:    "success",
		Logs:      res.Logs,
	}
	if res.Err != nil {
		out.Status = "failed"
		out.Error = res.Err.Error()
		out.ErrorCode, _ = agentmemory.ErrorCode(res.Err)
	}
	for _, evt := range res.Events {
		out.Events = append(out.Events, evt.Event())
	}
	if len(res.ReturnData) > 0 {
		out.ReturnData = &ReturnDataResult{
			ProgramID: res.ReturnFrom.String(),
			Data:      base64.StdEncoding.EncodeToString(res.ReturnData),
		}
	}
	return out
}

// IndexedTransactionResult is a transaction looked up from the indexer.
type IndexedTransactionResult struct {
	Signature  string `json:"signature"`
	Slot       uint64 `json:"slot"`
	Timestamp  int64  `json:"timestamp"`
	FeePayer   string `json:"feePayer"`
	Fee        uint64 `json:"fee"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ErrorCode  uint32 `json:"errorCode,omitempty"`
	EventCount int    `json:"eventCount"`
}

func newIndexedTransactionResult(rec *indexer.TransactionRecord) *IndexedTransactionResult {
	status := "success"
	if !rec.Succeeded {
		status = "failed"
	}
	return &IndexedTransactionResult{
		Signature:  rec.Hash,
		Slot:       rec.Slot,
		Timestamp:  rec.Timestamp,
		FeePayer:   rec.FeePayer,
		Fee:        rec.Fee,
		Status:     status,
		Error:      rec.Error,
		ErrorCode:  rec.ErrorCode,
		EventCount: rec.EventCount,
	}
}

// EventResult is one indexed program event.
type EventResult struct {
	ID         uint64            `json:"id"`
	Slot       uint64            `json:"slot"`
	Signature  string            `json:"signature"`
	Position   int               `json:"position"`
	Type       string            `json:"type"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

func newEventResults(records []indexer.EventRecord) []EventResult {
	out := make([]EventResult, 0, len(records))
	for _, rec := range records {
		out = append(out, EventResult{
			ID:         rec.ID,
			Slot:       rec.Slot,
			Signature:  rec.TxHash,
			Position:   rec.Position,
			Type:       rec.Type,
			Timestamp:  rec.Timestamp,
			Attributes: rec.Attributes,
		})
	}
	return out
}

// VaultResult is a decoded MemoryVault.
type VaultResult struct {
	Address          string `json:"address"`
	Owner            string `json:"owner"`
	AgentKey         string `json:"agentKey"`
	EncryptionPubkey string `json:"encryptionPubkey"`
	MemoryCount      uint32 `json:"memoryCount"`
	TotalMemorySize  uint64 `json:"totalMemorySize"`
	StakedAmount     uint64 `json:"stakedAmount"`
	RewardPoints     uint32 `json:"rewardPoints"`
	IsActive         bool   `json:"isActive"`
	CreatedAt        int64  `json:"createdAt"`
	UpdatedAt        int64  `json:"updatedAt"`
}

func newVaultResult(addr solana.PublicKey, v *agentmemory.MemoryVault) *VaultResult {
	return &VaultResult{
		Address:          addr.String(),
		Owner:            v.Owner.String(),
		AgentKey:         v.AgentKey.String(),
		EncryptionPubkey: hex.EncodeToString(v.EncryptionPubkey[:]),
		MemoryCount:      v.MemoryCount,
		TotalMemorySize:  v.TotalMemorySize,
		StakedAmount:     v.StakedAmount,
		RewardPoints:     v.RewardPoints,
		IsActive:         v.IsActive,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

// MetadataResult is the JSON form of MemoryMetadata.
type MetadataResult struct {
	MemoryType string `json:"memoryType"`
	Importance uint8  `json:"importance"`
	Tags       []int  `json:"tags"`
	IPFSCID    string `json:"ipfsCid,omitempty"`
}

func newMetadataResult(m agentmemory.MemoryMetadata) MetadataResult {
	tags := make([]int, len(m.Tags))
	for i, t := range m.Tags {
		tags[i] = int(t)
	}
	out := MetadataResult{MemoryType: m.MemoryType.String(), Importance: m.Importance, Tags: tags}
	if m.IPFSCID != nil {
		out.IPFSCID = string(bytes.TrimRight(m.IPFSCID[:], "\x00"))
	}
	return out
}

// VersionResult is one entry of a shard's version history.
type VersionResult struct {
	Version     uint32         `json:"version"`
	ContentHash string         `json:"contentHash"`
	ContentSize uint32         `json:"contentSize"`
	Metadata    MetadataResult `json:"metadata"`
	RecordedAt  int64          `json:"recordedAt"`
}

// MemoryResult is a decoded MemoryShard.
type MemoryResult struct {
	Address     string          `json:"address"`
	Vault       string          `json:"vault"`
	Key         string          `json:"key"`
	ContentHash string          `json:"contentHash"`
	ContentSize uint32          `json:"contentSize"`
	Metadata    MetadataResult  `json:"metadata"`
	Version     uint32          `json:"version"`
	IsDeleted   bool            `json:"isDeleted"`
	DeletedAt   *int64          `json:"deletedAt,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
	History     []VersionResult `json:"history"`
}

func newMemoryResult(addr solana.PublicKey, s *agentmemory.MemoryShard) *MemoryResult {
	out := &MemoryResult{
		Address:     addr.String(),
		Vault:       s.Vault.String(),
		Key:         s.Key,
		ContentHash: hex.EncodeToString(s.ContentHash[:]),
		ContentSize: s.ContentSize,
		Metadata:    newMetadataResult(s.Metadata),
		Version:     s.Version,
		IsDeleted:   s.IsDeleted,
		DeletedAt:   s.DeletedAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		History:     make([]VersionResult, 0, len(s.History)),
	}
	for _, entry := range s.History {
		out.History = append(out.History, VersionResult{
			Version:     entry.Version,
			ContentHash: hex.EncodeToString(entry.ContentHash[:]),
			ContentSize: entry.ContentSize,
			Metadata:    newMetadataResult(entry.Metadata),
			RecordedAt:  entry.RecordedAt,
		})
	}
	return out
}

// ProtocolConfigResult is the decoded protocol config singleton.
type ProtocolConfigResult struct {
	Address           string `json:"address"`
	Admin             string `json:"admin"`
	StorageFeePerByte uint64 `json:"storageFeePerByte"`
	MinStakePerByte   uint64 `json:"minStakePerByte"`
	MaxBatchSize      uint32 `json:"maxBatchSize"`
	MaxMemorySize     uint32 `json:"maxMemorySize"`
	MaxKeyLength      uint32 `json:"maxKeyLength"`
	RewardRate        uint32 `json:"rewardRate"`
	IsPaused          bool   `json:"isPaused"`
	UpdatedAt         int64  `json:"updatedAt"`
}

func newProtocolConfigResult(addr solana.PublicKey, c *agentmemory.ProtocolConfig) *ProtocolConfigResult {
	return &ProtocolConfigResult{
		Address:           addr.String(),
		Admin:             c.Admin.String(),
		StorageFeePerByte: c.StorageFeePerByte,
		MinStakePerByte:   c.MinStakePerByte,
		MaxBatchSize:      c.MaxBatchSize,
		MaxMemorySize:     c.MaxMemorySize,
		MaxKeyLength:      c.MaxKeyLength,
		RewardRate:        c.RewardRate,
		IsPaused:          c.IsPaused,
		UpdatedAt:         c.UpdatedAt,
	}
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"memchain/core/types"
	"memchain/indexer"
)

// Client calls a memchain JSON-RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// NewClient returns a client for endpoint. A nil httpClient uses a client
// with a 30 second timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Call invokes method with positional params and decodes the result into out.
// A JSON-RPC error comes back as *RPCError.
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("rpc: encode %s params: %w", method, err)
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  raw,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("rpc: read %s response: %w", method, err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("rpc: %s: status %d: %w", method, resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.Call(ctx, "getSlot", &slot)
	return slot, err
}

// GetAccountInfo returns nil when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, key solana.PublicKey) (*AccountResult, error) {
	var out *AccountResult
	err := c.Call(ctx, "getAccountInfo", &out, key.String())
	return out, err
}

func (c *Client) GetMinimumBalance(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	err := c.Call(ctx, "getMinimumBalanceForRentExemption", &lamports, size)
	return lamports, err
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*TransactionResult, error) {
	out := new(TransactionResult)
	if err := c.Call(ctx, "sendTransaction", out, tx); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RequestAirdrop(ctx context.Context, key solana.PublicKey, lamports uint64) (uint64, error) {
	var slot uint64
	err := c.Call(ctx, "requestAirdrop", &slot, key.String(), lamports)
	return slot, err
}

func (c *Client) GetVault(ctx context.Context, vault solana.PublicKey) (*VaultResult, error) {
	out := new(VaultResult)
	if err := c.Call(ctx, "agentmemory_getVault", out, vault.String()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMemory(ctx context.Context, vault solana.PublicKey, key string) (*MemoryResult, error) {
	out := new(MemoryResult)
	if err := c.Call(ctx, "agentmemory_getMemory", out, vault.String(), key); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEvents(ctx context.Context, filter indexer.Filter) ([]EventResult, error) {
	var out []EventResult
	err := c.Call(ctx, "getEvents", &out, filter)
	return out, err
}

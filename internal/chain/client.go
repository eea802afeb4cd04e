// Package chain provides the remote ledger RPC client: balance lookups,
// blockhash fetches, and signature status queries used by the transaction
// pipeline.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/solsnap/walletcore/internal/app/metrics"
	"github.com/solsnap/walletcore/internal/solana"
)

// ErrNetwork wraps transport-level failures: the request never produced a
// ledger verdict, so callers must treat the outcome as indeterminate rather
// than failed.
var ErrNetwork = errors.New("network error")

// Client is a JSON-RPC client for the remote ledger.
type Client struct {
	rpcURL     string
	commitment string
	httpClient *http.Client
	limiter    *rate.Limiter
	nextID     atomic.Int64
}

// Config holds client configuration.
type Config struct {
	RPCURL     string
	Commitment string // defaults to "confirmed"
	Timeout    time.Duration
	// RequestsPerSecond bounds outbound RPC traffic. Zero selects the
	// default of 10.
	RequestsPerSecond float64
}

// NewClient creates a ledger RPC client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		rpcURL:     cfg.RPCURL,
		commitment: commitment,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)*2),
	}, nil
}

// Call makes a JSON-RPC call to the ledger node.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	result, err := c.call(ctx, method, params)
	metrics.ObserveRPCRequest(method, err)
	return result, err
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      int(c.nextID.Add(1)),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: execute %s: %v", ErrNetwork, method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrNetwork, method, err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal %s response: %v", ErrNetwork, method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// GetBalance returns the lamport balance for an address.
func (c *Client) GetBalance(ctx context.Context, addr solana.Address) (uint64, error) {
	result, err := c.Call(ctx, "getBalance", []interface{}{
		addr.String(),
		map[string]string{"commitment": c.commitment},
	})
	if err != nil {
		return 0, err
	}
	var parsed balanceResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return 0, fmt.Errorf("parse balance: %w", err)
	}
	return parsed.Value, nil
}

// GetLatestBlockhash returns a fresh blockhash and its validity deadline.
func (c *Client) GetLatestBlockhash(ctx context.Context) (LatestBlockhash, error) {
	result, err := c.Call(ctx, "getLatestBlockhash", []interface{}{
		map[string]string{"commitment": c.commitment},
	})
	if err != nil {
		return LatestBlockhash{}, err
	}
	var parsed latestBlockhashResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return LatestBlockhash{}, fmt.Errorf("parse latest blockhash: %w", err)
	}
	return LatestBlockhash{
		Blockhash:            parsed.Value.Blockhash,
		LastValidBlockHeight: parsed.Value.LastValidBlockHeight,
		Slot:                 parsed.Context.Slot,
	}, nil
}

// GetBlockHeight returns the current block height.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "getBlockHeight", []interface{}{
		map[string]string{"commitment": c.commitment},
	})
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := json.Unmarshal(result, &height); err != nil {
		return 0, fmt.Errorf("parse block height: %w", err)
	}
	return height, nil
}

// GetSignatureStatus returns the status of a submitted transaction, or nil
// when the ledger does not know the signature. searchHistory widens the
// lookup beyond the recent status cache and is used for reconciliation after
// an indeterminate confirmation.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string, searchHistory bool) (*SignatureStatus, error) {
	result, err := c.Call(ctx, "getSignatureStatuses", []interface{}{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": searchHistory},
	})
	if err != nil {
		return nil, err
	}
	var parsed signatureStatusesResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("parse signature statuses: %w", err)
	}
	if len(parsed.Value) == 0 {
		return nil, nil
	}
	return parsed.Value[0], nil
}

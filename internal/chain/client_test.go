package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solsnap/walletcore/internal/solana"
)

const testAddress = "WTCyq1nqnpmMaha3MxpQEstauF3t4jeezX6PvvQivd8"

// rpcServer returns a test node answering each method with a canned result.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, result)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(Config{RPCURL: url})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClient_GetBalance(t *testing.T) {
	server := rpcServer(t, map[string]string{
		"getBalance": `{"context":{"slot":100},"value":1000000000}`,
	})
	defer server.Close()

	addr, err := solana.DecodeAddress(testAddress)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}

	balance, err := newTestClient(t, server.URL).GetBalance(context.Background(), addr)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != 1_000_000_000 {
		t.Fatalf("balance %d, want 1000000000", balance)
	}
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":2792},"value":{"blockhash":"GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W","lastValidBlockHeight":3090}}`,
	})
	defer server.Close()

	latest, err := newTestClient(t, server.URL).GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("get latest blockhash: %v", err)
	}
	if latest.Blockhash != "GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W" {
		t.Fatalf("unexpected blockhash %q", latest.Blockhash)
	}
	if latest.LastValidBlockHeight != 3090 || latest.Slot != 2792 {
		t.Fatalf("unexpected validity window: %+v", latest)
	}
}

func TestClient_GetBlockHeight(t *testing.T) {
	server := rpcServer(t, map[string]string{"getBlockHeight": `1233`})
	defer server.Close()

	height, err := newTestClient(t, server.URL).GetBlockHeight(context.Background())
	if err != nil {
		t.Fatalf("get block height: %v", err)
	}
	if height != 1233 {
		t.Fatalf("height %d, want 1233", height)
	}
}

func TestClient_GetSignatureStatus(t *testing.T) {
	server := rpcServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":82},"value":[{"slot":72,"confirmations":10,"err":null,"confirmationStatus":"confirmed"}]}`,
	})
	defer server.Close()

	status, err := newTestClient(t, server.URL).GetSignatureStatus(context.Background(), "sig", false)
	if err != nil {
		t.Fatalf("get signature status: %v", err)
	}
	if status == nil {
		t.Fatalf("expected a status")
	}
	if !status.Committed() || status.Failed() {
		t.Fatalf("expected committed success, got %+v", status)
	}
}

func TestClient_GetSignatureStatus_Unknown(t *testing.T) {
	server := rpcServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":82},"value":[null]}`,
	})
	defer server.Close()

	status, err := newTestClient(t, server.URL).GetSignatureStatus(context.Background(), "sig", true)
	if err != nil {
		t.Fatalf("get signature status: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status for unknown signature, got %+v", status)
	}
}

func TestClient_GetSignatureStatus_ExecutionError(t *testing.T) {
	server := rpcServer(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":82},"value":[{"slot":72,"confirmations":null,"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"finalized"}]}`,
	})
	defer server.Close()

	status, err := newTestClient(t, server.URL).GetSignatureStatus(context.Background(), "sig", false)
	if err != nil {
		t.Fatalf("get signature status: %v", err)
	}
	if !status.Failed() {
		t.Fatalf("expected execution failure, got %+v", status)
	}
}

func TestClient_RPCError(t *testing.T) {
	server := rpcServer(t, nil)
	defer server.Close()

	_, err := newTestClient(t, server.URL).GetBlockHeight(context.Background())
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32601 {
		t.Fatalf("code %d, want -32601", rpcErr.Code)
	}
	if errors.Is(err, ErrNetwork) {
		t.Fatalf("an RPC-level error is a ledger verdict, not a network failure")
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := rpcServer(t, nil)
	server.Close() // refuse connections

	_, err := newTestClient(t, server.URL).GetBlockHeight(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error for missing RPC URL")
	}
}

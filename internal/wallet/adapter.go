package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solsnap/walletcore/pkg/logger"
)

// codeAuthorizationFailed is the protocol error code the wallet returns when
// the user dismisses the consent or signing prompt.
const codeAuthorizationFailed = -1

// ProtocolError is an error object returned by the wallet endpoint.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// denied reports whether the error means the user or wallet refused.
func (e *ProtocolError) denied() bool {
	if e.Code == codeAuthorizationFailed {
		return true
	}
	return strings.Contains(e.Message, "ERROR_AUTHORIZATION_FAILED") ||
		strings.Contains(e.Data, "ERROR_AUTHORIZATION_FAILED")
}

type adapterRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type adapterResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *ProtocolError  `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// Adapter speaks the wallet adapter protocol over a WebSocket endpoint. Each
// operation opens its own protocol session, mirroring the one-shot sessions
// the mobile adapter uses; the handshake may block indefinitely while the
// wallet waits on the user, so cancellation comes from the caller's context.
type Adapter struct {
	endpoint string
	dialer   *websocket.Dialer
	log      *logger.Logger
	nextID   atomic.Int64
}

var _ Wallet = (*Adapter)(nil)

// NewAdapter creates an adapter client for the wallet endpoint.
func NewAdapter(endpoint string, log *logger.Logger) (*Adapter, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("wallet endpoint required")
	}
	if log == nil {
		log = logger.NewDefault("wallet-adapter")
	}
	return &Adapter{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		log: log,
	}, nil
}

// Authorize opens an authorization session with the wallet.
func (a *Adapter) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	var result AuthorizeResult
	if err := a.call(ctx, "authorize", req, &result); err != nil {
		return AuthorizeResult{}, err
	}
	a.log.WithField("accounts", len(result.Accounts)).Debug("wallet authorization completed")
	return result, nil
}

// SignAndSendTransactions asks the wallet to sign and submit the payloads.
func (a *Adapter) SignAndSendTransactions(ctx context.Context, req SignAndSendRequest) ([]string, error) {
	payloads := make([]string, len(req.Payloads))
	for i, p := range req.Payloads {
		payloads[i] = base64.StdEncoding.EncodeToString(p)
	}
	params := struct {
		Payloads []string `json:"payloads"`
		Options  struct {
			MinContextSlot uint64 `json:"min_context_slot,omitempty"`
		} `json:"options"`
	}{Payloads: payloads}
	params.Options.MinContextSlot = req.MinContextSlot

	var result struct {
		Signatures []string `json:"signatures"`
	}
	if err := a.call(ctx, "sign_and_send_transactions", params, &result); err != nil {
		return nil, err
	}
	if len(result.Signatures) != len(req.Payloads) {
		return nil, fmt.Errorf("wallet returned %d signatures for %d transactions",
			len(result.Signatures), len(req.Payloads))
	}
	return result.Signatures, nil
}

// call runs one request/response exchange on a fresh protocol session.
func (a *Adapter) call(ctx context.Context, method string, params, result interface{}) error {
	conn, _, err := a.dialer.DialContext(ctx, a.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial wallet: %w", err)
	}
	defer conn.Close()

	// Unblock reads when the caller gives up; the wallet side may hold the
	// session open until the user answers the prompt.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	id := a.nextID.Add(1)
	if err := conn.WriteJSON(adapterRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	for {
		var resp adapterResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s response: %w", method, err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			if resp.Error.denied() {
				return fmt.Errorf("%w: %s", ErrAuthorizationDenied, resp.Error.Message)
			}
			return resp.Error
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

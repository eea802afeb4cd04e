// Package wallet drives the mobile wallet adapter protocol: the
// authorization handshake that yields the user's account and a reusable auth
// token, and the sign-and-send request for built transactions.
package wallet

import (
	"context"
	"errors"
)

// ErrAuthorizationDenied reports that the user or the wallet refused the
// request. It is terminal; a denied action is never retried automatically.
var ErrAuthorizationDenied = errors.New("authorization denied by wallet")

// ErrNoAccounts reports a protocol violation: an authorization that
// succeeded but returned zero accounts.
var ErrNoAccounts = errors.New("wallet returned no accounts")

// Identity describes this application to the wallet user during the consent
// prompt.
type Identity struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
	Icon string `json:"icon"`
}

// Account is a wallet-held account in the protocol's wire encoding.
type Account struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// AuthorizeRequest opens or resumes a wallet authorization.
type AuthorizeRequest struct {
	Cluster  string   `json:"cluster"`
	Identity Identity `json:"identity"`
	// AuthToken is the previously issued token, letting the wallet skip
	// re-prompting the user. Empty on first connect.
	AuthToken string `json:"auth_token,omitempty"`
}

// AuthorizeResult is the wallet's answer to an authorization.
type AuthorizeResult struct {
	Accounts      []Account `json:"accounts"`
	AuthToken     string    `json:"auth_token,omitempty"`
	WalletURIBase string    `json:"wallet_uri_base,omitempty"`
}

// SignAndSendRequest asks the wallet to sign and submit serialized
// transactions.
type SignAndSendRequest struct {
	// Payloads are unsigned wire transactions.
	Payloads [][]byte
	// MinContextSlot bounds how stale a node the wallet may submit through.
	MinContextSlot uint64
}

// Wallet is the authorization and signing collaborator. The concrete
// implementation speaks the adapter protocol to a real wallet endpoint;
// tests substitute an in-process fake.
type Wallet interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error)
	// SignAndSendTransactions returns one signature per payload, in input
	// order.
	SignAndSendTransactions(ctx context.Context, req SignAndSendRequest) ([]string, error)
}

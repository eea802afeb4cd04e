// Package auth drives the wallet authorization handshake: the initial
// connect that establishes the session and the silent re-authorization that
// precedes every on-chain action.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/solsnap/walletcore/internal/app/metrics"
	sessionsvc "github.com/solsnap/walletcore/internal/app/services/session"
	"github.com/solsnap/walletcore/internal/app/storage"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/internal/wallet"
	"github.com/solsnap/walletcore/pkg/logger"
)

// authTokenKey is the storage key for the wallet-issued auth token.
const authTokenKey = "wallet.auth_token"

// Client performs wallet authorizations against the adapter and commits the
// results into the session store.
type Client struct {
	wallet   wallet.Wallet
	sessions *sessionsvc.Store
	kv       storage.KV
	cluster  string
	identity wallet.Identity
	log      *logger.Logger
}

// New constructs an authorization client.
func New(w wallet.Wallet, sessions *sessionsvc.Store, kv storage.KV, cluster string, identity wallet.Identity, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Client{
		wallet:   w,
		sessions: sessions,
		kv:       kv,
		cluster:  cluster,
		identity: identity,
		log:      log,
	}
}

// Connect runs the full authorization handshake. The previously stored auth
// token, if any, is presented so the wallet can skip re-prompting the user.
// On success the session store holds the canonical address and token, and
// the token is persisted for the next process start. Exactly one connect may
// be in flight at a time.
func (c *Client) Connect(ctx context.Context) (addr solana.Address, err error) {
	if err := c.sessions.BeginConnect(); err != nil {
		return solana.Address{}, err
	}
	defer func() {
		metrics.ObserveAuthorization("connect", err)
		if err != nil {
			c.sessions.EndConnect()
		}
	}()

	stored := c.storedToken(ctx)
	result, err := c.wallet.Authorize(ctx, wallet.AuthorizeRequest{
		Cluster:   c.cluster,
		Identity:  c.identity,
		AuthToken: stored,
	})
	if err != nil {
		return solana.Address{}, fmt.Errorf("authorize: %w", err)
	}
	if len(result.Accounts) == 0 {
		return solana.Address{}, wallet.ErrNoAccounts
	}

	addr, err = solana.DecodeAddress(result.Accounts[0].Address)
	if err != nil {
		return solana.Address{}, err
	}

	token := result.AuthToken
	if token == "" {
		token = stored
	}
	c.persistToken(ctx, token)
	c.sessions.CommitAuthorized(addr, token)

	c.log.WithField("address", addr.Short()).
		WithField("accounts", len(result.Accounts)).
		Info("wallet connected")
	return addr, nil
}

// Reauthorize repeats the handshake with the stored token so a long-lived
// session never re-prompts the user. A rejected token is cleared from
// storage; the caller must then run Connect again.
func (c *Client) Reauthorize(ctx context.Context) (err error) {
	defer func() { metrics.ObserveAuthorization("reauthorize", err) }()

	stored := c.storedToken(ctx)
	result, err := c.wallet.Authorize(ctx, wallet.AuthorizeRequest{
		Cluster:   c.cluster,
		Identity:  c.identity,
		AuthToken: stored,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrAuthorizationDenied) {
			c.clearToken(ctx)
		}
		return fmt.Errorf("reauthorize: %w", err)
	}
	if len(result.Accounts) == 0 {
		return wallet.ErrNoAccounts
	}

	if result.AuthToken != "" && result.AuthToken != stored {
		c.persistToken(ctx, result.AuthToken)
		c.sessions.UpdateAuthToken(result.AuthToken)
	}
	return nil
}

// ClearToken removes the persisted auth token, e.g. on disconnect.
func (c *Client) ClearToken(ctx context.Context) {
	c.clearToken(ctx)
}

func (c *Client) storedToken(ctx context.Context) string {
	token, err := c.kv.Get(ctx, authTokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.WithError(err).Warn("read stored auth token")
		}
		return ""
	}
	return token
}

func (c *Client) persistToken(ctx context.Context, token string) {
	if token == "" {
		return
	}
	// Persistence failures are not fatal to the session; the user would
	// simply be re-prompted after the next restart.
	if err := c.kv.Set(ctx, authTokenKey, token); err != nil {
		c.log.WithError(err).Warn("persist auth token")
	}
}

func (c *Client) clearToken(ctx context.Context) {
	if err := c.kv.Delete(ctx, authTokenKey); err != nil {
		c.log.WithError(err).Warn("clear auth token")
	}
}

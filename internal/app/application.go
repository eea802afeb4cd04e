// Package app wires the wallet session core together: authorization, balance
// polling, the challenge ledger, and the stake pipeline, under a common
// lifecycle manager.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/solsnap/walletcore/internal/app/domain/challenge"
	authsvc "github.com/solsnap/walletcore/internal/app/services/auth"
	"github.com/solsnap/walletcore/internal/app/services/ledger"
	sessionsvc "github.com/solsnap/walletcore/internal/app/services/session"
	stakesvc "github.com/solsnap/walletcore/internal/app/services/stake"
	"github.com/solsnap/walletcore/internal/app/storage"
	"github.com/solsnap/walletcore/internal/app/storage/memory"
	"github.com/solsnap/walletcore/internal/app/system"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/internal/wallet"
	"github.com/solsnap/walletcore/pkg/logger"
)

// Config carries the domain settings the application needs beyond its
// collaborators.
type Config struct {
	Cluster  string
	Identity wallet.Identity
	Vault    solana.Address
	// PollInterval tunes the balance poller; zero keeps the default.
	PollInterval time.Duration
	// ConfirmInterval and ConfirmTimeout tune confirmation polling; zero
	// keeps the defaults.
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
}

// Application ties the services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Sessions *sessionsvc.Store
	Poller   *sessionsvc.Poller
	Auth     *authsvc.Client
	Ledger   *ledger.Ledger
	Stake    *stakesvc.Service
}

// New builds a fully initialised application. A nil kv defaults to the
// in-memory store.
func New(cfg Config, w wallet.Wallet, rpc stakesvc.ChainRPC, kv storage.KV, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if kv == nil {
		kv = memory.New()
	}
	if w == nil {
		return nil, fmt.Errorf("wallet required")
	}
	if rpc == nil {
		return nil, fmt.Errorf("chain RPC required")
	}
	if cfg.Vault.IsZero() {
		return nil, fmt.Errorf("vault address required")
	}

	manager := system.NewManager()

	sessions := sessionsvc.NewStore(log)
	poller := sessionsvc.NewPoller(sessions, rpc, log)
	poller.SetInterval(cfg.PollInterval)
	auth := authsvc.New(w, sessions, kv, cfg.Cluster, cfg.Identity, log)
	led := ledger.New(context.Background(), kv, log)
	submitter := stakesvc.NewSubmitter(w, rpc, cfg.ConfirmInterval, cfg.ConfirmTimeout, log)
	stake := stakesvc.NewService(sessions, auth, rpc, submitter, led, poller, cfg.Vault, log)

	if err := manager.Register(poller); err != nil {
		return nil, fmt.Errorf("register %s: %w", poller.Name(), err)
	}

	return &Application{
		manager:  manager,
		log:      log,
		Sessions: sessions,
		Poller:   poller,
		Auth:     auth,
		Ledger:   led,
		Stake:    stake,
	}, nil
}

// Connect authorizes against the wallet and starts balance polling for the
// returned address.
func (a *Application) Connect(ctx context.Context) (solana.Address, error) {
	addr, err := a.Auth.Connect(ctx)
	if err != nil {
		return solana.Address{}, err
	}
	a.Poller.StartFor(addr)
	return addr, nil
}

// Disconnect stops balance polling, clears the persisted token, and resets
// the session. An in-flight confirmation keeps its own context and is not
// cancelled here.
func (a *Application) Disconnect(ctx context.Context) {
	a.Poller.Halt()
	a.Auth.ClearToken(ctx)
	a.Sessions.Reset()
}

// JoinChallenge stakes into a challenge through the transaction pipeline.
func (a *Application) JoinChallenge(ctx context.Context, challengeID string) (string, error) {
	return a.Stake.JoinChallenge(ctx, challengeID)
}

// LeaveChallenge removes the local join record.
func (a *Application) LeaveChallenge(ctx context.Context, challengeID string) error {
	return a.Stake.LeaveChallenge(ctx, challengeID)
}

// CreateChallenge validates, funds, and records a user challenge.
func (a *Application) CreateChallenge(ctx context.Context, draft challenge.Draft) (challenge.CreatedChallenge, string, error) {
	return a.Stake.CreateChallenge(ctx, draft)
}

// Challenges returns the built-in catalog annotated with join state,
// followed by the user's created challenges converted to the same shape.
func (a *Application) Challenges(now time.Time) []ChallengeView {
	catalog := ledger.Catalog(now)
	views := make([]ChallengeView, 0, len(catalog))
	for _, c := range catalog {
		views = append(views, ChallengeView{
			Challenge: c,
			Joined:    a.Ledger.IsJoined(c.ID),
		})
	}
	for _, rec := range a.Ledger.Created() {
		views = append(views, ChallengeView{
			Challenge: challenge.Challenge{
				ID:                rec.ID,
				Title:             rec.Title,
				Description:       rec.Description,
				StakeLamports:     rec.StakeLamports,
				PrizePoolLamports: rec.PrizePoolLamports,
			},
			Joined:  a.Ledger.IsJoined(rec.ID),
			Created: true,
		})
	}
	return views
}

// ChallengeView is a challenge annotated with the caller's relationship to
// it.
type ChallengeView struct {
	challenge.Challenge
	Joined  bool `json:"joined"`
	Created bool `json:"created,omitempty"`
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

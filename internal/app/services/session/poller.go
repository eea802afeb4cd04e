package session

import (
	"context"
	"sync"
	"time"

	"github.com/solsnap/walletcore/internal/app/metrics"
	"github.com/solsnap/walletcore/internal/app/system"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/pkg/logger"
)

var _ system.Service = (*Poller)(nil)

// BalanceSource fetches the lamport balance for an address.
type BalanceSource interface {
	GetBalance(ctx context.Context, addr solana.Address) (uint64, error)
}

// Poller periodically refreshes the session balance against the remote
// ledger. It is an explicit resource driven by session transitions, not by
// UI presence: StartFor begins a loop for an address, Stop cancels it. At
// most one loop runs at a time; starting for a different address replaces
// the previous loop. A refresh failure is logged and swallowed, leaving the
// last known balance in place.
type Poller struct {
	store    *Store
	source   BalanceSource
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	addr    solana.Address
	poke    chan struct{}
}

// NewPoller creates a balance poller with the default 10 second interval.
func NewPoller(store *Store, source BalanceSource, log *logger.Logger) *Poller {
	if log == nil {
		log = logger.NewDefault("balance-poller")
	}
	return &Poller{
		store:    store,
		source:   source,
		log:      log,
		interval: 10 * time.Second,
	}
}

func (p *Poller) Name() string { return "balance-poller" }

// SetInterval overrides the poll interval. Must be called before StartFor.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Start records the lifecycle context polling loops run under. No loop
// starts until a session commits an address.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	p.rootCtx = ctx
	p.mu.Unlock()
	return nil
}

// Stop cancels any active polling loop.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// StartFor begins polling for an address, replacing any loop polling a
// different one. Starting again for the same address is a no-op.
func (p *Poller) StartFor(addr solana.Address) {
	p.mu.Lock()
	if p.running && p.addr == addr {
		p.mu.Unlock()
		return
	}
	if cancel := p.cancel; cancel != nil {
		cancel()
	}
	root := p.rootCtx
	if root == nil {
		root = context.Background()
	}
	runCtx, cancel := context.WithCancel(root)
	p.cancel = cancel
	p.running = true
	p.addr = addr
	poke := make(chan struct{}, 1)
	p.poke = poke
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.refresh(runCtx, addr)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.refresh(runCtx, addr)
			case <-poke:
				p.refresh(runCtx, addr)
			}
		}
	}()

	p.log.WithField("address", addr.Short()).Info("balance polling started")
}

// Halt cancels the active polling loop without tearing down the poller
// itself; a later StartFor begins a fresh loop. Used on disconnect.
func (p *Poller) Halt() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	p.poke = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether a polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Poke requests an immediate refresh without waiting for the next tick.
func (p *Poller) Poke() {
	p.mu.Lock()
	poke := p.poke
	running := p.running
	p.mu.Unlock()

	if !running || poke == nil {
		return
	}
	select {
	case poke <- struct{}{}:
	default:
	}
}

func (p *Poller) refresh(ctx context.Context, addr solana.Address) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	lamports, err := p.source.GetBalance(ctx, addr)
	metrics.ObserveBalanceRefresh(err)
	if err != nil {
		// Staleness beats a spurious disconnect; keep the last known value.
		p.log.WithError(err).Warn("balance refresh failed")
		return
	}

	// A replaced loop may still be draining; never write a balance for an
	// address the session has moved away from.
	if current := p.store.Current(); current.Address == nil || *current.Address != addr {
		return
	}
	p.store.SetBalance(lamports)
}

// Package stake runs the transaction pipeline behind challenge joins and
// challenge creation: build the transfer, hand it to the wallet for signing
// and submission, then poll the ledger until the signature commits.
package stake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solsnap/walletcore/internal/app/metrics"
	"github.com/solsnap/walletcore/internal/chain"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/internal/wallet"
	"github.com/solsnap/walletcore/pkg/logger"
)

var (
	// ErrBlockhashExpired means the block height passed the transaction's
	// validity window without the signature landing. The transaction can be
	// rebuilt against a fresh blockhash and retried.
	ErrBlockhashExpired = errors.New("blockhash expired before confirmation")
	// ErrConfirmationTimeout means polling gave up while the transaction
	// outcome was still unknown. The signature may yet land.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	// ErrTransactionFailed means the transaction executed on chain and
	// failed. Retrying the same transfer is the caller's decision.
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

// minContextSlotDelta is subtracted from the last valid block height to form
// the wallet's minContextSlot, keeping the wallet off nodes lagging far
// behind the blockhash we built against.
const minContextSlotDelta = 150

// ChainRPC is the ledger surface the pipeline needs.
type ChainRPC interface {
	GetBalance(ctx context.Context, addr solana.Address) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (chain.LatestBlockhash, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
	GetSignatureStatus(ctx context.Context, signature string, searchHistory bool) (*chain.SignatureStatus, error)
}

// Submitter signs, submits, and confirms a built transaction.
type Submitter struct {
	wallet       wallet.Wallet
	chain        ChainRPC
	pollInterval time.Duration
	timeout      time.Duration
	log          *logger.Logger
}

// NewSubmitter creates a submitter. pollInterval and timeout fall back to
// 2s and 90s when zero.
func NewSubmitter(w wallet.Wallet, rpc ChainRPC, pollInterval, timeout time.Duration, log *logger.Logger) *Submitter {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("submitter")
	}
	return &Submitter{
		wallet:       w,
		chain:        rpc,
		pollInterval: pollInterval,
		timeout:      timeout,
		log:          log,
	}
}

// Submit sends tx through the wallet and polls until the signature reaches
// confirmed commitment. It returns the signature on success. A denial by the
// wallet surfaces as wallet.ErrAuthorizationDenied and is never retried
// here. Network errors while polling are indeterminate and keep the poll
// alive; a verdict is only given after a reconciling history lookup. Once
// the wallet has returned a signature, cancelling ctx no longer aborts
// confirmation: the poll runs to a verdict within the configured timeout.
func (s *Submitter) Submit(ctx context.Context, tx *solana.StakeTransaction) (string, error) {
	minContextSlot := uint64(0)
	if tx.LastValidBlockHeight > minContextSlotDelta {
		minContextSlot = tx.LastValidBlockHeight - minContextSlotDelta
	}

	signatures, err := s.wallet.SignAndSendTransactions(ctx, wallet.SignAndSendRequest{
		Payloads:       [][]byte{tx.Serialize()},
		MinContextSlot: minContextSlot,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrAuthorizationDenied) {
			metrics.ObserveTransaction("denied")
			return "", err
		}
		metrics.ObserveTransaction("submit_error")
		return "", fmt.Errorf("sign and send: %w", err)
	}
	if len(signatures) != 1 {
		metrics.ObserveTransaction("submit_error")
		return "", fmt.Errorf("wallet returned %d signatures, want 1", len(signatures))
	}
	signature := signatures[0]
	s.log.WithField("signature", signature).Info("transaction submitted")

	// Once a signature exists the transfer may land regardless of what the
	// caller does, so confirmation must not die with the caller's context.
	// The loop is bounded by s.timeout instead.
	confirmCtx := context.WithoutCancel(ctx)

	start := time.Now()
	outcome, err := s.confirm(confirmCtx, signature, tx.LastValidBlockHeight)
	metrics.ObserveTransaction(outcome)
	if err != nil {
		return signature, err
	}
	metrics.ObserveConfirmation(time.Since(start).Seconds())
	return signature, nil
}

func (s *Submitter) confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) (string, error) {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.chain.GetSignatureStatus(ctx, signature, false)
		switch {
		case err != nil:
			// No verdict; keep polling until the deadline reconciles.
			s.log.WithError(err).WithField("signature", signature).Warn("status poll failed")
		case status != nil && status.Failed():
			return "failed", fmt.Errorf("%w: %s", ErrTransactionFailed, status.Err)
		case status != nil && status.Committed():
			return "confirmed", nil
		default:
			// Unknown or still processing. If the chain has moved past the
			// blockhash's validity window the signature can no longer land
			// through this submission, so reconcile now.
			height, err := s.chain.GetBlockHeight(ctx)
			if err == nil && height > lastValidBlockHeight {
				return s.reconcile(ctx, signature, ErrBlockhashExpired, "expired")
			}
		}

		select {
		case <-deadline.C:
			return s.reconcile(ctx, signature, ErrConfirmationTimeout, "timeout")
		case <-ticker.C:
		}
	}
}

// reconcile runs a final history-wide lookup before declaring fallback. A
// signature that actually landed must never be reported as expired or timed
// out, so the happy path here overrides fallback.
func (s *Submitter) reconcile(ctx context.Context, signature string, fallback error, outcome string) (string, error) {
	status, err := s.chain.GetSignatureStatus(ctx, signature, true)
	if err != nil {
		s.log.WithError(err).WithField("signature", signature).Warn("reconciliation lookup failed")
		return outcome, fallback
	}
	if status == nil {
		return outcome, fallback
	}
	if status.Failed() {
		return "failed", fmt.Errorf("%w: %s", ErrTransactionFailed, status.Err)
	}
	if status.Committed() {
		s.log.WithField("signature", signature).Info("transaction found committed during reconciliation")
		return "confirmed", nil
	}
	return outcome, fallback
}

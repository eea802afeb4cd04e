package stake

import (
	"context"
	"errors"
	"fmt"

	"github.com/solsnap/walletcore/internal/app/domain/challenge"
	domain "github.com/solsnap/walletcore/internal/app/domain/session"
	"github.com/solsnap/walletcore/internal/app/services/ledger"
	sessionsvc "github.com/solsnap/walletcore/internal/app/services/session"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/pkg/logger"
)

var (
	// ErrNotConnected is returned when an operation requires an authorized
	// session and there is none.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrInsufficientBalance is returned before any wallet interaction when
	// the balance cannot cover the transfer plus the fee reserve.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownChallenge is returned for a join against an id that is in
	// neither the catalog nor the created set.
	ErrUnknownChallenge = errors.New("unknown challenge")
	// ErrInvalidDraft is returned when a create request fails validation.
	ErrInvalidDraft = errors.New("invalid challenge draft")
)

// feeReserveLamports is withheld from spendable balance to cover the
// transaction fee.
const feeReserveLamports = 5000

// Reauthorizer refreshes the wallet authorization before a signing flow.
type Reauthorizer interface {
	Reauthorize(ctx context.Context) error
}

// TxSubmitter is the sign-submit-confirm stage of the pipeline.
type TxSubmitter interface {
	Submit(ctx context.Context, tx *solana.StakeTransaction) (string, error)
}

// BalancePoker asks the balance poller for an immediate refresh.
type BalancePoker interface {
	Poke()
}

// Service coordinates the stake flows: challenge joins and challenge
// creation, both funded by a transfer to the vault.
type Service struct {
	sessions  *sessionsvc.Store
	auth      Reauthorizer
	chain     ChainRPC
	submitter TxSubmitter
	ledger    *ledger.Ledger
	poker     BalancePoker
	vault     solana.Address
	log       *logger.Logger
}

// NewService constructs the stake service. poker may be nil when no poller
// is attached.
func NewService(sessions *sessionsvc.Store, auth Reauthorizer, rpc ChainRPC, submitter TxSubmitter, l *ledger.Ledger, poker BalancePoker, vault solana.Address, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("stake")
	}
	return &Service{
		sessions:  sessions,
		auth:      auth,
		chain:     rpc,
		submitter: submitter,
		ledger:    l,
		poker:     poker,
		vault:     vault,
		log:       log,
	}
}

// JoinChallenge stakes into the challenge and records the join once the
// transfer commits. Joining an already-joined challenge returns the empty
// signature and no error; nothing is transferred twice.
func (s *Service) JoinChallenge(ctx context.Context, challengeID string) (string, error) {
	sess := s.sessions.Current()
	if !sess.Connected() {
		return "", ErrNotConnected
	}
	if s.ledger.IsJoined(challengeID) {
		return "", nil
	}
	stake, err := s.stakeAmount(challengeID)
	if err != nil {
		return "", err
	}

	signature, err := s.transferToVault(ctx, sess, stake)
	if err != nil {
		return "", err
	}

	if err := s.ledger.RecordJoin(ctx, challengeID); err != nil {
		// The stake is on chain but the join record is not. Surface the
		// error with the signature attached so the caller can retry the
		// record without re-staking.
		return signature, fmt.Errorf("record join for %s: %w", challengeID, err)
	}
	s.refreshBalance()
	s.log.WithField("challenge", challengeID).
		WithField("signature", signature).
		Info("challenge joined")
	return signature, nil
}

// LeaveChallenge removes the join record. The stake already transferred is
// not refunded.
func (s *Service) LeaveChallenge(ctx context.Context, challengeID string) error {
	return s.ledger.RemoveJoin(ctx, challengeID)
}

// CreateChallenge validates the draft, funds its prize pool with a vault
// transfer, and records the created challenge.
func (s *Service) CreateChallenge(ctx context.Context, draft challenge.Draft) (challenge.CreatedChallenge, string, error) {
	if err := validateDraft(draft); err != nil {
		return challenge.CreatedChallenge{}, "", err
	}
	sess := s.sessions.Current()
	if !sess.Connected() {
		return challenge.CreatedChallenge{}, "", ErrNotConnected
	}

	signature, err := s.transferToVault(ctx, sess, draft.PrizeLamports)
	if err != nil {
		return challenge.CreatedChallenge{}, "", err
	}

	rec, err := s.ledger.RecordCreated(ctx, draft)
	if err != nil {
		return challenge.CreatedChallenge{}, signature, fmt.Errorf("record created challenge: %w", err)
	}
	s.refreshBalance()
	s.log.WithField("challenge", rec.ID).
		WithField("signature", signature).
		Info("challenge created")
	return rec, signature, nil
}

// transferToVault runs the full pipeline for a lamport transfer to the
// vault: balance check, silent reauthorization, build, sign, submit,
// confirm. An expired blockhash gets exactly one rebuild against a fresh
// one; a wallet denial is never retried. The balance check uses the polled
// session balance when one is known so an obviously unfunded transfer is
// rejected without any network call.
func (s *Service) transferToVault(ctx context.Context, sess domain.Session, lamports uint64) (string, error) {
	from := *sess.Address
	balance, known := sess.Balance()
	if !known {
		fetched, err := s.chain.GetBalance(ctx, from)
		if err != nil {
			return "", fmt.Errorf("check balance: %w", err)
		}
		balance = fetched
	}
	if balance < lamports+feeReserveLamports {
		return "", fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientBalance, balance, lamports+feeReserveLamports)
	}

	if err := s.auth.Reauthorize(ctx); err != nil {
		return "", err
	}

	signature, err := s.buildAndSubmit(ctx, from, lamports)
	if errors.Is(err, ErrBlockhashExpired) {
		s.log.WithField("lamports", lamports).Warn("blockhash expired, rebuilding once")
		signature, err = s.buildAndSubmit(ctx, from, lamports)
	}
	return signature, err
}

func (s *Service) buildAndSubmit(ctx context.Context, from solana.Address, lamports uint64) (string, error) {
	latest, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch blockhash: %w", err)
	}
	blockhash, err := solana.DecodeBlockhash(latest.Blockhash)
	if err != nil {
		return "", err
	}
	tx, err := solana.BuildTransfer(from, s.vault, lamports, blockhash, latest.LastValidBlockHeight)
	if err != nil {
		return "", err
	}
	return s.submitter.Submit(ctx, tx)
}

func (s *Service) stakeAmount(challengeID string) (uint64, error) {
	if stake, ok := ledger.CatalogStake(challengeID); ok {
		return stake, nil
	}
	for _, rec := range s.ledger.Created() {
		if rec.ID == challengeID {
			return rec.StakeLamports, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownChallenge, challengeID)
}

func (s *Service) refreshBalance() {
	s.sessions.InvalidateBalance()
	if s.poker != nil {
		s.poker.Poke()
	}
}

func validateDraft(d challenge.Draft) error {
	switch {
	case d.Title == "":
		return fmt.Errorf("%w: title required", ErrInvalidDraft)
	case d.Description == "":
		return fmt.Errorf("%w: description required", ErrInvalidDraft)
	case d.StakeLamports == 0:
		return fmt.Errorf("%w: stake must be positive", ErrInvalidDraft)
	case d.PrizeLamports == 0:
		return fmt.Errorf("%w: prize pool must be positive", ErrInvalidDraft)
	case d.MaxParticipants <= 0:
		return fmt.Errorf("%w: max participants must be positive", ErrInvalidDraft)
	case !challenge.ValidDuration(d.Duration):
		return fmt.Errorf("%w: duration must be one of 24h, 3days, 7days", ErrInvalidDraft)
	}
	return nil
}

package stake

import (
	"context"
	"errors"
	"testing"

	"github.com/solsnap/walletcore/internal/app/domain/challenge"
	"github.com/solsnap/walletcore/internal/app/services/ledger"
	sessionsvc "github.com/solsnap/walletcore/internal/app/services/session"
	"github.com/solsnap/walletcore/internal/app/storage/memory"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/internal/wallet"
)

type fakeReauthorizer struct {
	calls int
	err   error
}

func (f *fakeReauthorizer) Reauthorize(context.Context) error {
	f.calls++
	return f.err
}

type fakeSubmitter struct {
	txs  []*solana.StakeTransaction
	sigs []string
	errs []error
}

func (f *fakeSubmitter) Submit(_ context.Context, tx *solana.StakeTransaction) (string, error) {
	f.txs = append(f.txs, tx)
	i := len(f.txs) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	sig := "sig-ok"
	if i < len(f.sigs) {
		sig = f.sigs[i]
	}
	return sig, err
}

type fakePoker struct{ pokes int }

func (f *fakePoker) Poke() { f.pokes++ }

type serviceHarness struct {
	svc       *Service
	sessions  *sessionsvc.Store
	ledger    *ledger.Ledger
	auth      *fakeReauthorizer
	rpc       *fakeRPC
	submitter *fakeSubmitter
	poker     *fakePoker
}

func newHarness(t *testing.T, connected bool) *serviceHarness {
	t.Helper()
	sessions := sessionsvc.NewStore(nil)
	if connected {
		addr, err := solana.DecodeAddress(testBlockhash)
		if err != nil {
			t.Fatalf("decode session address: %v", err)
		}
		if err := sessions.BeginConnect(); err != nil {
			t.Fatalf("BeginConnect: %v", err)
		}
		sessions.CommitAuthorized(addr, "token")
	}
	vault, err := solana.DecodeAddress(testVault)
	if err != nil {
		t.Fatalf("decode vault: %v", err)
	}
	h := &serviceHarness{
		sessions:  sessions,
		ledger:    ledger.New(context.Background(), memory.New(), nil),
		auth:      &fakeReauthorizer{},
		rpc:       &fakeRPC{balance: 10_000_000_000},
		submitter: &fakeSubmitter{},
		poker:     &fakePoker{},
	}
	h.svc = NewService(sessions, h.auth, h.rpc, h.submitter, h.ledger, h.poker, vault, nil)
	return h
}

func TestJoinChallenge_Succeeds(t *testing.T) {
	h := newHarness(t, true)

	sig, err := h.svc.JoinChallenge(context.Background(), "1")
	if err != nil {
		t.Fatalf("JoinChallenge: %v", err)
	}
	if sig != "sig-ok" {
		t.Fatalf("signature = %q", sig)
	}
	if !h.ledger.IsJoined("1") {
		t.Fatal("join not recorded after confirmation")
	}
	if h.auth.calls != 1 {
		t.Fatalf("reauthorize calls = %d, want 1", h.auth.calls)
	}
	if len(h.submitter.txs) != 1 {
		t.Fatalf("submits = %d, want 1", len(h.submitter.txs))
	}
	// Sunrise Snap stakes 0.1 SOL.
	if got := h.submitter.txs[0].Lamports; got != 100_000_000 {
		t.Fatalf("stake lamports = %d, want 100000000", got)
	}
	if h.poker.pokes != 1 {
		t.Fatalf("poller pokes = %d, want 1", h.poker.pokes)
	}
	if _, ok := h.sessions.Current().Balance(); ok {
		t.Fatal("balance not invalidated after join")
	}
}

func TestJoinChallenge_NotConnected(t *testing.T) {
	h := newHarness(t, false)
	if _, err := h.svc.JoinChallenge(context.Background(), "1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestJoinChallenge_AlreadyJoinedShortCircuits(t *testing.T) {
	h := newHarness(t, true)
	if err := h.ledger.RecordJoin(context.Background(), "1"); err != nil {
		t.Fatalf("seed join: %v", err)
	}

	sig, err := h.svc.JoinChallenge(context.Background(), "1")
	if err != nil {
		t.Fatalf("JoinChallenge: %v", err)
	}
	if sig != "" {
		t.Fatalf("signature = %q, want empty", sig)
	}
	if len(h.submitter.txs) != 0 {
		t.Fatal("already-joined challenge triggered a transfer")
	}
}

func TestJoinChallenge_UnknownID(t *testing.T) {
	h := newHarness(t, true)
	if _, err := h.svc.JoinChallenge(context.Background(), "999"); !errors.Is(err, ErrUnknownChallenge) {
		t.Fatalf("err = %v, want ErrUnknownChallenge", err)
	}
}

func TestJoinChallenge_InsufficientBalance(t *testing.T) {
	h := newHarness(t, true)
	// The poller already knows the balance: exactly the stake with nothing
	// left for the fee. The rejection must happen without a single RPC.
	h.sessions.SetBalance(100_000_000)

	_, err := h.svc.JoinChallenge(context.Background(), "1")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if h.rpc.balanceCalls != 0 {
		t.Fatal("balance fetched over RPC despite a known session balance")
	}
	if h.auth.calls != 0 {
		t.Fatal("wallet was contacted despite insufficient balance")
	}
	if len(h.submitter.txs) != 0 {
		t.Fatal("transfer attempted despite insufficient balance")
	}
}

func TestJoinChallenge_UnknownBalanceFetchedOnce(t *testing.T) {
	h := newHarness(t, true)
	h.rpc.balance = 40_000_000 // below the 0.05 SOL stake of challenge 2

	_, err := h.svc.JoinChallenge(context.Background(), "2")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if h.rpc.balanceCalls != 1 {
		t.Fatalf("balance calls = %d, want 1", h.rpc.balanceCalls)
	}
}

func TestJoinChallenge_DeniedNotRetried(t *testing.T) {
	h := newHarness(t, true)
	h.auth.err = wallet.ErrAuthorizationDenied

	_, err := h.svc.JoinChallenge(context.Background(), "1")
	if !errors.Is(err, wallet.ErrAuthorizationDenied) {
		t.Fatalf("err = %v, want ErrAuthorizationDenied", err)
	}
	if h.auth.calls != 1 {
		t.Fatalf("reauthorize calls = %d, want 1", h.auth.calls)
	}
	if h.ledger.IsJoined("1") {
		t.Fatal("denied join was recorded")
	}
}

func TestJoinChallenge_ExpiredBlockhashRetriesOnce(t *testing.T) {
	h := newHarness(t, true)
	h.submitter.errs = []error{ErrBlockhashExpired, nil}
	h.submitter.sigs = []string{"", "sig-retry"}

	sig, err := h.svc.JoinChallenge(context.Background(), "1")
	if err != nil {
		t.Fatalf("JoinChallenge: %v", err)
	}
	if sig != "sig-retry" {
		t.Fatalf("signature = %q, want sig-retry", sig)
	}
	if len(h.submitter.txs) != 2 {
		t.Fatalf("submits = %d, want 2", len(h.submitter.txs))
	}
}

func TestJoinChallenge_ExpiredTwiceGivesUp(t *testing.T) {
	h := newHarness(t, true)
	h.submitter.errs = []error{ErrBlockhashExpired, ErrBlockhashExpired, nil}

	_, err := h.svc.JoinChallenge(context.Background(), "1")
	if !errors.Is(err, ErrBlockhashExpired) {
		t.Fatalf("err = %v, want ErrBlockhashExpired", err)
	}
	if len(h.submitter.txs) != 2 {
		t.Fatalf("submits = %d, want 2", len(h.submitter.txs))
	}
	if h.ledger.IsJoined("1") {
		t.Fatal("failed join was recorded")
	}
}

func TestJoinChallenge_IndeterminateDoesNotRecord(t *testing.T) {
	h := newHarness(t, true)
	h.submitter.errs = []error{ErrConfirmationTimeout}

	_, err := h.svc.JoinChallenge(context.Background(), "1")
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("err = %v, want ErrConfirmationTimeout", err)
	}
	if h.ledger.IsJoined("1") {
		t.Fatal("unconfirmed join was recorded")
	}
}

func TestLeaveChallenge(t *testing.T) {
	h := newHarness(t, true)
	if err := h.ledger.RecordJoin(context.Background(), "2"); err != nil {
		t.Fatalf("seed join: %v", err)
	}
	if err := h.svc.LeaveChallenge(context.Background(), "2"); err != nil {
		t.Fatalf("LeaveChallenge: %v", err)
	}
	if h.ledger.IsJoined("2") {
		t.Fatal("join record survived leave")
	}
}

func validDraft() challenge.Draft {
	return challenge.Draft{
		Title:           "Cold Shower",
		Description:     "Every morning",
		StakeLamports:   50_000_000,
		PrizeLamports:   500_000_000,
		MaxParticipants: 20,
		Duration:        challenge.Duration3Days,
	}
}

func TestCreateChallenge_Succeeds(t *testing.T) {
	h := newHarness(t, true)

	rec, sig, err := h.svc.CreateChallenge(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	if sig != "sig-ok" {
		t.Fatalf("signature = %q", sig)
	}
	if rec.ID == "" || rec.Title != "Cold Shower" {
		t.Fatalf("record = %+v", rec)
	}
	// The prize pool funds the transfer, not the stake.
	if got := h.submitter.txs[0].Lamports; got != 500_000_000 {
		t.Fatalf("transfer lamports = %d, want 500000000", got)
	}
	if len(h.ledger.Created()) != 1 {
		t.Fatal("created record missing")
	}
}

func TestCreateChallenge_InvalidDraft(t *testing.T) {
	h := newHarness(t, true)

	bad := []challenge.Draft{
		{},
		func() challenge.Draft { d := validDraft(); d.Title = ""; return d }(),
		func() challenge.Draft { d := validDraft(); d.Description = ""; return d }(),
		func() challenge.Draft { d := validDraft(); d.StakeLamports = 0; return d }(),
		func() challenge.Draft { d := validDraft(); d.PrizeLamports = 0; return d }(),
		func() challenge.Draft { d := validDraft(); d.MaxParticipants = 0; return d }(),
		func() challenge.Draft { d := validDraft(); d.Duration = "1week"; return d }(),
	}
	for i, draft := range bad {
		if _, _, err := h.svc.CreateChallenge(context.Background(), draft); !errors.Is(err, ErrInvalidDraft) {
			t.Fatalf("draft %d: err = %v, want ErrInvalidDraft", i, err)
		}
	}
	if len(h.submitter.txs) != 0 {
		t.Fatal("invalid draft triggered a transfer")
	}
}

func TestCreateChallenge_NotConnected(t *testing.T) {
	h := newHarness(t, false)
	if _, _, err := h.svc.CreateChallenge(context.Background(), validDraft()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestCreateChallenge_InsufficientForPrize(t *testing.T) {
	h := newHarness(t, true)
	h.rpc.balance = 500_000_000

	_, _, err := h.svc.CreateChallenge(context.Background(), validDraft())
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestJoinCreatedChallenge_UsesRecordedStake(t *testing.T) {
	h := newHarness(t, true)
	rec, _, err := h.svc.CreateChallenge(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	h.submitter.txs = nil

	if _, err := h.svc.JoinChallenge(context.Background(), rec.ID); err != nil {
		t.Fatalf("JoinChallenge: %v", err)
	}
	if got := h.submitter.txs[0].Lamports; got != 50_000_000 {
		t.Fatalf("stake lamports = %d, want 50000000", got)
	}
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solsnap/walletcore/internal/app/domain/challenge"
	"github.com/solsnap/walletcore/internal/app/storage/memory"
)

func TestRecordJoin_Idempotent(t *testing.T) {
	kv := memory.New()
	l := New(context.Background(), kv, nil)

	if err := l.RecordJoin(context.Background(), "1"); err != nil {
		t.Fatalf("RecordJoin: %v", err)
	}
	first := l.Joined()
	if len(first) != 1 {
		t.Fatalf("joined = %d, want 1", len(first))
	}

	if err := l.RecordJoin(context.Background(), "1"); err != nil {
		t.Fatalf("RecordJoin repeat: %v", err)
	}
	again := l.Joined()
	if len(again) != 1 {
		t.Fatalf("joined after repeat = %d, want 1", len(again))
	}
	if !again[0].JoinedAt.Equal(first[0].JoinedAt) {
		t.Fatal("repeat join rewrote the join timestamp")
	}
}

func TestJoins_SurviveReload(t *testing.T) {
	kv := memory.New()
	l := New(context.Background(), kv, nil)
	for _, id := range []string{"2", "1", "5"} {
		if err := l.RecordJoin(context.Background(), id); err != nil {
			t.Fatalf("RecordJoin(%s): %v", id, err)
		}
	}
	if err := l.RemoveJoin(context.Background(), "5"); err != nil {
		t.Fatalf("RemoveJoin: %v", err)
	}

	reloaded := New(context.Background(), kv, nil)
	joined := reloaded.Joined()
	if len(joined) != 2 {
		t.Fatalf("joined after reload = %d, want 2", len(joined))
	}
	if joined[0].ChallengeID != "1" || joined[1].ChallengeID != "2" {
		t.Fatalf("joined ids = %v", joined)
	}
	if !reloaded.IsJoined("1") || reloaded.IsJoined("5") {
		t.Fatal("membership mismatch after reload")
	}
}

func TestRemoveJoin_MissingIsNoop(t *testing.T) {
	l := New(context.Background(), memory.New(), nil)
	if err := l.RemoveJoin(context.Background(), "nope"); err != nil {
		t.Fatalf("RemoveJoin missing: %v", err)
	}
}

func TestRecordCreated_NewestFirst(t *testing.T) {
	kv := memory.New()
	l := New(context.Background(), kv, nil)

	a, err := l.RecordCreated(context.Background(), challenge.Draft{
		Title: "first", Description: "d", StakeLamports: 1, PrizeLamports: 2,
		MaxParticipants: 10, Duration: challenge.Duration24h,
	})
	if err != nil {
		t.Fatalf("RecordCreated: %v", err)
	}
	b, err := l.RecordCreated(context.Background(), challenge.Draft{
		Title: "second", Description: "d", StakeLamports: 1, PrizeLamports: 2,
		MaxParticipants: 10, Duration: challenge.Duration3Days,
	})
	if err != nil {
		t.Fatalf("RecordCreated: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("created records share an id")
	}

	created := l.Created()
	if len(created) != 2 {
		t.Fatalf("created = %d, want 2", len(created))
	}
	if created[0].Title != "second" || created[1].Title != "first" {
		t.Fatalf("order = [%s, %s], want newest first", created[0].Title, created[1].Title)
	}

	reloaded := New(context.Background(), kv, nil)
	if got := reloaded.Created(); len(got) != 2 || got[0].ID != b.ID {
		t.Fatalf("created after reload = %+v", got)
	}
}

func TestRecordProof_RequiresJoin(t *testing.T) {
	kv := memory.New()
	l := New(context.Background(), kv, nil)

	if err := l.RecordProof(context.Background(), "1", "ref-a"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("err = %v, want ErrNotJoined", err)
	}

	if err := l.RecordJoin(context.Background(), "1"); err != nil {
		t.Fatalf("RecordJoin: %v", err)
	}
	if err := l.RecordProof(context.Background(), "1", "ref-a"); err != nil {
		t.Fatalf("RecordProof: %v", err)
	}
	if err := l.RecordProof(context.Background(), "1", "ref-b"); err != nil {
		t.Fatalf("RecordProof overwrite: %v", err)
	}

	reloaded := New(context.Background(), kv, nil)
	ref, ok := reloaded.Proof("1")
	if !ok || ref != "ref-b" {
		t.Fatalf("proof = %q, %v; want ref-b, true", ref, ok)
	}
}

func TestLoad_CorruptKeyIsEmpty(t *testing.T) {
	kv := memory.New()
	if err := kv.Set(context.Background(), "challenges.joined", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	l := New(context.Background(), kv, nil)
	if got := l.Joined(); len(got) != 0 {
		t.Fatalf("joined from corrupt key = %v", got)
	}
}

func TestCatalog(t *testing.T) {
	now := time.Now()
	catalog := Catalog(now)
	if len(catalog) != 5 {
		t.Fatalf("catalog size = %d, want 5", len(catalog))
	}
	if catalog[0].Title != "Sunrise Snap" || catalog[0].StakeLamports != 100_000_000 {
		t.Fatalf("catalog[0] = %+v", catalog[0])
	}
	if !catalog[0].Deadline.After(now) {
		t.Fatal("catalog deadline not in the future")
	}

	stake, ok := CatalogStake("5")
	if !ok || stake != 50_000_000 {
		t.Fatalf("CatalogStake(5) = %d, %v", stake, ok)
	}
	if _, ok := CatalogStake("999"); ok {
		t.Fatal("CatalogStake accepted unknown id")
	}

	catalog[0].Participants = 0
	if Catalog(now)[0].Participants != 23 {
		t.Fatal("catalog mutation leaked into builtins")
	}
}

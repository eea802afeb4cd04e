// Package ledger tracks which challenges the user has joined, which ones
// they created, and the proof artifacts submitted for them. The ledger keeps
// an in-memory mirror of its three storage keys and writes through on every
// mutation, so reads never touch storage and a crash loses at most the
// mutation in flight.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solsnap/walletcore/internal/app/domain/challenge"
	"github.com/solsnap/walletcore/internal/app/storage"
	"github.com/solsnap/walletcore/pkg/logger"
)

const (
	joinedKey  = "challenges.joined"
	createdKey = "challenges.created"
	proofsKey  = "challenges.proofs"
)

// ErrNotJoined is returned when a proof is recorded for a challenge the user
// has not joined.
var ErrNotJoined = errors.New("challenge not joined")

// Ledger is the challenge participation ledger. All methods are safe for
// concurrent use.
type Ledger struct {
	kv  storage.KV
	log *logger.Logger

	mu      sync.Mutex
	joined  map[string]challenge.JoinRecord
	created []challenge.CreatedChallenge
	proofs  map[string]string
}

// New constructs a ledger and loads the persisted state. Corrupt or missing
// keys load as empty; the ledger never fails to construct.
func New(ctx context.Context, kv storage.KV, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	l := &Ledger{
		kv:     kv,
		log:    log,
		joined: make(map[string]challenge.JoinRecord),
		proofs: make(map[string]string),
	}
	l.load(ctx)
	return l
}

func (l *Ledger) load(ctx context.Context) {
	var ids []string
	if l.read(ctx, joinedKey, &ids) {
		for _, id := range ids {
			l.joined[id] = challenge.JoinRecord{ChallengeID: id}
		}
	}
	l.read(ctx, createdKey, &l.created)
	l.read(ctx, proofsKey, &l.proofs)
	if l.proofs == nil {
		l.proofs = make(map[string]string)
	}
}

func (l *Ledger) read(ctx context.Context, key string, dst any) bool {
	raw, err := l.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			l.log.WithError(err).WithField("key", key).Warn("read ledger key")
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		l.log.WithError(err).WithField("key", key).Warn("decode ledger key")
		return false
	}
	return true
}

// IsJoined reports whether the user holds a join record for id.
func (l *Ledger) IsJoined(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.joined[id]
	return ok
}

// Joined returns the join records, ordered by challenge id.
func (l *Ledger) Joined() []challenge.JoinRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]challenge.JoinRecord, 0, len(l.joined))
	for _, rec := range l.joined {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChallengeID < out[j].ChallengeID })
	return out
}

// RecordJoin adds a join record for id. Recording an id that is already
// joined is a no-op, so a retried confirmation can never double-count.
func (l *Ledger) RecordJoin(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.joined[id]; ok {
		return nil
	}
	l.joined[id] = challenge.JoinRecord{ChallengeID: id, JoinedAt: time.Now().UTC()}
	if err := l.persistJoined(ctx); err != nil {
		delete(l.joined, id)
		return err
	}
	return nil
}

// RemoveJoin deletes the join record for id, if present.
func (l *Ledger) RemoveJoin(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.joined[id]
	if !ok {
		return nil
	}
	delete(l.joined, id)
	if err := l.persistJoined(ctx); err != nil {
		l.joined[id] = rec
		return err
	}
	return nil
}

// RecordCreated appends a created-challenge record built from the validated
// draft and returns it. The newest record sorts first.
func (l *Ledger) RecordCreated(ctx context.Context, draft challenge.Draft) (challenge.CreatedChallenge, error) {
	rec := challenge.CreatedChallenge{
		ID:                uuid.NewString(),
		Title:             draft.Title,
		Description:       draft.Description,
		StakeLamports:     draft.StakeLamports,
		PrizePoolLamports: draft.PrizeLamports,
		MaxParticipants:   draft.MaxParticipants,
		Duration:          draft.Duration,
		CreatedAt:         time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append([]challenge.CreatedChallenge{rec}, l.created...)
	if err := l.persist(ctx, createdKey, l.created); err != nil {
		l.created = l.created[1:]
		return challenge.CreatedChallenge{}, err
	}
	return rec, nil
}

// Created returns the created-challenge records, newest first.
func (l *Ledger) Created() []challenge.CreatedChallenge {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]challenge.CreatedChallenge, len(l.created))
	copy(out, l.created)
	return out
}

// RecordProof stores the proof artifact reference for a joined challenge.
// Recording again overwrites the previous reference.
func (l *Ledger) RecordProof(ctx context.Context, id, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.joined[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotJoined, id)
	}
	prev, had := l.proofs[id]
	l.proofs[id] = ref
	if err := l.persist(ctx, proofsKey, l.proofs); err != nil {
		if had {
			l.proofs[id] = prev
		} else {
			delete(l.proofs, id)
		}
		return err
	}
	return nil
}

// Proof returns the stored proof reference for id, if any.
func (l *Ledger) Proof(id string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.proofs[id]
	return ref, ok
}

func (l *Ledger) persistJoined(ctx context.Context) error {
	ids := make([]string, 0, len(l.joined))
	for id := range l.joined {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return l.persist(ctx, joinedKey, ids)
}

func (l *Ledger) persist(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := l.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

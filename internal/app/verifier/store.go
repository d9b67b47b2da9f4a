package verifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"zk-attestation/internal/app/challenge"
)

type State string

const (
	StateIssued    State = "issued"
	StateResponded State = "responded"
	StateExpired   State = "expired"
	StateInvalid   State = "invalid"
)

var ErrChallengeNotFound = errors.New("challenge not found")

// ChallengeRecord is the verifier-side view of an issued challenge.
type ChallengeRecord struct {
	Challenge      challenge.Challenge
	CallbackSecret string
	State          State
	Reason         string
	Commitment     string
	UpdatedAt      time.Time
}

// ChallengeStore persists issued challenges until they are answered or
// expire. Transition is the only way to leave StateIssued and must be atomic:
// it reports false when the record is not currently in state from.
type ChallengeStore interface {
	Save(ctx context.Context, rec ChallengeRecord) error
	Load(ctx context.Context, id string) (ChallengeRecord, error)
	Transition(ctx context.Context, id string, from State, to ChallengeRecord) (bool, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// NullifierLedger remembers accepted uniqueness nullifiers per scope and
// epoch. Record reports false when the nullifier was already present.
type NullifierLedger interface {
	Record(ctx context.Context, scope, epoch, nullifier, challengeID string, at time.Time) (bool, error)
}

type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[string]ChallengeRecord
	nullifiers map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		challenges: make(map[string]ChallengeRecord),
		nullifiers: make(map[string]string),
	}
}

func (s *InMemoryStore) Save(_ context.Context, rec ChallengeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[rec.Challenge.ID] = rec
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, id string) (ChallengeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.challenges[id]
	if !ok {
		return ChallengeRecord{}, ErrChallengeNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) Transition(_ context.Context, id string, from State, to ChallengeRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.challenges[id]
	if !ok {
		return false, ErrChallengeNotFound
	}
	if rec.State != from {
		return false, nil
	}
	rec.State = to.State
	rec.Reason = to.Reason
	rec.Commitment = to.Commitment
	rec.UpdatedAt = to.UpdatedAt
	s.challenges[id] = rec
	return true, nil
}

// PurgeBefore drops settled records last updated before cutoff, and issued
// records that expired before it.
func (s *InMemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.challenges {
		if purgeable(rec, cutoff) {
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) Record(_ context.Context, scope, epoch, nullifier, challengeID string, _ time.Time) (bool, error) {
	key := scope + "\x00" + epoch + "\x00" + nullifier
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nullifiers[key]; ok {
		return false, nil
	}
	s.nullifiers[key] = challengeID
	return true, nil
}

func purgeable(rec ChallengeRecord, cutoff time.Time) bool {
	if rec.State == StateIssued {
		return rec.Challenge.ExpiresAt.Before(cutoff)
	}
	return rec.UpdatedAt.Before(cutoff)
}

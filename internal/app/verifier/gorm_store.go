package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zk-attestation/internal/app/challenge"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChallengeModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	VerifierID     string `gorm:"index;size:128"`
	Kind           string `gorm:"size:32"`
	Payload        string `gorm:"type:text"`
	CallbackSecret string
	State          string `gorm:"index;size:16"`
	Reason         string
	Commitment     string
	ExpiresAt      time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (ChallengeModel) TableName() string { return "challenges" }

type NullifierModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Scope       string `gorm:"uniqueIndex:idx_nullifier_scope_epoch;size:256"`
	Epoch       string `gorm:"uniqueIndex:idx_nullifier_scope_epoch;size:256"`
	Nullifier   string `gorm:"uniqueIndex:idx_nullifier_scope_epoch;size:128"`
	ChallengeID string `gorm:"size:64"`
	CreatedAt   time.Time
}

func (NullifierModel) TableName() string { return "nullifiers" }

// Models lists the tables GormStore needs, for AutoMigrate.
func Models() []any {
	return []any{&ChallengeModel{}, &NullifierModel{}}
}

// GormStore implements ChallengeStore and NullifierLedger on sqlite or postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, rec ChallengeRecord) error {
	payload, err := json.Marshal(rec.Challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	m := ChallengeModel{
		ID:             rec.Challenge.ID,
		VerifierID:     rec.Challenge.VerifierID,
		Kind:           string(rec.Challenge.Kind),
		Payload:        string(payload),
		CallbackSecret: rec.CallbackSecret,
		State:          string(rec.State),
		Reason:         rec.Reason,
		Commitment:     rec.Commitment,
		ExpiresAt:      rec.Challenge.ExpiresAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	return s.db.WithContext(ctx).Save(&m).Error
}

func (s *GormStore) Load(ctx context.Context, id string) (ChallengeRecord, error) {
	var m ChallengeModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChallengeRecord{}, ErrChallengeNotFound
	}
	if err != nil {
		return ChallengeRecord{}, err
	}

	var c challenge.Challenge
	if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
		return ChallengeRecord{}, fmt.Errorf("decode stored challenge %s: %w", id, err)
	}
	return ChallengeRecord{
		Challenge:      c,
		CallbackSecret: m.CallbackSecret,
		State:          State(m.State),
		Reason:         m.Reason,
		Commitment:     m.Commitment,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func (s *GormStore) Transition(ctx context.Context, id string, from State, to ChallengeRecord) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&ChallengeModel{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(map[string]any{
			"state":      string(to.State),
			"reason":     to.Reason,
			"commitment": to.Commitment,
			"updated_at": to.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&ChallengeModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrChallengeNotFound
	}
	return false, nil
}

func (s *GormStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("(state = ? AND expires_at < ?) OR (state <> ? AND updated_at < ?)", string(StateIssued), cutoff, string(StateIssued), cutoff).
		Delete(&ChallengeModel{})
	return int(res.RowsAffected), res.Error
}

func (s *GormStore) Record(ctx context.Context, scope, epoch, nullifier, challengeID string, at time.Time) (bool, error) {
	m := NullifierModel{
		Scope:       scope,
		Epoch:       epoch,
		Nullifier:   nullifier,
		ChallengeID: challengeID,
		CreatedAt:   at,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

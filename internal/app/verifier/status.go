package verifier

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusResponded Status = "responded"
	StatusExpired   Status = "expired"
	StatusInvalid   Status = "invalid"
	StatusUnknown   Status = "unknown"
)

type StatusReport struct {
	ChallengeID string    `json:"challenge_id"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Commitment  string    `json:"commitment,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Status reports where a challenge is in its lifecycle. An issued challenge
// past its expiry reads as expired even before anyone tried to answer it.
func (s *Service) Status(ctx context.Context, challengeID string) (StatusReport, error) {
	rec, err := s.store.Load(ctx, challengeID)
	if errors.Is(err, ErrChallengeNotFound) {
		return StatusReport{ChallengeID: challengeID, Status: StatusUnknown}, nil
	}
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{
		ChallengeID: challengeID,
		Reason:      rec.Reason,
		Commitment:  rec.Commitment,
		ExpiresAt:   rec.Challenge.ExpiresAt,
		UpdatedAt:   rec.UpdatedAt,
	}

	switch rec.State {
	case StateIssued:
		report.Status = StatusPending
		if rec.Challenge.Expired(s.now()) {
			report.Status = StatusExpired
		}
	case StateResponded:
		report.Status = StatusResponded
	case StateExpired:
		report.Status = StatusExpired
	case StateInvalid:
		report.Status = StatusInvalid
	default:
		report.Status = StatusUnknown
	}
	return report, nil
}

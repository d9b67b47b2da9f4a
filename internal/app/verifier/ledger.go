package verifier

import (
	"context"

	"zk-attestation/internal/app/challenge"
	reasoncodes "zk-attestation/pkg/reason_codes"
	"zk-attestation/pkg/zkp"
)

// ProofPackageMessage publishes a ProofPackage in its borsh encoding.
type ProofPackageMessage struct {
	Package *zkp.ProofPackage
}

func (m ProofPackageMessage) Serialize() ([]byte, error) {
	return m.Package.SerializeBorsh()
}

func (m ProofPackageMessage) ContentType() string {
	return "application/x-borsh"
}

func (s *Service) publishPackage(ctx context.Context, c challenge.Challenge, resp *challenge.Response, v Verdict) {
	if s.publisher == nil {
		return
	}

	pkg := &zkp.ProofPackage{
		ChallengeID:   c.ID,
		Kind:          string(c.Kind),
		Proof:         resp.Proof,
		PublicSignals: resp.PublicSignals,
		Commitment:    resp.Commitment,
		Nullifier:     resp.Nullifier,
		VerifiedAt:    v.DecidedAt.Unix(),
		CryptoChecked: v.CryptoChecked,
	}
	if err := s.publisher.Publish(ctx, ProofPackageMessage{Package: pkg}); err != nil {
		s.logger.Errorf(err, "[%s] Cannot publish proof package for challenge %s", reasoncodes.ErrLedgerPublish, c.ID)
		return
	}
	s.logger.Debugf("Published proof package for challenge %s", c.ID)
}

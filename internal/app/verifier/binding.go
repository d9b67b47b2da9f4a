package verifier

import (
	"fmt"
	"strconv"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/challenge"
	"zk-attestation/internal/app/engine"
	"zk-attestation/pkg/zkp"
)

const (
	signalAgeThreshold = 2
	signalAgeAsOf      = 3

	signalRegionAllowed = 2

	signalUniquenessNullifier = 2
	signalUniquenessScope     = 3
	signalUniquenessEpoch     = 4
)

// checkBinding makes sure the public signals of a response prove the
// statement the challenge asked for and not some other one.
func checkBinding(c challenge.Challenge, resp *challenge.Response, now time.Time) error {
	if resp.Kind != c.Kind {
		return attestation.NewChallengeMismatchError(fmt.Sprintf("response carries a %s attestation, challenge asked for %s", resp.Kind, c.Kind))
	}

	signals := resp.PublicSignals
	if want := zkp.PublicSignalCount(zkp.CircuitID(c.Kind)); len(signals) != want {
		return attestation.NewChallengeMismatchError(fmt.Sprintf("expected %d public signals for %s, got %d", want, c.Kind, len(signals)))
	}

	switch p := c.Params.(type) {
	case attestation.AgeParams:
		if signals[signalAgeThreshold] != strconv.Itoa(p.Threshold) {
			return attestation.NewChallengeMismatchError("threshold signal does not match the challenge")
		}
		asOf, err := strconv.ParseInt(signals[signalAgeAsOf], 10, 64)
		if err != nil {
			return attestation.NewChallengeMismatchError("as_of signal is not a date")
		}
		earliest := attestation.DateOf(c.IssuedAt).Int()
		latest := attestation.DateOf(now).Int()
		if asOf < earliest || asOf > latest {
			return attestation.NewChallengeMismatchError(fmt.Sprintf("as_of %d is outside the challenge window %d..%d", asOf, earliest, latest))
		}

	case attestation.RegionParams:
		allowed := p.Canonical().(attestation.RegionParams).AllowedRegions
		for i := 0; i < zkp.MaxAllowedRegions; i++ {
			code := allowed[0]
			if i < len(allowed) {
				code = allowed[i]
			}
			if signals[signalRegionAllowed+i] != engine.RegionField(code).String() {
				return attestation.NewChallengeMismatchError("allowed region signals do not match the challenge")
			}
		}

	case attestation.UniquenessParams:
		if resp.Nullifier == "" || signals[signalUniquenessNullifier] != resp.Nullifier {
			return attestation.NewChallengeMismatchError("nullifier does not match its public signal")
		}
		if signals[signalUniquenessScope] != engine.ScopeField(p.Scope).String() {
			return attestation.NewChallengeMismatchError("scope signal does not match the challenge")
		}
		if signals[signalUniquenessEpoch] != engine.EpochField(p.Epoch).String() {
			return attestation.NewChallengeMismatchError("epoch signal does not match the challenge")
		}

	default:
		return attestation.NewChallengeMismatchError(fmt.Sprintf("unsupported challenge params %T", c.Params))
	}

	return nil
}

package engine

import (
	"math/big"
	"strings"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/zkp"
)

// preconditionFacts carries values derived while checking preconditions so
// they are not recomputed when building circuit inputs.
type preconditionFacts struct {
	asOf       attestation.Date
	age        int
	regionCode string
}

// checkPreconditions rejects requests whose statement is false before any
// proving work is spent on them.
func checkPreconditions(kind attestation.Kind, record attestation.AttributeRecord, params attestation.Params, asOf attestation.Date) (preconditionFacts, error) {
	facts := preconditionFacts{asOf: asOf}

	switch p := params.(type) {
	case attestation.AgeParams:
		age, err := record.DateOfBirth.AgeOn(asOf)
		if err != nil {
			return facts, errParam(kind, "%s", err.Error())
		}
		if age < p.Threshold {
			return facts, errParam(kind, "holder does not meet the minimum age of %d", p.Threshold)
		}
		facts.age = age
	case attestation.RegionParams:
		code, ok := record.RegionCode()
		if !ok {
			return facts, errParam(kind, "holder region '%s' is not a supported region", record.Region)
		}
		if !p.Allows(code) {
			return facts, errParam(kind, "holder region is not in the allowed regions")
		}
		facts.regionCode = code
	case attestation.UniquenessParams:
	}

	return facts, nil
}

// buildInputs assembles the named circuit inputs and the public metadata of
// the attestation. params must already carry a nonce.
func (e *Engine) buildInputs(kind attestation.Kind, record attestation.AttributeRecord, params attestation.Params, facts preconditionFacts) (map[string]any, attestation.Metadata, error) {
	var meta attestation.Metadata

	reference := zkp.HashToField(record.ReferenceID)
	nonce := zkp.HashToField(params.GetNonce())

	switch p := params.(type) {
	case attestation.AgeParams:
		name := zkp.HashToField(strings.TrimSpace(record.Name))
		birthDate := big.NewInt(record.DateOfBirth.Int())

		commitment, err := e.commit(kind, reference, name, birthDate, nonce)
		if err != nil {
			return nil, meta, err
		}

		threshold := p.Threshold
		meta.Commitment = commitment.String()
		meta.Threshold = &threshold
		meta.AsOf = facts.asOf.String()

		return map[string]any{
			zkp.InputCommitment: commitment,
			zkp.InputValid:      1,
			zkp.InputThreshold:  p.Threshold,
			zkp.InputAsOf:       facts.asOf.Int(),
			zkp.InputAge:        facts.age,
			zkp.InputReference:  reference,
			zkp.InputName:       name,
			zkp.InputBirthDate:  birthDate,
			zkp.InputNonce:      nonce,
		}, meta, nil

	case attestation.RegionParams:
		region := zkp.HashToField(facts.regionCode)
		allowed := make([]*big.Int, 0, len(p.AllowedRegions))
		for _, code := range p.AllowedRegions {
			allowed = append(allowed, zkp.HashToField(code))
		}

		commitment, err := e.commit(kind, reference, region, nonce)
		if err != nil {
			return nil, meta, err
		}
		meta.Commitment = commitment.String()

		return map[string]any{
			zkp.InputCommitment:     commitment,
			zkp.InputValid:          1,
			zkp.InputAllowedRegions: allowed,
			zkp.InputRegion:         region,
			zkp.InputReference:      reference,
			zkp.InputNonce:          nonce,
		}, meta, nil

	case attestation.UniquenessParams:
		scope := zkp.HashToField(p.Scope)
		epoch := EpochField(p.Epoch)

		nullifier, err := e.commit(kind, reference, scope, epoch)
		if err != nil {
			return nil, meta, err
		}
		commitment, err := e.commit(kind, reference, nonce)
		if err != nil {
			return nil, meta, err
		}

		meta.Commitment = commitment.String()
		meta.Nullifier = nullifier.String()
		meta.Scope = p.Scope
		meta.Epoch = p.Epoch

		return map[string]any{
			zkp.InputCommitment: commitment,
			zkp.InputValid:      1,
			zkp.InputNullifier:  nullifier,
			zkp.InputScope:      scope,
			zkp.InputEpoch:      epoch,
			zkp.InputReference:  reference,
			zkp.InputNonce:      nonce,
		}, meta, nil
	}

	return nil, meta, errParam(kind, "unsupported params type %T", params)
}

func (e *Engine) commit(kind attestation.Kind, inputs ...*big.Int) (*big.Int, error) {
	c, err := e.committer.Commit(inputs...)
	if err != nil {
		return nil, attestation.NewProofGenerationError(kind, err)
	}
	return c, nil
}

// EpochField encodes an epoch identifier; an absent epoch is zero.
func EpochField(epoch string) *big.Int {
	if epoch == "" {
		return big.NewInt(0)
	}
	return zkp.HashToField(epoch)
}

// ScopeField encodes a uniqueness scope the same way the engine does.
func ScopeField(scope string) *big.Int {
	return zkp.HashToField(scope)
}

// RegionField encodes a region code the same way the engine does.
func RegionField(code string) *big.Int {
	return zkp.HashToField(code)
}

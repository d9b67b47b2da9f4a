package zkp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
)

const (
	ElipticalCurveID = ecc.BN254
)

// CircuitID names one of the attestation circuits shipped with the prover adapter.
type CircuitID string

const (
	CircuitAge        CircuitID = "age"
	CircuitRegion     CircuitID = "region"
	CircuitUniqueness CircuitID = "uniqueness"
)

// Input names used in the assignment maps handed to Assign.
const (
	InputCommitment     = "commitment"
	InputValid          = "valid"
	InputThreshold      = "threshold"
	InputAsOf           = "as_of"
	InputAge            = "age"
	InputReference      = "reference"
	InputName           = "name"
	InputBirthDate      = "birth_date"
	InputNonce          = "nonce"
	InputRegion         = "region"
	InputAllowedRegions = "allowed_regions"
	InputNullifier      = "nullifier"
	InputScope          = "scope"
	InputEpoch          = "epoch"
)

func ScalarField() *big.Int {
	return ElipticalCurveID.ScalarField()
}

func (id CircuitID) Validate() error {
	switch id {
	case CircuitAge, CircuitRegion, CircuitUniqueness:
		return nil
	default:
		return fmt.Errorf("unknown circuit '%s'", id)
	}
}

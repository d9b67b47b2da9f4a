package zkp

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
)

// Prove generates a groth16 proof and returns it serialized together with
// the public signals in declaration order.
func Prove(a *Artifacts, inputs map[string]any) ([]byte, []string, error) {
	assignment, err := Assign(a.ID, inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("assign values: %w", err)
	}

	fullWitness, err := frontend.NewWitness(assignment, ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("new witness: %w", err)
	}

	proof, err := groth16.Prove(a.ConstraintSystem, a.ProvingKey, fullWitness)
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 prove: %w", err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, nil, fmt.Errorf("serialize proof: %w", err)
	}

	signals, err := ExportPublicSignals(fullWitness)
	if err != nil {
		return nil, nil, err
	}

	return proofBuf.Bytes(), signals, nil
}

func ExportPublicSignals(w witness.Witness) ([]string, error) {
	public, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}

	elems, ok := public.Vector().(fr.Vector)
	if !ok {
		return nil, errors.New("unexpected public witness vector type")
	}

	result := make([]string, 0, len(elems))
	for _, e := range elems {
		result = append(result, e.BigInt(new(big.Int)).String())
	}
	return result, nil
}

// Verify checks a serialized proof against a serialized verifying key.
// A proof that does not satisfy the verification equation yields (false, nil);
// malformed inputs yield an error.
func Verify(id CircuitID, vkBytes, proofBytes []byte, signals []string) (bool, error) {
	vk := groth16.NewVerifyingKey(ElipticalCurveID)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return false, fmt.Errorf("read vk: %w", err)
	}

	proof, err := DecodeProof(proofBytes)
	if err != nil {
		return false, err
	}

	values, err := ParseSignals(signals)
	if err != nil {
		return false, err
	}

	assignment, err := AssignPublic(id, values)
	if err != nil {
		return false, err
	}

	publicWitness, err := frontend.NewWitness(assignment, ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("public witness: %w", err)
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

func DecodeProof(proofBytes []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(ElipticalCurveID)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}
	return proof, nil
}

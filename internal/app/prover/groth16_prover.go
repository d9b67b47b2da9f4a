package prover

import (
	"context"
	"fmt"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/circuits"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/zkp"
)

// Groth16Prover adapts pkg/zkp to the engine's opaque prover capability.
// gnark cannot interrupt a running proof, so ctx is only checked around it.
type Groth16Prover struct {
	logger *logger.Logger
}

func NewGroth16Prover(log *logger.Logger) *Groth16Prover {
	return &Groth16Prover{logger: log}
}

func (p *Groth16Prover) Prove(ctx context.Context, circuit *circuits.Circuit, inputs map[string]any) ([]byte, []string, error) {
	artifacts, ok := circuit.Artifact.(*zkp.Artifacts)
	if !ok {
		return nil, nil, fmt.Errorf("circuit %s carries %T, expected groth16 artifacts", circuit.Kind, circuit.Artifact)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	proof, signals, err := zkp.Prove(artifacts, inputs)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p.logger.Debugf("groth16 proof for %s: %d bytes, %d public signals", circuit.Kind, len(proof), len(signals))
	return proof, signals, nil
}

func (p *Groth16Prover) Verify(ctx context.Context, kind attestation.Kind, verifyingKey, proof []byte, publicSignals []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(verifyingKey) == 0 {
		return false, fmt.Errorf("no verifying key for %s", kind)
	}
	return zkp.Verify(zkp.CircuitID(kind), verifyingKey, proof, publicSignals)
}

package zkp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// NewCircuit returns an empty circuit definition suitable for compilation.
func NewCircuit(id CircuitID) (frontend.Circuit, error) {
	switch id {
	case CircuitAge:
		return &AgeCircuit{}, nil
	case CircuitRegion:
		return &RegionCircuit{}, nil
	case CircuitUniqueness:
		return &UniquenessCircuit{}, nil
	default:
		return nil, fmt.Errorf("unknown circuit '%s'", id)
	}
}

// PublicSignalCount is the length of the public witness of the circuit.
func PublicSignalCount(id CircuitID) int {
	switch id {
	case CircuitAge:
		return 4
	case CircuitRegion:
		return 2 + MaxAllowedRegions
	case CircuitUniqueness:
		return 5
	default:
		return 0
	}
}

// Assign builds a full witness assignment from named inputs.
func Assign(id CircuitID, inputs map[string]any) (frontend.Circuit, error) {
	a := assignmentReader{inputs: inputs}

	switch id {
	case CircuitAge:
		c := &AgeCircuit{
			Commitment: a.scalar(InputCommitment),
			Valid:      a.scalar(InputValid),
			Threshold:  a.scalar(InputThreshold),
			AsOf:       a.scalar(InputAsOf),
			Age:        a.scalar(InputAge),
			Reference:  a.scalar(InputReference),
			Name:       a.scalar(InputName),
			BirthDate:  a.scalar(InputBirthDate),
			Nonce:      a.scalar(InputNonce),
		}
		return c, a.err
	case CircuitRegion:
		c := &RegionCircuit{
			Commitment: a.scalar(InputCommitment),
			Valid:      a.scalar(InputValid),
			Region:     a.scalar(InputRegion),
			Reference:  a.scalar(InputReference),
			Nonce:      a.scalar(InputNonce),
		}
		allowed := a.list(InputAllowedRegions)
		if a.err == nil {
			a.err = fillAllowed(&c.AllowedRegions, allowed)
		}
		return c, a.err
	case CircuitUniqueness:
		c := &UniquenessCircuit{
			Commitment: a.scalar(InputCommitment),
			Valid:      a.scalar(InputValid),
			Nullifier:  a.scalar(InputNullifier),
			Scope:      a.scalar(InputScope),
			Epoch:      a.scalar(InputEpoch),
			Reference:  a.scalar(InputReference),
			Nonce:      a.scalar(InputNonce),
		}
		return c, a.err
	default:
		return nil, fmt.Errorf("unknown circuit '%s'", id)
	}
}

// AssignPublic rebuilds an assignment from public signals only; secret
// variables are zeroed so the result can back a public-only witness.
func AssignPublic(id CircuitID, signals []*big.Int) (frontend.Circuit, error) {
	if want := PublicSignalCount(id); want == 0 || len(signals) != want {
		return nil, fmt.Errorf("circuit '%s' expects %d public signals, got %d", id, PublicSignalCount(id), len(signals))
	}

	switch id {
	case CircuitAge:
		return &AgeCircuit{
			Commitment: signals[0], Valid: signals[1], Threshold: signals[2], AsOf: signals[3],
			Age: 0, Reference: 0, Name: 0, BirthDate: 0, Nonce: 0,
		}, nil
	case CircuitRegion:
		c := &RegionCircuit{Commitment: signals[0], Valid: signals[1], Region: 0, Reference: 0, Nonce: 0}
		for i := range c.AllowedRegions {
			c.AllowedRegions[i] = signals[2+i]
		}
		return c, nil
	default:
		return &UniquenessCircuit{
			Commitment: signals[0], Valid: signals[1], Nullifier: signals[2], Scope: signals[3], Epoch: signals[4],
			Reference: 0, Nonce: 0,
		}, nil
	}
}

// fillAllowed pads unused slots with the first allowed region, which keeps
// the membership product unchanged.
func fillAllowed(dst *[MaxAllowedRegions]frontend.Variable, allowed []*big.Int) error {
	if len(allowed) == 0 {
		return fmt.Errorf("'%s' must not be empty", InputAllowedRegions)
	}
	if len(allowed) > MaxAllowedRegions {
		return fmt.Errorf("'%s' supports at most %d entries, got %d", InputAllowedRegions, MaxAllowedRegions, len(allowed))
	}
	for i := range dst {
		if i < len(allowed) {
			dst[i] = allowed[i]
		} else {
			dst[i] = allowed[0]
		}
	}
	return nil
}

type assignmentReader struct {
	inputs map[string]any
	err    error
}

func (r *assignmentReader) scalar(name string) frontend.Variable {
	if r.err != nil {
		return nil
	}
	raw, ok := r.inputs[name]
	if !ok || raw == nil {
		r.err = fmt.Errorf("required input '%s' missing from assignments", name)
		return nil
	}
	v, err := toBigInt(raw)
	if err != nil {
		r.err = fmt.Errorf("invalid value for input '%s': %w", name, err)
		return nil
	}
	return v
}

func (r *assignmentReader) list(name string) []*big.Int {
	if r.err != nil {
		return nil
	}
	raw, ok := r.inputs[name]
	if !ok {
		r.err = fmt.Errorf("required input '%s' missing from assignments", name)
		return nil
	}
	values, ok := raw.([]*big.Int)
	if !ok {
		r.err = fmt.Errorf("input '%s' must be []*big.Int, got %T", name, raw)
		return nil
	}
	return values
}

func toBigInt(raw any) (*big.Int, error) {
	switch v := raw.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil big.Int")
		}
		return v, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case string:
		return ParseSignal(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

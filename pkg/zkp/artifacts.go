package zkp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Artifacts is the compiled constraint system and groth16 key pair for one circuit.
type Artifacts struct {
	ID               CircuitID
	ConstraintSystem constraint.ConstraintSystem
	ProvingKey       groth16.ProvingKey
	VerifyingKey     groth16.VerifyingKey
}

type ArtifactPaths struct {
	ConstraintSystem string
	ProvingKey       string
	VerifyingKey     string
}

func DefaultArtifactPaths(dir string, id CircuitID) ArtifactPaths {
	return ArtifactPaths{
		ConstraintSystem: filepath.Join(dir, string(id)+".r1cs"),
		ProvingKey:       filepath.Join(dir, string(id)+".pk"),
		VerifyingKey:     filepath.Join(dir, string(id)+".vk"),
	}
}

// Exist reports whether all three artifact files are present.
func (p ArtifactPaths) Exist() bool {
	for _, path := range []string{p.ConstraintSystem, p.ProvingKey, p.VerifyingKey} {
		if path == "" {
			return false
		}
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

func Compile(id CircuitID) (constraint.ConstraintSystem, error) {
	circuit, err := NewCircuit(id)
	if err != nil {
		return nil, err
	}

	ccs, err := frontend.Compile(ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile circuit '%s': %w", id, err)
	}
	return ccs, nil
}

// CompileAndSetup compiles the circuit and runs a local groth16 setup.
// Keys produced this way are for development only.
func CompileAndSetup(id CircuitID) (*Artifacts, error) {
	ccs, err := Compile(id)
	if err != nil {
		return nil, err
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup '%s': %w", id, err)
	}

	return &Artifacts{ID: id, ConstraintSystem: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

func ReadArtifacts(id CircuitID, paths ArtifactPaths) (*Artifacts, error) {
	ccs := groth16.NewCS(ElipticalCurveID)
	if err := readFile(paths.ConstraintSystem, ccs); err != nil {
		return nil, fmt.Errorf("read constraint system: %w", err)
	}

	pk := groth16.NewProvingKey(ElipticalCurveID)
	if err := readFile(paths.ProvingKey, pk); err != nil {
		return nil, fmt.Errorf("read pk: %w", err)
	}

	vk := groth16.NewVerifyingKey(ElipticalCurveID)
	if err := readFile(paths.VerifyingKey, vk); err != nil {
		return nil, fmt.Errorf("read vk: %w", err)
	}

	return &Artifacts{ID: id, ConstraintSystem: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

func WriteArtifacts(a *Artifacts, paths ArtifactPaths) error {
	if err := writeFile(paths.ConstraintSystem, a.ConstraintSystem); err != nil {
		return fmt.Errorf("write constraint system: %w", err)
	}
	if err := writeFile(paths.ProvingKey, a.ProvingKey); err != nil {
		return fmt.Errorf("write pk: %w", err)
	}
	if err := writeFile(paths.VerifyingKey, a.VerifyingKey); err != nil {
		return fmt.Errorf("write vk: %w", err)
	}
	return nil
}

func (a *Artifacts) VerifyingKeyBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := a.VerifyingKey.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readFile(path string, dst io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = dst.ReadFrom(f)
	return err
}

func writeFile(path string, src io.WriterTo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = src.WriteTo(f)
	return err
}

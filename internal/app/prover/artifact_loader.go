package prover

import (
	"context"
	"fmt"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/zkp"
)

type ArtifactLoaderConfig struct {
	Dir              string
	SetupIfMissing   bool
	PersistGenerated bool
	// Paths overrides the default <Dir>/<kind>.{r1cs,pk,vk} locations per kind.
	Paths map[attestation.Kind]zkp.ArtifactPaths
}

// ArtifactLoader reads groth16 artifacts from disk. With SetupIfMissing it
// compiles the circuit and runs a local setup instead, which is only
// suitable for development.
type ArtifactLoader struct {
	cfg    ArtifactLoaderConfig
	logger *logger.Logger
}

func NewArtifactLoader(cfg ArtifactLoaderConfig, log *logger.Logger) *ArtifactLoader {
	return &ArtifactLoader{cfg: cfg, logger: log}
}

func (l *ArtifactLoader) paths(kind attestation.Kind) zkp.ArtifactPaths {
	if p, ok := l.cfg.Paths[kind]; ok {
		return p
	}
	return zkp.DefaultArtifactPaths(l.cfg.Dir, zkp.CircuitID(kind))
}

func (l *ArtifactLoader) Available(kind attestation.Kind) bool {
	return l.paths(kind).Exist()
}

func (l *ArtifactLoader) Load(ctx context.Context, kind attestation.Kind) (any, []byte, error) {
	id := zkp.CircuitID(kind)
	if err := id.Validate(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	paths := l.paths(kind)

	var (
		artifacts *zkp.Artifacts
		err       error
	)
	switch {
	case paths.Exist():
		artifacts, err = zkp.ReadArtifacts(id, paths)
	case l.cfg.SetupIfMissing:
		l.logger.Warnf("Artifacts for %s not found, running local groth16 setup", kind)
		artifacts, err = zkp.CompileAndSetup(id)
		if err == nil && l.cfg.PersistGenerated {
			if werr := zkp.WriteArtifacts(artifacts, paths); werr != nil {
				l.logger.Errorf(werr, "Failed to persist generated artifacts for %s", kind)
			} else {
				l.logger.Infof("Persisted generated artifacts for %s to %s", kind, paths.ProvingKey)
			}
		}
	default:
		return nil, nil, fmt.Errorf("artifacts for %s not found at %s", kind, paths.ProvingKey)
	}
	if err != nil {
		return nil, nil, err
	}

	vk, err := artifacts.VerifyingKeyBytes()
	if err != nil {
		return nil, nil, fmt.Errorf("serialize vk: %w", err)
	}
	return artifacts, vk, nil
}

package circuits

import (
	"context"
	"fmt"

	"zk-attestation/internal/app/attestation"
)

// StaticLoader serves artifacts from memory. Handy for dev and tests.
type StaticLoader struct {
	Artifacts     map[attestation.Kind]any
	VerifyingKeys map[attestation.Kind][]byte
}

func (l *StaticLoader) Load(_ context.Context, kind attestation.Kind) (any, []byte, error) {
	if l == nil || l.Artifacts == nil {
		return nil, nil, fmt.Errorf("no artifacts registered")
	}
	artifact, ok := l.Artifacts[kind]
	if !ok {
		return nil, nil, fmt.Errorf("no artifact registered for %s", kind)
	}
	return artifact, l.VerifyingKeys[kind], nil
}

func (l *StaticLoader) Available(kind attestation.Kind) bool {
	if l == nil || l.Artifacts == nil {
		return false
	}
	_, ok := l.Artifacts[kind]
	return ok
}

package circuits

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/utilities"

	"golang.org/x/sync/singleflight"
)

// Circuit is the loaded, opaque proving material for one attestation kind.
// Artifact is only interpreted by the prover adapter that produced it.
type Circuit struct {
	Kind         attestation.Kind
	Artifact     any
	VerifyingKey []byte
	Integrity    string
	LoadedAt     time.Time
}

// Loader fetches and parses the artifacts of a kind.
type Loader interface {
	Load(ctx context.Context, kind attestation.Kind) (artifact any, verifyingKey []byte, err error)
	// Available reports whether artifacts for kind can be found locally.
	Available(kind attestation.Kind) bool
}

type Info struct {
	Kind      attestation.Kind `json:"kind"`
	Loaded    bool             `json:"loaded"`
	Available bool             `json:"available"`
	Integrity string           `json:"integrity,omitempty"`
	LoadedAt  *time.Time       `json:"loaded_at,omitempty"`
}

// Registry memoizes loaded circuits per kind. Concurrent loads of the same
// kind share one loader call; different kinds load independently.
type Registry struct {
	loader Loader
	logger *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	circuits map[attestation.Kind]*Circuit
	loads    singleflight.Group
}

func NewRegistry(loader Loader, log *logger.Logger) *Registry {
	return &Registry{
		loader:   loader,
		logger:   log,
		now:      time.Now,
		circuits: make(map[attestation.Kind]*Circuit),
	}
}

// Get returns the circuit for kind, loading it on first access.
func (r *Registry) Get(ctx context.Context, kind attestation.Kind) (*Circuit, error) {
	return r.Load(ctx, kind)
}

// Load is idempotent: once a kind is loaded the memoized circuit is returned.
func (r *Registry) Load(ctx context.Context, kind attestation.Kind) (*Circuit, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	if c, ok := r.lookup(kind); ok {
		return c, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(string(kind), func() (any, error) {
		if c, ok := r.lookup(kind); ok {
			return c, nil
		}
		return r.load(shared, kind)
	})

	select {
	case <-ctx.Done():
		return nil, attestation.NewCircuitLoadError(kind, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Circuit), nil
	}
}

func (r *Registry) load(ctx context.Context, kind attestation.Kind) (*Circuit, error) {
	started := r.now()
	r.logger.Infof("Loading circuit artifacts for %s", kind)

	artifact, vk, err := r.loader.Load(ctx, kind)
	if err != nil {
		r.logger.Errorf(err, "Failed to load circuit %s", kind)
		if errors.Is(err, attestation.ErrCircuitLoad) {
			return nil, err
		}
		return nil, attestation.NewCircuitLoadError(kind, err)
	}

	c := &Circuit{
		Kind:         kind,
		Artifact:     artifact,
		VerifyingKey: vk,
		Integrity:    integrity(vk),
		LoadedAt:     r.now(),
	}

	r.mu.Lock()
	r.circuits[kind] = c
	r.mu.Unlock()

	r.logger.Infof("Circuit %s loaded in %s", kind, c.LoadedAt.Sub(started))
	return c, nil
}

func (r *Registry) lookup(kind attestation.Kind) (*Circuit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.circuits[kind]
	return c, ok
}

func (r *Registry) Loaded(kind attestation.Kind) bool {
	_, ok := r.lookup(kind)
	return ok
}

// Available is a diagnostics check that does not load anything.
func (r *Registry) Available(kind attestation.Kind) bool {
	return r.loader.Available(kind)
}

// Evict drops a loaded circuit so the next Get reloads it.
func (r *Registry) Evict(kind attestation.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.circuits[kind]
	delete(r.circuits, kind)
	return ok
}

func (r *Registry) Info(kind attestation.Kind) Info {
	info := Info{Kind: kind, Available: r.Available(kind)}
	if c, ok := r.lookup(kind); ok {
		loadedAt := c.LoadedAt
		info.Loaded = true
		info.Integrity = c.Integrity
		info.LoadedAt = &loadedAt
	}
	return info
}

func (r *Registry) List() []Info {
	infos := utilities.Map(attestation.AllKinds, r.Info)
	sort.Slice(infos, func(i, j int) bool { return infos[i].Kind < infos[j].Kind })
	return infos
}

func integrity(vk []byte) string {
	if len(vk) == 0 {
		return ""
	}
	sum := sha256.Sum256(vk)
	return hex.EncodeToString(sum[:])
}

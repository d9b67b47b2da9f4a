package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/circuits"
	"zk-attestation/internal/app/proofcache"
	"zk-attestation/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Prover is the opaque proving capability. Implementations should honour
// ctx cancellation where the underlying backend allows it.
type Prover interface {
	Prove(ctx context.Context, circuit *circuits.Circuit, inputs map[string]any) (proof []byte, publicSignals []string, err error)
	Verify(ctx context.Context, kind attestation.Kind, verifyingKey, proof []byte, publicSignals []string) (bool, error)
}

// Committer is a deterministic, collision-resistant function over ordered
// field elements. It must match the commitment used inside the circuits.
type Committer interface {
	Commit(inputs ...*big.Int) (*big.Int, error)
}

type CircuitSource interface {
	Get(ctx context.Context, kind attestation.Kind) (*circuits.Circuit, error)
}

type Engine struct {
	circuits  CircuitSource
	committer Committer
	prover    Prover
	cache     *proofcache.Cache
	cfg       Config
	logger    *logger.Logger
	now       func() time.Time
	newNonce  func() string

	inflight singleflight.Group
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithNonceSource(newNonce func() string) Option {
	return func(e *Engine) {
		e.newNonce = newNonce
	}
}

// WithCache replaces the engine-owned cache, e.g. to share a clock in tests.
func WithCache(cache *proofcache.Cache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

func New(source CircuitSource, committer Committer, prover Prover, cfg Config, log *logger.Logger, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		circuits:  source,
		committer: committer,
		prover:    prover,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
		newNonce:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = proofcache.New(cfg.CacheTTL, proofcache.WithClock(e.now))
	}
	return e
}

func (e *Engine) GenerateAge(ctx context.Context, record attestation.AttributeRecord, params attestation.AgeParams) (*attestation.Attestation, error) {
	return e.Generate(ctx, attestation.KindAge, record, params)
}

func (e *Engine) GenerateRegion(ctx context.Context, record attestation.AttributeRecord, params attestation.RegionParams) (*attestation.Attestation, error) {
	return e.Generate(ctx, attestation.KindRegion, record, params)
}

func (e *Engine) GenerateUniqueness(ctx context.Context, record attestation.AttributeRecord, params attestation.UniquenessParams) (*attestation.Attestation, error) {
	return e.Generate(ctx, attestation.KindUniqueness, record, params)
}

// Generate produces one attestation of kind. Preconditions are checked before
// the cache and the prover; at most one proof is computed per fingerprint
// while the cached result is live, and concurrent callers share it.
func (e *Engine) Generate(ctx context.Context, kind attestation.Kind, record attestation.AttributeRecord, params attestation.Params) (*attestation.Attestation, error) {
	if err := attestation.CheckParams(kind, params); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, withKind(err, kind)
	}
	// copy, so later caller mutations cannot reach the cached metadata
	params = params.WithNonce(params.GetNonce())

	asOf := attestation.DateOf(e.now())
	facts, err := checkPreconditions(kind, record, params, asOf)
	if err != nil {
		return nil, err
	}

	fingerprint, err := attestation.Fingerprint(kind, record.ReferenceID, params)
	if err != nil {
		return nil, &attestation.Error{Code: attestation.ErrParameterValidation.Code, Kind: kind, Message: "cannot fingerprint params", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, attestation.NewProofGenerationError(kind, err)
	}

	if cached, ok := e.cache.Get(fingerprint); ok {
		e.logger.Debugf("Cache hit for %s attestation %s", kind, shortFingerprint(fingerprint))
		return cached, nil
	}

	// The shared computation outlives any single caller; it is bounded by the
	// per-kind prover deadline and each caller stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := e.inflight.DoChan(fingerprint, func() (any, error) {
		if cached, ok := e.cache.Get(fingerprint); ok {
			return cached, nil
		}

		att, err := e.produce(shared, kind, record, params, facts)
		if err != nil {
			return nil, err
		}
		e.cache.Put(fingerprint, att)
		return att, nil
	})

	select {
	case <-ctx.Done():
		return nil, attestation.NewProofGenerationError(kind, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*attestation.Attestation).Clone(), nil
	}
}

func (e *Engine) produce(ctx context.Context, kind attestation.Kind, record attestation.AttributeRecord, params attestation.Params, facts preconditionFacts) (*attestation.Attestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, attestation.NewProofGenerationError(kind, err)
	}

	nonce := params.GetNonce()
	if nonce == "" {
		nonce = e.newNonce()
	}
	params = params.WithNonce(nonce).Canonical()

	circuit, err := e.circuits.Get(ctx, kind)
	if err != nil {
		return nil, err
	}

	inputs, meta, err := e.buildInputs(kind, record, params, facts)
	if err != nil {
		return nil, err
	}

	started := e.now()
	proof, signals, err := e.prove(ctx, kind, circuit, inputs)
	if err != nil {
		e.logger.Errorf(err, "Proof generation failed for %s", kind)
		return nil, err
	}
	if len(signals) <= attestation.SignalValid || len(proof) == 0 {
		return nil, attestation.NewProofGenerationError(kind, errors.New("prover returned an incomplete proof"))
	}

	meta.CreatedAt = e.now()
	meta.Params = params
	e.logger.Infof("Generated %s attestation in %s", kind, meta.CreatedAt.Sub(started))

	return &attestation.Attestation{
		Kind:          kind,
		Proof:         proof,
		PublicSignals: signals,
		Metadata:      meta,
	}, nil
}

type proveResult struct {
	proof   []byte
	signals []string
	err     error
}

// prove runs the prover under the per-kind deadline. On expiry the attempt is
// abandoned; the prover goroutine sees a cancelled context.
func (e *Engine) prove(ctx context.Context, kind attestation.Kind, circuit *circuits.Circuit, inputs map[string]any) ([]byte, []string, error) {
	timeout := e.cfg.timeout(kind)
	proveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan proveResult, 1)
	go func() {
		proof, signals, err := e.prover.Prove(proveCtx, circuit, inputs)
		done <- proveResult{proof: proof, signals: signals, err: err}
	}()

	select {
	case <-proveCtx.Done():
		if ctx.Err() == nil {
			return nil, nil, attestation.NewProofTimeoutError(kind, timeout)
		}
		return nil, nil, attestation.NewProofGenerationError(kind, ctx.Err())
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, attestation.ErrProofGeneration) {
				return nil, nil, res.err
			}
			return nil, nil, attestation.NewProofGenerationError(kind, res.err)
		}
		return res.proof, res.signals, nil
	}
}

func (e *Engine) SweepExpired() int {
	removed := e.cache.SweepExpired()
	if removed > 0 {
		e.logger.Debugf("Swept %d expired attestations from cache", removed)
	}
	return removed
}

func (e *Engine) Stats() proofcache.Stats {
	return e.cache.Stats()
}

func withKind(err error, kind attestation.Kind) error {
	var attErr *attestation.Error
	if errors.As(err, &attErr) && attErr.Kind == "" {
		c := *attErr
		c.Kind = kind
		return &c
	}
	return err
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func errParam(kind attestation.Kind, format string, args ...any) error {
	return attestation.NewParameterValidationError(kind, fmt.Sprintf(format, args...))
}

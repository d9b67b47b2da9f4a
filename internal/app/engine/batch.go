package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/utilities"

	"golang.org/x/sync/errgroup"
)

type BatchRequest struct {
	Kind   attestation.Kind
	Params attestation.Params
}

func (r *BatchRequest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Kind   attestation.Kind `json:"kind"`
		Params json.RawMessage  `json:"params"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := aux.Kind.Validate(); err != nil {
		return err
	}
	params, err := attestation.DecodeParams(aux.Kind, aux.Params)
	if err != nil {
		return err
	}
	r.Kind = aux.Kind
	r.Params = params
	return nil
}

func (r BatchRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   attestation.Kind   `json:"kind"`
		Params attestation.Params `json:"params"`
	}{r.Kind, r.Params})
}

type KindError struct {
	Kind attestation.Kind
	Err  error
}

func (ke KindError) Error() string {
	return fmt.Sprintf("%s: %v", ke.Kind, ke.Err)
}

func (ke KindError) Unwrap() error {
	return ke.Err
}

// BatchResult is a partial map of successful attestations plus the per-kind
// failures, in request order.
type BatchResult struct {
	Attestations map[attestation.Kind]*attestation.Attestation
	Errors       []KindError
}

// GenerateBatch runs one generation per requested kind. Requests are processed
// in fixed-size groups; members of a group run concurrently and a failing
// member never cancels the others. A kind requested twice fails validation.
func (e *Engine) GenerateBatch(ctx context.Context, record attestation.AttributeRecord, requests []BatchRequest) BatchResult {
	result := BatchResult{Attestations: make(map[attestation.Kind]*attestation.Attestation, len(requests))}
	errs := make([]error, len(requests))

	type indexed struct {
		pos int
		req BatchRequest
	}
	seen := make(map[attestation.Kind]struct{}, len(requests))
	pending := make([]indexed, 0, len(requests))
	for i, req := range requests {
		if _, dup := seen[req.Kind]; dup {
			errs[i] = attestation.NewParameterValidationError(req.Kind, "kind requested more than once in batch")
			continue
		}
		seen[req.Kind] = struct{}{}
		pending = append(pending, indexed{pos: i, req: req})
	}

	var mu sync.Mutex
	for _, group := range utilities.Chunk(pending, e.cfg.BatchGroupSize) {
		var g errgroup.Group
		for _, item := range group {
			g.Go(func() error {
				att, err := e.Generate(ctx, item.req.Kind, record, item.req.Params)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs[item.pos] = err
				} else {
					result.Attestations[item.req.Kind] = att
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, err := range errs {
		if err != nil {
			result.Errors = append(result.Errors, KindError{Kind: requests[i].Kind, Err: err})
		}
	}

	e.logger.Infof("Batch finished: %d succeeded, %d failed", len(result.Attestations), len(result.Errors))
	return result
}

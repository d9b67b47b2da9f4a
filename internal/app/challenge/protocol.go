package challenge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/zkp"

	"github.com/google/uuid"
)

const DefaultTTLSeconds = 300

// Generator produces attestations; satisfied by *engine.Engine.
type Generator interface {
	Generate(ctx context.Context, kind attestation.Kind, record attestation.AttributeRecord, params attestation.Params) (*attestation.Attestation, error)
}

// Protocol implements both sides of the challenge-response exchange. It keeps
// no state: verifiers persist issued challenges themselves.
type Protocol struct {
	generator  Generator
	codec      Codec
	logger     *logger.Logger
	now        func() time.Time
	newID      func() string
	defaultTTL int
}

type Option func(*Protocol)

func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		p.now = now
	}
}

func WithIDSource(newID func() string) Option {
	return func(p *Protocol) {
		p.newID = newID
	}
}

func WithDefaultTTL(seconds int) Option {
	return func(p *Protocol) {
		if seconds > 0 {
			p.defaultTTL = seconds
		}
	}
}

func NewProtocol(generator Generator, codec Codec, log *logger.Logger, opts ...Option) *Protocol {
	if codec == nil {
		codec = Base64Codec{}
	}
	p := &Protocol{
		generator:  generator,
		codec:      codec,
		logger:     log,
		now:        time.Now,
		newID:      uuid.NewString,
		defaultTTL: DefaultTTLSeconds,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Protocol) Codec() Codec {
	return p.codec
}

// IssueChallenge creates a challenge and its transport encoding.
func (p *Protocol) IssueChallenge(verifierID, verifierName string, kind attestation.Kind, params attestation.Params, opts IssueOptions) (Challenge, string, error) {
	if strings.TrimSpace(verifierID) == "" {
		return Challenge{}, "", attestation.NewParameterValidationError(kind, "verifier id is required")
	}
	if err := attestation.CheckParams(kind, params); err != nil {
		return Challenge{}, "", err
	}

	ttl := opts.TTLSeconds
	if ttl == 0 {
		ttl = p.defaultTTL
	}
	if ttl < 0 {
		return Challenge{}, "", attestation.NewParameterValidationError(kind, fmt.Sprintf("ttl must be positive, got %d", ttl))
	}

	id := opts.ChallengeID
	if id == "" {
		id = p.newID()
	}
	nonce := opts.Nonce
	if nonce == "" {
		nonce = p.newID()
	}

	issuedAt := p.now().UTC()
	c := Challenge{
		ID:           id,
		VerifierID:   verifierID,
		VerifierName: verifierName,
		Kind:         kind,
		Params:       params.WithNonce(params.GetNonce()),
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(time.Duration(ttl) * time.Second),
		Nonce:        nonce,
		CallbackURL:  opts.CallbackURL,
	}

	encoded, err := p.codec.Encode(c)
	if err != nil {
		return Challenge{}, "", fmt.Errorf("encode challenge: %w", err)
	}

	p.logger.Infof("Issued %s challenge %s for verifier %s, expires %s", kind, id, verifierID, c.ExpiresAt.Format(time.RFC3339))
	return c, encoded, nil
}

// RespondToChallenge decodes a challenge and answers it with a freshly
// generated attestation. Expired challenges fail before any proving work.
// When the challenge params carry no nonce, the challenge nonce is bound in.
func (p *Protocol) RespondToChallenge(ctx context.Context, encoded string, record attestation.AttributeRecord) (*Response, error) {
	c, err := p.codec.Decode(encoded)
	if err != nil {
		return nil, err
	}

	if c.Expired(p.now()) {
		return nil, attestation.NewChallengeExpiredError(c.ID, c.ExpiresAt)
	}

	params := c.Params
	if params.GetNonce() == "" && c.Nonce != "" {
		params = params.WithNonce(c.Nonce)
	}

	att, err := p.generator.Generate(ctx, c.Kind, record, params)
	if err != nil {
		return nil, err
	}

	return &Response{
		ChallengeID:   c.ID,
		Kind:          att.Kind,
		Proof:         att.Proof,
		PublicSignals: att.PublicSignals,
		Commitment:    att.Commitment(),
		Nullifier:     att.Metadata.Nullifier,
		Timestamp:     p.now().UTC(),
	}, nil
}

// VerifyResponse performs the protocol-level and structural checks only. The
// caller must still run cryptographic verification before trusting the proof.
func (p *Protocol) VerifyResponse(challengeID string, resp *Response) (*VerificationResult, error) {
	if resp == nil {
		return nil, attestation.NewChallengeMismatchError("response is missing")
	}
	if resp.ChallengeID != challengeID {
		return nil, attestation.NewChallengeMismatchError(fmt.Sprintf("response answers challenge %s, not %s", resp.ChallengeID, challengeID))
	}
	if err := checkStructure(resp); err != nil {
		return nil, err
	}

	return &VerificationResult{
		ChallengeID:   challengeID,
		ProtocolValid: true,
		Commitment:    resp.Commitment,
		Timestamp:     resp.Timestamp,
	}, nil
}

func checkStructure(resp *Response) error {
	switch {
	case len(resp.Proof) == 0:
		return attestation.NewChallengeMismatchError("response carries no proof")
	case len(resp.PublicSignals) <= attestation.SignalValid:
		return attestation.NewChallengeMismatchError("response carries incomplete public signals")
	case resp.Commitment == "":
		return attestation.NewChallengeMismatchError("response carries no commitment")
	case resp.Commitment != resp.PublicSignals[attestation.SignalCommitment]:
		return attestation.NewChallengeMismatchError("commitment does not match the first public signal")
	case resp.PublicSignals[attestation.SignalValid] != "1":
		return attestation.NewChallengeMismatchError("validity flag is not set")
	case resp.Timestamp.IsZero():
		return attestation.NewChallengeMismatchError("response carries no timestamp")
	}

	if _, err := zkp.ParseSignals(resp.PublicSignals); err != nil {
		return &attestation.Error{Code: attestation.ErrChallengeMismatch.Code, Message: "malformed public signals", Err: err}
	}
	return nil
}

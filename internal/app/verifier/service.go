package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/challenge"
	"zk-attestation/internal/app/circuits"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/rabbitmq"
	reasoncodes "zk-attestation/pkg/reason_codes"
)

const (
	DefaultRetention      = 24 * time.Hour
	DefaultWebhookTimeout = 5 * time.Second
)

type Config struct {
	// VerifyProofs runs the groth16 verification on top of the protocol checks.
	VerifyProofs   bool
	Retention      time.Duration
	WebhookTimeout time.Duration
}

type VerifyingKeySource interface {
	Get(ctx context.Context, kind attestation.Kind) (*circuits.Circuit, error)
}

type ProofVerifier interface {
	Verify(ctx context.Context, kind attestation.Kind, verifyingKey, proof []byte, publicSignals []string) (bool, error)
}

type Verdict struct {
	ChallengeID   string                 `json:"challenge_id"`
	State         State                  `json:"state"`
	OK            bool                   `json:"ok"`
	Reason        string                 `json:"reason,omitempty"`
	ReasonCode    reasoncodes.ReasonCode `json:"reason_code,omitempty"`
	Commitment    string                 `json:"commitment,omitempty"`
	CryptoChecked bool                   `json:"crypto_checked"`
	DecidedAt     time.Time              `json:"decided_at"`
}

type IssueRequest struct {
	VerifierID     string
	VerifierName   string
	Kind           attestation.Kind
	Params         attestation.Params
	TTLSeconds     int
	CallbackURL    string
	CallbackSecret string
}

type IssuedChallenge struct {
	Challenge challenge.Challenge
	Encoded   string
}

// Service is the verifier side of the challenge-response exchange. It owns
// the lifecycle of every challenge it issues: issued, then exactly one of
// responded, expired or invalid.
type Service struct {
	protocol   *challenge.Protocol
	store      ChallengeStore
	ledger     NullifierLedger
	keys       VerifyingKeySource
	verifier   ProofVerifier
	publisher  rabbitmq.IRabbitmqPublisher
	httpClient *http.Client
	cfg        Config
	logger     *logger.Logger
	now        func() time.Time

	waiters   map[string][]chan Verdict
	waitersMu sync.Mutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithProofVerification enables cryptographic checks of responses.
func WithProofVerification(keys VerifyingKeySource, verifier ProofVerifier) Option {
	return func(s *Service) {
		s.keys = keys
		s.verifier = verifier
	}
}

// WithPublisher sends accepted proof packages to the ledger queue.
func WithPublisher(publisher rabbitmq.IRabbitmqPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

func NewService(protocol *challenge.Protocol, store ChallengeStore, ledger NullifierLedger, cfg Config, log *logger.Logger, opts ...Option) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = DefaultWebhookTimeout
	}

	s := &Service{
		protocol: protocol,
		store:    store,
		ledger:   ledger,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
		waiters:  make(map[string][]chan Verdict),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: cfg.WebhookTimeout}
	}
	if s.cfg.VerifyProofs && (s.keys == nil || s.verifier == nil) {
		s.logger.Warn("Proof verification requested without a verifier, falling back to protocol checks only")
		s.cfg.VerifyProofs = false
	}
	return s
}

func (s *Service) Protocol() *challenge.Protocol {
	return s.protocol
}

// Issue creates a challenge and stores it as issued.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssuedChallenge, error) {
	c, encoded, err := s.protocol.IssueChallenge(req.VerifierID, req.VerifierName, req.Kind, req.Params, challenge.IssueOptions{
		TTLSeconds:  req.TTLSeconds,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	rec := ChallengeRecord{
		Challenge:      c,
		CallbackSecret: req.CallbackSecret,
		State:          StateIssued,
		UpdatedAt:      c.IssuedAt,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("store challenge %s: %w", c.ID, err)
	}

	return &IssuedChallenge{Challenge: c, Encoded: encoded}, nil
}

// Verify checks a response against the challenge it claims to answer and
// consumes the challenge. Any rejection after the challenge was found also
// consumes it, so a challenge can be answered at most once.
func (s *Service) Verify(ctx context.Context, challengeID string, resp *challenge.Response) (*Verdict, error) {
	rec, err := s.store.Load(ctx, challengeID)
	if errors.Is(err, ErrChallengeNotFound) {
		return nil, attestation.NewChallengeMismatchError(fmt.Sprintf("challenge %s was not issued by this verifier", challengeID))
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge %s: %w", challengeID, err)
	}
	if rec.State != StateIssued {
		return nil, attestation.NewChallengeMismatchError(fmt.Sprintf("challenge %s is already %s", challengeID, rec.State))
	}

	now := s.now()
	c := rec.Challenge
	if c.Expired(now) {
		return nil, s.settle(ctx, rec, StateIssued, StateExpired, attestation.NewChallengeExpiredError(c.ID, c.ExpiresAt))
	}

	if _, err := s.protocol.VerifyResponse(challengeID, resp); err != nil {
		return nil, s.settle(ctx, rec, StateIssued, StateInvalid, err)
	}
	if err := checkBinding(c, resp, now); err != nil {
		return nil, s.settle(ctx, rec, StateIssued, StateInvalid, err)
	}

	if s.cfg.VerifyProofs {
		if err := s.verifyProof(ctx, c.Kind, resp); err != nil {
			if errors.Is(err, attestation.ErrVerification) {
				return nil, s.settle(ctx, rec, StateIssued, StateInvalid, err)
			}
			return nil, err
		}
	}

	claimed, err := s.store.Transition(ctx, challengeID, StateIssued, ChallengeRecord{
		State:      StateResponded,
		Commitment: resp.Commitment,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("consume challenge %s: %w", challengeID, err)
	}
	if !claimed {
		return nil, attestation.NewChallengeMismatchError(fmt.Sprintf("challenge %s was answered concurrently", challengeID))
	}

	if p, ok := c.Params.(attestation.UniquenessParams); ok {
		fresh, err := s.ledger.Record(ctx, p.Scope, p.Epoch, resp.Nullifier, challengeID, now)
		if err != nil {
			s.release(ctx, rec)
			return nil, fmt.Errorf("record nullifier for challenge %s: %w", challengeID, err)
		}
		if !fresh {
			return nil, s.settle(ctx, rec, StateResponded, StateInvalid, attestation.NewNullifierReusedError(p.Scope, p.Epoch))
		}
	}

	verdict := Verdict{
		ChallengeID:   challengeID,
		State:         StateResponded,
		OK:            true,
		Commitment:    resp.Commitment,
		CryptoChecked: s.cfg.VerifyProofs,
		DecidedAt:     now.UTC(),
	}

	s.logger.Infof("Challenge %s answered with a valid %s attestation", challengeID, c.Kind)
	s.finish(rec, verdict)
	s.publishPackage(ctx, c, resp, verdict)
	return &verdict, nil
}

func (s *Service) verifyProof(ctx context.Context, kind attestation.Kind, resp *challenge.Response) error {
	circuit, err := s.keys.Get(ctx, kind)
	if err != nil {
		return err
	}
	ok, err := s.verifier.Verify(ctx, kind, circuit.VerifyingKey, resp.Proof, resp.PublicSignals)
	if err != nil {
		return attestation.NewVerificationError(kind, "proof could not be verified", err)
	}
	if !ok {
		return attestation.NewVerificationError(kind, "proof does not verify against the circuit verifying key", nil)
	}
	return nil
}

// settle moves a rejected challenge into its final state, notifies the
// verifier application and returns cause.
// release hands a claimed challenge back to the issued state after a
// server-side failure so the holder can retry.
func (s *Service) release(ctx context.Context, rec ChallengeRecord) {
	_, err := s.store.Transition(ctx, rec.Challenge.ID, StateResponded, ChallengeRecord{
		State:     StateIssued,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		s.logger.Errorf(err, "Cannot release challenge %s", rec.Challenge.ID)
	}
}

func (s *Service) settle(ctx context.Context, rec ChallengeRecord, from, to State, cause error) error {
	now := s.now()
	moved, err := s.store.Transition(ctx, rec.Challenge.ID, from, ChallengeRecord{
		State:     to,
		Reason:    cause.Error(),
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.Errorf(err, "Cannot mark challenge %s as %s", rec.Challenge.ID, to)
		return cause
	}
	if !moved {
		return cause
	}

	verdict := Verdict{
		ChallengeID: rec.Challenge.ID,
		State:       to,
		Reason:      cause.Error(),
		ReasonCode:  reasonOf(cause),
		DecidedAt:   now.UTC(),
	}
	s.logger.Warnf("Challenge %s rejected as %s: %s", rec.Challenge.ID, to, cause.Error())
	s.finish(rec, verdict)
	return cause
}

func (s *Service) finish(rec ChallengeRecord, verdict Verdict) {
	s.postWebhook(rec, verdict)
	s.notifyWaiters(verdict)
}

// WaitForResult blocks until the challenge is settled or ctx is done.
func (s *Service) WaitForResult(ctx context.Context, challengeID string) (Verdict, error) {
	ch := make(chan Verdict, 1)

	s.waitersMu.Lock()
	s.waiters[challengeID] = append(s.waiters[challengeID], ch)
	s.waitersMu.Unlock()
	defer s.removeWaiter(challengeID, ch)

	// Registered before looking, so a concurrent settle cannot be missed.
	rec, err := s.store.Load(ctx, challengeID)
	if err != nil {
		return Verdict{}, err
	}
	if rec.State != StateIssued {
		return verdictFromRecord(rec), nil
	}

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	}
}

func (s *Service) notifyWaiters(v Verdict) {
	s.waitersMu.Lock()
	list := s.waiters[v.ChallengeID]
	delete(s.waiters, v.ChallengeID)
	s.waitersMu.Unlock()

	for _, ch := range list {
		select {
		case ch <- v:
		default:
		}
	}
}

func (s *Service) removeWaiter(challengeID string, ch chan Verdict) {
	s.waitersMu.Lock()
	defer s.waitersMu.Unlock()

	list := s.waiters[challengeID]
	kept := make([]chan Verdict, 0, len(list))
	for _, c := range list {
		if c != ch {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(s.waiters, challengeID)
	} else {
		s.waiters[challengeID] = kept
	}
}

// Purge drops records that have been settled or expired for longer than the
// retention period.
func (s *Service) Purge(ctx context.Context) (int, error) {
	return s.store.PurgeBefore(ctx, s.now().Add(-s.cfg.Retention))
}

func verdictFromRecord(rec ChallengeRecord) Verdict {
	return Verdict{
		ChallengeID: rec.Challenge.ID,
		State:       rec.State,
		OK:          rec.State == StateResponded,
		Reason:      rec.Reason,
		Commitment:  rec.Commitment,
		DecidedAt:   rec.UpdatedAt,
	}
}

func reasonOf(err error) reasoncodes.ReasonCode {
	var attErr *attestation.Error
	if errors.As(err, &attErr) {
		return attErr.Reason()
	}
	return ""
}

package challenge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	mu     sync.Mutex
	calls  int
	params attestation.Params
	err    error
}

func (g *recordingGenerator) Generate(_ context.Context, kind attestation.Kind, _ attestation.AttributeRecord, params attestation.Params) (*attestation.Attestation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.params = params
	if g.err != nil {
		return nil, g.err
	}
	att := &attestation.Attestation{
		Kind:          kind,
		Proof:         []byte("proof"),
		PublicSignals: []string{"12345", "1"},
		Metadata:      attestation.Metadata{Params: params, Commitment: "12345"},
	}
	if kind == attestation.KindUniqueness {
		att.PublicSignals = append(att.PublicSignals, "999")
		att.Metadata.Nullifier = "999"
	}
	return att, nil
}

var holder = attestation.AttributeRecord{
	ReferenceID: "123456789012",
	Name:        "Asha Rao",
	DateOfBirth: attestation.NewDate(1995, time.January, 1),
	Region:      "KA",
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestProtocol(gen Generator, codec Codec) (*Protocol, *testClock) {
	clock := &testClock{now: time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)}
	return NewProtocol(gen, codec, logger.Nop(), WithClock(clock.Now)), clock
}

func TestIssueChallengeDefaults(t *testing.T) {
	p, clock := newTestProtocol(&recordingGenerator{}, nil)

	c, encoded, err := p.IssueChallenge("bank-01", "Bank", attestation.KindAge, attestation.AgeParams{Threshold: 18}, IssueOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.NotEmpty(t, c.Nonce)
	assert.Equal(t, clock.now, c.IssuedAt)
	assert.Equal(t, clock.now.Add(DefaultTTLSeconds*time.Second), c.ExpiresAt)
	assert.NotEmpty(t, encoded)

	decoded, err := p.Codec().Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.ID, decoded.ID)
	assert.Equal(t, attestation.AgeParams{Threshold: 18}, decoded.Params)
	assert.True(t, c.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestIssueChallengeValidation(t *testing.T) {
	p, _ := newTestProtocol(&recordingGenerator{}, nil)

	tests := []struct {
		name       string
		verifierID string
		kind       attestation.Kind
		params     attestation.Params
		opts       IssueOptions
	}{
		{"missing verifier", "", attestation.KindAge, attestation.AgeParams{Threshold: 18}, IssueOptions{}},
		{"negative ttl", "v", attestation.KindAge, attestation.AgeParams{Threshold: 18}, IssueOptions{TTLSeconds: -1}},
		{"bad threshold", "v", attestation.KindAge, attestation.AgeParams{Threshold: 200}, IssueOptions{}},
		{"kind mismatch", "v", attestation.KindRegion, attestation.AgeParams{Threshold: 18}, IssueOptions{}},
		{"empty regions", "v", attestation.KindRegion, attestation.RegionParams{}, IssueOptions{}},
		{"empty scope", "v", attestation.KindUniqueness, attestation.UniquenessParams{}, IssueOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.IssueChallenge(tt.verifierID, "", tt.kind, tt.params, tt.opts)
			require.ErrorIs(t, err, attestation.ErrParameterValidation)
		})
	}
}

func TestIssueChallengeExplicitOptions(t *testing.T) {
	p, clock := newTestProtocol(&recordingGenerator{}, nil)

	c, _, err := p.IssueChallenge("v", "", attestation.KindUniqueness, attestation.UniquenessParams{Scope: "poll-7"}, IssueOptions{
		TTLSeconds:  60,
		Nonce:       "n-1",
		ChallengeID: "c-1",
		CallbackURL: "https://verifier.example/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, "n-1", c.Nonce)
	assert.Equal(t, clock.now.Add(time.Minute), c.ExpiresAt)
	assert.Equal(t, "https://verifier.example/cb", c.CallbackURL)
}

func TestRespondAndVerifyRoundTrip(t *testing.T) {
	gen := &recordingGenerator{}
	p, _ := newTestProtocol(gen, nil)

	c, encoded, err := p.IssueChallenge("bank-01", "Bank", attestation.KindAge, attestation.AgeParams{Threshold: 18}, IssueOptions{})
	require.NoError(t, err)

	resp, err := p.RespondToChallenge(context.Background(), encoded, holder)
	require.NoError(t, err)
	assert.Equal(t, c.ID, resp.ChallengeID)
	assert.Equal(t, "12345", resp.Commitment)
	assert.False(t, resp.Timestamp.IsZero())

	// challenge nonce is bound into the generation params
	assert.Equal(t, c.Nonce, gen.params.GetNonce())

	result, err := p.VerifyResponse(c.ID, resp)
	require.NoError(t, err)
	assert.True(t, result.ProtocolValid)
	assert.Equal(t, c.ID, result.ChallengeID)
	assert.Equal(t, resp.Commitment, result.Commitment)
}

func TestRespondKeepsExplicitParamsNonce(t *testing.T) {
	gen := &recordingGenerator{}
	p, _ := newTestProtocol(gen, nil)

	_, encoded, err := p.IssueChallenge("v", "", attestation.KindAge, attestation.AgeParams{Threshold: 18, Nonce: "fixed"}, IssueOptions{})
	require.NoError(t, err)

	_, err = p.RespondToChallenge(context.Background(), encoded, holder)
	require.NoError(t, err)
	assert.Equal(t, "fixed", gen.params.GetNonce())
}

func TestRespondToExpiredChallenge(t *testing.T) {
	gen := &recordingGenerator{}
	p, clock := newTestProtocol(gen, nil)

	_, encoded, err := p.IssueChallenge("v", "", attestation.KindAge, attestation.AgeParams{Threshold: 18}, IssueOptions{TTLSeconds: 30})
	require.NoError(t, err)

	clock.now = clock.now.Add(30 * time.Second)
	_, err = p.RespondToChallenge(context.Background(), encoded, holder)
	require.NoError(t, err, "expiry is exclusive")

	clock.now = clock.now.Add(time.Second)
	_, err = p.RespondToChallenge(context.Background(), encoded, holder)
	require.ErrorIs(t, err, attestation.ErrChallengeExpired)
	assert.Equal(t, 1, gen.calls)
}

func TestRespondPropagatesGeneratorError(t *testing.T) {
	gen := &recordingGenerator{err: attestation.NewParameterValidationError(attestation.KindAge, "too young")}
	p, _ := newTestProtocol(gen, nil)

	_, encoded, err := p.IssueChallenge("v", "", attestation.KindAge, attestation.AgeParams{Threshold: 18}, IssueOptions{})
	require.NoError(t, err)

	_, err = p.RespondToChallenge(context.Background(), encoded, holder)
	require.ErrorIs(t, err, attestation.ErrParameterValidation)
}

func TestRespondToMalformedChallenge(t *testing.T) {
	p, _ := newTestProtocol(&recordingGenerator{}, nil)

	for _, encoded := range []string{
		"!!!not-base64",
		base64.RawURLEncoding.EncodeToString([]byte("{not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"kind":"age","params":{"threshold":18}}`)),
	} {
		_, err := p.RespondToChallenge(context.Background(), encoded, holder)
		require.ErrorIs(t, err, attestation.ErrUnmarshal, encoded)
	}

	unknownKind := base64.RawURLEncoding.EncodeToString([]byte(`{"challenge_id":"c","kind":"height","params":{}}`))
	_, err := p.RespondToChallenge(context.Background(), unknownKind, holder)
	require.ErrorIs(t, err, attestation.ErrParameterValidation)
}

func TestVerifyResponseRejects(t *testing.T) {
	p, _ := newTestProtocol(&recordingGenerator{}, nil)

	valid := func() *Response {
		return &Response{
			ChallengeID:   "c-1",
			Kind:          attestation.KindAge,
			Proof:         []byte("proof"),
			PublicSignals: []string{"12345", "1", "18", "20261019"},
			Commitment:    "12345",
			Timestamp:     time.Now(),
		}
	}

	_, err := p.VerifyResponse("c-1", valid())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(r *Response)
	}{
		{"wrong challenge", func(r *Response) { r.ChallengeID = "c-2" }},
		{"no proof", func(r *Response) { r.Proof = nil }},
		{"short signals", func(r *Response) { r.PublicSignals = r.PublicSignals[:1] }},
		{"no commitment", func(r *Response) { r.Commitment = "" }},
		{"commitment mismatch", func(r *Response) { r.Commitment = "54321" }},
		{"invalid flag", func(r *Response) { r.PublicSignals[1] = "0" }},
		{"no timestamp", func(r *Response) { r.Timestamp = time.Time{} }},
		{"non numeric signal", func(r *Response) { r.PublicSignals[2] = "eighteen" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			_, err := p.VerifyResponse("c-1", r)
			require.ErrorIs(t, err, attestation.ErrChallengeMismatch)
		})
	}

	_, err = p.VerifyResponse("c-1", nil)
	require.ErrorIs(t, err, attestation.ErrChallengeMismatch)
}

func TestJWSCodec(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	codec, err := NewJWSCodec(seed)
	require.NoError(t, err)
	assert.Equal(t, 1, codec.KeySet().Len())

	gen := &recordingGenerator{}
	p, _ := newTestProtocol(gen, codec)

	c, encoded, err := p.IssueChallenge("v", "", attestation.KindRegion, attestation.RegionParams{AllowedRegions: []string{"ka", "MH"}}, IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(encoded, "."), "compact serialization")

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.ID, decoded.ID)
	assert.Equal(t, []string{"ka", "MH"}, decoded.Params.(attestation.RegionParams).AllowedRegions)

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(encoded, ".")
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)

		var m map[string]any
		require.NoError(t, json.Unmarshal(payload, &m))
		m["verifier_id"] = "attacker"
		forged, err := json.Marshal(m)
		require.NoError(t, err)
		parts[1] = base64.RawURLEncoding.EncodeToString(forged)

		_, err = codec.Decode(strings.Join(parts, "."))
		require.ErrorIs(t, err, attestation.ErrUnmarshal)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := NewJWSCodec(make([]byte, 32))
		require.NoError(t, err)
		_, err = other.Decode(encoded)
		require.ErrorIs(t, err, attestation.ErrUnmarshal)
	})

	t.Run("bad seed", func(t *testing.T) {
		_, err := NewJWSCodec([]byte("short"))
		require.Error(t, err)
	})
}

func TestQRCodePNGBase64(t *testing.T) {
	p, _ := newTestProtocol(&recordingGenerator{}, nil)
	_, encoded, err := p.IssueChallenge("v", "", attestation.KindAge, attestation.AgeParams{Threshold: 21}, IssueOptions{})
	require.NoError(t, err)

	out, err := QRCodePNGBase64(encoded)
	require.NoError(t, err)

	png, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/challenge"
	"zk-attestation/internal/app/circuits"
	"zk-attestation/internal/app/engine"
	"zk-attestation/internal/app/verifier"
	"zk-attestation/pkg/logger"
	reasoncodes "zk-attestation/pkg/reason_codes"
	"zk-attestation/pkg/rest"
	"zk-attestation/pkg/zkp"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProver struct {
	delay time.Duration
}

func (p *stubProver) Prove(ctx context.Context, circuit *circuits.Circuit, inputs map[string]any) ([]byte, []string, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	signals := []string{fmt.Sprint(inputs[zkp.InputCommitment]), "1"}
	switch circuit.Kind {
	case attestation.KindAge:
		signals = append(signals, fmt.Sprint(inputs[zkp.InputThreshold]), fmt.Sprint(inputs[zkp.InputAsOf]))
	case attestation.KindRegion:
		allowed := inputs[zkp.InputAllowedRegions].([]*big.Int)
		for i := 0; i < zkp.MaxAllowedRegions; i++ {
			v := allowed[0]
			if i < len(allowed) {
				v = allowed[i]
			}
			signals = append(signals, v.String())
		}
	case attestation.KindUniqueness:
		signals = append(signals,
			fmt.Sprint(inputs[zkp.InputNullifier]),
			fmt.Sprint(inputs[zkp.InputScope]),
			fmt.Sprint(inputs[zkp.InputEpoch]),
		)
	}
	return []byte("proof"), signals, nil
}

func (p *stubProver) Verify(context.Context, attestation.Kind, []byte, []byte, []string) (bool, error) {
	return true, nil
}

var record = attestation.AttributeRecord{
	ReferenceID: "123456789012",
	Name:        "Asha Rao",
	DateOfBirth: attestation.NewDate(1995, time.January, 1),
	Region:      "KA",
}

func newTestRouter(t *testing.T, prover *stubProver, engineCfg engine.Config, codec challenge.Codec) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := circuits.NewRegistry(&circuits.StaticLoader{
		Artifacts: map[attestation.Kind]any{
			attestation.KindAge:        "age",
			attestation.KindRegion:     "region",
			attestation.KindUniqueness: "uniqueness",
		},
		VerifyingKeys: map[attestation.Kind][]byte{attestation.KindAge: []byte("vk")},
	}, logger.Nop())

	eng := engine.New(registry, zkp.MiMCCommitter{}, prover, engineCfg, logger.Nop())
	protocol := challenge.NewProtocol(eng, codec, logger.Nop())
	store := verifier.NewInMemoryStore()
	svc := verifier.NewService(protocol, store, store, verifier.Config{}, logger.Nop())

	h := NewHandler(svc, protocol, eng, registry, logger.Nop())

	router := gin.New()
	groups := map[string]*gin.RouterGroup{}
	for _, r := range h.Routes() {
		g, ok := groups[r.Group]
		if !ok {
			g = router.Group("/" + r.Group)
			groups[r.Group] = g
		}
		switch r.Method {
		case rest.GET:
			g.GET(r.Path, r.HandlerFunc)
		case rest.POST:
			g.POST(r.Path, r.HandlerFunc)
		}
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func issueChallenge(t *testing.T, router *gin.Engine, kind attestation.Kind, params string) IssueChallengeOut {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/challenges", fmt.Sprintf(
		`{"verifier_id":"bank-01","verifier_name":"Bank","kind":%q,"params":%s}`, kind, params,
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[IssueChallengeOut](t, w)
}

func TestChallengeRoundTripOverHTTP(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)

	issued := issueChallenge(t, router, attestation.KindAge, `{"threshold":18}`)
	assert.NotEmpty(t, issued.Challenge.ID)
	assert.NotEmpty(t, issued.Encoded)
	png, err := base64.StdEncoding.DecodeString(issued.QRPngBase64)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	w := doJSON(t, router, http.MethodGet, "/v1/challenges/"+issued.Challenge.ID+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, verifier.StatusPending, decode[verifier.StatusReport](t, w).Status)

	w = doJSON(t, router, http.MethodPost, "/v1/holder/respond", RespondIn{Challenge: issued.Encoded, Record: record})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[challenge.Response](t, w)
	assert.Equal(t, issued.Challenge.ID, resp.ChallengeID)

	w = doJSON(t, router, http.MethodPost, "/v1/challenges/"+issued.Challenge.ID+"/verify", resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verdict := decode[verifier.Verdict](t, w)
	assert.True(t, verdict.OK)

	w = doJSON(t, router, http.MethodGet, "/v1/challenges/"+issued.Challenge.ID+"/result?timeout_seconds=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "responded", decode[ResultOut](t, w).State)

	// replay
	w = doJSON(t, router, http.MethodPost, "/v1/challenges/"+issued.Challenge.ID+"/verify", resp)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, reasoncodes.ErrChallengeMismatch, decode[ErrorOut](t, w).ReasonCode)
}

func TestIssueChallengeErrors(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)

	tests := []struct {
		name string
		body string
		code reasoncodes.ReasonCode
	}{
		{"malformed json", `{"verifier_id":`, reasoncodes.ErrUnmarshal},
		{"missing verifier", `{"kind":"age","params":{"threshold":18}}`, reasoncodes.ErrUnmarshal},
		{"unknown kind", `{"verifier_id":"v","kind":"height","params":{}}`, reasoncodes.ErrParameterValidation},
		{"missing params", `{"verifier_id":"v","kind":"age"}`, reasoncodes.ErrParameterValidation},
		{"threshold out of range", `{"verifier_id":"v","kind":"age","params":{"threshold":-1}}`, reasoncodes.ErrParameterValidation},
		{"too many regions", `{"verifier_id":"v","kind":"region","params":{"allowed_regions":["AP","AR","AS","BR","CG","GA","GJ","HR","KA"]}}`, reasoncodes.ErrParameterValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/challenges", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decode[ErrorOut](t, w).ReasonCode)
		})
	}
}

func TestRespondErrors(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)

	w := doJSON(t, router, http.MethodPost, "/v1/holder/respond", RespondIn{Challenge: "garbage!", Record: record})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, reasoncodes.ErrUnmarshal, decode[ErrorOut](t, w).ReasonCode)

	issued := issueChallenge(t, router, attestation.KindAge, `{"threshold":60}`)
	w = doJSON(t, router, http.MethodPost, "/v1/holder/respond", RespondIn{Challenge: issued.Encoded, Record: record})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	out := decode[ErrorOut](t, w)
	assert.Equal(t, reasoncodes.ErrParameterValidation, out.ReasonCode)
	assert.Equal(t, attestation.KindAge, out.Kind)
}

func TestRespondTimeoutMapsToGatewayTimeout(t *testing.T) {
	cfg := engine.Config{Timeouts: map[attestation.Kind]time.Duration{attestation.KindAge: 10 * time.Millisecond}}
	router := newTestRouter(t, &stubProver{delay: time.Second}, cfg, nil)

	issued := issueChallenge(t, router, attestation.KindAge, `{"threshold":18}`)
	w := doJSON(t, router, http.MethodPost, "/v1/holder/respond", RespondIn{Challenge: issued.Encoded, Record: record})
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, reasoncodes.ErrProofTimeout, decode[ErrorOut](t, w).ReasonCode)
}

func TestVerifyUnknownChallenge(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)

	w := doJSON(t, router, http.MethodPost, "/v1/challenges/nope/verify", challenge.Response{ChallengeID: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/challenges/nope/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, verifier.StatusUnknown, decode[verifier.StatusReport](t, w).Status)

	w = doJSON(t, router, http.MethodGet, "/v1/challenges/nope/result", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/challenges/nope/result?timeout_seconds=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWaitForPendingResultTimesOut(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)
	issued := issueChallenge(t, router, attestation.KindAge, `{"threshold":18}`)

	w := doJSON(t, router, http.MethodGet, "/v1/challenges/"+issued.Challenge.ID+"/result?timeout_seconds=1", nil)
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
}

func TestGenerateBatchOverHTTP(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)

	body := map[string]any{
		"record": record,
		"requests": []map[string]any{
			{"kind": "age", "params": map[string]any{"threshold": 18}},
			{"kind": "region", "params": map[string]any{"allowed_regions": []string{"TN"}}},
			{"kind": "uniqueness", "params": map[string]any{"scope": "poll-7"}},
		},
	}
	w := doJSON(t, router, http.MethodPost, "/v1/holder/attestations/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Attestations map[attestation.Kind]json.RawMessage `json:"attestations"`
		Errors       []ErrorOut                           `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	assert.Len(t, out.Attestations, 2)
	assert.Contains(t, out.Attestations, attestation.KindAge)
	assert.Contains(t, out.Attestations, attestation.KindUniqueness)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, attestation.KindRegion, out.Errors[0].Kind)
	assert.Equal(t, reasoncodes.ErrParameterValidation, out.Errors[0].ReasonCode)

	w = doJSON(t, router, http.MethodGet, "/v1/engine/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[StatsOut](t, w)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Live)

	w = doJSON(t, router, http.MethodPost, "/v1/holder/attestations/batch", `{"record":{},"requests":[{"kind":"height","params":{}}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, reasoncodes.ErrParameterValidation, decode[ErrorOut](t, w).ReasonCode)
}

func TestCircuitInfo(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)

	w := doJSON(t, router, http.MethodGet, "/v1/circuits/age", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[circuits.Info](t, w)
	assert.True(t, info.Available)
	assert.False(t, info.Loaded)

	w = doJSON(t, router, http.MethodGet, "/v1/circuits/height", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/circuits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]circuits.Info](t, w), 3)
}

func TestSigningKeys(t *testing.T) {
	router := newTestRouter(t, &stubProver{}, engine.Config{}, nil)
	w := doJSON(t, router, http.MethodGet, "/v1/keys", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	codec, err := challenge.NewJWSCodec(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	router = newTestRouter(t, &stubProver{}, engine.Config{}, codec)

	w = doJSON(t, router, http.MethodGet, "/v1/keys", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "OKP", set.Keys[0]["kty"])

	issued := issueChallenge(t, router, attestation.KindAge, `{"threshold":18}`)
	w = doJSON(t, router, http.MethodPost, "/v1/holder/respond", RespondIn{Challenge: issued.Encoded, Record: record})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

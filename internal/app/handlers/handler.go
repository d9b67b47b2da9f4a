package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/challenge"
	"zk-attestation/internal/app/circuits"
	"zk-attestation/internal/app/engine"
	"zk-attestation/internal/app/proofcache"
	"zk-attestation/internal/app/verifier"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/rest"

	"github.com/gin-gonic/gin"
)

const (
	defaultWaitSeconds = 30
	maxWaitSeconds     = 120
)

type BatchGenerator interface {
	GenerateBatch(ctx context.Context, record attestation.AttributeRecord, requests []engine.BatchRequest) engine.BatchResult
	Stats() proofcache.Stats
}

type CircuitCatalog interface {
	Info(kind attestation.Kind) circuits.Info
	List() []circuits.Info
}

type Handler struct {
	verifier *verifier.Service
	holder   *challenge.Protocol
	engine   BatchGenerator
	circuits CircuitCatalog
	logger   *logger.Logger
}

func NewHandler(verifierService *verifier.Service, holder *challenge.Protocol, generator BatchGenerator, catalog CircuitCatalog, log *logger.Logger) *Handler {
	return &Handler{
		verifier: verifierService,
		holder:   holder,
		engine:   generator,
		circuits: catalog,
		logger:   log,
	}
}

func (h *Handler) Routes() []rest.Route {
	return []rest.Route{
		rest.NewRoute(rest.POST, "v1", "/challenges", h.IssueChallenge),
		rest.NewRoute(rest.GET, "v1", "/challenges/:id/status", h.ChallengeStatus),
		rest.NewRoute(rest.GET, "v1", "/challenges/:id/result", h.WaitForResult),
		rest.NewRoute(rest.POST, "v1", "/challenges/:id/verify", h.VerifyResponse),
		rest.NewRoute(rest.GET, "v1", "/keys", h.SigningKeys),
		rest.NewRoute(rest.POST, "v1", "/holder/respond", h.RespondToChallenge),
		rest.NewRoute(rest.POST, "v1", "/holder/attestations/batch", h.GenerateBatch),
		rest.NewRoute(rest.GET, "v1", "/engine/stats", h.EngineStats),
		rest.NewRoute(rest.GET, "v1", "/circuits", h.ListCircuits),
		rest.NewRoute(rest.GET, "v1", "/circuits/:kind", h.CircuitInfo),
	}
}

// IssueChallenge godoc
// @Summary      Issue a challenge
// @Description  Creates a single-use challenge for one attestation kind and returns its transport encoding and QR code
// @Tags         Verifier
// @Accept       json
// @Produce      json
// @Param        body  body      IssueChallengeIn  true  "Challenge request"
// @Success      201  {object}  IssueChallengeOut
// @Failure      400  {object}  ErrorOut
// @Failure      500  {object}  ErrorOut
// @Router       /v1/challenges [post]
func (h *Handler) IssueChallenge(c *gin.Context) {
	var in IssueChallengeIn
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := in.Kind.Validate(); err != nil {
		h.abortWithError(c, err)
		return
	}
	params, err := attestation.DecodeParams(in.Kind, in.Params)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	issued, err := h.verifier.Issue(c.Request.Context(), verifier.IssueRequest{
		VerifierID:     in.VerifierID,
		VerifierName:   in.VerifierName,
		Kind:           in.Kind,
		Params:         params,
		TTLSeconds:     in.TTLSeconds,
		CallbackURL:    in.CallbackURL,
		CallbackSecret: in.CallbackSecret,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	qr, err := challenge.QRCodePNGBase64(issued.Encoded)
	if err != nil {
		h.logger.Warnf("Cannot render QR code for challenge %s: %s", issued.Challenge.ID, err.Error())
	}

	c.JSON(http.StatusCreated, IssueChallengeOut{
		Challenge:   issued.Challenge,
		Encoded:     issued.Encoded,
		QRPngBase64: qr,
	})
}

// ChallengeStatus godoc
// @Summary      Challenge status
// @Description  Reports pending, responded, expired, invalid or unknown
// @Tags         Verifier
// @Produce      json
// @Param        id   path      string  true  "Challenge ID"
// @Success      200  {object}  verifier.StatusReport
// @Router       /v1/challenges/{id}/status [get]
func (h *Handler) ChallengeStatus(c *gin.Context) {
	report, err := h.verifier.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// WaitForResult godoc
// @Summary      Wait for a verdict
// @Description  Blocks until the challenge is settled or timeout_seconds elapse
// @Tags         Verifier
// @Produce      json
// @Param        id               path   string  true   "Challenge ID"
// @Param        timeout_seconds  query  int     false  "Maximum wait"
// @Success      200  {object}  ResultOut
// @Failure      404  {object}  ErrorOut
// @Failure      408  {object}  ErrorOut
// @Router       /v1/challenges/{id}/result [get]
func (h *Handler) WaitForResult(c *gin.Context) {
	wait := defaultWaitSeconds
	if raw := c.Query("timeout_seconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorOut{Error: "timeout_seconds must be a positive integer"})
			return
		}
		wait = min(n, maxWaitSeconds)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(wait)*time.Second)
	defer cancel()

	v, err := h.verifier.WaitForResult(ctx, c.Param("id"))
	switch {
	case errors.Is(err, verifier.ErrChallengeNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorOut{Error: "unknown challenge"})
		return
	case errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusRequestTimeout, ErrorOut{Error: "challenge is still pending"})
		return
	case err != nil:
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ResultOut{
		ChallengeID: v.ChallengeID,
		State:       string(v.State),
		OK:          v.OK,
		Reason:      v.Reason,
		Commitment:  v.Commitment,
		DecidedAt:   v.DecidedAt,
	})
}

// VerifyResponse godoc
// @Summary      Verify a response
// @Description  Validates a holder response against the stored challenge and consumes the challenge
// @Tags         Verifier
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Challenge ID"
// @Param        body  body      challenge.Response  true  "Holder response"
// @Success      200  {object}  verifier.Verdict
// @Failure      400  {object}  ErrorOut
// @Failure      401  {object}  ErrorOut
// @Failure      409  {object}  ErrorOut
// @Failure      410  {object}  ErrorOut
// @Router       /v1/challenges/{id}/verify [post]
func (h *Handler) VerifyResponse(c *gin.Context) {
	var resp challenge.Response
	if err := c.ShouldBindJSON(&resp); err != nil {
		h.badRequest(c, err)
		return
	}

	verdict, err := h.verifier.Verify(c.Request.Context(), c.Param("id"), &resp)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// SigningKeys godoc
// @Summary      Challenge signing keys
// @Description  JWK set holders use to check signed challenges
// @Tags         Verifier
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorOut
// @Router       /v1/keys [get]
func (h *Handler) SigningKeys(c *gin.Context) {
	codec, ok := h.verifier.Protocol().Codec().(*challenge.JWSCodec)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorOut{Error: "challenges are not signed"})
		return
	}
	c.JSON(http.StatusOK, codec.KeySet())
}

// RespondToChallenge godoc
// @Summary      Answer a challenge
// @Description  Decodes a challenge, generates the requested attestation and returns the response for the verifier
// @Tags         Holder
// @Accept       json
// @Produce      json
// @Param        body  body      RespondIn  true  "Encoded challenge and attribute record"
// @Success      200  {object}  challenge.Response
// @Failure      400  {object}  ErrorOut
// @Failure      410  {object}  ErrorOut
// @Failure      504  {object}  ErrorOut
// @Router       /v1/holder/respond [post]
func (h *Handler) RespondToChallenge(c *gin.Context) {
	var in RespondIn
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.holder.RespondToChallenge(c.Request.Context(), in.Challenge, in.Record)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateBatch godoc
// @Summary      Generate several attestations
// @Description  Generates one attestation per requested kind; failures are reported per kind
// @Tags         Holder
// @Accept       json
// @Produce      json
// @Param        body  body      BatchIn  true  "Attribute record and requests"
// @Success      200  {object}  BatchOut
// @Failure      400  {object}  ErrorOut
// @Router       /v1/holder/attestations/batch [post]
func (h *Handler) GenerateBatch(c *gin.Context) {
	var in BatchIn
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, err)
		return
	}

	result := h.engine.GenerateBatch(c.Request.Context(), in.Record, in.Requests)

	out := BatchOut{
		Attestations: result.Attestations,
		Errors:       make([]ErrorOut, 0, len(result.Errors)),
	}
	for _, ke := range result.Errors {
		e := toErrorOut(ke.Err)
		e.Kind = ke.Kind
		out.Errors = append(out.Errors, e)
	}
	c.JSON(http.StatusOK, out)
}

// EngineStats godoc
// @Summary      Proof cache statistics
// @Tags         Engine
// @Produce      json
// @Success      200  {object}  StatsOut
// @Router       /v1/engine/stats [get]
func (h *Handler) EngineStats(c *gin.Context) {
	stats := h.engine.Stats()
	c.JSON(http.StatusOK, StatsOut{
		Total:   stats.Total,
		Expired: stats.Expired,
		Live:    stats.Total - stats.Expired,
	})
}

// ListCircuits godoc
// @Summary      List circuits
// @Tags         Engine
// @Produce      json
// @Success      200  {array}  circuits.Info
// @Router       /v1/circuits [get]
func (h *Handler) ListCircuits(c *gin.Context) {
	c.JSON(http.StatusOK, h.circuits.List())
}

// CircuitInfo godoc
// @Summary      Circuit state
// @Description  Reports whether the circuit of a kind is available and loaded, with its verifying key digest
// @Tags         Engine
// @Produce      json
// @Param        kind  path      string  true  "Attestation kind"
// @Success      200  {object}  circuits.Info
// @Failure      400  {object}  ErrorOut
// @Router       /v1/circuits/{kind} [get]
func (h *Handler) CircuitInfo(c *gin.Context) {
	kind, err := attestation.ParseKind(c.Param("kind"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.circuits.Info(kind))
}

package handlers

import (
	"errors"
	"net/http"

	"zk-attestation/internal/app/attestation"
	reasoncodes "zk-attestation/pkg/reason_codes"

	"github.com/gin-gonic/gin"
)

// httpStatus maps a reason code to the status reported to clients.
func httpStatus(code reasoncodes.ReasonCode) int {
	switch code {
	case reasoncodes.ErrParameterValidation, reasoncodes.ErrUnmarshal:
		return http.StatusBadRequest
	case reasoncodes.ErrChallengeExpired:
		return http.StatusGone
	case reasoncodes.ErrChallengeMismatch, reasoncodes.ErrVerification:
		return http.StatusUnauthorized
	case reasoncodes.ErrNullifierReused:
		return http.StatusConflict
	case reasoncodes.ErrProofTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func toErrorOut(err error) ErrorOut {
	var attErr *attestation.Error
	if errors.As(err, &attErr) {
		return ErrorOut{Error: attErr.Error(), ReasonCode: attErr.Reason(), Kind: attErr.Kind}
	}
	return ErrorOut{Error: err.Error()}
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	out := toErrorOut(err)
	status := httpStatus(out.ReasonCode)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%s %s failed", c.Request.Method, c.FullPath())
	} else {
		h.logger.Debugf("%s %s rejected: %s", c.Request.Method, c.FullPath(), out.Error)
	}
	c.AbortWithStatusJSON(status, out)
}

// badRequest answers a body that could not be bound. Domain errors raised
// while decoding keep their own reason code.
func (h *Handler) badRequest(c *gin.Context, err error) {
	var attErr *attestation.Error
	if errors.As(err, &attErr) {
		h.abortWithError(c, attErr)
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorOut{
		Error:      "invalid request: " + err.Error(),
		ReasonCode: reasoncodes.ErrUnmarshal,
	})
}

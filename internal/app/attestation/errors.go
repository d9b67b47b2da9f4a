package attestation

import (
	"fmt"
	"time"

	reasoncodes "zk-attestation/pkg/reason_codes"
)

// Error is the single error type of the attestation core. Callers branch on
// Code (through errors.Is against the sentinels below) and never on Message.
type Error struct {
	Code    reasoncodes.ReasonCode
	Kind    Kind
	Timeout bool
	Message string
	Err     error
}

var (
	ErrParameterValidation = &Error{Code: reasoncodes.ErrParameterValidation}
	ErrCircuitLoad         = &Error{Code: reasoncodes.ErrCircuitLoad}
	ErrProofGeneration     = &Error{Code: reasoncodes.ErrProofGeneration}
	ErrProofTimeout        = &Error{Code: reasoncodes.ErrProofGeneration, Timeout: true}
	ErrChallengeExpired    = &Error{Code: reasoncodes.ErrChallengeExpired}
	ErrChallengeMismatch   = &Error{Code: reasoncodes.ErrChallengeMismatch}
	ErrUnmarshal           = &Error{Code: reasoncodes.ErrUnmarshal}
	ErrVerification        = &Error{Code: reasoncodes.ErrVerification}
	ErrNullifierReused     = &Error{Code: reasoncodes.ErrNullifierReused}
)

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code. The timeout sentinel only matches timeout errors, while
// ErrProofGeneration matches both.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return !t.Timeout || e.Timeout
}

// Reason is the machine-readable code reported to clients.
func (e *Error) Reason() reasoncodes.ReasonCode {
	if e.Timeout {
		return reasoncodes.ErrProofTimeout
	}
	return e.Code
}

func NewParameterValidationError(kind Kind, message string) *Error {
	return &Error{Code: reasoncodes.ErrParameterValidation, Kind: kind, Message: message}
}

func NewCircuitLoadError(kind Kind, err error) *Error {
	return &Error{Code: reasoncodes.ErrCircuitLoad, Kind: kind, Message: "failed to load circuit", Err: err}
}

func NewProofGenerationError(kind Kind, err error) *Error {
	return &Error{Code: reasoncodes.ErrProofGeneration, Kind: kind, Message: "prover failed", Err: err}
}

func NewProofTimeoutError(kind Kind, timeout time.Duration) *Error {
	return &Error{
		Code:    reasoncodes.ErrProofGeneration,
		Kind:    kind,
		Timeout: true,
		Message: fmt.Sprintf("proof generation exceeded %s", timeout),
	}
}

func NewChallengeExpiredError(challengeID string, expiresAt time.Time) *Error {
	return &Error{
		Code:    reasoncodes.ErrChallengeExpired,
		Message: fmt.Sprintf("challenge %s expired at %s", challengeID, expiresAt.UTC().Format(time.RFC3339)),
	}
}

func NewChallengeMismatchError(message string) *Error {
	return &Error{Code: reasoncodes.ErrChallengeMismatch, Message: message}
}

func NewUnmarshalError(what string, err error) *Error {
	return &Error{Code: reasoncodes.ErrUnmarshal, Message: "malformed " + what, Err: err}
}

func NewVerificationError(kind Kind, message string, err error) *Error {
	return &Error{Code: reasoncodes.ErrVerification, Kind: kind, Message: message, Err: err}
}

func NewNullifierReusedError(scope, epoch string) *Error {
	return &Error{
		Code:    reasoncodes.ErrNullifierReused,
		Kind:    KindUniqueness,
		Message: fmt.Sprintf("nullifier already used for scope '%s' epoch '%s'", scope, epoch),
	}
}

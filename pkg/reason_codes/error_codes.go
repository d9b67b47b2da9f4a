package reasoncodes

type ReasonCode string

const (
	ErrUnmarshal           ReasonCode = "UnmarshalError"
	ErrParameterValidation ReasonCode = "ParameterValidationError"
	ErrCircuitLoad         ReasonCode = "CircuitLoadError"
	ErrProofGeneration     ReasonCode = "ProofGenerationError"
	ErrProofTimeout        ReasonCode = "ProofTimeoutError"
	ErrChallengeExpired    ReasonCode = "ChallengeExpiredError"
	ErrChallengeMismatch   ReasonCode = "ChallengeMismatchError"
	ErrVerification        ReasonCode = "VerificationError"
	ErrNullifierReused     ReasonCode = "NullifierReusedError"
	ErrLedgerPublish       ReasonCode = "LedgerPublishError"
)

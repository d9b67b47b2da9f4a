package challenge

import (
	"encoding/json"
	"time"

	"zk-attestation/internal/app/attestation"
)

// Challenge is a verifier's request for one attestation. Verifiers must treat
// each ID as single-use.
type Challenge struct {
	ID           string             `json:"challenge_id"`
	VerifierID   string             `json:"verifier_id"`
	VerifierName string             `json:"verifier_name"`
	Kind         attestation.Kind   `json:"kind"`
	Params       attestation.Params `json:"params"`
	IssuedAt     time.Time          `json:"issued_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
	Nonce        string             `json:"nonce"`
	CallbackURL  string             `json:"callback_url,omitempty"`
}

// Expired reports whether now is past the challenge expiry.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *Challenge) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID           string           `json:"challenge_id"`
		VerifierID   string           `json:"verifier_id"`
		VerifierName string           `json:"verifier_name"`
		Kind         attestation.Kind `json:"kind"`
		Params       json.RawMessage  `json:"params"`
		IssuedAt     time.Time        `json:"issued_at"`
		ExpiresAt    time.Time        `json:"expires_at"`
		Nonce        string           `json:"nonce"`
		CallbackURL  string           `json:"callback_url,omitempty"`
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

	*c = Challenge{
		ID:           aux.ID,
		VerifierID:   aux.VerifierID,
		VerifierName: aux.VerifierName,
		Kind:         aux.Kind,
		Params:       params,
		IssuedAt:     aux.IssuedAt,
		ExpiresAt:    aux.ExpiresAt,
		Nonce:        aux.Nonce,
		CallbackURL:  aux.CallbackURL,
	}
	return nil
}

// Response is the holder's answer to a challenge.
type Response struct {
	ChallengeID   string           `json:"challenge_id"`
	Kind          attestation.Kind `json:"kind"`
	Proof         []byte           `json:"proof"`
	PublicSignals []string         `json:"public_signals"`
	Commitment    string           `json:"commitment"`
	Nullifier     string           `json:"nullifier,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// VerificationResult is the outcome of the protocol-level checks. It does
// not imply the proof passed cryptographic verification.
type VerificationResult struct {
	ChallengeID   string    `json:"challenge_id"`
	ProtocolValid bool      `json:"protocol_valid"`
	Commitment    string    `json:"commitment"`
	Timestamp     time.Time `json:"timestamp"`
}

type IssueOptions struct {
	TTLSeconds  int
	Nonce       string
	ChallengeID string
	CallbackURL string
}

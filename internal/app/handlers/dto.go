package handlers

import (
	"encoding/json"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/challenge"
	"zk-attestation/internal/app/engine"
	reasoncodes "zk-attestation/pkg/reason_codes"
)

type IssueChallengeIn struct {
	VerifierID     string           `json:"verifier_id" binding:"required"`
	VerifierName   string           `json:"verifier_name"`
	Kind           attestation.Kind `json:"kind" binding:"required"`
	Params         json.RawMessage  `json:"params"`
	TTLSeconds     int              `json:"ttl_seconds,omitempty"`
	CallbackURL    string           `json:"callback_url,omitempty"`
	CallbackSecret string           `json:"callback_secret,omitempty"`
}

type IssueChallengeOut struct {
	Challenge   challenge.Challenge `json:"challenge"`
	Encoded     string              `json:"encoded"`
	QRPngBase64 string              `json:"qr_png_b64"`
}

type RespondIn struct {
	Challenge string                      `json:"challenge" binding:"required"`
	Record    attestation.AttributeRecord `json:"record"`
}

type BatchIn struct {
	Record   attestation.AttributeRecord `json:"record"`
	Requests []engine.BatchRequest       `json:"requests" binding:"required"`
}

type BatchOut struct {
	Attestations map[attestation.Kind]*attestation.Attestation `json:"attestations"`
	Errors       []ErrorOut                                    `json:"errors"`
}

type StatsOut struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
	Live    int `json:"live"`
}

type ErrorOut struct {
	Error      string                 `json:"error"`
	ReasonCode reasoncodes.ReasonCode `json:"reason_code,omitempty"`
	Kind       attestation.Kind       `json:"kind,omitempty"`
}

type ResultOut struct {
	ChallengeID string    `json:"challenge_id"`
	State       string    `json:"state"`
	OK          bool      `json:"ok"`
	Reason      string    `json:"reason,omitempty"`
	Commitment  string    `json:"commitment,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
}

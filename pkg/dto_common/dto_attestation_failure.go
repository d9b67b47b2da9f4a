package dtocommon

import (
	reasoncodes "zk-attestation/pkg/reason_codes"
	"zk-attestation/pkg/utilities"
)

type AttestationFailureDto struct {
	EventId     string                 `json:"event_id"`
	Kind        string                 `json:"kind,omitempty"`
	RequestBody []byte                 `json:"request_body,omitempty"`
	Error       string                 `json:"error"`
	ReasonCode  reasoncodes.ReasonCode `json:"reason_code"`
}

func (af AttestationFailureDto) Serialize() ([]byte, error) {
	return utilities.Serialize[AttestationFailureDto](af)
}

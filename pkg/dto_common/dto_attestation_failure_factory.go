package dtocommon

import (
	reasoncodes "zk-attestation/pkg/reason_codes"
	"zk-attestation/pkg/utilities"
)

type AttestationDtoFactory interface {
	CreateErrorDto(kind string, err error, reasonCode reasoncodes.ReasonCode) utilities.Serializable
}

type attestationFailureDtoFactory struct {
	EventId     string
	RequestBody []byte
}

// NewAttestationFailureFactory binds failures to the event that caused them.
// The request body is echoed back only while the event id is unknown.
func NewAttestationFailureFactory(eventId string, requestBody []byte) AttestationDtoFactory {
	f := attestationFailureDtoFactory{EventId: eventId}
	if eventId == "" {
		f.RequestBody = requestBody
	}
	return f
}

func (f attestationFailureDtoFactory) CreateErrorDto(
	kind string,
	err error,
	reasonCode reasoncodes.ReasonCode) utilities.Serializable {
	return AttestationFailureDto{
		EventId:     f.EventId,
		Kind:        kind,
		RequestBody: f.RequestBody,
		Error:       err.Error(),
		ReasonCode:  reasonCode,
	}
}

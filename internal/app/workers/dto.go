package workers

import (
	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/engine"
	"zk-attestation/pkg/utilities"
)

type AttestationBatchRequestDto struct {
	EventId  string                      `json:"event_id"`
	Record   attestation.AttributeRecord `json:"record"`
	Requests []engine.BatchRequest       `json:"requests"`
}

type AttestationResultDto struct {
	EventId     string                   `json:"event_id"`
	Kind        attestation.Kind         `json:"kind"`
	Attestation *attestation.Attestation `json:"attestation"`
}

func (ar AttestationResultDto) Serialize() ([]byte, error) {
	return utilities.Serialize[AttestationResultDto](ar)
}

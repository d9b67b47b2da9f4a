package attestation

import (
	"encoding/json"
	"time"
)

// Attestation is a proof plus its public signals. By convention the first
// public signal is the identity commitment and the second is the validity flag.
type Attestation struct {
	Kind          Kind     `json:"kind"`
	Proof         []byte   `json:"proof"`
	PublicSignals []string `json:"public_signals"`
	Metadata      Metadata `json:"metadata"`
}

type Metadata struct {
	CreatedAt  time.Time `json:"created_at"`
	Params     Params    `json:"params"`
	Commitment string    `json:"commitment"`
	Threshold  *int      `json:"threshold,omitempty"`
	AsOf       string    `json:"as_of,omitempty"`
	Nullifier  string    `json:"nullifier,omitempty"`
	Scope      string    `json:"scope,omitempty"`
	Epoch      string    `json:"epoch,omitempty"`
}

const (
	SignalCommitment = 0
	SignalValid      = 1
)

// Commitment returns the first public signal, or "" when there is none.
func (a *Attestation) Commitment() string {
	if len(a.PublicSignals) == 0 {
		return ""
	}
	return a.PublicSignals[SignalCommitment]
}

// Clone returns a deep copy so cached attestations cannot be mutated by callers.
func (a *Attestation) Clone() *Attestation {
	if a == nil {
		return nil
	}
	c := *a
	c.Proof = append([]byte(nil), a.Proof...)
	c.PublicSignals = append([]string(nil), a.PublicSignals...)
	if a.Metadata.Threshold != nil {
		t := *a.Metadata.Threshold
		c.Metadata.Threshold = &t
	}
	if a.Metadata.Params != nil {
		c.Metadata.Params = a.Metadata.Params.WithNonce(a.Metadata.Params.GetNonce())
	}
	return &c
}

func (a *Attestation) UnmarshalJSON(data []byte) error {
	var aux struct {
		Kind          Kind     `json:"kind"`
		Proof         []byte   `json:"proof"`
		PublicSignals []string `json:"public_signals"`
		Metadata      struct {
			CreatedAt  time.Time       `json:"created_at"`
			Params     json.RawMessage `json:"params"`
			Commitment string          `json:"commitment"`
			Threshold  *int            `json:"threshold,omitempty"`
			AsOf       string          `json:"as_of,omitempty"`
			Nullifier  string          `json:"nullifier,omitempty"`
			Scope      string          `json:"scope,omitempty"`
			Epoch      string          `json:"epoch,omitempty"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m := aux.Metadata
	*a = Attestation{
		Kind:          aux.Kind,
		Proof:         aux.Proof,
		PublicSignals: aux.PublicSignals,
		Metadata: Metadata{
			CreatedAt:  m.CreatedAt,
			Commitment: m.Commitment,
			Threshold:  m.Threshold,
			AsOf:       m.AsOf,
			Nullifier:  m.Nullifier,
			Scope:      m.Scope,
			Epoch:      m.Epoch,
		},
	}

	if len(m.Params) > 0 && string(m.Params) != "null" {
		params, err := DecodeParams(a.Kind, m.Params)
		if err != nil {
			return err
		}
		a.Metadata.Params = params
	}
	return nil
}

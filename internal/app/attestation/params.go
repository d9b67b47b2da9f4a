package attestation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"zk-attestation/pkg/zkp"
)

const MaxAgeThreshold = 150

// Params is the kind-specific parameter set of an attestation request.
// Implementations are plain values; WithNonce returns a modified copy.
type Params interface {
	Kind() Kind
	Validate() error
	GetNonce() string
	WithNonce(nonce string) Params
	// Canonical returns the form used for fingerprinting and circuit inputs.
	Canonical() Params
}

type AgeParams struct {
	Threshold int    `json:"threshold"`
	Nonce     string `json:"nonce,omitempty"`
}

func (p AgeParams) Kind() Kind { return KindAge }

func (p AgeParams) Validate() error {
	if p.Threshold < 0 || p.Threshold > MaxAgeThreshold {
		return NewParameterValidationError(KindAge, fmt.Sprintf("threshold must be between 0 and %d, got %d", MaxAgeThreshold, p.Threshold))
	}
	return nil
}

func (p AgeParams) GetNonce() string { return p.Nonce }

func (p AgeParams) WithNonce(nonce string) Params {
	p.Nonce = nonce
	return p
}

func (p AgeParams) Canonical() Params { return p }

type RegionParams struct {
	AllowedRegions []string `json:"allowed_regions"`
	Nonce          string   `json:"nonce,omitempty"`
}

func (p RegionParams) Kind() Kind { return KindRegion }

func (p RegionParams) Validate() error {
	if len(p.AllowedRegions) == 0 {
		return NewParameterValidationError(KindRegion, "allowed_regions must not be empty")
	}
	for _, r := range p.AllowedRegions {
		if !IsSupportedRegion(strings.ToUpper(strings.TrimSpace(r))) {
			return NewParameterValidationError(KindRegion, fmt.Sprintf("unsupported region '%s'", r))
		}
	}
	if n := len(p.Canonical().(RegionParams).AllowedRegions); n > zkp.MaxAllowedRegions {
		return NewParameterValidationError(KindRegion, fmt.Sprintf("at most %d allowed regions are supported, got %d", zkp.MaxAllowedRegions, n))
	}
	return nil
}

func (p RegionParams) GetNonce() string { return p.Nonce }

func (p RegionParams) WithNonce(nonce string) Params {
	p.AllowedRegions = append([]string(nil), p.AllowedRegions...)
	p.Nonce = nonce
	return p
}

// Canonical upper-cases, sorts and de-duplicates the allowed regions.
func (p RegionParams) Canonical() Params {
	seen := make(map[string]struct{}, len(p.AllowedRegions))
	regions := make([]string, 0, len(p.AllowedRegions))
	for _, r := range p.AllowedRegions {
		code := strings.ToUpper(strings.TrimSpace(r))
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		regions = append(regions, code)
	}
	sort.Strings(regions)
	return RegionParams{AllowedRegions: regions, Nonce: p.Nonce}
}

func (p RegionParams) Allows(code string) bool {
	for _, r := range p.Canonical().(RegionParams).AllowedRegions {
		if r == code {
			return true
		}
	}
	return false
}

type UniquenessParams struct {
	Scope string `json:"scope"`
	Epoch string `json:"epoch,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

func (p UniquenessParams) Kind() Kind { return KindUniqueness }

func (p UniquenessParams) Validate() error {
	if strings.TrimSpace(p.Scope) == "" {
		return NewParameterValidationError(KindUniqueness, "scope must not be empty")
	}
	return nil
}

func (p UniquenessParams) GetNonce() string { return p.Nonce }

func (p UniquenessParams) WithNonce(nonce string) Params {
	p.Nonce = nonce
	return p
}

func (p UniquenessParams) Canonical() Params { return p }

// DecodeParams decodes raw JSON into the parameter type of kind.
func DecodeParams(kind Kind, raw json.RawMessage) (Params, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, NewParameterValidationError(kind, "params are missing")
	}

	var (
		params Params
		err    error
	)
	switch kind {
	case KindAge:
		var p AgeParams
		err = json.Unmarshal(raw, &p)
		params = p
	case KindRegion:
		var p RegionParams
		err = json.Unmarshal(raw, &p)
		params = p
	case KindUniqueness:
		var p UniquenessParams
		err = json.Unmarshal(raw, &p)
		params = p
	default:
		return nil, kind.Validate()
	}
	if err != nil {
		return nil, &Error{Code: ErrParameterValidation.Code, Kind: kind, Message: "malformed params", Err: err}
	}
	return params, nil
}

// CheckParams verifies that params belongs to kind and is valid.
func CheckParams(kind Kind, params Params) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if params == nil {
		return NewParameterValidationError(kind, "params are missing")
	}
	if params.Kind() != kind {
		return NewParameterValidationError(kind, fmt.Sprintf("params of kind '%s' supplied for '%s'", params.Kind(), kind))
	}
	return params.Validate()
}

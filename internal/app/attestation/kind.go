package attestation

import "fmt"

type Kind string

const (
	KindAge        Kind = "age"
	KindRegion     Kind = "region"
	KindUniqueness Kind = "uniqueness"
)

var AllKinds = []Kind{KindAge, KindRegion, KindUniqueness}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func (k Kind) Validate() error {
	switch k {
	case KindAge, KindRegion, KindUniqueness:
		return nil
	default:
		return NewParameterValidationError(k, fmt.Sprintf("unknown attestation kind '%s'", k))
	}
}

func (k Kind) String() string {
	return string(k)
}

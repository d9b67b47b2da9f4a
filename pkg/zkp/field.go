package zkp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/sha3"
)

// HashToField maps an arbitrary string to a BN254 scalar using Keccak256 reduced mod r.
func HashToField(s string) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(s))
	sum := h.Sum(nil)

	v := new(big.Int).SetBytes(sum)
	return v.Mod(v, fr.Modulus())
}

func FieldFromInt(v int64) *big.Int {
	b := big.NewInt(v)
	return b.Mod(b, fr.Modulus())
}

// ParseSignal reads a decimal public signal and rejects values outside the scalar field.
func ParseSignal(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("public signal '%s' is not a decimal integer", s)
	}
	if v.Sign() < 0 || v.Cmp(fr.Modulus()) >= 0 {
		return nil, fmt.Errorf("public signal '%s' is outside the scalar field", s)
	}
	return v, nil
}

func ParseSignals(signals []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(signals))
	for _, s := range signals {
		v, err := ParseSignal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

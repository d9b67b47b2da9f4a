package zkp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	frmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// MiMCCommitter computes commitments natively with the same MiMC parameters
// as the in-circuit gadget, so values computed here satisfy the circuits.
type MiMCCommitter struct{}

func (MiMCCommitter) Commit(inputs ...*big.Int) (*big.Int, error) {
	return Commit(inputs...)
}

func Commit(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("commitment requires at least one input")
	}

	h := frmimc.NewMiMC()
	for i, x := range inputs {
		if x == nil {
			return nil, fmt.Errorf("commitment input %d is nil", i)
		}
		var fe fr.Element
		fe.SetBigInt(x)
		b := fe.Marshal()
		if _, err := h.Write(b); err != nil {
			return nil, fmt.Errorf("write commitment input %d: %w", i, err)
		}
	}

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out.BigInt(new(big.Int)), nil
}

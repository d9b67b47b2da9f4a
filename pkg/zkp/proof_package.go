package zkp

import (
	"github.com/near/borsh-go"
)

// ProofPackage is the borsh envelope handed to the ledger boundary after a
// response has been accepted.
type ProofPackage struct {
	ChallengeID   string   `borsh:"challenge_id"`
	Kind          string   `borsh:"kind"`
	Proof         []byte   `borsh:"proof"`
	PublicSignals []string `borsh:"public_signals"`
	Commitment    string   `borsh:"commitment"`
	Nullifier     string   `borsh:"nullifier"`
	VerifiedAt    int64    `borsh:"verified_at"`
	CryptoChecked bool     `borsh:"crypto_checked"`
}

func (p *ProofPackage) SerializeBorsh() ([]byte, error) {
	return borsh.Serialize(*p)
}

func ReconstructProofPackage(serialized []byte) (*ProofPackage, error) {
	var pkg ProofPackage
	if err := borsh.Deserialize(&pkg, serialized); err != nil {
		return nil, err
	}
	return &pkg, nil
}

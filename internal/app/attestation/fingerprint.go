package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint is the cache key of a generation request: sha256 over the kind,
// the holder's reference id and the canonical JSON of params.
func Fingerprint(kind Kind, referenceID string, params Params) (string, error) {
	canonical, err := json.Marshal(params.Canonical())
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(referenceID))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

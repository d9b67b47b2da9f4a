package challenge

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"zk-attestation/internal/app/attestation"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Codec turns challenges into a transport string (QR payload, deep link) and back.
type Codec interface {
	Encode(c Challenge) (string, error)
	Decode(encoded string) (Challenge, error)
}

// Base64Codec encodes a challenge as unpadded base64url JSON.
type Base64Codec struct{}

func (Base64Codec) Encode(c Challenge) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (Base64Codec) Decode(encoded string) (Challenge, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(encoded), "="))
	if err != nil {
		return Challenge{}, attestation.NewUnmarshalError("challenge encoding", err)
	}
	return unmarshalChallenge(raw)
}

const jwsType = "zk-challenge+jws"

// JWSCodec signs challenges with an Ed25519 key so holders can tell which
// verifier issued them. Decode rejects anything not signed by the key set.
type JWSCodec struct {
	privateKey ed25519.PrivateKey
	keyID      string
	keySet     jwk.Set
}

func NewJWSCodec(seed []byte) (*JWSCodec, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)

	pub, err := jwk.FromRaw(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("jwk from raw: %w", err)
	}
	if err := jwk.AssignKeyID(pub); err != nil {
		return nil, fmt.Errorf("assign kid: %w", err)
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
		return nil, fmt.Errorf("set alg: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("add key: %w", err)
	}

	return &JWSCodec{privateKey: priv, keyID: pub.KeyID(), keySet: set}, nil
}

// KeySet is the public JWK set holders use to verify challenges.
func (c *JWSCodec) KeySet() jwk.Set {
	return c.keySet
}

func (c *JWSCodec) Encode(ch Challenge) (string, error) {
	payload, err := json.Marshal(ch)
	if err != nil {
		return "", err
	}

	hdr := jws.NewHeaders()
	_ = hdr.Set(jws.KeyIDKey, c.keyID)
	_ = hdr.Set(jws.TypeKey, jwsType)

	signed, err := jws.Sign(payload, jws.WithKey(jwa.EdDSA, c.privateKey, jws.WithProtectedHeaders(hdr)))
	if err != nil {
		return "", fmt.Errorf("sign challenge: %w", err)
	}
	return string(signed), nil
}

func (c *JWSCodec) Decode(encoded string) (Challenge, error) {
	payload, err := jws.Verify([]byte(strings.TrimSpace(encoded)), jws.WithKeySet(c.keySet))
	if err != nil {
		return Challenge{}, attestation.NewUnmarshalError("signed challenge", err)
	}
	return unmarshalChallenge(payload)
}

func unmarshalChallenge(raw []byte) (Challenge, error) {
	var c Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		var attErr *attestation.Error
		if errors.As(err, &attErr) {
			return Challenge{}, attErr
		}
		return Challenge{}, attestation.NewUnmarshalError("challenge", err)
	}
	if c.ID == "" {
		return Challenge{}, attestation.NewUnmarshalError("challenge", fmt.Errorf("challenge_id is missing"))
	}
	return c, nil
}

package jwtx

import (
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nimbusops/nimbus/pkg/cryptox"
)

// Signer signs claims into compact JWTs under a stable key ID.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

// RS256Signer signs with RSA SHA-256. The kid is derived from the public
// modulus, so the same key always publishes under the same identifier.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
}

// NewSignerRS256 builds a signer from a PEM-encoded RSA private key
// (PKCS1 or PKCS8).
func NewSignerRS256(pemKey []byte) (*RS256Signer, error) {
	key, err := cryptox.ParseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return NewSignerRS256FromKey(key)
}

// NewSignerRS256FromKey builds a signer from an in-memory RSA private key.
func NewSignerRS256FromKey(key *rsa.PrivateKey) (*RS256Signer, error) {
	if key == nil {
		return nil, errors.New("jwtx: nil RSA key")
	}
	return &RS256Signer{
		kid: KeyID(&key.PublicKey),
		key: key,
	}, nil
}

func (s *RS256Signer) Alg() string { return jwt.SigningMethodRS256.Alg() }
func (s *RS256Signer) KID() string { return s.kid }

// Sign produces a signed compact JWT carrying the kid header.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns the JWK published in the JWKS document.
func (s *RS256Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, "sig", s.Alg(), &s.key.PublicKey)
}

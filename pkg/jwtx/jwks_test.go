package jwtx

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyID(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	kid := KeyID(&key.PublicKey)
	require.Len(t, kid, 16)

	// Derivation is deterministic over the modulus bytes.
	sum := sha256.Sum256(key.PublicKey.N.Bytes())
	require.Equal(t, base64.StdEncoding.EncodeToString(sum[:])[:16], kid)
	require.Equal(t, kid, KeyID(&key.PublicKey))

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	require.NotEqual(t, kid, KeyID(&other.PublicKey))
}

func TestRSAJWKRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	j := NewRSAJWK(KeyID(&key.PublicKey), "sig", "RS256", &key.PublicKey)
	require.Equal(t, "RSA", j.Kty)
	require.Equal(t, "sig", j.Use)
	require.Equal(t, "RS256", j.Alg)

	// n and e must be base64url without padding.
	_, err = base64.RawURLEncoding.DecodeString(j.N)
	require.NoError(t, err)
	_, err = base64.RawURLEncoding.DecodeString(j.E)
	require.NoError(t, err)

	pub, err := j.PublicKey()
	require.NoError(t, err)
	require.Zero(t, pub.N.Cmp(key.PublicKey.N))
	require.Equal(t, key.PublicKey.E, pub.E)
}

func TestJWKSSerialisation(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	doc := JWKS{Keys: []JWK{NewRSAJWK("abc", "sig", "RS256", &key.PublicKey)}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Keys, 1)
	require.Equal(t, "RSA", decoded.Keys[0]["kty"])
	require.Equal(t, "abc", decoded.Keys[0]["kid"])
	require.NotEmpty(t, decoded.Keys[0]["n"])
	require.NotEmpty(t, decoded.Keys[0]["e"])
}

func TestKeySetConcurrentAccess(t *testing.T) {
	t.Parallel()

	keys := NewKeySet()
	signer := testSigner(t)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_ = keys.AddSigner(signer)
	}()
	go func() {
		defer wg.Done()
		for {
			if _, err := keys.Get(signer.KID()); err == nil {
				return
			}
		}
	}()

	wg.Wait()
	require.True(t, keys.IsReady())
	require.Len(t, keys.PublicJWKS().Keys, 1)
}

func TestKeySetReAddDoesNotDuplicate(t *testing.T) {
	t.Parallel()

	keys := NewKeySet()
	signer := testSigner(t)

	require.NoError(t, keys.AddSigner(signer))
	require.NoError(t, keys.AddSigner(signer))
	require.Len(t, keys.PublicJWKS().Keys, 1)
}

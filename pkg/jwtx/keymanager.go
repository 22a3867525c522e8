package jwtx

import (
	"fmt"
	"os"
	"sync"

	"github.com/nimbusops/nimbus/pkg/cryptox"
)

// KeyManager owns the server's RS256 signing key. The key is materialised
// lazily on first use and cached for the process lifetime: loaded from a
// configured PEM file when one is set, generated otherwise. A configured but
// unreadable or malformed key is a hard failure, never silently replaced by
// a generated one.
type KeyManager struct {
	opts KeyManagerOptions

	once     sync.Once
	err      error
	signer   Signer
	keys     *KeySet
	verifier Verifier
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Issuer is the iss claim stamped on and validated in tokens.
	Issuer string

	// Audience values validated in tokens. Empty means no audience check.
	Audience []string

	// PrivateKeyPath optionally points at a PEM-encoded RSA private key
	// (PKCS1 or PKCS8). When empty an ephemeral key is generated, which
	// invalidates outstanding tokens across restarts.
	PrivateKeyPath string

	// RSABits is the size of a generated key. Defaults to 2048.
	RSABits int
}

// NewKeyManager builds a KeyManager. No key material is touched until the
// first call that needs it; use Load to force materialisation at startup.
func NewKeyManager(opts KeyManagerOptions) *KeyManager {
	return &KeyManager{opts: opts}
}

func (m *KeyManager) load() {
	var pemBytes []byte

	if m.opts.PrivateKeyPath != "" {
		pemBytes, m.err = os.ReadFile(m.opts.PrivateKeyPath)
		if m.err != nil {
			m.err = fmt.Errorf("jwtx: read signing key %s: %w", m.opts.PrivateKeyPath, m.err)
			return
		}
	} else {
		bits := m.opts.RSABits
		if bits <= 0 {
			bits = 2048
		}
		pemBytes, m.err = cryptox.GenerateRSAKey(bits)
		if m.err != nil {
			return
		}
	}

	signer, err := NewSignerRS256(pemBytes)
	if err != nil {
		m.err = fmt.Errorf("jwtx: load signing key: %w", err)
		return
	}

	keys := NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		m.err = err
		return
	}

	m.signer = signer
	m.keys = keys
	m.verifier = NewVerifierRS256(keys, m.opts.Issuer, m.opts.Audience)
}

// Load forces key materialisation and reports any failure. Applications call
// this once at startup so a bad key configuration is fatal before serving.
func (m *KeyManager) Load() error {
	m.once.Do(m.load)
	return m.err
}

// Signer returns the RS256 signer.
func (m *KeyManager) Signer() (Signer, error) {
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m.signer, nil
}

// Verifier returns a verifier bound to the manager's key set.
func (m *KeyManager) Verifier() (Verifier, error) {
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m.verifier, nil
}

// PublicJWKS returns the published key set document.
func (m *KeyManager) PublicJWKS() (JWKS, error) {
	if err := m.Load(); err != nil {
		return JWKS{}, err
	}
	return m.keys.PublicJWKS(), nil
}

// IsReady reports whether the signing key has been materialised.
func (m *KeyManager) IsReady() bool {
	m.once.Do(m.load)
	return m.err == nil && m.keys != nil && m.keys.IsReady()
}

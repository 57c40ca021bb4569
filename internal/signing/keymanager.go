package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

// KeyManager holds the one P-256 signing keypair for this instance. It is
// constructed explicitly and passed to whoever needs it; there is no package
// global. Generation is lazy and single-flight: concurrent first callers all
// observe the same keypair.
type KeyManager struct {
	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// EnsureKeyPair generates the keypair if it does not exist yet. Safe to call
// from any number of goroutines; exactly one generation happens.
func (m *KeyManager) EnsureKeyPair() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != nil {
		return nil
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	m.key = key
	return nil
}

// Sign produces an ASN.1 ECDSA signature over SHA-256 of payload,
// initializing the keypair on first use.
func (m *KeyManager) Sign(payload []byte) ([]byte, error) {
	key, err := m.Private()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	return sig, nil
}

// Verify checks sig against payload under pub. Pure computation, no I/O.
func (m *KeyManager) Verify(payload, sig []byte, pub *ecdsa.PublicKey) bool {
	digest := sha256.Sum256(payload)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// Private returns the signing key, generating it if needed.
func (m *KeyManager) Private() (*ecdsa.PrivateKey, error) {
	if err := m.EnsureKeyPair(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, nil
}

// PublicKey returns the verification key without triggering generation.
// Callers that only verify must not mint a keypair as a side effect.
func (m *KeyManager) PublicKey() (*ecdsa.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == nil {
		return nil, models.ErrNotInitialized
	}
	return &m.key.PublicKey, nil
}

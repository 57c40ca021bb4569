package signing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promoworks/voucher-redemption-service/internal/models"
)

func TestPublicKeyBeforeInit(t *testing.T) {
	m := NewKeyManager()
	_, err := m.PublicKey()
	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func TestSignAutoInitializes(t *testing.T) {
	m := NewKeyManager()

	sig, err := m.Sign([]byte("payload"))
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	pub, err := m.PublicKey()
	require.NoError(t, err)
	assert.True(t, m.Verify([]byte("payload"), sig, pub))
}

func TestVerifyRejectsTamper(t *testing.T) {
	m := NewKeyManager()
	payload := []byte("voucher:1234")

	sig, err := m.Sign(payload)
	require.NoError(t, err)
	pub, err := m.PublicKey()
	require.NoError(t, err)

	tampered := append([]byte(nil), payload...)
	tampered[0] ^= 0x01
	assert.False(t, m.Verify(tampered, sig, pub))

	badSig := append([]byte(nil), sig...)
	badSig[len(badSig)-1] ^= 0x01
	assert.False(t, m.Verify(payload, badSig, pub))
}

func TestConcurrentEnsureSingleKeypair(t *testing.T) {
	m := NewKeyManager()

	const goroutines = 64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.EnsureKeyPair()
		}()
	}
	wg.Wait()

	first, err := m.Private()
	require.NoError(t, err)

	// Another round of concurrent callers must still observe the same key.
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := m.Private()
			assert.NoError(t, err)
			assert.Same(t, first, key)
		}()
	}
	wg.Wait()
}

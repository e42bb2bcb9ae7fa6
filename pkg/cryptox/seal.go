package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	masterKeyOnce sync.Once
	masterKey     []byte
	masterKeyErr  error
	masterKeyPath string
)

// ErrSealCorrupt reports sealed data that failed authentication or is too
// short to contain a nonce.
var ErrSealCorrupt = errors.New("cryptox: sealed data corrupt")

// SetMasterKeyPath configures where the master sealing key is loaded from.
// Must be called before the first Seal/Open; later calls have no effect.
func SetMasterKeyPath(path string) {
	masterKeyPath = path
}

// loadMasterKey derives the 32-byte sealing key from, in order of preference:
// the configured key file, the GATEWAY_MASTER_KEY environment variable, or a
// freshly generated ephemeral key (development only; sealed values do not
// survive a restart).
func loadMasterKey() ([]byte, error) {
	var material []byte

	switch {
	case masterKeyPath != "":
		data, err := os.ReadFile(masterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		material = data
	case os.Getenv("GATEWAY_MASTER_KEY") != "":
		material = []byte(os.Getenv("GATEWAY_MASTER_KEY"))
	default:
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
	}

	sum := sha256.Sum256(material)
	return sum[:], nil
}

func sealingAEAD() (cipher.AEAD, error) {
	masterKeyOnce.Do(func() {
		masterKey, masterKeyErr = loadMasterKey()
	})
	if masterKeyErr != nil {
		return nil, masterKeyErr
	}
	return chacha20poly1305.NewX(masterKey)
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under the master key.
// The random nonce is prepended to the returned ciphertext. Upstream refresh
// tokens are sealed with this before they are held at rest.
func Seal(plaintext []byte) ([]byte, error) {
	aead, err := sealingAEAD()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal. Returns ErrSealCorrupt if the data is
// truncated or fails authentication.
func Open(sealed []byte) ([]byte, error) {
	aead, err := sealingAEAD()
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, ErrSealCorrupt
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrSealCorrupt
	}

	return plaintext, nil
}

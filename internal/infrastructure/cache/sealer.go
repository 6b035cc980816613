package cache

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidKey is returned for encryption keys that are not 32 bytes
var ErrInvalidKey = errors.New("cache: encryption key must be 32 bytes (raw or 64 hex chars)")

// Sealer encrypts short secrets with XChaCha20-Poly1305
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer accepts a 32-byte key given raw or hex encoded
func NewSealer(key string) (*Sealer, error) {
	raw := []byte(key)
	if len(key) == 2*chacha20poly1305.KeySize {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, ErrInvalidKey
		}
		raw = decoded
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext). additional binds the ciphertext to its owner.
func (s *Sealer) Seal(plaintext, additional string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cache: nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(additional))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal
func (s *Sealer) Open(sealed, additional string) (string, error) {
	data, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("cache: decode sealed value: %w", err)
	}
	if len(data) < s.aead.NonceSize() {
		return "", errors.New("cache: sealed value too short")
	}
	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(additional))
	if err != nil {
		return "", fmt.Errorf("cache: open sealed value: %w", err)
	}
	return string(plain), nil
}

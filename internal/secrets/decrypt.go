package secrets

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Decryption errors.
var (
	// ErrInvalidKey is returned when the key material is not a valid
	// 32-byte ChaCha20-Poly1305 key.
	ErrInvalidKey = errors.New("invalid decryption key")
	// ErrInvalidCiphertext is returned when the sealed value is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// DecodeKey decodes hex or base64 encoded key material into a 32-byte key.
func DecodeKey(encoded string) ([]byte, error) {
	if key, err := hex.DecodeString(encoded); err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	return nil, fmt.Errorf("%w: expected %d bytes hex or base64 encoded", ErrInvalidKey, chacha20poly1305.KeySize)
}

// Decrypt opens a base64 sealed value. The nonce is prepended to the
// ciphertext before encoding.
func Decrypt(sealed string, key []byte) (string, error) {
	if len(key) != chacha20poly1305.KeySize {
		return "", ErrInvalidKey
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("%w: shorter than nonce", ErrInvalidCiphertext)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	return string(plaintext), nil
}

// Encrypt seals a value with the given key and returns the base64 encoding
// of nonce||ciphertext. Used by operators to prepare configuration values
// and by tests.
func Encrypt(plaintext string, key, nonce []byte) (string, error) {
	if len(key) != chacha20poly1305.KeySize {
		return "", ErrInvalidKey
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidCiphertext, aead.NonceSize())
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

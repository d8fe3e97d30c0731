// Package crypto provides the cryptographic primitives for passkeep.
// Uses AES-256-GCM for encryption and PBKDF2-SHA256 for key derivation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLength is the AES-256 key size in bytes.
	KeyLength = 32
	// SaltLength is the size of KDF salts persisted alongside state files.
	SaltLength = 16
	// MinIterations is the lowest accepted PBKDF2 iteration count.
	MinIterations = 100000
	// DefaultIterations is the iteration count used when a caller does not
	// configure one.
	DefaultIterations = 310000

	nonceLength = 12 // GCM standard nonce size
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrInvalidKeyLength   = errors.New("invalid key length")
	ErrInvalidSaltLength  = errors.New("invalid salt length")
	ErrIterationsTooLow   = errors.New("iteration count too low (minimum 100000)")
)

// RandomBytes generates cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid byte count")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// NewSalt generates a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	salt, err := RandomBytes(SaltLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives an AES-256 key from a secret using PBKDF2-SHA256.
func DeriveKey(secret, salt []byte, iterations int) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret cannot be empty")
	}
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	if iterations < MinIterations {
		return nil, ErrIterationsTooLow
	}
	return pbkdf2.Key(secret, salt, iterations, KeyLength, sha256.New), nil
}

// Encrypt encrypts plaintext with AES-256-GCM. The nonce is prepended to
// the returned ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(nonceLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceLength {
		return nil, ErrCiphertextTooShort
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, sealed := ciphertext[:nonceLength], ciphertext[nonceLength:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

// EncryptToString encrypts plaintext and encodes the result as base64 for
// embedding in text formats such as the records file.
func EncryptToString(key []byte, plaintext string) (string, error) {
	ciphertext, err := Encrypt(key, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptFromString decodes a base64 ciphertext and decrypts it.
func DecryptFromString(key []byte, encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	plaintext, err := Decrypt(key, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Wipe overwrites sensitive data with zeros then random data. Best effort.
func Wipe(data []byte) {
	if len(data) == 0 {
		return
	}

	for i := range data {
		data[i] = 0
	}

	// Random pass (ignore errors since memory is already zeroed)
	io.ReadFull(rand.Reader, data)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

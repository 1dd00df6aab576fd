// Package crypto encrypts API credentials at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Encryption versions stored next to each sealed value.
const (
	VersionPlaintext = 0
	VersionAESGCM    = 1
)

// ErrKeyMissing is returned when a value is sealed with a key this process doesn't have.
var ErrKeyMissing = errors.New("crypto: value is encrypted but no key is configured")

// Encryptor is an authenticated cipher.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncryptor implements Encryptor using AES-256-GCM. Output is nonce || ciphertext || tag.
type AESEncryptor struct {
	aead cipher.AEAD
}

// NewAESEncryptor creates an encryptor from a base64-encoded 32-byte key
// (e.g. the output of `openssl rand -base64 32`).
func NewAESEncryptor(base64Key string) (*AESEncryptor, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: base64 decode failed: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (256 bits), got %d bytes", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &AESEncryptor{aead: aead}, nil
}

func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext is empty")
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(ciphertext) < n+e.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext))
	}
	plaintext, err := e.aead.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		// no detail: the GCM error would only help an attacker
		return nil, fmt.Errorf("decryption failed: authentication or integrity check failed")
	}
	return plaintext, nil
}

// Box seals credential strings for storage. A Box without an Encryptor stores plaintext.
type Box struct {
	Enc Encryptor
}

// NewBox builds a Box from a base64 key; an empty key yields a plaintext Box.
func NewBox(base64Key string) (*Box, error) {
	if base64Key == "" {
		return &Box{}, nil
	}
	enc, err := NewAESEncryptor(base64Key)
	if err != nil {
		return nil, err
	}
	return &Box{Enc: enc}, nil
}

// Encrypted reports whether values sealed by b are encrypted.
func (b *Box) Encrypted() bool { return b != nil && b.Enc != nil }

// Seal returns the stored form of s and its encryption version.
func (b *Box) Seal(s string) (string, int, error) {
	if s == "" || !b.Encrypted() {
		return s, VersionPlaintext, nil
	}
	ct, err := b.Enc.Encrypt([]byte(s))
	if err != nil {
		return "", 0, err
	}
	return base64.StdEncoding.EncodeToString(ct), VersionAESGCM, nil
}

// Open reverses Seal for a value stored with version.
func (b *Box) Open(stored string, version int) (string, error) {
	switch version {
	case VersionPlaintext:
		return stored, nil
	case VersionAESGCM:
		if stored == "" {
			return "", nil
		}
		if !b.Encrypted() {
			return "", ErrKeyMissing
		}
		ct, err := base64.StdEncoding.DecodeString(stored)
		if err != nil {
			return "", fmt.Errorf("base64 decode failed: %w", err)
		}
		pt, err := b.Enc.Decrypt(ct)
		if err != nil {
			return "", err
		}
		return string(pt), nil
	default:
		return "", fmt.Errorf("unknown encryption version %d", version)
	}
}

package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "sb1:"
	nonceSize    = 24
)

var ErrUnsealFailed = errors.New("failed to open sealed credential")

// CredentialSealer seals partner API keys at rest
type CredentialSealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// SecretboxSealer implements CredentialSealer with NaCl secretbox
type SecretboxSealer struct {
	key [32]byte
}

// NewCredentialSealer builds a sealer from a 64-character hex key
func NewCredentialSealer(hexKey string) (*SecretboxSealer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid integration secret key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("integration secret key must be 32 bytes, got %d", len(raw))
	}
	s := &SecretboxSealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plain and returns a printable token
func (s *SecretboxSealer) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open decrypts a token produced by Seal. Values without the sealed prefix
// are returned unchanged so keys stored before sealing keep working.
func (s *SecretboxSealer) Open(sealed string) (string, error) {
	if len(sealed) < len(sealedPrefix) || sealed[:len(sealedPrefix)] != sealedPrefix {
		return sealed, nil
	}
	box, err := base64.RawURLEncoding.DecodeString(sealed[len(sealedPrefix):])
	if err != nil || len(box) < nonceSize {
		return "", ErrUnsealFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealFailed
	}
	return string(plain), nil
}

// PlainSealer stores credentials as-is; used when no secret key is configured
type PlainSealer struct{}

func (PlainSealer) Seal(plain string) (string, error)  { return plain, nil }
func (PlainSealer) Open(sealed string) (string, error) { return sealed, nil }

package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// SealedPrefix marks a value written by Seal. Values without it are plaintext.
const SealedPrefix = "enc:v1:"

var ErrNotSealed = errors.New("value is not sealed")

// EncryptionService seals chat records at rest with AES-GCM. The record's
// store key is bound as additional data, so a sealed value copied under a
// different key fails to open.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService accepts a 16, 24, or 32 byte key (AES-128/192/256).
func NewEncryptionService(key string) (*EncryptionService, error) {
	n := len(key)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value []byte) bool {
	return bytes.HasPrefix(value, []byte(SealedPrefix))
}

// Seal returns SealedPrefix + base64(nonce || ciphertext).
func (e *EncryptionService) Seal(storeKey string, plain []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, plain, []byte(storeKey))
	out := make([]byte, len(SealedPrefix)+base64.RawURLEncoding.EncodedLen(len(ct)))
	copy(out, SealedPrefix)
	base64.RawURLEncoding.Encode(out[len(SealedPrefix):], ct)
	return out, nil
}

// Open reverses Seal for the same storeKey.
func (e *EncryptionService) Open(storeKey string, sealed []byte) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	body := sealed[len(SealedPrefix):]
	data := make([]byte, base64.RawURLEncoding.DecodedLen(len(body)))
	n, err := base64.RawURLEncoding.Decode(data, body)
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	data = data[:n]
	ns := e.gcm.NonceSize()
	if len(data) < ns+e.gcm.Overhead() {
		return nil, errors.New("sealed value too short")
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], []byte(storeKey))
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return pt, nil
}

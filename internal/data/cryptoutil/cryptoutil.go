// Package cryptoutil encrypts cached tokens at rest.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Encryptor encrypts and decrypts token material. Ciphertexts are text of the
// form "<scheme>:<base64url payload>".
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

const (
	schemeGCM   = "gcm"
	schemePlain = "plain"

	keySize = 32
)

// additionalData binds every ciphertext to this application.
var additionalData = []byte("mmk-ui-auth/account-cache")

var encoding = base64.RawURLEncoding

// ErrUnknownScheme is returned for ciphertexts no Encryptor here produced.
var ErrUnknownScheme = errors.New("unknown ciphertext scheme")

func split(ciphertext string) (scheme string, payload []byte, err error) {
	scheme, body, ok := strings.Cut(ciphertext, ":")
	if !ok {
		return "", nil, ErrUnknownScheme
	}
	payload, err = encoding.DecodeString(body)
	if err != nil {
		return scheme, nil, fmt.Errorf("decode %s ciphertext: %w", scheme, err)
	}
	return scheme, payload, nil
}

// AESGCMEncryptor seals values with AES-256-GCM and a random nonce.
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("aes-gcm key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &AESGCMEncryptor{aead: aead}, nil
}

// FromKey accepts a 64 character hex key as raw key material. Any other
// string is treated as a passphrase and stretched with HKDF-SHA256.
func FromKey(key string) (*AESGCMEncryptor, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("encryption key is required")
	}
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == keySize {
		return NewAESGCMEncryptor(raw)
	}
	derived, err := hkdf.Key(sha256.New, []byte(key), nil, string(additionalData), keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return NewAESGCMEncryptor(derived)
}

func (e *AESGCMEncryptor) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, additionalData)
	return schemeGCM + ":" + encoding.EncodeToString(sealed), nil
}

// Decrypt also accepts values written by NoopEncryptor, so a key can be
// introduced without flushing the cache.
func (e *AESGCMEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	scheme, payload, err := split(ciphertext)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case schemePlain:
		return payload, nil
	case schemeGCM:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownScheme, scheme)
	}
	n := e.aead.NonceSize()
	if len(payload) < n+e.aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}
	plain, err := e.aead.Open(nil, payload[:n], payload[n:], additionalData)
	if err != nil {
		return nil, fmt.Errorf("open ciphertext: %w", err)
	}
	return plain, nil
}

// NoopEncryptor only encodes. It is used when no encryption key is configured.
type NoopEncryptor struct{}

func (NoopEncryptor) Encrypt(plaintext []byte) (string, error) {
	return schemePlain + ":" + encoding.EncodeToString(plaintext), nil
}

func (NoopEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	scheme, payload, err := split(ciphertext)
	if err != nil {
		return nil, err
	}
	if scheme != schemePlain {
		return nil, fmt.Errorf("%w %q: no encryption key configured", ErrUnknownScheme, scheme)
	}
	return payload, nil
}

package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"topicmsg/internal/cryptographic/kdf"
	"topicmsg/internal/model"
)

const (
	KeySize  = 32
	SaltSize = 32
)

// Encrypt seals plaintext with AES-256-GCM under a key derived from secret
// with HKDF-SHA256 and a fresh random salt. aad is authenticated, not encrypted.
func Encrypt(secret, plaintext, aad []byte) (*model.Ciphertext, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("rand.Read salt: %w", err)
	}
	aead, err := newGCM(secret, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand.Read nonce: %w", err)
	}
	return &model.Ciphertext{
		HkdfSalt: salt,
		GcmNonce: nonce,
		Payload:  aead.Seal(nil, nonce, plaintext, aad),
	}, nil
}

func Decrypt(secret []byte, ct *model.Ciphertext, aad []byte) ([]byte, error) {
	aead, err := newGCM(secret, ct.HkdfSalt)
	if err != nil {
		return nil, err
	}
	if len(ct.GcmNonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size %d", len(ct.GcmNonce))
	}
	plain, err := aead.Open(nil, ct.GcmNonce, ct.Payload, aad)
	if err != nil {
		return nil, fmt.Errorf("aead.Open: %w", err)
	}
	return plain, nil
}

func newGCM(secret, salt []byte) (cipher.AEAD, error) {
	key, err := kdf.DeriveKey(secret, salt, nil, KeySize)
	if err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

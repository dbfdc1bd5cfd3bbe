package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey expands secret into a key of the given size using HKDF-SHA256.
func DeriveKey(secret, salt, info []byte, size int) ([]byte, error) {
	key := make([]byte, size)
	h := hkdf.New(sha256.New, secret, salt, info)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

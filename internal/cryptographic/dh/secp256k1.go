package dh

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// NewKeyPair generates a secp256k1 key pair. The public key is returned in
// its 65-byte uncompressed form.
func NewKeyPair() (*secp256k1.PrivateKey, []byte, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return priv, priv.PubKey().SerializeUncompressed(), nil
}

// SharedSecret performs ECDH: priv * pub, returning the x coordinate.
func SharedSecret(priv *secp256k1.PrivateKey, pubUncompressed []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(pubUncompressed)
	if err != nil {
		return nil, fmt.Errorf("parse peer public key: %w", err)
	}
	return secp256k1.GenerateSharedSecret(priv, pub), nil
}

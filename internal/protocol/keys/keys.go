// Package keys verifies the signatures that bind protocol keys to each other
// and to an account address.
//
// An identity key is signed by the account wallet over a fixed text that
// embeds the hex-encoded key bytes; the signer's address is recovered from
// that signature. A prekey is signed by the identity key over the SHA-256 of
// the prekey's bytes.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"topicmsg/internal/cryptographic/signature"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/wire"
)

var (
	ErrNoWalletSignature = errors.New("key has no wallet signature")
	ErrNoKeySignature    = errors.New("key has no ecdsa signature")
	ErrNoKeyMaterial     = errors.New("key has no secp256k1 material")
)

// IdentityText is the text a wallet signs to authorize an identity key.
func IdentityText(keyBytes []byte) string {
	return "XMTP : Create Identity\n" + hex.EncodeToString(keyBytes) + "\n\nFor more info: https://xmtp.org/signatures/"
}

// WalletSignatureAddress recovers the account address that signed a V1 identity key.
func WalletSignatureAddress(k *model.PublicKey) (string, error) {
	if k == nil || k.Signature == nil || k.Signature.Kind != model.SignatureWallet {
		return "", ErrNoWalletSignature
	}
	return recoverWalletAddress(k.Signature, wire.PublicKeyBytesToSign(k))
}

// SignedWalletSignatureAddress recovers the account address that signed a V2 identity key.
func SignedWalletSignatureAddress(k *model.SignedPublicKey) (string, error) {
	if k == nil || k.Signature == nil || k.Signature.Kind != model.SignatureWallet {
		return "", ErrNoWalletSignature
	}
	return recoverWalletAddress(k.Signature, k.KeyBytes)
}

func recoverWalletAddress(sig *model.Signature, keyBytes []byte) (string, error) {
	pub, err := signature.Recover(sig, signature.PersonalMessageHash(IdentityText(keyBytes)))
	if err != nil {
		return "", fmt.Errorf("wallet signature: %w", err)
	}
	return signature.Address(pub)
}

// VerifyPublicKey reports whether key carries a valid signature by signer.
func VerifyPublicKey(signer, key *model.PublicKey) bool {
	if signer == nil || key == nil || key.Signature == nil || key.Signature.Kind != model.SignatureECDSA {
		return false
	}
	digest := sha256.Sum256(wire.PublicKeyBytesToSign(key))
	return signature.Verify(signer.Secp256k1Uncompressed, key.Signature, digest[:])
}

// SecpBytes returns the uncompressed secp256k1 key carried by a signed key.
func SecpBytes(k *model.SignedPublicKey) ([]byte, error) {
	if k == nil {
		return nil, ErrNoKeyMaterial
	}
	unsigned, err := wire.UnmarshalUnsignedPublicKey(k.KeyBytes)
	if err != nil {
		return nil, err
	}
	if len(unsigned.Secp256k1Uncompressed) == 0 {
		return nil, ErrNoKeyMaterial
	}
	return unsigned.Secp256k1Uncompressed, nil
}

// VerifySignedKey checks that key was signed by signer over SHA-256(key.KeyBytes).
func VerifySignedKey(signer, key *model.SignedPublicKey) (bool, error) {
	if key == nil || key.Signature == nil || key.Signature.Kind != model.SignatureECDSA {
		return false, ErrNoKeySignature
	}
	signerPub, err := SecpBytes(signer)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(key.KeyBytes)
	return signature.Verify(signerPub, key.Signature, digest[:]), nil
}

// VerifyDigest checks that sig over digest was produced by the signed key k.
func VerifyDigest(k *model.SignedPublicKey, sig *model.Signature, digest []byte) (bool, error) {
	if sig == nil || sig.Kind != model.SignatureECDSA {
		return false, ErrNoKeySignature
	}
	pub, err := SecpBytes(k)
	if err != nil {
		return false, err
	}
	return signature.Verify(pub, sig, digest), nil
}

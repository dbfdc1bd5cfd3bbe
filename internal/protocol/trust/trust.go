// Package trust validates the signature chain of a decrypted V2 payload:
// account wallet → identity key → prekey → payload.
package trust

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/keys"
)

var (
	// ErrSignatureChain is matched by every validation failure.
	ErrSignatureChain = errors.New("signature chain")

	ErrIncompleteSignedContent = fmt.Errorf("%w: incomplete signed content", ErrSignatureChain)
	ErrUntrustedPrekey         = fmt.Errorf("%w: pre key not signed by identity key", ErrSignatureChain)
	ErrInvalidSignature        = fmt.Errorf("%w: invalid signature", ErrSignatureChain)
)

// Digest is what a sender's prekey signs: SHA-256(headerBytes ‖ payload).
func Digest(headerBytes, payload []byte) []byte {
	h := sha256.New()
	h.Write(headerBytes)
	h.Write(payload)
	return h.Sum(nil)
}

// Validate runs the three checks in order and only then derives the sender's
// address from the identity key's wallet signature.
func Validate(headerBytes []byte, signed *model.SignedContent) (string, error) {
	if err := checkComplete(signed); err != nil {
		return "", err
	}

	ok, err := keys.VerifySignedKey(signed.Sender.IdentityKey, signed.Sender.PreKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUntrustedPrekey, err)
	}
	if !ok {
		return "", ErrUntrustedPrekey
	}

	ok, err = keys.VerifyDigest(signed.Sender.PreKey, signed.Signature, Digest(headerBytes, signed.Payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return "", ErrInvalidSignature
	}

	address, err := keys.SignedWalletSignatureAddress(signed.Sender.IdentityKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignatureChain, err)
	}
	return address, nil
}

func checkComplete(signed *model.SignedContent) error {
	switch {
	case signed == nil, signed.Sender == nil:
		return ErrIncompleteSignedContent
	case signed.Sender.IdentityKey == nil:
		return fmt.Errorf("%w: missing identity key", ErrIncompleteSignedContent)
	case signed.Sender.PreKey == nil:
		return fmt.Errorf("%w: missing pre key", ErrIncompleteSignedContent)
	case signed.Sender.PreKey.Signature == nil, len(signed.Sender.PreKey.KeyBytes) == 0:
		return fmt.Errorf("%w: missing pre key signature or key bytes", ErrIncompleteSignedContent)
	case signed.Signature == nil:
		return fmt.Errorf("%w: missing signature", ErrIncompleteSignedContent)
	}
	return nil
}

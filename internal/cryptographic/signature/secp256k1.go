package signature

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"topicmsg/internal/model"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// compact signatures from ecdsa.SignCompact carry this offset in their first byte
const compactMagic = 27

var ErrMalformedSignature = errors.New("malformed signature")

// Sign produces a recoverable signature over a 32-byte digest.
func Sign(priv *secp256k1.PrivateKey, digest []byte, kind model.SignatureKind) *model.Signature {
	compact := ecdsa.SignCompact(priv, digest, false)
	return &model.Signature{
		Kind:     kind,
		Bytes:    compact[1:],
		Recovery: uint32(compact[0] - compactMagic),
	}
}

// Recover returns the uncompressed public key that produced sig over digest.
func Recover(sig *model.Signature, digest []byte) ([]byte, error) {
	if sig == nil || len(sig.Bytes) != 64 || sig.Recovery > 3 {
		return nil, ErrMalformedSignature
	}
	compact := make([]byte, 65)
	compact[0] = byte(compactMagic + sig.Recovery)
	copy(compact[1:], sig.Bytes)

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("recover public key: %w", err)
	}
	return pub.SerializeUncompressed(), nil
}

// Verify reports whether sig over digest was produced by the key pub.
func Verify(pub []byte, sig *model.Signature, digest []byte) bool {
	recovered, err := Recover(sig, digest)
	if err != nil {
		return false
	}
	return bytes.Equal(recovered, pub)
}

func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// PersonalMessageHash is the EIP-191 digest wallets sign for text messages.
func PersonalMessageHash(text string) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(text))
	return Keccak256([]byte(prefix), []byte(text))
}

// SignPersonalMessage signs text the way a wallet does.
func SignPersonalMessage(wallet *secp256k1.PrivateKey, text string) *model.Signature {
	return Sign(wallet, PersonalMessageHash(text), model.SignatureWallet)
}

// Address returns the EIP-55 checksummed account address of a public key.
func Address(pubUncompressed []byte) (string, error) {
	if len(pubUncompressed) != 65 || pubUncompressed[0] != 0x04 {
		return "", fmt.Errorf("invalid uncompressed public key length %d", len(pubUncompressed))
	}
	return ChecksumAddress(hex.EncodeToString(Keccak256(pubUncompressed[1:])[12:]))
}

// ChecksumAddress normalizes a hex account address to its EIP-55 form.
func ChecksumAddress(addr string) (string, error) {
	raw := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(raw) != 40 {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}

	hash := hex.EncodeToString(Keccak256([]byte(raw)))
	out := []byte(raw)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out), nil
}

package keys

import (
	"crypto/sha256"
	"fmt"
	"time"

	"topicmsg/internal/cryptographic/dh"
	"topicmsg/internal/cryptographic/signature"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/wire"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

type (
	// PrivateKey pairs a secp256k1 secret with its signed public counterpart.
	PrivateKey struct {
		Secret    *secp256k1.PrivateKey
		CreatedAt time.Time
		Public    *model.SignedPublicKey
		// legacy form of Public, signed over the V1 bytes
		Legacy *model.PublicKey
	}

	// PrivateKeyBundle is an account's identity key and current prekey.
	PrivateKeyBundle struct {
		Address     string
		IdentityKey *PrivateKey
		PreKey      *PrivateKey
	}
)

// NewPrivateKeyBundle creates an identity key authorized by wallet and a
// prekey signed by that identity key.
func NewPrivateKeyBundle(wallet *secp256k1.PrivateKey) (*PrivateKeyBundle, error) {
	now := time.Now()

	identity, err := newPrivateKey(now)
	if err != nil {
		return nil, err
	}
	identity.Public.Signature = signature.SignPersonalMessage(wallet, IdentityText(identity.Public.KeyBytes))
	identity.Legacy.Signature = signature.SignPersonalMessage(wallet, IdentityText(wire.PublicKeyBytesToSign(identity.Legacy)))

	preKey, err := newPrivateKey(now)
	if err != nil {
		return nil, err
	}
	signed := sha256.Sum256(preKey.Public.KeyBytes)
	preKey.Public.Signature = signature.Sign(identity.Secret, signed[:], model.SignatureECDSA)
	legacy := sha256.Sum256(wire.PublicKeyBytesToSign(preKey.Legacy))
	preKey.Legacy.Signature = signature.Sign(identity.Secret, legacy[:], model.SignatureECDSA)

	address, err := signature.Address(wallet.PubKey().SerializeUncompressed())
	if err != nil {
		return nil, err
	}
	return &PrivateKeyBundle{
		Address:     address,
		IdentityKey: identity,
		PreKey:      preKey,
	}, nil
}

func newPrivateKey(now time.Time) (*PrivateKey, error) {
	secret, pub, err := dh.NewKeyPair()
	if err != nil {
		return nil, fmt.Errorf("new key: %w", err)
	}
	return &PrivateKey{
		Secret:    secret,
		CreatedAt: now,
		Public: &model.SignedPublicKey{
			KeyBytes: wire.MarshalUnsignedPublicKey(&model.UnsignedPublicKey{
				CreatedNs:             uint64(now.UnixNano()),
				Secp256k1Uncompressed: pub,
			}),
		},
		Legacy: &model.PublicKey{
			Timestamp:             uint64(now.UnixMilli()),
			Secp256k1Uncompressed: pub,
		},
	}, nil
}

// PublicKeyBundle returns the V1 public bundle.
func (b *PrivateKeyBundle) PublicKeyBundle() *model.PublicKeyBundle {
	return &model.PublicKeyBundle{
		IdentityKey: b.IdentityKey.Legacy,
		PreKey:      b.PreKey.Legacy,
	}
}

// SignedPublicKeyBundle returns the V2 public bundle.
func (b *PrivateKeyBundle) SignedPublicKeyBundle() *model.SignedPublicKeyBundle {
	return &model.SignedPublicKeyBundle{
		IdentityKey: b.IdentityKey.Public,
		PreKey:      b.PreKey.Public,
	}
}

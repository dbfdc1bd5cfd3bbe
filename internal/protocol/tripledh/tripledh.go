// Package tripledh derives the V1 shared secret from two key bundles. Each
// side combines its identity key and prekey with the peer's; the sender and
// the receiver order the first two exchanges so both arrive at the same bytes.
package tripledh

import (
	"fmt"

	"topicmsg/internal/cryptographic/dh"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

type (
	// KeyBundle is the local private half and the peer's public half of an
	// exchange. Public keys are uncompressed secp256k1 points.
	KeyBundle struct {
		IdentityPriv *secp256k1.PrivateKey
		PreKeyPriv   *secp256k1.PrivateKey
		PeerIdentity []byte
		PeerPreKey   []byte
	}

	Base struct{}

	Sender struct {
		*Base
	}

	Receiver struct {
		*Base
	}
)

func (s *Base) GenerateShareKey(dh1, dh2, dh3 []byte) []byte {
	secret := make([]byte, 0, len(dh1)+len(dh2)+len(dh3))
	secret = append(secret, dh1...)
	secret = append(secret, dh2...)
	secret = append(secret, dh3...)
	return secret
}

func (s *Sender) GenerateShareKey(kb *KeyBundle) ([]byte, error) {
	dh1, err := dh.SharedSecret(kb.IdentityPriv, kb.PeerPreKey)
	if err != nil {
		return nil, fmt.Errorf("dh1: %w", err)
	}
	dh2, err := dh.SharedSecret(kb.PreKeyPriv, kb.PeerIdentity)
	if err != nil {
		return nil, fmt.Errorf("dh2: %w", err)
	}
	dh3, err := dh.SharedSecret(kb.PreKeyPriv, kb.PeerPreKey)
	if err != nil {
		return nil, fmt.Errorf("dh3: %w", err)
	}
	return s.Base.GenerateShareKey(dh1, dh2, dh3), nil
}

func (s *Receiver) GenerateShareKey(kb *KeyBundle) ([]byte, error) {
	dh1, err := dh.SharedSecret(kb.PreKeyPriv, kb.PeerIdentity)
	if err != nil {
		return nil, fmt.Errorf("dh1: %w", err)
	}
	dh2, err := dh.SharedSecret(kb.IdentityPriv, kb.PeerPreKey)
	if err != nil {
		return nil, fmt.Errorf("dh2: %w", err)
	}
	dh3, err := dh.SharedSecret(kb.PreKeyPriv, kb.PeerPreKey)
	if err != nil {
		return nil, fmt.Errorf("dh3: %w", err)
	}
	return s.Base.GenerateShareKey(dh1, dh2, dh3), nil
}

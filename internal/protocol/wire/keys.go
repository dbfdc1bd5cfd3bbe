package wire

import (
	"fmt"

	"topicmsg/internal/model"

	"google.golang.org/protobuf/encoding/protowire"
)

// Signature{ecdsa_compact=1, wallet_ecdsa_compact=2}, each {bytes=1, recovery=2}.
func MarshalSignature(s *model.Signature) []byte {
	var inner []byte
	inner = appendBytes(inner, 1, s.Bytes)
	inner = appendVarint(inner, 2, uint64(s.Recovery))

	num := protowire.Number(1)
	if s.Kind == model.SignatureWallet {
		num = 2
	}
	return appendMessage(nil, num, inner)
}

func UnmarshalSignature(b []byte) (*model.Signature, error) {
	var sig *model.Signature
	err := walk(b, func(f field) error {
		var kind model.SignatureKind
		switch f.num {
		case 1:
			kind = model.SignatureECDSA
		case 2:
			kind = model.SignatureWallet
		default:
			return nil
		}
		inner, err := f.wantBytes()
		if err != nil {
			return err
		}
		sig = &model.Signature{Kind: kind}
		return walk(inner, func(f field) error {
			switch f.num {
			case 1:
				v, err := f.wantBytes()
				sig.Bytes = clone(v)
				return err
			case 2:
				v, err := f.wantVarint()
				sig.Recovery = uint32(v)
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	if sig == nil {
		return nil, fmt.Errorf("signature: %w: no signature variant", ErrFraming)
	}
	return sig, nil
}

func appendSecp256k1(b []byte, num protowire.Number, key []byte) []byte {
	if key == nil {
		return b
	}
	return appendMessage(b, num, appendBytes(nil, 1, key))
}

func consumeSecp256k1(f field) ([]byte, error) {
	inner, err := f.wantBytes()
	if err != nil {
		return nil, err
	}
	var key []byte
	err = walk(inner, func(f field) error {
		if f.num == 1 {
			v, err := f.wantBytes()
			key = clone(v)
			return err
		}
		return nil
	})
	return key, err
}

// MarshalPublicKey encodes PublicKey{timestamp=1, signature=2, secp256k1_uncompressed=3}.
func MarshalPublicKey(k *model.PublicKey) []byte {
	var b []byte
	b = appendVarint(b, 1, k.Timestamp)
	if k.Signature != nil {
		b = appendMessage(b, 2, MarshalSignature(k.Signature))
	}
	return appendSecp256k1(b, 3, k.Secp256k1Uncompressed)
}

// PublicKeyBytesToSign is the encoding of k without its signature, which is
// what identity and prekey signatures cover.
func PublicKeyBytesToSign(k *model.PublicKey) []byte {
	return MarshalPublicKey(&model.PublicKey{
		Timestamp:             k.Timestamp,
		Secp256k1Uncompressed: k.Secp256k1Uncompressed,
	})
}

func UnmarshalPublicKey(b []byte) (*model.PublicKey, error) {
	k := &model.PublicKey{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantVarint()
			k.Timestamp = v
			return err
		case 2:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			k.Signature, err = UnmarshalSignature(v)
			return err
		case 3:
			v, err := consumeSecp256k1(f)
			k.Secp256k1Uncompressed = v
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	return k, nil
}

func MarshalPublicKeyBundle(b *model.PublicKeyBundle) []byte {
	var out []byte
	if b.IdentityKey != nil {
		out = appendMessage(out, 1, MarshalPublicKey(b.IdentityKey))
	}
	if b.PreKey != nil {
		out = appendMessage(out, 2, MarshalPublicKey(b.PreKey))
	}
	return out
}

func UnmarshalPublicKeyBundle(b []byte) (*model.PublicKeyBundle, error) {
	bundle := &model.PublicKeyBundle{}
	err := walk(b, func(f field) error {
		if f.num != 1 && f.num != 2 {
			return nil
		}
		v, err := f.wantBytes()
		if err != nil {
			return err
		}
		k, err := UnmarshalPublicKey(v)
		if err != nil {
			return err
		}
		if f.num == 1 {
			bundle.IdentityKey = k
		} else {
			bundle.PreKey = k
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("public key bundle: %w", err)
	}
	return bundle, nil
}

// MarshalUnsignedPublicKey encodes UnsignedPublicKey{created_ns=1, secp256k1_uncompressed=3}.
func MarshalUnsignedPublicKey(k *model.UnsignedPublicKey) []byte {
	var b []byte
	b = appendVarint(b, 1, k.CreatedNs)
	return appendSecp256k1(b, 3, k.Secp256k1Uncompressed)
}

func UnmarshalUnsignedPublicKey(b []byte) (*model.UnsignedPublicKey, error) {
	k := &model.UnsignedPublicKey{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantVarint()
			k.CreatedNs = v
			return err
		case 3:
			v, err := consumeSecp256k1(f)
			k.Secp256k1Uncompressed = v
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unsigned public key: %w", err)
	}
	return k, nil
}

// MarshalSignedPublicKey encodes SignedPublicKey{key_bytes=1, signature=2}.
func MarshalSignedPublicKey(k *model.SignedPublicKey) []byte {
	var b []byte
	b = appendBytes(b, 1, k.KeyBytes)
	if k.Signature != nil {
		b = appendMessage(b, 2, MarshalSignature(k.Signature))
	}
	return b
}

func UnmarshalSignedPublicKey(b []byte) (*model.SignedPublicKey, error) {
	k := &model.SignedPublicKey{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantBytes()
			k.KeyBytes = clone(v)
			return err
		case 2:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			k.Signature, err = UnmarshalSignature(v)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signed public key: %w", err)
	}
	return k, nil
}

func MarshalSignedPublicKeyBundle(b *model.SignedPublicKeyBundle) []byte {
	var out []byte
	if b.IdentityKey != nil {
		out = appendMessage(out, 1, MarshalSignedPublicKey(b.IdentityKey))
	}
	if b.PreKey != nil {
		out = appendMessage(out, 2, MarshalSignedPublicKey(b.PreKey))
	}
	return out
}

func UnmarshalSignedPublicKeyBundle(b []byte) (*model.SignedPublicKeyBundle, error) {
	bundle := &model.SignedPublicKeyBundle{}
	err := walk(b, func(f field) error {
		if f.num != 1 && f.num != 2 {
			return nil
		}
		v, err := f.wantBytes()
		if err != nil {
			return err
		}
		k, err := UnmarshalSignedPublicKey(v)
		if err != nil {
			return err
		}
		if f.num == 1 {
			bundle.IdentityKey = k
		} else {
			bundle.PreKey = k
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signed public key bundle: %w", err)
	}
	return bundle, nil
}

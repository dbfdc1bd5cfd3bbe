package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"topicmsg/internal/model"

	"google.golang.org/protobuf/encoding/protowire"
)

// MarshalCiphertext encodes Ciphertext{aes256_gcm_hkdf_sha256=1{hkdf_salt=1, gcm_nonce=2, payload=3}}.
func MarshalCiphertext(c *model.Ciphertext) []byte {
	var inner []byte
	inner = appendBytes(inner, 1, c.HkdfSalt)
	inner = appendBytes(inner, 2, c.GcmNonce)
	inner = appendBytes(inner, 3, c.Payload)
	return appendMessage(nil, 1, inner)
}

func UnmarshalCiphertext(b []byte) (*model.Ciphertext, error) {
	var c *model.Ciphertext
	err := walk(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		inner, err := f.wantBytes()
		if err != nil {
			return err
		}
		c = &model.Ciphertext{}
		return walk(inner, func(f field) error {
			var dst *[]byte
			switch f.num {
			case 1:
				dst = &c.HkdfSalt
			case 2:
				dst = &c.GcmNonce
			case 3:
				dst = &c.Payload
			default:
				return nil
			}
			v, err := f.wantBytes()
			*dst = clone(v)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ciphertext: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("ciphertext: %w: unsupported ciphertext variant", ErrFraming)
	}
	return c, nil
}

// MarshalHeaderV1 encodes MessageHeaderV1{sender=1, recipient=2, timestamp=3}.
func MarshalHeaderV1(h *model.HeaderV1) []byte {
	var b []byte
	if h.Sender != nil {
		b = appendMessage(b, 1, MarshalPublicKeyBundle(h.Sender))
	}
	if h.Recipient != nil {
		b = appendMessage(b, 2, MarshalPublicKeyBundle(h.Recipient))
	}
	return appendVarint(b, 3, h.Timestamp)
}

// DecodeHeaderV1 decodes a V1 header and checks the mandatory key fields in
// order: sender, sender.identityKey, sender.preKey, recipient,
// recipient.identityKey, recipient.preKey.
func DecodeHeaderV1(headerBytes []byte) (model.HeaderV1, error) {
	var h model.HeaderV1
	err := walk(headerBytes, func(f field) error {
		switch f.num {
		case 1, 2:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			bundle, err := UnmarshalPublicKeyBundle(v)
			if err != nil {
				return err
			}
			if f.num == 1 {
				h.Sender = bundle
			} else {
				h.Recipient = bundle
			}
		case 3:
			v, err := f.wantVarint()
			h.Timestamp = v
			return err
		}
		return nil
	})
	if err != nil {
		return h, fmt.Errorf("header v1: %w", err)
	}

	switch {
	case h.Sender == nil:
		return h, missing("sender")
	case h.Sender.IdentityKey == nil:
		return h, missing("sender.identityKey")
	case h.Sender.PreKey == nil:
		return h, missing("sender.preKey")
	case h.Recipient == nil:
		return h, missing("recipient")
	case h.Recipient.IdentityKey == nil:
		return h, missing("recipient.identityKey")
	case h.Recipient.PreKey == nil:
		return h, missing("recipient.preKey")
	}
	return h, nil
}

// MarshalHeaderV2 encodes MessageHeaderV2{created_ns=1, topic=2}.
func MarshalHeaderV2(h *model.HeaderV2) []byte {
	var b []byte
	b = appendVarint(b, 1, h.CreatedNs)
	return appendString(b, 2, h.Topic)
}

// DecodeHeaderV2 decodes a V2 header. Topic and creation time are required.
func DecodeHeaderV2(headerBytes []byte) (model.HeaderV2, error) {
	var h model.HeaderV2
	err := walk(headerBytes, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantVarint()
			h.CreatedNs = v
			return err
		case 2:
			v, err := f.wantBytes()
			h.Topic = string(v)
			return err
		}
		return nil
	})
	if err != nil {
		return h, fmt.Errorf("header v2: %w", err)
	}
	if h.Topic == "" {
		return h, missing("topic")
	}
	if h.CreatedNs == 0 {
		return h, missing("createdNs")
	}
	return h, nil
}

// Serialize encodes Message{v1=1 | v2=2}, each variant {header_bytes=1, ciphertext=2}.
func Serialize(version model.ProtocolVersion, headerBytes []byte, ciphertext *model.Ciphertext) ([]byte, error) {
	var num protowire.Number
	switch version {
	case model.V1:
		num = 1
	case model.V2:
		num = 2
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	if ciphertext == nil {
		return nil, fmt.Errorf("%w: no ciphertext", ErrFraming)
	}

	var body []byte
	body = appendBytes(body, 1, headerBytes)
	body = appendMessage(body, 2, MarshalCiphertext(ciphertext))
	return appendMessage(nil, num, body), nil
}

// ComputeID returns the lowercase hex SHA-256 of the full serialized message.
func ComputeID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// NewMessageV1 frames an encrypted V1 message. headerBytes must be the
// encoding of header that the ciphertext was bound to. Address fields are left
// for the caller, which derives them from the header keys.
func NewMessageV1(header model.HeaderV1, headerBytes []byte, ciphertext *model.Ciphertext) (*model.MessageV1, error) {
	raw, err := Serialize(model.V1, headerBytes, ciphertext)
	if err != nil {
		return nil, err
	}
	return &model.MessageV1{
		ID:          ComputeID(raw),
		HeaderBytes: headerBytes,
		Ciphertext:  ciphertext,
		Header:      header,
		RawBytes:    raw,
	}, nil
}

// NewMessageV2 frames an encrypted V2 message. headerBytes must be the exact
// bytes the payload signature and the AEAD were computed over.
func NewMessageV2(header model.HeaderV2, headerBytes []byte, ciphertext *model.Ciphertext) (*model.MessageV2, error) {
	raw, err := Serialize(model.V2, headerBytes, ciphertext)
	if err != nil {
		return nil, err
	}
	return &model.MessageV2{
		ID:          ComputeID(raw),
		HeaderBytes: headerBytes,
		Ciphertext:  ciphertext,
		Header:      header,
		RawBytes:    raw,
	}, nil
}

type variant struct {
	headerBytes []byte
	ciphertext  []byte
	present     bool
}

// ParseMessage decodes raw message bytes into exactly one of *model.MessageV1
// or *model.MessageV2.
func ParseMessage(raw []byte) (model.Message, error) {
	var (
		version model.ProtocolVersion
		body    variant
	)
	err := walk(raw, func(f field) error {
		if f.num != 1 && f.num != 2 {
			return nil
		}
		v, err := f.wantBytes()
		if err != nil {
			return err
		}
		// oneof: the last variant on the wire wins
		version = model.ProtocolVersion(f.num)
		body = variant{}
		return walk(v, func(f field) error {
			switch f.num {
			case 1:
				v, err := f.wantBytes()
				body.headerBytes = clone(v)
				return err
			case 2:
				v, err := f.wantBytes()
				body.ciphertext = clone(v)
				body.present = true
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !body.present {
		return nil, fmt.Errorf("%w: no ciphertext in message", ErrFraming)
	}

	ciphertext, err := UnmarshalCiphertext(body.ciphertext)
	if err != nil {
		return nil, err
	}
	id := ComputeID(raw)

	switch version {
	case model.V1:
		header, err := DecodeHeaderV1(body.headerBytes)
		if err != nil {
			return nil, err
		}
		return &model.MessageV1{
			ID:          id,
			HeaderBytes: body.headerBytes,
			Ciphertext:  ciphertext,
			Header:      header,
			RawBytes:    clone(raw),
		}, nil
	case model.V2:
		header, err := DecodeHeaderV2(body.headerBytes)
		if err != nil {
			return nil, err
		}
		return &model.MessageV2{
			ID:          id,
			HeaderBytes: body.headerBytes,
			Ciphertext:  ciphertext,
			Header:      header,
			RawBytes:    clone(raw),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
}

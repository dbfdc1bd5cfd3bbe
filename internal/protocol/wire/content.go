package wire

import (
	"fmt"
	"sort"

	"topicmsg/internal/model"

	"google.golang.org/protobuf/encoding/protowire"
)

// MarshalContentTypeID encodes ContentTypeId{authority_id=1, type_id=2, version_major=3, version_minor=4}.
func MarshalContentTypeID(id model.ContentTypeID) []byte {
	var b []byte
	b = appendString(b, 1, id.AuthorityID)
	b = appendString(b, 2, id.TypeID)
	b = appendVarint(b, 3, uint64(id.VersionMajor))
	return appendVarint(b, 4, uint64(id.VersionMinor))
}

func UnmarshalContentTypeID(b []byte) (model.ContentTypeID, error) {
	var id model.ContentTypeID
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantBytes()
			id.AuthorityID = string(v)
			return err
		case 2:
			v, err := f.wantBytes()
			id.TypeID = string(v)
			return err
		case 3:
			v, err := f.wantVarint()
			id.VersionMajor = uint32(v)
			return err
		case 4:
			v, err := f.wantVarint()
			id.VersionMinor = uint32(v)
			return err
		}
		return nil
	})
	return id, err
}

// MarshalEncodedContent encodes EncodedContent{type=1, parameters=2, fallback=3,
// content=4, compression=5}. Parameters are emitted in key order so identical
// content always serializes to identical bytes.
func MarshalEncodedContent(c *model.EncodedContent) []byte {
	var b []byte
	b = appendMessage(b, 1, MarshalContentTypeID(c.Type))

	keys := make([]string, 0, len(c.Parameters))
	for k := range c.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendString(entry, 2, c.Parameters[k])
		b = appendMessage(b, 2, entry)
	}

	if c.Fallback != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, *c.Fallback)
	}
	b = appendBytes(b, 4, c.Content)
	if c.Compression != nil {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*c.Compression))
	}
	return b
}

// UnmarshalEncodedContent decodes an EncodedContent. hasType reports whether
// the type field was present at all.
func UnmarshalEncodedContent(b []byte) (c *model.EncodedContent, hasType bool, err error) {
	c = &model.EncodedContent{}
	err = walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			c.Type, err = UnmarshalContentTypeID(v)
			hasType = true
			return err
		case 2:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			var key, value string
			err = walk(v, func(f field) error {
				switch f.num {
				case 1:
					v, err := f.wantBytes()
					key = string(v)
					return err
				case 2:
					v, err := f.wantBytes()
					value = string(v)
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}
			if c.Parameters == nil {
				c.Parameters = make(map[string]string)
			}
			c.Parameters[key] = value
		case 3:
			v, err := f.wantBytes()
			s := string(v)
			c.Fallback = &s
			return err
		case 4:
			v, err := f.wantBytes()
			c.Content = clone(v)
			return err
		case 5:
			v, err := f.wantVarint()
			comp := model.Compression(int32(v))
			c.Compression = &comp
			return err
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("encoded content: %w", err)
	}
	return c, hasType, nil
}

// MarshalSignedContent encodes SignedContent{payload=1, sender=2, signature=3}.
func MarshalSignedContent(s *model.SignedContent) []byte {
	var b []byte
	b = appendBytes(b, 1, s.Payload)
	if s.Sender != nil {
		b = appendMessage(b, 2, MarshalSignedPublicKeyBundle(s.Sender))
	}
	if s.Signature != nil {
		b = appendMessage(b, 3, MarshalSignature(s.Signature))
	}
	return b
}

func UnmarshalSignedContent(b []byte) (*model.SignedContent, error) {
	s := &model.SignedContent{}
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantBytes()
			s.Payload = clone(v)
			return err
		case 2:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			s.Sender, err = UnmarshalSignedPublicKeyBundle(v)
			return err
		case 3:
			v, err := f.wantBytes()
			if err != nil {
				return err
			}
			s.Signature, err = UnmarshalSignature(v)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signed content: %w", err)
	}
	return s, nil
}

// MarshalEnvelope encodes Envelope{content_topic=1, timestamp_ns=2, message=3}.
func MarshalEnvelope(e model.Envelope) []byte {
	var b []byte
	b = appendString(b, 1, e.ContentTopic)
	b = appendVarint(b, 2, e.TimestampNs)
	return appendBytes(b, 3, e.Message)
}

func UnmarshalEnvelope(b []byte) (model.Envelope, error) {
	var e model.Envelope
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.wantBytes()
			e.ContentTopic = string(v)
			return err
		case 2:
			v, err := f.wantVarint()
			e.TimestampNs = v
			return err
		case 3:
			v, err := f.wantBytes()
			e.Message = clone(v)
			return err
		}
		return nil
	})
	if err != nil {
		return e, fmt.Errorf("envelope: %w", err)
	}
	return e, nil
}

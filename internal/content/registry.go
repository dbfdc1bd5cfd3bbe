package content

import (
	"fmt"
	"sync"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/wire"
)

type (
	// Key is the canonical registry key of a content type. Minor versions
	// share a codec.
	Key struct {
		Authority string
		Type      string
		Major     uint32
	}

	Registry struct {
		mu     sync.RWMutex
		codecs map[Key]Codec
	}

	// Decoded is the outcome of decoding one payload. Err is set for content
	// types the registry does not know.
	Decoded struct {
		Content     any
		ContentType model.ContentTypeID
		Err         error
	}

	EncodeOptions struct {
		Compression *model.Compression
	}

	EncodeOption func(*EncodeOptions)
)

func KeyOf(id model.ContentTypeID) Key {
	return Key{Authority: id.AuthorityID, Type: id.TypeID, Major: id.VersionMajor}
}

// NewRegistry returns a registry holding the text and group-updated codecs
// plus any extra codecs.
func NewRegistry(extra ...Codec) (*Registry, error) {
	r := &Registry{codecs: make(map[Key]Codec)}
	for _, c := range append([]Codec{TextCodec{}, GroupUpdatedCodec{}}, extra...) {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a codec. Two codecs may not share a key.
func (r *Registry) Register(c Codec) error {
	key := KeyOf(c.ContentType())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codecs[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCodec, c.ContentType())
	}
	r.codecs[key] = c
	return nil
}

func (r *Registry) CodecFor(id model.ContentTypeID) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[KeyOf(id)]
	return c, ok
}

func WithCompression(c model.Compression) EncodeOption {
	return func(o *EncodeOptions) { o.Compression = &c }
}

// Encode runs the codec for contentType and attaches its fallback text.
func (r *Registry) Encode(content any, contentType model.ContentTypeID, opts ...EncodeOption) (*model.EncodedContent, error) {
	var o EncodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	codec, ok := r.CodecFor(contentType)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoCodec, contentType)
	}
	encoded, err := codec.Encode(content)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", contentType, err)
	}
	// keep the caller's minor version
	encoded.Type = contentType
	if fallback, ok := codec.Fallback(content); ok {
		encoded.Fallback = &fallback
	}
	if o.Compression != nil {
		if err := compress(encoded, *o.Compression); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
	}
	return encoded, nil
}

// EncodeBytes is Encode followed by wire serialization.
func (r *Registry) EncodeBytes(content any, contentType model.ContentTypeID, opts ...EncodeOption) ([]byte, error) {
	encoded, err := r.Encode(content, contentType, opts...)
	if err != nil {
		return nil, err
	}
	return wire.MarshalEncodedContent(encoded), nil
}

// Decode deserializes and decodes a payload carried by a message of the
// given kind. An unknown content type is reported in Decoded.Err, with the
// sender's fallback text as content when one was supplied.
func (r *Registry) Decode(payload []byte, kind model.MessageKind) (Decoded, error) {
	encoded, hasType, err := wire.UnmarshalEncodedContent(payload)
	if err != nil {
		return Decoded{}, err
	}
	if !hasType {
		return Decoded{}, ErrMissingContentType
	}
	if err := decompress(encoded, MaxDecompressionRatio); err != nil {
		return Decoded{}, err
	}

	if encoded.Type.SameAs(ContentTypeGroupUpdated) && kind != model.KindMembershipChange {
		return Decoded{}, fmt.Errorf("%w: group membership change outside a membership change message", ErrInvariantViolation)
	}

	codec, ok := r.CodecFor(encoded.Type)
	if !ok {
		out := Decoded{
			ContentType: encoded.Type,
			Err:         &UnknownContentTypeError{ContentType: encoded.Type},
		}
		if encoded.Fallback != nil && *encoded.Fallback != "" {
			out.Content = *encoded.Fallback
			out.ContentType = ContentTypeFallback
		}
		return out, nil
	}

	content, err := codec.Decode(encoded)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", encoded.Type, err)
	}
	return Decoded{Content: content, ContentType: encoded.Type}, nil
}

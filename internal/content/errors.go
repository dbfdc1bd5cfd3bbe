package content

import (
	"errors"
	"fmt"

	"topicmsg/internal/model"
)

var (
	ErrNoCodec            = errors.New("no codec for content type")
	ErrDuplicateCodec     = errors.New("codec already registered")
	ErrMissingContentType = errors.New("missing content type")
	ErrDecompressionLimit = errors.New("maximum decompressed size exceeded")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrUnknownContentType = errors.New("unknown content type")
)

// UnknownContentTypeError is carried as data on a decoded message, never
// returned as a decode failure.
type UnknownContentTypeError struct {
	ContentType model.ContentTypeID
}

func (e *UnknownContentTypeError) Error() string {
	return fmt.Sprintf("unknown content type %s", e.ContentType)
}

func (e *UnknownContentTypeError) Is(target error) bool {
	return target == ErrUnknownContentType
}

package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming is returned for bytes that are not well-formed protobuf
	// framing or that carry no ciphertext in either message variant.
	ErrFraming = errors.New("malformed message framing")

	// ErrMissingField is matched by every *MissingFieldError.
	ErrMissingField = errors.New("missing required field")

	ErrUnknownVersion = errors.New("unknown message version")
)

// MissingFieldError names the first mandatory field found absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing message %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

func missing(field string) error {
	return &MissingFieldError{Field: field}
}

package conversation

import (
	"errors"
	"fmt"

	"topicmsg/internal/model"
)

var (
	ErrEmptyEnvelope          = errors.New("envelope has no topic or message")
	ErrVersionMismatch        = errors.New("unexpected message version")
	ErrTopicMismatch          = errors.New("topic mismatch")
	ErrEmptyTopic             = errors.New("conversation topic is empty")
	ErrInvalidTopic           = errors.New("invalid content topic")
	ErrRecipientNotRegistered = errors.New("recipient is not registered")
	ErrKeystoreResponseCount  = errors.New("keystore response count does not match request count")
	ErrNoResults              = errors.New("no results")
)

// KeystoreRequestError is the keystore's per-item failure for the request at
// Index of a batch.
type KeystoreRequestError struct {
	Index int
	Err   *model.KeystoreError
}

func (e *KeystoreRequestError) Error() string {
	return fmt.Sprintf("keystore request %d: %s", e.Index, e.Err.Message)
}

func (e *KeystoreRequestError) Unwrap() error { return e.Err }

func responseCount(want, got int) error {
	if want == got {
		return nil
	}
	return fmt.Errorf("%w: sent %d, got %d", ErrKeystoreResponseCount, want, got)
}

package model

import "fmt"

type (
	KeystoreErrorCode int

	// KeystoreError is a per-item failure inside a batched keystore response.
	KeystoreError struct {
		Code    KeystoreErrorCode
		Message string
	}

	EncryptV1Request struct {
		Recipient   *PublicKeyBundle
		Payload     []byte
		HeaderBytes []byte
	}

	DecryptV1Request struct {
		Payload     *Ciphertext
		PeerKeys    *PublicKeyBundle
		HeaderBytes []byte
		IsSender    bool
	}

	EncryptV2Request struct {
		Payload      []byte
		HeaderBytes  []byte
		ContentTopic string
	}

	DecryptV2Request struct {
		Payload      *Ciphertext
		HeaderBytes  []byte
		ContentTopic string
	}

	// EncryptResponse holds either Encrypted or Error.
	EncryptResponse struct {
		Encrypted *Ciphertext
		Error     *KeystoreError
	}

	// DecryptResponse holds either Decrypted or Error.
	DecryptResponse struct {
		Decrypted []byte
		Error     *KeystoreError
	}

	SignDigestRequest struct {
		Digest      []byte
		PrekeyIndex int
		// sign with the identity key instead of a prekey
		IdentityKey bool
	}
)

const (
	KeystoreErrUnspecified KeystoreErrorCode = iota
	KeystoreErrInvalidInput
	KeystoreErrNoMatchingPrekey
	KeystoreErrNoMatchingTopic
	KeystoreErrDecryption
)

func (e *KeystoreError) Error() string {
	return fmt.Sprintf("keystore error %d: %s", e.Code, e.Message)
}

package model

import "time"

type (
	// ProtocolVersion distinguishes the two message wire formats.
	ProtocolVersion int

	// Ciphertext is the AES-256-GCM / HKDF-SHA256 ciphertext produced by the keystore.
	Ciphertext struct {
		HkdfSalt []byte
		GcmNonce []byte
		Payload  []byte
	}

	HeaderV1 struct {
		Sender    *PublicKeyBundle
		Recipient *PublicKeyBundle
		Timestamp uint64 // ms since epoch
	}

	HeaderV2 struct {
		CreatedNs uint64
		Topic     string
	}

	// Message is the wire-level tagged union. It is implemented by *MessageV1
	// and *MessageV2 only.
	Message interface {
		Version() ProtocolVersion
		MessageID() string
		Bytes() []byte
		Sent() time.Time
		isMessage()
	}

	MessageV1 struct {
		ID          string
		HeaderBytes []byte
		Ciphertext  *Ciphertext
		Header      HeaderV1
		// derived locally from the header's sender bundle, never transmitted
		SenderAddress    string
		RecipientAddress string
		RawBytes         []byte
	}

	MessageV2 struct {
		ID          string
		HeaderBytes []byte
		Ciphertext  *Ciphertext
		Header      HeaderV2
		RawBytes    []byte
	}

	// SignedContent is the decrypted payload of a V2 message.
	SignedContent struct {
		Payload   []byte
		Sender    *SignedPublicKeyBundle
		Signature *Signature
	}

	// Envelope is what the transport carries: a topic, a timestamp and
	// opaque message bytes.
	Envelope struct {
		ContentTopic string
		TimestampNs  uint64
		Message      []byte
	}

	// DecodedMessage is a fully decrypted, validated and decoded message.
	// Error is set, not returned, when the content type is not understood.
	DecodedMessage struct {
		ID               string
		MessageVersion   ProtocolVersion
		SenderAddress    string
		RecipientAddress string
		Sent             time.Time
		ContentTopic     string
		ContentType      ContentTypeID
		Content          any
		Error            error
	}

	// InvitationContext is established out of band by the invitation protocol.
	InvitationContext struct {
		ConversationID string
		Metadata       map[string]string
	}
)

const (
	V1 ProtocolVersion = 1
	V2 ProtocolVersion = 2
)

func (v ProtocolVersion) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return "unknown"
	}
}

func (m *MessageV1) Version() ProtocolVersion { return V1 }
func (m *MessageV1) MessageID() string        { return m.ID }
func (m *MessageV1) Bytes() []byte            { return m.RawBytes }
func (m *MessageV1) Sent() time.Time          { return time.UnixMilli(int64(m.Header.Timestamp)) }
func (*MessageV1) isMessage()                 {}

func (m *MessageV2) Version() ProtocolVersion { return V2 }
func (m *MessageV2) MessageID() string        { return m.ID }
func (m *MessageV2) Bytes() []byte            { return m.RawBytes }
func (m *MessageV2) Sent() time.Time          { return time.Unix(0, int64(m.Header.CreatedNs)) }
func (*MessageV2) isMessage()                 {}

// Sent returns the envelope timestamp.
func (e Envelope) Sent() time.Time {
	return time.Unix(0, int64(e.TimestampNs))
}

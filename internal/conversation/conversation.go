package conversation

import (
	"context"
	"iter"
	"time"

	"topicmsg/internal/content"
	"topicmsg/internal/model"
)

// Conversation is implemented by *ConversationV1 and *ConversationV2 only.
type Conversation interface {
	Version() model.ProtocolVersion
	Topic() string
	PeerAddress() string
	CreatedAt() time.Time

	Send(ctx context.Context, value any, opts ...SendOption) (model.DecodedMessage, error)
	// Messages drops envelopes and items that fail, logging each one.
	Messages(ctx context.Context, opts model.ListOptions) ([]model.DecodedMessage, error)
	MessagesPaginated(ctx context.Context, opts model.ListOptions) iter.Seq2[[]model.DecodedMessage, error]
	// StreamMessages yields every live message or the error that prevented
	// decoding it. Ranging may continue after an error.
	StreamMessages(ctx context.Context) iter.Seq2[model.DecodedMessage, error]
	DecodeMessage(ctx context.Context, env model.Envelope) (model.DecodedMessage, error)

	isConversation()
}

var (
	_ Conversation = (*ConversationV1)(nil)
	_ Conversation = (*ConversationV2)(nil)
)

type (
	sendOptions struct {
		contentType model.ContentTypeID
		timestamp   time.Time
		compression *model.Compression
	}

	SendOption func(*sendOptions)
)

func WithContentType(id model.ContentTypeID) SendOption {
	return func(o *sendOptions) { o.contentType = id }
}

func WithTimestamp(t time.Time) SendOption {
	return func(o *sendOptions) { o.timestamp = t }
}

func WithCompression(c model.Compression) SendOption {
	return func(o *sendOptions) { o.compression = &c }
}

func (c *Client) sendOptions(opts []SendOption) sendOptions {
	o := sendOptions{contentType: content.ContentTypeText}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timestamp.IsZero() {
		o.timestamp = c.now()
	}
	return o
}

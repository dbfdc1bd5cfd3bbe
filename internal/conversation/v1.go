package conversation

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"time"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/protocol/topic"
	"topicmsg/internal/protocol/wire"

	"go.uber.org/zap"
)

// ConversationV1 is a direct conversation whose topic is derived from the
// two participants' addresses.
//
// The sender address of a received V1 message comes from the unauthenticated
// header bundle. Only successful decryption ties it to the shared secret.
type ConversationV1 struct {
	client      *Client
	peerAddress string
	topic       string
	createdAt   time.Time
}

func newConversationV1(c *Client, peer string, createdAt time.Time) *ConversationV1 {
	return &ConversationV1{
		client:      c,
		peerAddress: peer,
		topic:       topic.DirectMessage(c.address, peer),
		createdAt:   createdAt,
	}
}

func (*ConversationV1) isConversation() {}

func (*ConversationV1) Version() model.ProtocolVersion { return model.V1 }

func (c *ConversationV1) Topic() string { return c.topic }

func (c *ConversationV1) PeerAddress() string { return c.peerAddress }

func (c *ConversationV1) CreatedAt() time.Time { return c.createdAt }

// Send encrypts value to the peer's registered bundle. The first successful
// send to a peer also publishes to both participants' intro topics.
func (c *ConversationV1) Send(ctx context.Context, value any, opts ...SendOption) (model.DecodedMessage, error) {
	o := c.client.sendOptions(opts)

	recipient, err := c.client.contacts.GetContact(ctx, c.peerAddress)
	if err != nil {
		return model.DecodedMessage{}, fmt.Errorf("get contact %s: %w", c.peerAddress, err)
	}
	if recipient == nil {
		return model.DecodedMessage{}, fmt.Errorf("%w: %s", ErrRecipientNotRegistered, c.peerAddress)
	}

	topics := []string{c.topic}
	introduced := c.client.knownPeers.has(c.peerAddress)
	if !introduced {
		topics = []string{
			topic.UserIntro(c.peerAddress),
			topic.UserIntro(c.client.address),
			c.topic,
		}
	}

	payload, err := c.client.encodeContent(value, o)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	msg, err := c.createMessage(ctx, payload, recipient, o.timestamp)
	if err != nil {
		return model.DecodedMessage{}, err
	}

	envs := make([]model.Envelope, 0, len(topics))
	for _, t := range topics {
		envs = append(envs, model.Envelope{
			ContentTopic: t,
			TimestampNs:  uint64(o.timestamp.UnixNano()),
			Message:      msg.RawBytes,
		})
	}
	if err := c.client.PublishEnvelopes(ctx, envs); err != nil {
		return model.DecodedMessage{}, err
	}
	if !introduced {
		c.client.knownPeers.add(c.peerAddress)
		c.client.logger.Debug("introduced peer", zap.String("peer", c.peerAddress))
	}

	return model.DecodedMessage{
		ID:               msg.ID,
		MessageVersion:   model.V1,
		SenderAddress:    c.client.address,
		RecipientAddress: c.peerAddress,
		Sent:             msg.Sent(),
		ContentTopic:     c.topic,
		ContentType:      o.contentType,
		Content:          value,
	}, nil
}

func (c *ConversationV1) createMessage(ctx context.Context, payload []byte, recipient *model.PublicKeyBundle, ts time.Time) (*model.MessageV1, error) {
	header := model.HeaderV1{
		Sender:    c.client.publicKeyBundle,
		Recipient: recipient,
		Timestamp: uint64(ts.UnixMilli()),
	}
	headerBytes := wire.MarshalHeaderV1(&header)

	resps, err := c.client.keystore.EncryptV1(ctx, []model.EncryptV1Request{{
		Recipient:   recipient,
		Payload:     payload,
		HeaderBytes: headerBytes,
	}})
	if err != nil {
		return nil, fmt.Errorf("encrypt v1: %w", err)
	}
	if err := responseCount(1, len(resps)); err != nil {
		return nil, err
	}
	if resps[0].Error != nil {
		return nil, &KeystoreRequestError{Index: 0, Err: resps[0].Error}
	}

	msg, err := wire.NewMessageV1(header, headerBytes, resps[0].Encrypted)
	if err != nil {
		return nil, err
	}
	msg.SenderAddress = c.client.address
	msg.RecipientAddress = c.peerAddress
	return msg, nil
}

// ProcessEnvelope parses env and checks it belongs to this conversation. It
// does not decrypt.
func (c *ConversationV1) ProcessEnvelope(env model.Envelope) (*model.MessageV1, error) {
	if env.ContentTopic == "" || len(env.Message) == 0 {
		return nil, ErrEmptyEnvelope
	}
	m, err := wire.ParseMessage(env.Message)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	msg, ok := m.(*model.MessageV1)
	if !ok {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrVersionMismatch, m.Version(), model.V1)
	}
	if err := fillAddresses(msg); err != nil {
		return nil, err
	}
	if derived := topic.DirectMessage(msg.SenderAddress, msg.RecipientAddress); derived != c.topic {
		return nil, fmt.Errorf("%w: message is for %s", ErrTopicMismatch, derived)
	}
	return msg, nil
}

// fillAddresses derives both participant addresses from the header bundles.
func fillAddresses(msg *model.MessageV1) error {
	sender, err := keys.WalletSignatureAddress(msg.Header.Sender.IdentityKey)
	if err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	recipient, err := keys.WalletSignatureAddress(msg.Header.Recipient.IdentityKey)
	if err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	msg.SenderAddress = sender
	msg.RecipientAddress = recipient
	return nil
}

// decryptBatch decrypts msgs in one keystore call. The error return is for
// failures of the whole batch; per-item failures are in the results.
func (c *ConversationV1) decryptBatch(ctx context.Context, msgs []*model.MessageV1) ([]Result[model.DecodedMessage], error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	own := wire.MarshalPublicKeyBundle(c.client.publicKeyBundle)
	reqs := make([]model.DecryptV1Request, 0, len(msgs))
	for _, m := range msgs {
		isSender := bytes.Equal(own, wire.MarshalPublicKeyBundle(m.Header.Sender))
		peer := m.Header.Sender
		if isSender {
			peer = m.Header.Recipient
		}
		reqs = append(reqs, model.DecryptV1Request{
			Payload:     m.Ciphertext,
			PeerKeys:    peer,
			HeaderBytes: m.HeaderBytes,
			IsSender:    isSender,
		})
	}

	resps, err := c.client.keystore.DecryptV1(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("decrypt v1: %w", err)
	}
	if err := responseCount(len(reqs), len(resps)); err != nil {
		return nil, err
	}

	results := make([]Result[model.DecodedMessage], 0, len(resps))
	for i, resp := range resps {
		if resp.Error != nil {
			results = append(results, fail[model.DecodedMessage](&KeystoreRequestError{Index: i, Err: resp.Error}))
			continue
		}
		decoded, err := c.buildDecodedMessage(msgs[i], resp.Decrypted)
		if err != nil {
			results = append(results, fail[model.DecodedMessage](err))
			continue
		}
		results = append(results, ok(decoded))
	}
	return results, nil
}

func (c *ConversationV1) buildDecodedMessage(msg *model.MessageV1, payload []byte) (model.DecodedMessage, error) {
	d, err := c.client.decode(payload)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	return model.DecodedMessage{
		ID:               msg.ID,
		MessageVersion:   model.V1,
		SenderAddress:    msg.SenderAddress,
		RecipientAddress: msg.RecipientAddress,
		Sent:             msg.Sent(),
		ContentTopic:     c.topic,
		ContentType:      d.ContentType,
		Content:          d.Content,
		Error:            d.Err,
	}, nil
}

func (c *ConversationV1) Messages(ctx context.Context, opts model.ListOptions) ([]model.DecodedMessage, error) {
	envs, err := c.client.ListEnvelopes(ctx, []string{c.topic}, opts)
	if err != nil {
		return nil, err
	}
	msgs := processAll(c.client, c.topic, envs, c.ProcessEnvelope)
	results, err := c.decryptBatch(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return c.client.collect(c.topic, results), nil
}

// MessagesPaginated yields one page of decoded messages per transport page.
func (c *ConversationV1) MessagesPaginated(ctx context.Context, opts model.ListOptions) iter.Seq2[[]model.DecodedMessage, error] {
	return func(yield func([]model.DecodedMessage, error) bool) {
		for page, err := range c.client.ListEnvelopesPaginated(ctx, []string{c.topic}, opts) {
			if err != nil {
				yield(nil, err)
				return
			}
			msgs := processAll(c.client, c.topic, page, c.ProcessEnvelope)
			results, err := c.decryptBatch(ctx, msgs)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(c.client.collect(c.topic, results), nil) {
				return
			}
		}
	}
}

func (c *ConversationV1) StreamMessages(ctx context.Context) iter.Seq2[model.DecodedMessage, error] {
	return func(yield func(model.DecodedMessage, error) bool) {
		for env, err := range c.client.transport.StreamLive(ctx, []string{c.topic}) {
			if err != nil {
				yield(model.DecodedMessage{}, err)
				return
			}
			if !yield(c.DecodeMessage(ctx, env)) {
				return
			}
		}
	}
}

// DecodeMessage decodes a single envelope and fails on any error.
func (c *ConversationV1) DecodeMessage(ctx context.Context, env model.Envelope) (model.DecodedMessage, error) {
	msg, err := c.ProcessEnvelope(env)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	results, err := c.decryptBatch(ctx, []*model.MessageV1{msg})
	if err != nil {
		return model.DecodedMessage{}, err
	}
	decoded, err := FirstError(results)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	if len(decoded) == 0 {
		return model.DecodedMessage{}, ErrNoResults
	}
	return decoded[0], nil
}

package conversation

import (
	"context"
	"fmt"
	"iter"
	"time"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/trust"
	"topicmsg/internal/protocol/wire"
)

// ConversationV2 is a conversation on a topic established by invitation.
// Every payload is signed by the sender's prekey and the sender address is
// only taken from a fully validated signature chain.
type ConversationV2 struct {
	client      *Client
	topic       string
	peerAddress string
	createdAt   time.Time
	context     *model.InvitationContext
}

func (*ConversationV2) isConversation() {}

func (*ConversationV2) Version() model.ProtocolVersion { return model.V2 }

func (c *ConversationV2) Topic() string { return c.topic }

func (c *ConversationV2) PeerAddress() string { return c.peerAddress }

func (c *ConversationV2) CreatedAt() time.Time { return c.createdAt }

func (c *ConversationV2) Context() *model.InvitationContext { return c.context }

func (c *ConversationV2) Send(ctx context.Context, value any, opts ...SendOption) (model.DecodedMessage, error) {
	o := c.client.sendOptions(opts)

	payload, err := c.client.encodeContent(value, o)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	msg, err := c.createMessage(ctx, payload, o.timestamp)
	if err != nil {
		return model.DecodedMessage{}, err
	}

	env := model.Envelope{
		ContentTopic: c.topic,
		TimestampNs:  msg.Header.CreatedNs,
		Message:      msg.RawBytes,
	}
	if err := c.client.PublishEnvelopes(ctx, []model.Envelope{env}); err != nil {
		return model.DecodedMessage{}, err
	}

	return model.DecodedMessage{
		ID:             msg.ID,
		MessageVersion: model.V2,
		SenderAddress:  c.client.address,
		Sent:           msg.Sent(),
		ContentTopic:   c.topic,
		ContentType:    o.contentType,
		Content:        value,
	}, nil
}

func (c *ConversationV2) createMessage(ctx context.Context, payload []byte, ts time.Time) (*model.MessageV2, error) {
	header := model.HeaderV2{
		CreatedNs: uint64(ts.UnixNano()),
		Topic:     c.topic,
	}
	headerBytes := wire.MarshalHeaderV2(&header)

	sig, err := c.client.keystore.SignDigest(ctx, model.SignDigestRequest{
		Digest:      trust.Digest(headerBytes, payload),
		PrekeyIndex: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	signed := wire.MarshalSignedContent(&model.SignedContent{
		Payload:   payload,
		Sender:    c.client.signedPublicKeyBundle,
		Signature: sig,
	})

	resps, err := c.client.keystore.EncryptV2(ctx, []model.EncryptV2Request{{
		Payload:      signed,
		HeaderBytes:  headerBytes,
		ContentTopic: c.topic,
	}})
	if err != nil {
		return nil, fmt.Errorf("encrypt v2: %w", err)
	}
	if err := responseCount(1, len(resps)); err != nil {
		return nil, err
	}
	if resps[0].Error != nil {
		return nil, &KeystoreRequestError{Index: 0, Err: resps[0].Error}
	}

	return wire.NewMessageV2(header, headerBytes, resps[0].Encrypted)
}

// ProcessEnvelope parses env and checks its header names this conversation's
// topic. It does not decrypt.
func (c *ConversationV2) ProcessEnvelope(env model.Envelope) (*model.MessageV2, error) {
	if env.ContentTopic == "" || len(env.Message) == 0 {
		return nil, ErrEmptyEnvelope
	}
	m, err := wire.ParseMessage(env.Message)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	msg, ok := m.(*model.MessageV2)
	if !ok {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrVersionMismatch, m.Version(), model.V2)
	}
	if msg.Header.Topic != c.topic {
		return nil, fmt.Errorf("%w: header names %s", ErrTopicMismatch, msg.Header.Topic)
	}
	return msg, nil
}

func (c *ConversationV2) decryptBatch(ctx context.Context, msgs []*model.MessageV2) ([]Result[model.DecodedMessage], error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	reqs := make([]model.DecryptV2Request, 0, len(msgs))
	for _, m := range msgs {
		reqs = append(reqs, model.DecryptV2Request{
			Payload:      m.Ciphertext,
			HeaderBytes:  m.HeaderBytes,
			ContentTopic: c.topic,
		})
	}

	resps, err := c.client.keystore.DecryptV2(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("decrypt v2: %w", err)
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

// buildDecodedMessage validates the signature chain before looking at the
// content.
func (c *ConversationV2) buildDecodedMessage(msg *model.MessageV2, decrypted []byte) (model.DecodedMessage, error) {
	signed, err := wire.UnmarshalSignedContent(decrypted)
	if err != nil {
		return model.DecodedMessage{}, fmt.Errorf("signed content: %w", err)
	}
	sender, err := trust.Validate(msg.HeaderBytes, signed)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	d, err := c.client.decode(signed.Payload)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	return model.DecodedMessage{
		ID:             msg.ID,
		MessageVersion: model.V2,
		SenderAddress:  sender,
		Sent:           msg.Sent(),
		ContentTopic:   c.topic,
		ContentType:    d.ContentType,
		Content:        d.Content,
		Error:          d.Err,
	}, nil
}

func (c *ConversationV2) Messages(ctx context.Context, opts model.ListOptions) ([]model.DecodedMessage, error) {
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

func (c *ConversationV2) MessagesPaginated(ctx context.Context, opts model.ListOptions) iter.Seq2[[]model.DecodedMessage, error] {
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

func (c *ConversationV2) StreamMessages(ctx context.Context) iter.Seq2[model.DecodedMessage, error] {
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

func (c *ConversationV2) DecodeMessage(ctx context.Context, env model.Envelope) (model.DecodedMessage, error) {
	msg, err := c.ProcessEnvelope(env)
	if err != nil {
		return model.DecodedMessage{}, err
	}
	results, err := c.decryptBatch(ctx, []*model.MessageV2{msg})
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

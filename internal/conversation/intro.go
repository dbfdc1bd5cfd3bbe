package conversation

import (
	"context"
	"fmt"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/topic"
	"topicmsg/internal/protocol/wire"
)

// IntroducedConversations lists the account's intro topic and returns one
// ConversationV1 per distinct peer, oldest introduction first. Envelopes that
// do not parse as V1 messages naming this account are skipped.
func (c *Client) IntroducedConversations(ctx context.Context, opts model.ListOptions) ([]*ConversationV1, error) {
	intro := topic.UserIntro(c.address)
	envs, err := c.ListEnvelopes(ctx, []string{intro}, opts)
	if err != nil {
		return nil, err
	}

	msgs := processAll(c, intro, envs, c.parseIntro)
	seen := make(map[string]struct{}, len(msgs))
	convs := make([]*ConversationV1, 0, len(msgs))
	for _, m := range msgs {
		peer := m.SenderAddress
		if peer == c.address {
			peer = m.RecipientAddress
		}
		if _, dup := seen[peer]; dup {
			continue
		}
		seen[peer] = struct{}{}
		convs = append(convs, newConversationV1(c, peer, m.Sent()))
	}
	return convs, nil
}

func (c *Client) parseIntro(env model.Envelope) (*model.MessageV1, error) {
	if len(env.Message) == 0 {
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
	if msg.SenderAddress != c.address && msg.RecipientAddress != c.address {
		return nil, fmt.Errorf("%w: intro between %s and %s", ErrTopicMismatch, msg.SenderAddress, msg.RecipientAddress)
	}
	return msg, nil
}

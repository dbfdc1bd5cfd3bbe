package conversation

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"topicmsg/internal/keystore"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/topic"
	"topicmsg/internal/protocol/trust"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shareTopic gives every account the same key for a fresh V2 topic.
func shareTopic(t *testing.T, accounts ...*account) string {
	t.Helper()
	convTopic, err := topic.NewConversation()
	require.NoError(t, err)
	key, err := keystore.NewTopicKey()
	require.NoError(t, err)
	for _, a := range accounts {
		require.NoError(t, a.ks.AddTopicKey(context.Background(), convTopic, key))
	}
	return convTopic
}

func conversationV2(t *testing.T, a, peer *account, convTopic string) *ConversationV2 {
	t.Helper()
	conv, err := a.client.NewConversationV2(convTopic, peer.client.Address(), time.Now(), &model.InvitationContext{ConversationID: "test"})
	require.NoError(t, err)
	return conv
}

func TestV2SendAndReceive(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)
	convTopic := shareTopic(t, alice, bob)

	conv := conversationV2(t, alice, bob, convTopic)
	assert.Equal(t, model.V2, conv.Version())
	assert.Equal(t, "test", conv.Context().ConversationID)

	sent, err := conv.Send(ctx, "hello")
	require.NoError(t, err)
	require.Len(t, tr.envs, 1)
	assert.Equal(t, convTopic, tr.envs[0].ContentTopic)
	assert.Equal(t, uint64(sent.Sent.UnixNano()), tr.envs[0].TimestampNs)

	msgs, err := conversationV2(t, bob, alice, convTopic).Messages(ctx, model.ListOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)
	assert.Equal(t, model.V2, msgs[0].MessageVersion)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, alice.client.Address(), msgs[0].SenderAddress)
	assert.Equal(t, convTopic, msgs[0].ContentTopic)
	assert.Equal(t, []int{1}, bob.ks.decryptV2Calls)
}

func TestNewConversationV2RequiresTopic(t *testing.T) {
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)

	_, err := alice.client.NewConversationV2("", bob.client.Address(), time.Now(), nil)
	assert.ErrorIs(t, err, ErrEmptyTopic)

	_, err = alice.client.NewConversationV2("m-abc", bob.client.Address(), time.Now(), nil)
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestV2SendWithoutTopicKey(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)
	convTopic := shareTopic(t, bob)

	_, err := conversationV2(t, alice, bob, convTopic).Send(ctx, "hello")
	var reqErr *KeystoreRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, model.KeystoreErrNoMatchingTopic, reqErr.Err.Code)
	assert.Empty(t, tr.envs)
}

func TestV2RejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)
	convTopic := shareTopic(t, alice, bob)

	alice.ks.signDigest = func(req model.SignDigestRequest) (*model.Signature, error) {
		other := sha256.Sum256([]byte("something else"))
		req.Digest = other[:]
		return alice.ks.Keystore.SignDigest(ctx, req)
	}
	_, err := conversationV2(t, alice, bob, convTopic).Send(ctx, "forged")
	require.NoError(t, err)

	conv := conversationV2(t, bob, alice, convTopic)
	_, err = conv.DecodeMessage(ctx, tr.envs[0])
	assert.ErrorIs(t, err, trust.ErrInvalidSignature)

	msgs, err := conv.Messages(ctx, model.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 1, bob.logs.FilterMessage("skipping message").Len())
}

func TestV2ChecksTopicBeforeDecrypt(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)
	first := shareTopic(t, alice, bob)
	second := shareTopic(t, alice, bob)

	_, err := conversationV2(t, alice, bob, first).Send(ctx, "on first")
	require.NoError(t, err)

	// same bytes replayed under the second topic
	replayed := tr.envs[0]
	replayed.ContentTopic = second
	conv := conversationV2(t, bob, alice, second)
	_, err = conv.DecodeMessage(ctx, replayed)
	assert.ErrorIs(t, err, ErrTopicMismatch)
	assert.Empty(t, bob.ks.decryptV2Calls)
}

func TestV2RejectsV1Message(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)
	convTopic := shareTopic(t, alice, bob)

	_, err := alice.conversationWith(t, bob).Send(ctx, "v1")
	require.NoError(t, err)
	env := tr.envs[2]
	env.ContentTopic = convTopic

	_, err = conversationV2(t, bob, alice, convTopic).DecodeMessage(ctx, env)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	// and the other way round
	_, err = conversationV2(t, alice, bob, convTopic).Send(ctx, "v2")
	require.NoError(t, err)
	v2env := tr.onTopic(convTopic)[0]
	_, err = bob.conversationWith(t, alice).DecodeMessage(ctx, v2env)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestV2StreamMessages(t *testing.T) {
	ctx := context.Background()
	tr := &memTransport{}
	contacts := contactMap{}
	alice := newAccount(t, tr, contacts)
	bob := newAccount(t, tr, contacts)
	convTopic := shareTopic(t, alice, bob)

	conv := conversationV2(t, alice, bob, convTopic)
	_, err := conv.Send(ctx, "one")
	require.NoError(t, err)
	_, err = conv.Send(ctx, "two")
	require.NoError(t, err)
	tr.live = tr.onTopic(convTopic)

	var got []any
	for msg, err := range conversationV2(t, bob, alice, convTopic).StreamMessages(ctx) {
		require.NoError(t, err)
		got = append(got, msg.Content)
		if len(got) == 1 {
			break
		}
	}
	assert.Equal(t, []any{"one"}, got)
}

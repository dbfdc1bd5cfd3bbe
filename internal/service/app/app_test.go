package app

import (
	"context"
	"testing"

	"topicmsg/internal/content"
	"topicmsg/internal/model"
	redisSvc "topicmsg/internal/service/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownPeers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	a := NewApp(nil, redisSvc.NewRedis(rdb), nil)

	peers, err := a.GetKnownPeers(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, peers)

	require.NoError(t, a.SaveKnownPeer(ctx, "alice", "bob"))
	require.NoError(t, a.SaveKnownPeer(ctx, "alice", "carol"))
	require.NoError(t, a.SaveKnownPeer(ctx, "alice", "bob"))

	peers, err = a.GetKnownPeers(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, peers)

	peers, err = a.GetKnownPeers(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "hi", Render(model.DecodedMessage{Content: "hi"}))

	reaction := content.Reaction{Reference: "abc", Action: "added", Content: "+1"}
	assert.Equal(t, "[gray]added +1 to abc[-]", Render(model.DecodedMessage{Content: reaction}))

	unknown := &content.UnknownContentTypeError{ContentType: content.ContentTypeReaction}
	assert.Contains(t, Render(model.DecodedMessage{Content: "fallback", Error: unknown}), "fallback")
	assert.Contains(t, Render(model.DecodedMessage{Error: unknown}), unknown.Error())
}

package httptransport

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"topicmsg/internal/cryptographic/dh"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/keys"
	"topicmsg/internal/protocol/topic"
	"topicmsg/internal/protocol/wire"
	redisSvc "topicmsg/internal/service/redis"
	"topicmsg/internal/service/server"
	"topicmsg/internal/transport/redistransport"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	topicA    = topic.Content("a")
	topicLive = topic.Content("live")
)

type memContacts struct {
	mu      sync.Mutex
	bundles map[string]*model.PublicKeyBundle
}

func (m *memContacts) GetContact(_ context.Context, address string) (*model.PublicKeyBundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundles[address], nil
}

func (m *memContacts) PutContact(_ context.Context, address string, bundle *model.PublicKeyBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[address] = bundle
	return nil
}

// newNode starts a relay node backed by miniredis and returns a client for it.
func newNode(t *testing.T) (*Client, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	node := server.NewHttpServer(
		redistransport.New(redisSvc.NewRedis(rdb)),
		&memContacts{bundles: map[string]*model.PublicKeyBundle{}},
	)
	srv := httptest.NewServer(node.Handler())
	t.Cleanup(srv.Close)

	return New(strings.TrimPrefix(srv.URL, "http://")), rdb
}

func envelopes(topic string, n int) []model.Envelope {
	envs := make([]model.Envelope, 0, n)
	for i := range n {
		envs = append(envs, model.Envelope{
			ContentTopic: topic,
			TimestampNs:  uint64(100 * (i + 1)),
			Message:      []byte{byte(i)},
		})
	}
	return envs
}

func TestPublishAndList(t *testing.T) {
	ctx := context.Background()
	c, _ := newNode(t)
	envs := envelopes(topicA, 3)
	require.NoError(t, c.Publish(ctx, envs))

	got, err := c.List(ctx, []string{topicA}, model.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, envs, got)

	got, err = c.List(ctx, []string{topicA}, model.ListOptions{Direction: model.SortDescending, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []model.Envelope{envs[2], envs[1]}, got)

	err = c.Publish(ctx, []model.Envelope{{Message: []byte("no topic")}})
	assert.Error(t, err)
}

func TestListPaginated(t *testing.T) {
	ctx := context.Background()
	c, _ := newNode(t)
	envs := envelopes(topicA, 5)
	require.NoError(t, c.Publish(ctx, envs))

	for _, dir := range []model.SortDirection{model.SortAscending, model.SortDescending} {
		var sizes []int
		var all []model.Envelope
		for page, err := range c.ListPaginated(ctx, []string{topicA}, model.ListOptions{PageSize: 2, Direction: dir}) {
			require.NoError(t, err)
			sizes = append(sizes, len(page))
			all = append(all, page...)
		}
		assert.Equal(t, []int{2, 2, 1}, sizes)
		assert.Len(t, all, 5)
		if dir == model.SortDescending {
			assert.Equal(t, envs[4], all[0])
		} else {
			assert.Equal(t, envs[0], all[0])
		}
	}

	var total int
	for page, err := range c.ListPaginated(ctx, []string{topicA}, model.ListOptions{PageSize: 2, Limit: 3}) {
		require.NoError(t, err)
		total += len(page)
	}
	assert.Equal(t, 3, total)
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	c, _ := newNode(t)
	wallet, _, err := dh.NewKeyPair()
	require.NoError(t, err)
	bundle, err := keys.NewPrivateKeyBundle(wallet)
	require.NoError(t, err)

	got, err := c.GetContact(ctx, bundle.Address)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.PutContact(ctx, bundle.Address, bundle.PublicKeyBundle()))
	got, err = c.GetContact(ctx, bundle.Address)
	require.NoError(t, err)
	assert.Equal(t, wire.MarshalPublicKeyBundle(bundle.PublicKeyBundle()), wire.MarshalPublicKeyBundle(got))

	other, err := keys.NewPrivateKeyBundle(wallet)
	require.NoError(t, err)
	other.Address = "0x0000000000000000000000000000000000000001"
	assert.Error(t, c.PutContact(ctx, other.Address, other.PublicKeyBundle()))
}

func TestStreamLive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, rdb := newNode(t)

	got := make(chan model.Envelope, 1)
	go func() {
		for env, err := range c.StreamLive(ctx, []string{topicLive}) {
			if err != nil {
				return
			}
			got <- env
			return
		}
	}()

	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, topicLive).Result()
		return err == nil && n[topicLive] == 1
	}, 2*time.Second, 10*time.Millisecond)

	env := model.Envelope{ContentTopic: topicLive, TimestampNs: 1, Message: []byte("now")}
	require.NoError(t, c.Publish(ctx, []model.Envelope{env}))

	select {
	case e := <-got:
		assert.Equal(t, env, e)
	case <-ctx.Done():
		t.Fatal("no envelope streamed")
	}
}

func TestListPaginatedWithEpochTimestamps(t *testing.T) {
	ctx := context.Background()
	c, _ := newNode(t)

	const start = 1_760_000_000_123_456_789
	envs := make([]model.Envelope, 0, 4)
	for i := range 4 {
		envs = append(envs, model.Envelope{
			ContentTopic: topicA,
			TimestampNs:  uint64(start + i*int(time.Second)),
			Message:      []byte(fmt.Sprintf("m%d", i)),
		})
	}
	require.NoError(t, c.Publish(ctx, envs))

	for _, pageSize := range []int{1, 2, 3} {
		var got []model.Envelope
		pages := 0
		for page, err := range c.ListPaginated(ctx, []string{topicA}, model.ListOptions{PageSize: pageSize}) {
			require.NoError(t, err)
			got = append(got, page...)
			pages++
			require.LessOrEqual(t, pages, len(envs), "page size %d", pageSize)
		}
		assert.Equal(t, envs, got, "page size %d", pageSize)
	}

	var got []model.Envelope
	for page, err := range c.ListPaginated(ctx, []string{topicA}, model.ListOptions{PageSize: 1, Direction: model.SortDescending}) {
		require.NoError(t, err)
		got = append(got, page...)
	}
	assert.Equal(t, []model.Envelope{envs[3], envs[2], envs[1], envs[0]}, got)
}

func TestListPaginatedWithIndistinguishableTimestamps(t *testing.T) {
	ctx := context.Background()
	c, _ := newNode(t)

	// one nanosecond apart, below float64 score resolution at this epoch
	const start = 1_760_000_000_123_456_789
	envs := make([]model.Envelope, 0, 5)
	for i := range 5 {
		envs = append(envs, model.Envelope{
			ContentTopic: topicA,
			TimestampNs:  uint64(start + i),
			Message:      []byte(fmt.Sprintf("m%d", i)),
		})
	}
	require.NoError(t, c.Publish(ctx, envs))

	var got []model.Envelope
	for page, err := range c.ListPaginated(ctx, []string{topicA}, model.ListOptions{PageSize: 2}) {
		require.NoError(t, err)
		got = append(got, page...)
	}
	assert.ElementsMatch(t, envs, got)
}

package redistransport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"topicmsg/internal/model"
	redisSvc "topicmsg/internal/service/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransport(t *testing.T) (*Transport, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(redisSvc.NewRedis(rdb)), rdb
}

func envelopes(topic string, n int) []model.Envelope {
	envs := make([]model.Envelope, 0, n)
	for i := range n {
		envs = append(envs, model.Envelope{
			ContentTopic: topic,
			TimestampNs:  uint64(1000 * (i + 1)),
			Message:      []byte(fmt.Sprintf("message %d", i)),
		})
	}
	return envs
}

func TestList(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTransport(t)
	envs := envelopes("a", 5)
	require.NoError(t, tr.Publish(ctx, envs))

	got, err := tr.List(ctx, []string{"a"}, model.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, envs, got)

	got, err = tr.List(ctx, []string{"a"}, model.ListOptions{Direction: model.SortDescending, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []model.Envelope{envs[4], envs[3]}, got)

	got, err = tr.List(ctx, []string{"a"}, model.ListOptions{
		StartTime: time.Unix(0, 2000),
		EndTime:   time.Unix(0, 4000),
	})
	require.NoError(t, err)
	assert.Equal(t, envs[1:4], got)

	got, err = tr.List(ctx, []string{"empty"}, model.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPublishIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTransport(t)
	envs := envelopes("a", 2)
	require.NoError(t, tr.Publish(ctx, envs))
	require.NoError(t, tr.Publish(ctx, envs))

	got, err := tr.List(ctx, []string{"a"}, model.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	err = tr.Publish(ctx, []model.Envelope{{Message: []byte("x")}})
	assert.Error(t, err)
}

func TestListMergesTopics(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTransport(t)
	a := []model.Envelope{
		{ContentTopic: "a", TimestampNs: 1, Message: []byte("a1")},
		{ContentTopic: "a", TimestampNs: 3, Message: []byte("a3")},
	}
	b := []model.Envelope{
		{ContentTopic: "b", TimestampNs: 2, Message: []byte("b2")},
	}
	require.NoError(t, tr.Publish(ctx, append(a, b...)))

	got, err := tr.List(ctx, []string{"a", "b"}, model.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []model.Envelope{a[0], b[0], a[1]}, got)

	got, err = tr.List(ctx, []string{"a", "b"}, model.ListOptions{Direction: model.SortDescending, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []model.Envelope{a[1], b[0]}, got)
}

func TestListPaginated(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTransport(t)
	envs := envelopes("a", 5)
	require.NoError(t, tr.Publish(ctx, envs))

	var sizes []int
	var all []model.Envelope
	for page, err := range tr.ListPaginated(ctx, []string{"a"}, model.ListOptions{PageSize: 2}) {
		require.NoError(t, err)
		sizes = append(sizes, len(page))
		all = append(all, page...)
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, envs, all)

	sizes = nil
	for page, err := range tr.ListPaginated(ctx, []string{"a"}, model.ListOptions{PageSize: 2, Limit: 3}) {
		require.NoError(t, err)
		sizes = append(sizes, len(page))
	}
	assert.Equal(t, []int{2, 1}, sizes)

	// stopping early is allowed
	pages := 0
	for range tr.ListPaginated(ctx, []string{"a"}, model.ListOptions{PageSize: 1}) {
		pages++
		break
	}
	assert.Equal(t, 1, pages)
}

func TestStreamLive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, rdb := newTransport(t)

	got := make(chan model.Envelope, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for env, err := range tr.StreamLive(ctx, []string{"live"}) {
			if err != nil {
				continue
			}
			got <- env
			break
		}
	}()

	subscribers := func() int64 {
		n, err := rdb.PubSubNumSub(ctx, "live").Result()
		if err != nil {
			return -1
		}
		return n["live"]
	}
	require.Eventually(t, func() bool { return subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	env := model.Envelope{ContentTopic: "live", TimestampNs: 7, Message: []byte("now")}
	require.NoError(t, tr.Publish(ctx, []model.Envelope{env}))

	select {
	case e := <-got:
		assert.Equal(t, env, e)
	case <-ctx.Done():
		t.Fatal("no envelope streamed")
	}

	<-done
	require.Eventually(t, func() bool { return subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamLiveStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr, _ := newTransport(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range tr.StreamLive(ctx, []string{"live"}) {
		}
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestListOffset(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTransport(t)
	a := envelopes("a", 4)
	b := []model.Envelope{{ContentTopic: "b", TimestampNs: 2500, Message: []byte("b")}}
	require.NoError(t, tr.Publish(ctx, append(a, b...)))

	got, err := tr.List(ctx, []string{"a"}, model.ListOptions{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, a[1:3], got)

	got, err = tr.List(ctx, []string{"a"}, model.ListOptions{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, a[2:], got)

	got, err = tr.List(ctx, []string{"a"}, model.ListOptions{Offset: 3, Direction: model.SortDescending})
	require.NoError(t, err)
	assert.Equal(t, []model.Envelope{a[0]}, got)

	// merged order is a0 a1 b a2 a3
	got, err = tr.List(ctx, []string{"a", "b"}, model.ListOptions{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []model.Envelope{b[0], a[2]}, got)

	got, err = tr.List(ctx, []string{"a", "b"}, model.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

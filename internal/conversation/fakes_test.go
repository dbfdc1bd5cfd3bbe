package conversation

import (
	"context"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"topicmsg/internal/content"
	"topicmsg/internal/cryptographic/dh"
	"topicmsg/internal/keystore"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/keys"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memTransport struct {
	mu   sync.Mutex
	envs []model.Envelope
	live []model.Envelope
}

func (m *memTransport) Publish(_ context.Context, envs []model.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envs = append(m.envs, envs...)
	return nil
}

func (m *memTransport) List(_ context.Context, topics []string, opts model.ListOptions) ([]model.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Envelope
	for _, env := range m.envs {
		if slices.Contains(topics, env.ContentTopic) {
			out = append(out, env)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Envelope) int {
		if opts.Direction == model.SortDescending {
			a, b = b, a
		}
		switch {
		case a.TimestampNs < b.TimestampNs:
			return -1
		case a.TimestampNs > b.TimestampNs:
			return 1
		}
		return 0
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memTransport) ListPaginated(ctx context.Context, topics []string, opts model.ListOptions) iter.Seq2[[]model.Envelope, error] {
	return func(yield func([]model.Envelope, error) bool) {
		envs, err := m.List(ctx, topics, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		size := opts.PageSize
		if size <= 0 {
			size = model.DefaultPageSize
		}
		for page := range slices.Chunk(envs, size) {
			if !yield(page, nil) {
				return
			}
		}
	}
}

func (m *memTransport) StreamLive(context.Context, []string) iter.Seq2[model.Envelope, error] {
	return func(yield func(model.Envelope, error) bool) {
		for _, env := range m.live {
			if !yield(env, nil) {
				return
			}
		}
	}
}

func (m *memTransport) onTopic(topic string) []model.Envelope {
	envs, _ := m.List(context.Background(), []string{topic}, model.ListOptions{})
	return envs
}

type contactMap map[string]*model.PublicKeyBundle

func (c contactMap) GetContact(_ context.Context, address string) (*model.PublicKeyBundle, error) {
	return c[address], nil
}

// hookedKeystore records batch sizes and lets a test replace single calls.
type hookedKeystore struct {
	*keystore.Keystore

	mu             sync.Mutex
	decryptV1Calls []int
	decryptV2Calls []int

	decryptV1  func(reqs []model.DecryptV1Request) ([]model.DecryptResponse, error)
	signDigest func(req model.SignDigestRequest) (*model.Signature, error)
}

func (h *hookedKeystore) DecryptV1(ctx context.Context, reqs []model.DecryptV1Request) ([]model.DecryptResponse, error) {
	h.mu.Lock()
	h.decryptV1Calls = append(h.decryptV1Calls, len(reqs))
	h.mu.Unlock()
	if h.decryptV1 != nil {
		return h.decryptV1(reqs)
	}
	return h.Keystore.DecryptV1(ctx, reqs)
}

func (h *hookedKeystore) DecryptV2(ctx context.Context, reqs []model.DecryptV2Request) ([]model.DecryptResponse, error) {
	h.mu.Lock()
	h.decryptV2Calls = append(h.decryptV2Calls, len(reqs))
	h.mu.Unlock()
	return h.Keystore.DecryptV2(ctx, reqs)
}

func (h *hookedKeystore) SignDigest(ctx context.Context, req model.SignDigestRequest) (*model.Signature, error) {
	if h.signDigest != nil {
		return h.signDigest(req)
	}
	return h.Keystore.SignDigest(ctx, req)
}

type account struct {
	ks     *hookedKeystore
	client *Client
	logs   *observer.ObservedLogs
}

func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// newAccount creates an account and registers its V1 bundle in contacts.
func newAccount(t *testing.T, tr Transport, contacts contactMap, codecs ...content.Codec) *account {
	t.Helper()
	wallet, _, err := dh.NewKeyPair()
	require.NoError(t, err)
	bundle, err := keys.NewPrivateKeyBundle(wallet)
	require.NoError(t, err)

	ks := &hookedKeystore{Keystore: keystore.New(bundle, nil)}
	core, logs := observer.New(zap.WarnLevel)
	c, err := New(context.Background(), ks, tr, contacts,
		WithLogger(zap.New(core)),
		WithClock(stepClock()),
		WithCodecs(codecs...),
	)
	require.NoError(t, err)

	contacts[c.Address()] = c.PublicKeyBundle()
	return &account{ks: ks, client: c, logs: logs}
}

func (a *account) conversationWith(t *testing.T, peer *account) *ConversationV1 {
	t.Helper()
	conv, err := a.client.NewConversationV1(peer.client.Address(), time.Now())
	require.NoError(t, err)
	return conv
}

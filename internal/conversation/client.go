// Package conversation sends and receives messages on topic-addressed
// conversations. A ConversationV1 lives on the topic derived from two account
// addresses; a ConversationV2 lives on a random topic agreed through an
// invitation and carries signed payloads.
//
// Key material never enters this package: every encryption, decryption and
// signature goes through a Keystore. Messages travel as Envelopes through a
// Transport, and V1 recipients are resolved through a ContactDirectory.
package conversation

import (
	"context"
	"fmt"
	"iter"
	"time"

	"topicmsg/internal/content"
	"topicmsg/internal/cryptographic/signature"
	"topicmsg/internal/model"
	"topicmsg/internal/protocol/topic"
	"topicmsg/internal/utils/log"

	"go.uber.org/zap"
)

type (
	// Keystore holds the account's private keys. Batched calls return one
	// response per request, in request order.
	Keystore interface {
		EncryptV1(ctx context.Context, reqs []model.EncryptV1Request) ([]model.EncryptResponse, error)
		DecryptV1(ctx context.Context, reqs []model.DecryptV1Request) ([]model.DecryptResponse, error)
		EncryptV2(ctx context.Context, reqs []model.EncryptV2Request) ([]model.EncryptResponse, error)
		DecryptV2(ctx context.Context, reqs []model.DecryptV2Request) ([]model.DecryptResponse, error)
		SignDigest(ctx context.Context, req model.SignDigestRequest) (*model.Signature, error)
		PublicKeyBundle(ctx context.Context) (*model.PublicKeyBundle, error)
		SignedPublicKeyBundle(ctx context.Context) (*model.SignedPublicKeyBundle, error)
		AccountAddress(ctx context.Context) (string, error)
	}

	// Transport publishes and queries envelopes by topic.
	Transport interface {
		Publish(ctx context.Context, envs []model.Envelope) error
		List(ctx context.Context, topics []string, opts model.ListOptions) ([]model.Envelope, error)
		ListPaginated(ctx context.Context, topics []string, opts model.ListOptions) iter.Seq2[[]model.Envelope, error]
		StreamLive(ctx context.Context, topics []string) iter.Seq2[model.Envelope, error]
	}

	// ContactDirectory resolves an address to its published V1 bundle. An
	// unknown address yields (nil, nil).
	ContactDirectory interface {
		GetContact(ctx context.Context, address string) (*model.PublicKeyBundle, error)
	}

	Client struct {
		address               string
		publicKeyBundle       *model.PublicKeyBundle
		signedPublicKeyBundle *model.SignedPublicKeyBundle

		keystore  Keystore
		transport Transport
		contacts  ContactDirectory

		codecs      *content.Registry
		extraCodecs []content.Codec
		knownPeers  *peerSet
		logger      *zap.Logger
		now         func() time.Time
	}

	Option func(*Client)
)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCodecs registers codecs beyond the built-in text and group-updated ones.
func WithCodecs(codecs ...content.Codec) Option {
	return func(c *Client) { c.extraCodecs = append(c.extraCodecs, codecs...) }
}

// WithKnownPeers marks peers whose introductions were already published.
// Addresses are stored checksummed, the form conversations use.
func WithKnownPeers(addresses ...string) Option {
	return func(c *Client) {
		for _, a := range addresses {
			if checksummed, err := signature.ChecksumAddress(a); err == nil {
				a = checksummed
			}
			c.knownPeers.add(a)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New loads the account's public identity from the keystore.
func New(ctx context.Context, ks Keystore, tr Transport, contacts ContactDirectory, opts ...Option) (*Client, error) {
	address, err := ks.AccountAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("get account address: %w", err)
	}
	pub, err := ks.PublicKeyBundle(ctx)
	if err != nil {
		return nil, fmt.Errorf("get public key bundle: %w", err)
	}
	signed, err := ks.SignedPublicKeyBundle(ctx)
	if err != nil {
		return nil, fmt.Errorf("get signed public key bundle: %w", err)
	}

	c := &Client{
		address:               address,
		publicKeyBundle:       pub,
		signedPublicKeyBundle: signed,
		keystore:              ks,
		transport:             tr,
		contacts:              contacts,
		knownPeers:            newPeerSet(),
		logger:                log.L(),
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.codecs, err = content.NewRegistry(c.extraCodecs...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Address() string { return c.address }

func (c *Client) Codecs() *content.Registry { return c.codecs }

func (c *Client) PublicKeyBundle() *model.PublicKeyBundle { return c.publicKeyBundle }

func (c *Client) SignedPublicKeyBundle() *model.SignedPublicKeyBundle {
	return c.signedPublicKeyBundle
}

// NewConversationV1 opens the direct conversation with peerAddress.
func (c *Client) NewConversationV1(peerAddress string, createdAt time.Time) (*ConversationV1, error) {
	peer, err := signature.ChecksumAddress(peerAddress)
	if err != nil {
		return nil, fmt.Errorf("peer address: %w", err)
	}
	return newConversationV1(c, peer, createdAt), nil
}

// NewConversationV2 opens a conversation on a topic agreed by invitation.
func (c *Client) NewConversationV2(contentTopic, peerAddress string, createdAt time.Time, ictx *model.InvitationContext) (*ConversationV2, error) {
	if contentTopic == "" {
		return nil, ErrEmptyTopic
	}
	if !topic.IsValid(contentTopic) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTopic, contentTopic)
	}
	peer, err := signature.ChecksumAddress(peerAddress)
	if err != nil {
		return nil, fmt.Errorf("peer address: %w", err)
	}
	return &ConversationV2{
		client:      c,
		topic:       contentTopic,
		peerAddress: peer,
		createdAt:   createdAt,
		context:     ictx,
	}, nil
}

// EncodeContent encodes content with its codec, attaches a fallback and
// applies the requested compression.
func (c *Client) EncodeContent(value any, opts ...SendOption) ([]byte, error) {
	o := c.sendOptions(opts)
	return c.encodeContent(value, o)
}

func (c *Client) encodeContent(value any, o sendOptions) ([]byte, error) {
	var encodeOpts []content.EncodeOption
	if o.compression != nil {
		encodeOpts = append(encodeOpts, content.WithCompression(*o.compression))
	}
	payload, err := c.codecs.EncodeBytes(value, o.contentType, encodeOpts...)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return payload, nil
}

func (c *Client) PublishEnvelopes(ctx context.Context, envs []model.Envelope) error {
	if err := c.transport.Publish(ctx, envs); err != nil {
		return fmt.Errorf("publish %d envelopes: %w", len(envs), err)
	}
	return nil
}

func (c *Client) ListEnvelopes(ctx context.Context, topics []string, opts model.ListOptions) ([]model.Envelope, error) {
	envs, err := c.transport.List(ctx, topics, opts)
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	return envs, nil
}

func (c *Client) ListEnvelopesPaginated(ctx context.Context, topics []string, opts model.ListOptions) iter.Seq2[[]model.Envelope, error] {
	return c.transport.ListPaginated(ctx, topics, opts)
}

// processAll applies process to every envelope, logging and dropping the
// ones it rejects.
func processAll[M any](c *Client, contentTopic string, envs []model.Envelope, process func(model.Envelope) (M, error)) []M {
	out := make([]M, 0, len(envs))
	for i, env := range envs {
		m, err := process(env)
		if err != nil {
			c.logger.Warn("skipping envelope",
				zap.String("topic", contentTopic),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *Client) collect(contentTopic string, results []Result[model.DecodedMessage]) []model.DecodedMessage {
	return CollectOK(results, func(i int, err error) {
		c.logger.Warn("skipping message",
			zap.String("topic", contentTopic),
			zap.Int("index", i),
			zap.Error(err),
		)
	})
}

// decode runs the content pipeline over a decrypted payload.
func (c *Client) decode(payload []byte) (content.Decoded, error) {
	d, err := c.codecs.Decode(payload, model.KindApplication)
	if err != nil {
		return content.Decoded{}, fmt.Errorf("decode content: %w", err)
	}
	return d, nil
}

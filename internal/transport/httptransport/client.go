// Package httptransport talks to a relay node over HTTP and WebSocket. It
// serves as both the message transport and the contact directory.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"time"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/wire"
	"topicmsg/internal/service/server"

	"github.com/gorilla/websocket"
)

type Client struct {
	host       string
	secure     bool
	httpClient *http.Client
	dialer     *websocket.Dialer
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTLS switches to https and wss.
func WithTLS() Option {
	return func(cl *Client) { cl.secure = true }
}

// New returns a client for the node at host ("localhost:9090").
func New(host string, opts ...Option) *Client {
	c := &Client{
		host:       host,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(scheme, path string, query url.Values) string {
	if c.secure {
		scheme += "s"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     c.host,
		Path:     path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url("http", path, nil), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	var e server.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("node returned %d", resp.StatusCode)
}

func (c *Client) Publish(ctx context.Context, envs []model.Envelope) error {
	req := server.PublishRequest{Envelopes: make([][]byte, 0, len(envs))}
	for _, env := range envs {
		req.Envelopes = append(req.Envelopes, wire.MarshalEnvelope(env))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/publish", "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

func (c *Client) List(ctx context.Context, topics []string, opts model.ListOptions) ([]model.Envelope, error) {
	return c.query(ctx, server.NewQueryRequest(topics, opts))
}

func (c *Client) query(ctx context.Context, q server.QueryRequest) ([]model.Envelope, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/query", "application/json", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var qr server.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	envs := make([]model.Envelope, 0, len(qr.Envelopes))
	for _, b := range qr.Envelopes {
		env, err := wire.UnmarshalEnvelope(b)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// ListPaginated pages by offset into the node's ordered result. Timestamps
// are not used as a cursor: the node cannot tell nanoseconds apart at
// current epoch values.
func (c *Client) ListPaginated(ctx context.Context, topics []string, opts model.ListOptions) iter.Seq2[[]model.Envelope, error] {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}

	return func(yield func([]model.Envelope, error) bool) {
		q := server.NewQueryRequest(topics, opts)
		remaining := opts.Limit
		for {
			q.Limit = pageSize
			if opts.Limit > 0 {
				if remaining <= 0 {
					return
				}
				q.Limit = min(pageSize, remaining)
			}

			envs, err := c.query(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(envs) == 0 {
				return
			}
			if !yield(envs, nil) {
				return
			}
			if len(envs) < q.Limit {
				return
			}

			remaining -= len(envs)
			q.Offset += len(envs)
		}
	}
}

// StreamLive holds a WebSocket open to the node until ctx is done or the
// consumer stops.
func (c *Client) StreamLive(ctx context.Context, topics []string) iter.Seq2[model.Envelope, error] {
	return func(yield func(model.Envelope, error) bool) {
		query := url.Values{"topic": topics}
		conn, _, err := c.dialer.DialContext(ctx, c.url("ws", "/v1/subscribe", query), nil)
		if err != nil {
			yield(model.Envelope{}, fmt.Errorf("dial subscribe: %w", err))
			return
		}
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					yield(model.Envelope{}, fmt.Errorf("read subscribe: %w", err))
				}
				return
			}
			if !yield(wire.UnmarshalEnvelope(data)) {
				return
			}
		}
	}
}

// GetContact returns (nil, nil) when the node has no bundle for address.
func (c *Client) GetContact(ctx context.Context, address string) (*model.PublicKeyBundle, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/contacts/"+address, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalPublicKeyBundle(body)
}

// PutContact publishes the account's V1 bundle under address.
func (c *Client) PutContact(ctx context.Context, address string, bundle *model.PublicKeyBundle) error {
	resp, err := c.do(ctx, http.MethodPut, "/v1/contacts/"+address, "application/octet-stream", wire.MarshalPublicKeyBundle(bundle))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

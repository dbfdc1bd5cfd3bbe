// Package redistransport stores envelopes in one Redis sorted set per topic,
// scored by timestamp, and fans them out live over Redis pub/sub.
package redistransport

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strconv"

	"topicmsg/internal/model"
	"topicmsg/internal/protocol/wire"
	redisSvc "topicmsg/internal/service/redis"
	"topicmsg/internal/utils/log"

	"go.uber.org/zap"
)

type Transport struct {
	redisService *redisSvc.RedisService
}

func New(redisService *redisSvc.RedisService) *Transport {
	return &Transport{redisService: redisService}
}

func setKey(topic string) string {
	return "envelopes: " + topic
}

// Publish stores and announces each envelope. Republishing an identical
// envelope is a no-op for history.
func (t *Transport) Publish(ctx context.Context, envs []model.Envelope) error {
	for _, env := range envs {
		if env.ContentTopic == "" {
			return fmt.Errorf("publish: envelope without topic")
		}
		member := string(wire.MarshalEnvelope(env))
		if err := t.redisService.ZAddPublish(ctx, setKey(env.ContentTopic), float64(env.TimestampNs), member, env.ContentTopic); err != nil {
			return fmt.Errorf("publish to %s: %w", env.ContentTopic, err)
		}
	}
	return nil
}

func scoreRange(opts model.ListOptions) redisSvc.ScoreRange {
	var rng redisSvc.ScoreRange
	if !opts.StartTime.IsZero() {
		rng.Min = strconv.FormatInt(opts.StartTime.UnixNano(), 10)
	}
	if !opts.EndTime.IsZero() {
		rng.Max = strconv.FormatInt(opts.EndTime.UnixNano(), 10)
	}
	rng.Reverse = opts.Direction == model.SortDescending
	return rng
}

func (t *Transport) page(ctx context.Context, topic string, rng redisSvc.ScoreRange) ([]model.Envelope, error) {
	members, err := t.redisService.ZRange(ctx, setKey(topic), rng)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", topic, err)
	}
	envs := make([]model.Envelope, 0, len(members))
	for _, m := range members {
		env, err := wire.UnmarshalEnvelope([]byte(m))
		if err != nil {
			log.Warn("dropping stored envelope", zap.String("topic", topic), zap.Error(err))
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// List returns the envelopes of all topics merged in timestamp order, at
// most opts.Limit of them after skipping opts.Offset. Envelopes with equal
// scores keep Redis member order, so offsets are stable between calls.
func (t *Transport) List(ctx context.Context, topics []string, opts model.ListOptions) ([]model.Envelope, error) {
	offset := max(opts.Offset, 0)
	rng := scoreRange(opts)
	if len(topics) == 1 {
		rng.Offset = int64(offset)
		if opts.Limit > 0 {
			rng.Count = int64(opts.Limit)
		}
		return t.page(ctx, topics[0], rng)
	}
	// every topic may contribute to the skipped prefix
	if opts.Limit > 0 {
		rng.Count = int64(offset + opts.Limit)
	}

	var out []model.Envelope
	for _, topic := range topics {
		envs, err := t.page(ctx, topic, rng)
		if err != nil {
			return nil, err
		}
		out = append(out, envs...)
	}

	slices.SortStableFunc(out, func(a, b model.Envelope) int {
		if opts.Direction == model.SortDescending {
			return compareTimestamp(b, a)
		}
		return compareTimestamp(a, b)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func compareTimestamp(a, b model.Envelope) int {
	switch {
	case a.TimestampNs < b.TimestampNs:
		return -1
	case a.TimestampNs > b.TimestampNs:
		return 1
	}
	return 0
}

// ListPaginated pages through each topic in turn. opts.Limit caps the total
// number of envelopes yielded.
func (t *Transport) ListPaginated(ctx context.Context, topics []string, opts model.ListOptions) iter.Seq2[[]model.Envelope, error] {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}

	return func(yield func([]model.Envelope, error) bool) {
		remaining := opts.Limit
		for _, topic := range topics {
			rng := scoreRange(opts)
			for {
				count := pageSize
				if opts.Limit > 0 && remaining < count {
					count = remaining
				}
				if count == 0 {
					return
				}
				rng.Count = int64(count)

				envs, err := t.page(ctx, topic, rng)
				if err != nil {
					yield(nil, err)
					return
				}
				if len(envs) == 0 {
					break
				}
				if !yield(envs, nil) {
					return
				}
				remaining -= len(envs)
				rng.Offset += int64(len(envs))
				if len(envs) < count {
					break
				}
			}
		}
	}
}

// StreamLive yields envelopes published to topics until ctx is done or the
// consumer stops. The subscription is released on return.
func (t *Transport) StreamLive(ctx context.Context, topics []string) iter.Seq2[model.Envelope, error] {
	return func(yield func(model.Envelope, error) bool) {
		sub := t.redisService.Subscribe(ctx, topics...)
		defer sub.Close()

		if _, err := sub.Receive(ctx); err != nil {
			yield(model.Envelope{}, fmt.Errorf("subscribe: %w", err))
			return
		}

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := wire.UnmarshalEnvelope([]byte(msg.Payload))
				if !yield(env, err) {
					return
				}
			}
		}
	}
}

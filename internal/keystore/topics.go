package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redisSvc "topicmsg/internal/service/redis"
)

type (
	// TopicKey is the symmetric key material of one V2 conversation topic.
	TopicKey struct {
		KeyMaterial []byte    `json:"key_material"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// TopicStore persists topic keys. An unknown topic yields (nil, nil).
	TopicStore interface {
		SaveTopicKey(ctx context.Context, topic string, key *TopicKey) error
		GetTopicKey(ctx context.Context, topic string) (*TopicKey, error)
	}

	MemoryTopicStore struct {
		mu   sync.RWMutex
		keys map[string]*TopicKey
	}

	RedisTopicStore struct {
		redisService *redisSvc.RedisService
		owner        string
	}
)

func NewMemoryTopicStore() *MemoryTopicStore {
	return &MemoryTopicStore{keys: make(map[string]*TopicKey)}
}

func (s *MemoryTopicStore) SaveTopicKey(_ context.Context, topic string, key *TopicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[topic] = key
	return nil
}

func (s *MemoryTopicStore) GetTopicKey(_ context.Context, topic string) (*TopicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[topic], nil
}

// NewRedisTopicStore keeps owner's topic keys in Redis. Keys of different
// owners do not collide.
func NewRedisTopicStore(redisService *redisSvc.RedisService, owner string) *RedisTopicStore {
	return &RedisTopicStore{redisService: redisService, owner: owner}
}

func (s *RedisTopicStore) key(topic string) string {
	return fmt.Sprintf("owner: %s, topic: %s", s.owner, topic)
}

func (s *RedisTopicStore) SaveTopicKey(ctx context.Context, topic string, key *TopicKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	return s.redisService.Set(ctx, s.key(topic), data, 0)
}

func (s *RedisTopicStore) GetTopicKey(ctx context.Context, topic string) (*TopicKey, error) {
	v, err := s.redisService.Get(ctx, s.key(topic))
	if errors.Is(err, redisSvc.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var key TopicKey
	if err := json.Unmarshal([]byte(v), &key); err != nil {
		return nil, err
	}
	return &key, nil
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	redisSvc "topicmsg/internal/service/redis"
)

func knownPeersKey(owner string) string {
	return fmt.Sprintf("known peers: %s", owner)
}

// SaveKnownPeer records that an introduction to peer was published.
func (c *App) SaveKnownPeer(ctx context.Context, owner string, peer string) error {
	peers, err := c.GetKnownPeers(ctx, owner)
	if err != nil {
		return err
	}
	if slices.Contains(peers, peer) {
		return nil
	}

	data, err := json.Marshal(append(peers, peer))
	if err != nil {
		return err
	}
	return c.redisService.Set(ctx, knownPeersKey(owner), data, 0)
}

func (c *App) GetKnownPeers(ctx context.Context, owner string) ([]string, error) {
	v, err := c.redisService.Get(ctx, knownPeersKey(owner))
	if errors.Is(err, redisSvc.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var peers []string
	if err := json.Unmarshal([]byte(v), &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

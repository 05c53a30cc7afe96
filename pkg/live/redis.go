package live

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes run events over redis pub/sub so viewers
// connected to any node receive them.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding live event")
	}
	if err := b.client.Publish(ctx, Channel(ev.RunID), payload).Err(); err != nil {
		return errors.Wrap(err, "publishing live event")
	}
	return nil
}

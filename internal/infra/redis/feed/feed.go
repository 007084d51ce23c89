package infra_redis_feed

import (
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis"
	"github.com/wellworld/core/internal/model"
)

const channelPrefix = "room_changes:"

// Driver is the change-feed: committed room-row updates are published as
// {previous,new} JSON on a per-room channel. Redis pub/sub gives per-channel
// publish order, which matches the per-row commit-order contract; delivery
// to a live subscriber is at-least-once from the client's point of view.
type Driver struct {
	client *redis.Client
	logger *slog.Logger
}

func New(client *redis.Client) *Driver {
	return &Driver{
		client: client,
		logger: slog.Default(),
	}
}

func (d *Driver) Publish(change model.RoomChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return d.client.Publish(channelPrefix+change.New.Code, payload).Err()
}

// Subscribe delivers every change event for the room until release is
// called. Events that fail to decode are dropped with a log line; a client
// whose view lags simply catches up on the next event.
func (d *Driver) Subscribe(code string) (<-chan model.RoomChange, func(), error) {
	pubsub := d.client.Subscribe(channelPrefix + code)
	if _, err := pubsub.Receive(); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan model.RoomChange, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var change model.RoomChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				d.logger.Warn("dropping malformed change event", "room", code, "error", err)
				continue
			}
			out <- change
		}
	}()

	release := func() {
		if err := pubsub.Close(); err != nil {
			d.logger.Warn("feed unsubscribe failed", "room", code, "error", err)
		}
	}
	return out, release, nil
}

// internal/events/redis.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// RedisPublisher fans events out over Redis pub/sub so multiple engine
// instances can share one client population. Room events go to "room:{id}",
// unicasts to "user:{identity}"; an edge process subscribed to those channels
// forwards them to its local websocket connections.
type RedisPublisher struct {
	rdb *redis.Client
	log *logrus.Logger
}

// NewRedisPublisher connects a publisher to the given Redis address and
// verifies the connection.
func NewRedisPublisher(logger *logrus.Logger, addr, password string, db int) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisPublisher{rdb: rdb, log: logger}, nil
}

// RoomChannel returns the pub/sub channel name for a room topic.
func RoomChannel(roomID string) string { return "room:" + roomID }

// UserChannel returns the pub/sub channel name for a single identity.
func UserChannel(identity string) string { return "user:" + identity }

// Broadcast publishes the event on the room channel. Fire-and-forget: errors
// are logged, never returned.
func (p *RedisPublisher) Broadcast(roomID string, ev Event) {
	p.publish(RoomChannel(roomID), ev)
}

// Unicast publishes the event on the identity's channel.
func (p *RedisPublisher) Unicast(identity string, ev Event) {
	p.publish(UserChannel(identity), ev)
}

// Probe reports an error when nobody is subscribed to the identity's channel.
func (p *RedisPublisher) Probe(identity string) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ch := UserChannel(identity)
	counts, err := p.rdb.PubSubNumSub(ctx, ch).Result()
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", ch, err)
	}
	if counts[ch] == 0 {
		return ErrSubscriberGone
	}
	return nil
}

// Close releases the underlying Redis client.
func (p *RedisPublisher) Close() error { return p.rdb.Close() }

func (p *RedisPublisher) publish(channel string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).WithField("event", ev.Type).Error("failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"channel": channel,
			"event":   ev.Type,
		}).Warn("event publish failed")
	}
}

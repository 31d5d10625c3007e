package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// ActivityChannel carries admin activity events between instances.
const ActivityChannel = "activity-events"

// Publisher emits JSON events on one Redis channel.
type Publisher struct {
	conn    *redis.Client
	channel string
}

// NewPublisher returns nil when conn is nil.
func NewPublisher(conn *redis.Client, channel string) *Publisher {
	if conn == nil {
		return nil
	}
	return &Publisher{conn: conn, channel: channel}
}

// Emit publishes content to the channel.
func (p *Publisher) Emit(ctx context.Context, content any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Listen delivers every payload on the channel to handle until ctx ends.
func (p *Publisher) Listen(ctx context.Context, handle func([]byte)) {
	sub := p.conn.Subscribe(ctx, p.channel)
	defer sub.Close()
	ch := sub.Channel()

	log.Printf("[mq] Listening for %s...", p.channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			handle([]byte(msg.Payload))
		}
	}
}

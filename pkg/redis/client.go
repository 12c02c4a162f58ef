// Package redis adapts the go-redis client to the two things the
// coordinator's Redis bridge needs: a blocking submission queue (LPUSH from
// producers, BRPOP in the bridge) and a hash-plus-pubsub sink for
// broadcasting device state and indications to other services.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper around *redis.Client with the primitives the
// bridge composes: hash read/write, publish/subscribe, and list push/pop.
type Client struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to addr and pings it before returning, so construction
// failures surface immediately rather than on first use.
func New(addr string, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}

	return &Client{client: client, ctx: ctx}, nil
}

// WriteString writes a string field to a hash.
func (c *Client) WriteString(key, field, value string) error {
	return c.client.HSet(c.ctx, key, field, value).Err()
}

// WriteAndPublishString writes a string field to a hash and publishes the
// change on the same key as a channel name, in one pipelined round trip (not
// a MULTI/EXEC transaction).
func (c *Client) WriteAndPublishString(key, field, value string) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, fmt.Sprintf("%s:%s", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// WriteInt writes an integer field to a hash.
func (c *Client) WriteInt(key, field string, value int) error {
	return c.client.HSet(c.ctx, key, field, value).Err()
}

// WriteAndPublishInt writes an integer field to a hash and publishes the
// change, in one pipelined round trip (not a MULTI/EXEC transaction).
func (c *Client) WriteAndPublishInt(key, field string, value int) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, fmt.Sprintf("%s:%d", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// GetString reads a string field from a hash.
func (c *Client) GetString(key, field string) (string, error) {
	val, err := c.client.HGet(c.ctx, key, field).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("redis: key %s field %s not found", key, field)
	}
	return val, err
}

// GetInt reads an integer field from a hash.
func (c *Client) GetInt(key, field string) (int, error) {
	val, err := c.client.HGet(c.ctx, key, field).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("redis: key %s field %s not found", key, field)
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// Subscribe subscribes to channel and returns a channel of its messages
// plus a function to unsubscribe and release the underlying connection.
func (c *Client) Subscribe(channel string) (<-chan *redis.Message, func()) {
	pubsub := c.client.Subscribe(c.ctx, channel)
	ch := pubsub.Channel()
	return ch, func() { pubsub.Close() }
}

// Publish publishes message on channel.
func (c *Client) Publish(channel string, message string) error {
	return c.client.Publish(c.ctx, channel, message).Err()
}

// HDel deletes a field from a hash.
func (c *Client) HDel(key, field string) (int64, error) {
	return c.client.HDel(c.ctx, key, field).Result()
}

// LPush pushes value onto the head of the list at key.
func (c *Client) LPush(key string, value string) error {
	_, err := c.client.LPush(c.ctx, key, value).Result()
	if err != nil {
		log.Printf("redis: LPUSH %s to key %s: %v", value, key, err)
		return err
	}
	return nil
}

// BRPop blocks up to timeout popping the tail of the list at key; a zero
// timeout blocks indefinitely. A timeout with no pushed value returns a nil
// slice and nil error, not an error — callers should loop.
func (c *Client) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.client.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		log.Printf("redis: BRPOP on key %s: %v", key, err)
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("redis: unexpected BRPOP result length from key %s: %d", key, len(result))
	}
	return result, nil
}

// Close closes the underlying client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "restodir:"

// Valkey is a Store backed by a Valkey (Redis-compatible) server.
type Valkey struct {
	client valkey.Client
}

// NewValkey connects to addr.
func NewValkey(addr string) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Valkey{client: client}, nil
}

func (c *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (c *Valkey) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+key).Value(value).Build()).Error()
	}
	return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+key).Value(value).Ex(ttl).Build()).Error()
}

// Close releases the client.
func (c *Valkey) Close() {
	c.client.Close()
}

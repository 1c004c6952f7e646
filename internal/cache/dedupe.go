package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses repeated webhook deliveries by event id.
type Deduper struct {
	client *redis.Client
}

func NewDeduper(client *redis.Client) *Deduper {
	return &Deduper{client: client}
}

// FirstDelivery returns true the first time eventID is seen within ttl.
func (d *Deduper) FirstDelivery(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("webhook:evt:%s", eventID)
	ok, err := d.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe setnx: %w", err)
	}
	return ok, nil
}

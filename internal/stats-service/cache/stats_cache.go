package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda resumos de estatísticas já calculados por janela de dias.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func key(startDate, endDate string) string {
	return "stats:" + startDate + ":" + endDate
}

func (c *Cache) Get(ctx context.Context, startDate, endDate string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key(startDate, endDate)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(ctx context.Context, startDate, endDate string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, key(startDate, endDate), b, ttl).Err()
}

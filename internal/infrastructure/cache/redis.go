package cache

import (
	"github.com/redis/go-redis/v9"
)

// Open returns a Redis client for the given URL (redis:// or rediss://).
func Open(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

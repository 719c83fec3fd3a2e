package cache

import (
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from REDIS_URI. A redis:// or rediss:// URL
// keeps its credentials and database index; a bare host:port is used as the address.
func RedisOptions(uri string) (*redis.Options, error) {
	if strings.Contains(uri, "://") {
		return redis.ParseURL(uri)
	}
	return &redis.Options{Addr: uri}, nil
}

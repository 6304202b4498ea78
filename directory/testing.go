package directory

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewTestDirectory spins up an in-process fake Redis server (no real
// Redis deployment required) and returns a RedisDirectory backed by
// it, the same pairing grafana-tempo uses for its Redis-backed cache
// tests. The server and client are closed automatically via t.Cleanup.
func NewTestDirectory(t *testing.T) *RedisDirectory {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisDirectory(client)
}

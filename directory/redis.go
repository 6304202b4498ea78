package directory

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shawwn/disruption/errs"
)

// RedisDirectory is the production Directory binding: a Redis (or
// Redis-protocol-compatible, e.g. miniredis in tests) key-value store.
// INCR on connectionsCount is atomic server-side, which is the only
// concurrency guarantee spec §4.1 actually requires — every other key
// is written at most once per (address, username) or (address, id)
// pair, so ordinary GET/SET races are harmless.
type RedisDirectory struct {
	client *redis.Client
}

// NewRedisDirectory wraps an already-configured go-redis client.
func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func (d *RedisDirectory) ResolveOrAssign(ctx context.Context, address, username string) (int, bool, error) {
	key := idKey(address, username)
	existing, err := d.client.Get(ctx, key).Result()
	if err == nil {
		id, perr := strconv.Atoi(existing)
		if perr != nil {
			return 0, false, errs.Wrap(errs.KindDirectory, "directory.resolve_or_assign", address, perr)
		}
		return id, false, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, false, errs.Wrap(errs.KindDirectory, "directory.resolve_or_assign", address, err)
	}

	next, err := d.client.Incr(ctx, countKey(address)).Result()
	if err != nil {
		return 0, false, errs.Wrap(errs.KindDirectory, "directory.resolve_or_assign", address, err)
	}
	id := int(next) - 1
	if id < 0 {
		return 0, false, errs.New(errs.KindDirectory, "directory.resolve_or_assign", address)
	}

	pipe := d.client.TxPipeline()
	pipe.Set(ctx, key, id, 0)
	pipe.Set(ctx, usernameKey(address, id), username, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, errs.Wrap(errs.KindDirectory, "directory.resolve_or_assign", address, err)
	}

	return id, true, nil
}

func (d *RedisDirectory) Count(ctx context.Context, address string) (int, error) {
	v, err := d.client.Get(ctx, countKey(address)).Int()
	if err != nil {
		return 0, errs.Wrap(errs.KindDirectory, "directory.get_count", address, err)
	}
	if v <= 0 {
		return 0, errs.New(errs.KindDirectory, "directory.get_count", address)
	}
	return v, nil
}

func (d *RedisDirectory) Username(ctx context.Context, address string, id int) (string, error) {
	v, err := d.client.Get(ctx, usernameKey(address, id)).Result()
	if err != nil {
		return "", errs.Wrap(errs.KindDirectory, "directory.get_username", address, err)
	}
	return v, nil
}

// Wipe deletes every directory key for address using SCAN (never KEYS,
// which blocks a shared Redis instance while it walks the whole
// keyspace) to page through matches and an errgroup to delete pages
// concurrently while still surfacing the first failure.
func (d *RedisDirectory) Wipe(ctx context.Context, address string) error {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := d.client.Scan(ctx, cursor, keyPrefix(address), 100).Result()
		if err != nil {
			return errs.Wrap(errs.KindDirectory, "directory.wipe", address, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil
	}

	const chunkSize = 256
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(keys); i += chunkSize {
		chunk := keys[i:min(i+chunkSize, len(keys))]
		g.Go(func() error {
			return d.client.Del(gctx, chunk...).Err()
		})
	}
	if err := g.Wait(); err != nil {
		return errs.Wrap(errs.KindDirectory, "directory.wipe", address, err)
	}
	return nil
}

package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisClient implements Client against a Redis server using DECRBY/GET.
type RedisClient struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedis connects to the ledger store. url uses the redis:// scheme
// (redis://host:port/db). The connection is verified with a ping before use.
func NewRedis(url string, timeout time.Duration) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse ledger url: %w", err)
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to ledger store: %w", err)
	}

	return &RedisClient{rdb: rdb, timeout: timeout}, nil
}

// Decrement atomically subtracts amount from the account balance.
func (c *RedisClient) Decrement(ctx context.Context, account string, amount float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := Key(account)
	micro := ToMicroUnits(amount)

	newVal, err := c.rdb.DecrBy(ctx, key, micro).Result()
	if err != nil {
		return 0, fmt.Errorf("decrement %s by %d: %w", key, micro, err)
	}

	log.Debug().Str("key", key).Float64("amount", amount).Int64("new_micro", newVal).
		Msg("ledger decremented")
	return FromMicroUnits(newVal), nil
}

// Balance reads the account balance.
func (c *RedisClient) Balance(ctx context.Context, account string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := Key(account)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("balance of %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", key, err)
	}

	micro, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Tolerate stores seeded with float strings.
		f, ferr := strconv.ParseFloat(val, 64)
		if ferr != nil {
			return 0, fmt.Errorf("balance of %s: unparseable value %q", key, val)
		}
		return f / microPerUnit, nil
	}
	return FromMicroUnits(micro), nil
}

// Close releases the connection pool.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

package offers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/util"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Timeout bounds every command
	Timeout time.Duration
	// ConnectRetry is how long NewRedisStore keeps retrying the first ping
	ConnectRetry time.Duration
	Codec        encoding.Codec
}

// RedisStore is a gokv.Store backed by a Redis server.
type RedisStore struct {
	c       *redis.Client
	timeout time.Duration
	codec   encoding.Codec
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Codec == nil {
		opts.Codec = encoding.JSON
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = opts.ConnectRetry
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		return c.Ping(pctx).Err()
	}
	err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logrus.Warnf("redis %s not ready: %v, retrying in %s", opts.Addr, err, d)
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &RedisStore{c: c, timeout: opts.Timeout, codec: opts.Codec}, nil
}

func (r *RedisStore) Set(k string, v interface{}) error {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := r.codec.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.c.Set(ctx, k, data, 0).Err()
}

func (r *RedisStore) Get(k string, v interface{}) (found bool, err error) {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	data, err := r.c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, r.codec.Unmarshal(data, v)
}

func (r *RedisStore) Delete(k string) error {
	if err := util.CheckKey(k); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.c.Del(ctx, k).Err()
}

func (r *RedisStore) Close() error {
	return r.c.Close()
}

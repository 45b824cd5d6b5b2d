package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions tunes the shared client. Zero values fall back to conservative defaults.
type RedisOptions struct {
	Addr string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration

	PingTimeout time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 2 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.MinIdleConns < 0 {
		o.MinIdleConns = 0
	}
	if o.PoolTimeout <= 0 {
		o.PoolTimeout = 2 * time.Second
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = 5 * time.Minute
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 2 * time.Second
	}
	return o
}

// NewRedis builds a client without touching the network.
func NewRedis(o RedisOptions) (*redis.Client, error) {
	o = o.withDefaults()
	if o.Addr == "" {
		return nil, errors.New("throttle: redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:            o.Addr,
		DialTimeout:     o.DialTimeout,
		ReadTimeout:     o.ReadTimeout,
		WriteTimeout:    o.WriteTimeout,
		PoolSize:        o.PoolSize,
		MinIdleConns:    o.MinIdleConns,
		PoolTimeout:     o.PoolTimeout,
		ConnMaxIdleTime: o.ConnMaxIdleTime,
	}), nil
}

// OpenRedis is NewRedis followed by a PING.
func OpenRedis(ctx context.Context, o RedisOptions) (*redis.Client, error) {
	o = o.withDefaults()
	rdb, err := NewRedis(o)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, o.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

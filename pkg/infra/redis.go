package infra

import (
	"context"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is a custom interface that abstracts the Redis client methods.
type RedisClient interface {
	GetClient() *redis.Client
	Set(key string, value any, expiration time.Duration) error
	Get(key string) (string, error)
	Del(keys ...string) error
	Close() error
}

// RedisWrapper is a struct that implements the RedisClient interface using a Redis client pointer.
type RedisWrapper struct {
	client *redis.Client
}

func NewRedisClient(addr string, password string) (RedisClient, error) {
	cpus := runtime.GOMAXPROCS(0)
	poolSize := cpus * 10 // ~10 connections per CPU
	minIdle := cpus * 2   // keep a few always idle

	opts := &redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              0,
		PoolSize:        poolSize,
		MinIdleConns:    minIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: time.Second,
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &RedisWrapper{client: client}, nil
}

func (r *RedisWrapper) GetClient() *redis.Client {
	return r.client
}

func (r *RedisWrapper) Set(key string, value any, expiration time.Duration) error {
	return r.client.Set(context.Background(), key, value, expiration).Err()
}

func (r *RedisWrapper) Get(key string) (string, error) {
	return r.client.Get(context.Background(), key).Result()
}

func (r *RedisWrapper) Del(keys ...string) error {
	return r.client.Del(context.Background(), keys...).Err()
}

func (r *RedisWrapper) Close() error {
	return r.client.Close()
}

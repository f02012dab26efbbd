// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package idempotent remembers X-Idempotency-Key values and invoice rate
// limits in Redis so every autopay instance rejects a replayed request.
package idempotent

import (
	"context"
	"fmt"
	"time"

	"github.com/moov-io/autopay/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL      = 24 * time.Hour
	keyPrefix       = "autopay:idempotency:"
	rateLimitPrefix = "autopay:ratelimit:"
)

// Redis implements moov-io/base's idempotent.Recorder.
type Redis struct {
	logger log.Logger
	client *redis.Client
	ttl    time.Duration

	timeout time.Duration
}

func NewRedis(ctx context.Context, logger log.Logger, cfg *config.Redis) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil %T", cfg)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %v", cfg.Address, err)
	}
	return &Redis{
		logger:  logger,
		client:  client,
		ttl:     ttl,
		timeout: 2 * time.Second,
	}, nil
}

// SeenBefore records key and reports if it was already recorded. Keys are
// treated as unseen when Redis can't be reached.
func (r *Redis) SeenBefore(key string) bool {
	ctx, cancelFn := context.WithTimeout(context.Background(), r.timeout)
	defer cancelFn()

	created, err := r.client.SetNX(ctx, keyPrefix+key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		r.logger.Log("idempotent", fmt.Sprintf("ERROR recording idempotency key: %v", err), "level", "error")
		return false
	}
	return !created
}

// Claim records key for window and reports false while an earlier claim is
// still live. It implements billing.Limiter across autopay instances.
func (r *Redis) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	return r.client.SetNX(ctx, rateLimitPrefix+key, time.Now().Unix(), window).Result()
}

func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, rateLimitPrefix+key).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

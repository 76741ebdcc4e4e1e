// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package pubsub

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/redis/go-redis/v9"
)

// connsPerCPU and maxIdleTime size the Redis connection pool scaled off
// GOMAXPROCS rather than a fixed pool size.
const (
	connsPerCPU = 10
	maxIdleTime = 5 * time.Minute
)

func makePubSubFromRedis(ctx context.Context, cfg *config.Config) (PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * connsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: maxIdleTime,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("pubsub: connecting to redis: %w", err)
	}

	return redisPubSub{client: client}, nil
}

type redisPubSub struct {
	client *redis.Client
}

func (ps redisPubSub) Publish(topic string, message []byte) error {
	if err := ps.client.Publish(context.Background(), topic, message).Err(); err != nil {
		return fmt.Errorf("pubsub: publishing to %s: %w", topic, err)
	}
	return nil
}

func (ps redisPubSub) Subscribe(topic string) Subscription {
	sub := ps.client.Subscribe(context.Background(), topic)
	return redisSubscription{ch: sub.Channel(), sub: sub}
}

func (ps redisPubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("pubsub: closing redis client: %w", err)
	}
	return nil
}

type redisSubscription struct {
	ch  <-chan *redis.Message
	sub *redis.PubSub
}

func (s redisSubscription) Close() error {
	if err := s.sub.Close(); err != nil {
		return fmt.Errorf("pubsub: closing redis subscription: %w", err)
	}
	return nil
}

func (s redisSubscription) Channel() <-chan []byte {
	ch := make(chan []byte)
	go func() {
		for msg := range s.ch {
			ch <- []byte(msg.Payload)
		}
		close(ch)
	}()
	return ch
}

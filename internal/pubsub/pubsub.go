// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package pubsub is the structured-metadata bus: every config/rates/
// systems/system/calls_active/call_start/recorders/recorder/signal
// JSON message is Published to a topic here, backed by an in-memory
// transport (single-process daemon) or Redis (multi-consumer fan-out
// for upload_server-style external subscribers), selected by config.
package pubsub

import (
	"context"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
)

// PubSub is the metadata bus seam: one Publish call per emitted
// message, one Subscribe per consumer (the websocket relay, tests).
type PubSub interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string) Subscription
	Close() error
}

// Subscription is a single topic subscription's delivery channel.
type Subscription interface {
	Close() error
	Channel() <-chan []byte
}

// MakePubSub selects the in-memory or Redis transport per cfg.Redis.Enabled.
func MakePubSub(ctx context.Context, cfg *config.Config) (PubSub, error) {
	if cfg.Redis.Enabled {
		return makePubSubFromRedis(ctx, cfg)
	}
	return makeInMemoryPubSub(), nil
}

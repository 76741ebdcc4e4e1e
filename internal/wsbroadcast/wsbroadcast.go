// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package wsbroadcast relays metadata messages published on the
// pubsub bus to connected websocket clients, one frame per message,
// mirroring an upgrade-then-fan-out loop run per-connection against a
// direct Redis subscription. Here the relay sits on debug_recorder_port
// and fans out the one metadata topic to every connection, not one
// topic per logged-in user, since debug recorder clients are
// unauthenticated local consumers.
package wsbroadcast

import (
	"context"
	"net/http"

	"github.com/USA-RedDragon/trunk-recorder/internal/pubsub"
	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"
)

// MetadataTopic is the pubsub topic every metadata emitter publishes
// to and the sole topic this relay subscribes to.
const MetadataTopic = "metadata"

const bufferSize = 1024

// Handler upgrades incoming HTTP connections to websockets and relays
// every message published to MetadataTopic to each connected client.
type Handler struct {
	ps         pubsub.PubSub
	wsUpgrader websocket.Upgrader
}

// NewHandler builds a Handler relaying ps's MetadataTopic.
func NewHandler(ps pubsub.PubSub) *Handler {
	return &Handler{
		ps: ps,
		wsUpgrader: websocket.Upgrader{
			HandshakeTimeout: 0,
			ReadBufferSize:   bufferSize,
			WriteBufferSize:  bufferSize,
			WriteBufferPool:  nil,
			Subprotocols:     []string{},
			Error: func(_ http.ResponseWriter, _ *http.Request, _ int, _ error) {
			},
			CheckOrigin: func(_ *http.Request) bool {
				// Debug recorder websocket is a local diagnostic
				// feed, not a browser-facing API; accept any origin.
				return true
			},
			EnableCompression: true,
		},
	}
}

// ServeHTTP upgrades the connection and streams metadata frames to it
// until the client disconnects or the request context is cancelled.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		klog.Errorf("wsbroadcast: upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			klog.Errorf("wsbroadcast: closing websocket: %v", err)
		}
	}()

	sub := h.ps.Subscribe(MetadataTopic)
	defer func() {
		if err := sub.Close(); err != nil {
			klog.Errorf("wsbroadcast: closing subscription: %v", err)
		}
	}()

	ctx := r.Context()
	readFailed := make(chan struct{})

	// PING/PONG keepalive plus disconnect detection: a client that
	// sends anything other than PING just drops the connection on
	// read error, since this relay is write-only otherwise.
	go func() {
		for {
			t, msg, err := conn.ReadMessage()
			if err != nil {
				close(readFailed)
				return
			}
			if string(msg) == "PING" {
				if err := conn.WriteMessage(t, []byte("PONG")); err != nil {
					close(readFailed)
					return
				}
			}
		}
	}()

	h.relay(ctx, conn, sub, readFailed)
}

func (h *Handler) relay(ctx context.Context, conn *websocket.Conn, sub pubsub.Subscription, readFailed <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-readFailed:
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				klog.Errorf("wsbroadcast: write failed: %v", err)
				return
			}
		}
	}
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package wsbroadcast

import (
	"fmt"
	"net/http"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/pubsub"
)

const readTimeout = 3 * time.Second

// CreateServer starts the debug recorder websocket listener on
// cfg.DebugRecorderPort, relaying ps's MetadataTopic to every
// connection. A zero port disables the listener entirely, matching
// debug_recorder_port's documented "0 disables" semantics.
func CreateServer(cfg *config.Config, ps pubsub.PubSub) error {
	if cfg.DebugRecorderPort == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/", NewHandler(ps))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.DebugRecorderPort),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}

	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("wsbroadcast: serving on port %d: %w", cfg.DebugRecorderPort, err)
	}
	return nil
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package wsbroadcast_test

import (
	"context"
	"net"
	"testing"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/pubsub"
	"github.com/USA-RedDragon/trunk-recorder/internal/wsbroadcast"
	"github.com/stretchr/testify/require"
)

func TestCreateServerDisabledReturnsNil(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.DebugRecorderPort = 0

	ps, err := pubsub.MakePubSub(context.Background(), &cfg)
	require.NoError(t, err)
	defer func() { _ = ps.Close() }()

	require.NoError(t, wsbroadcast.CreateServer(&cfg, ps))
}

func TestCreateServerPortInUseReturnsError(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port

	cfg := config.Default()
	cfg.DebugRecorderPort = port

	ps, err := pubsub.MakePubSub(context.Background(), &cfg)
	require.NoError(t, err)
	defer func() { _ = ps.Close() }()

	err = wsbroadcast.CreateServer(&cfg, ps)
	require.Error(t, err)
}

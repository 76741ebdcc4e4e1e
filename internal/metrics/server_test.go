// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package metrics_test

import (
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestCreateMetricsServerDisabledReturnsNil(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	require.NoError(t, metrics.CreateMetricsServer(&cfg, metrics.NewCollector()))
}

func TestCreateMetricsServerPortInUseReturnsError(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port

	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.BindAddress = "127.0.0.1"
	cfg.Metrics.Port = port

	err = metrics.CreateMetricsServer(&cfg, metrics.NewCollector())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "127.0.0.1:"+strconv.Itoa(port)))
}

// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readTimeout = 3 * time.Second

// CreateMetricsServer registers collector with the default Prometheus
// registry and serves /metrics on cfg.Metrics.BindAddress:Port, if
// enabled. A bind failure is returned rather than panicking, so a bad
// metrics bind address cannot take down the whole process.
func CreateMetricsServer(cfg *config.Config, collector *Collector) error {
	if !cfg.Metrics.Enabled {
		return nil
	}

	prometheus.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}

	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("metrics: serving on %s:%d: %w", cfg.Metrics.BindAddress, cfg.Metrics.Port, err)
	}
	return nil
}

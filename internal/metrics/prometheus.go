// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package metrics exposes recorder-pool utilization, call counts, and
// IMBE frame-repeat/mute rates as Prometheus metrics, grounded on the
// teacher's internal/metrics package (same NewMetrics/register shape)
// but pull-based rather than event-driven: a Collector is registered
// once with prometheus and, on every scrape, walks the Sources and
// call.Table it was given to compute gauge/counter values straight
// from their current state, instead of requiring every state change
// to remember to call an Inc/Set method.
package metrics

import (
	"strconv"
	"sync"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector over a set of registered
// Sources and a single call.Table.
type Collector struct {
	mu      sync.Mutex
	sources []*source.Source
	table   *call.Table

	recorderPoolDesc    *prometheus.Desc
	callsActiveDesc     *prometheus.Desc
	callsStartedDesc    *prometheus.Desc
	callsEndedDesc      *prometheus.Desc
	imbeFramesRepeated  *prometheus.Desc
	imbeFramesMuted     *prometheus.Desc
}

// NewCollector builds an unregistered Collector with no Sources or
// call.Table yet attached; call RegisterSource/SetCallTable before
// handing it to prometheus.MustRegister.
func NewCollector() *Collector {
	return &Collector{
		recorderPoolDesc: prometheus.NewDesc(
			"trunk_recorder_recorder_pool_count",
			"Number of recorders in a given pool and lifecycle state",
			[]string{"source", "pool", "state"}, nil),
		callsActiveDesc: prometheus.NewDesc(
			"trunk_recorder_calls_active",
			"Number of calls currently tracked, by system",
			[]string{"system"}, nil),
		callsStartedDesc: prometheus.NewDesc(
			"trunk_recorder_calls_started_total",
			"Total number of calls ever registered", nil, nil),
		callsEndedDesc: prometheus.NewDesc(
			"trunk_recorder_calls_ended_total",
			"Total number of calls ever expired or removed", nil, nil),
		imbeFramesRepeated: prometheus.NewDesc(
			"trunk_recorder_imbe_frames_repeated_total",
			"Total number of IMBE frames synthesized from a repeated (not freshly decoded) parameter set, by source",
			[]string{"source"}, nil),
		imbeFramesMuted: prometheus.NewDesc(
			"trunk_recorder_imbe_frames_muted_total",
			"Total number of IMBE frames synthesized as silence due to excessive repeats or severe error rate, by source",
			[]string{"source"}, nil),
	}
}

// RegisterSource adds src to the set of sources scraped on Collect.
func (c *Collector) RegisterSource(src *source.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
}

// SetCallTable attaches the call.Table scraped for call counts.
func (c *Collector) SetCallTable(t *call.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = t
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recorderPoolDesc
	ch <- c.callsActiveDesc
	ch <- c.callsStartedDesc
	ch <- c.callsEndedDesc
	ch <- c.imbeFramesRepeated
	ch <- c.imbeFramesMuted
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	sources := append([]*source.Source(nil), c.sources...)
	table := c.table
	c.mu.Unlock()

	for _, src := range sources {
		c.collectSource(ch, src)
	}

	if table != nil {
		c.collectCallTable(ch, table)
	}
}

func (c *Collector) collectSource(ch chan<- prometheus.Metric, src *source.Source) {
	num := strconv.Itoa(src.Num())

	c.collectPool(ch, num, "digital", src.DigitalPoolStats())
	c.collectPool(ch, num, "analog", src.AnalogPoolStats())
	c.collectPool(ch, num, "debug", src.DebugPoolStats())
	c.collectPool(ch, num, "sigmf", src.SigMFPoolStats())

	var repeated, muted uint64
	for _, r := range src.DigitalRecorders() {
		repeated += r.Sink().TotalSpikeCount()
		muted += r.Sink().TotalErrorCount()
	}
	ch <- prometheus.MustNewConstMetric(c.imbeFramesRepeated, prometheus.CounterValue, float64(repeated), num)
	ch <- prometheus.MustNewConstMetric(c.imbeFramesMuted, prometheus.CounterValue, float64(muted), num)
}

func (c *Collector) collectPool(ch chan<- prometheus.Metric, sourceNum, pool string, st source.PoolStats) {
	ch <- prometheus.MustNewConstMetric(c.recorderPoolDesc, prometheus.GaugeValue, float64(st.Available), sourceNum, pool, "available")
	ch <- prometheus.MustNewConstMetric(c.recorderPoolDesc, prometheus.GaugeValue, float64(st.Idle), sourceNum, pool, "idle")
	ch <- prometheus.MustNewConstMetric(c.recorderPoolDesc, prometheus.GaugeValue, float64(st.Active), sourceNum, pool, "active")
	ch <- prometheus.MustNewConstMetric(c.recorderPoolDesc, prometheus.GaugeValue, float64(st.Recording), sourceNum, pool, "recording")
	ch <- prometheus.MustNewConstMetric(c.recorderPoolDesc, prometheus.GaugeValue, float64(st.Stopped), sourceNum, pool, "stopped")
	ch <- prometheus.MustNewConstMetric(c.recorderPoolDesc, prometheus.GaugeValue, float64(st.Inactive), sourceNum, pool, "inactive")
}

func (c *Collector) collectCallTable(ch chan<- prometheus.Metric, table *call.Table) {
	ch <- prometheus.MustNewConstMetric(c.callsStartedDesc, prometheus.CounterValue, float64(table.StartedTotal()))
	ch <- prometheus.MustNewConstMetric(c.callsEndedDesc, prometheus.CounterValue, float64(table.EndedTotal()))

	bySystem := make(map[string]int)
	for _, active := range table.Active() {
		bySystem[active.ShortName()]++
	}
	for system, n := range bySystem {
		ch <- prometheus.MustNewConstMetric(c.callsActiveDesc, prometheus.GaugeValue, float64(n), system)
	}
}

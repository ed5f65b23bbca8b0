/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgsched

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters and gauges the scheduler updates as it
// admits and drains requests, exported by the owning daemon's /metrics
// endpoint.
type Metrics struct {
	QueueDepth *prometheus.GaugeVec
	OpsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the scheduler's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "confd",
			Name:      "queue_depth",
			Help:      "Number of requests waiting in a tree's admission queue.",
		}, []string{"tree"}),
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "confd",
			Name:      "ops_total",
			Help:      "Count of scheduler operations admitted, by tree and kind.",
		}, []string{"tree", "kind"}),
	}
	reg.MustRegister(m.QueueDepth, m.OpsTotal)
	return m
}

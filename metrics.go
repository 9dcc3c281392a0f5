// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uaclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeo-scada/uaclient/session"
)

// Metrics holds the client collectors. The session bookkeeping collectors
// are embedded so that one registration covers both.
type Metrics struct {
	Session *session.Metrics

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	timeouts        prometheus.Counter
	reconnects      prometheus.Counter
	state           prometheus.Gauge
	subscriptions   prometheus.Gauge
	publishRequests prometheus.Counter
	notifications   prometheus.Counter
	dropped         prometheus.Counter
}

// NewMetrics creates the client collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Session: session.NewMetrics(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uaclient",
			Name:      "requests_total",
			Help:      "Service calls by service and result",
		}, []string{"service", "result"}), // result: good, bad, timeout, error

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uaclient",
			Name:      "request_duration_seconds",
			Help:      "Service call latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"service"}),

		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uaclient",
			Name:      "request_timeouts_total",
			Help:      "Service calls that got no response within the request timeout",
		}),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uaclient",
			Name:      "reconnects_total",
			Help:      "Successful automatic reconnections",
		}),

		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uaclient",
			Name:      "connection_state",
			Help:      "Current ConnectionState value",
		}),

		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uaclient",
			Subsystem: "subscription",
			Name:      "active",
			Help:      "Subscriptions currently open",
		}),

		publishRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uaclient",
			Subsystem: "subscription",
			Name:      "publish_requests_total",
			Help:      "Publish requests issued",
		}),

		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uaclient",
			Subsystem: "subscription",
			Name:      "notifications_total",
			Help:      "Data change notifications delivered",
		}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uaclient",
			Subsystem: "subscription",
			Name:      "notifications_dropped_total",
			Help:      "Data change notifications dropped because the consumer was slow",
		}),
	}
}

// Collectors returns every client and session collector.
func (m *Metrics) Collectors() []prometheus.Collector {
	return append([]prometheus.Collector{
		m.requests,
		m.requestDuration,
		m.timeouts,
		m.reconnects,
		m.state,
		m.subscriptions,
		m.publishRequests,
		m.notifications,
		m.dropped,
	}, m.Session.Collectors()...)
}

// Register registers every collector with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeRequest(service string, result string, d time.Duration) {
	m.requests.WithLabelValues(service, result).Inc()
	m.requestDuration.WithLabelValues(service).Observe(d.Seconds())
	if result == "timeout" {
		m.timeouts.Inc()
	}
}

func (m *Metrics) setState(s ConnectionState) {
	m.state.Set(float64(s))
}

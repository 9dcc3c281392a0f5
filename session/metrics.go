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

package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the bookkeeping of a State as Prometheus collectors. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	queueDepth     prometheus.Gauge
	inFlight       prometheus.Gauge
	heldResponses  prometheus.Gauge
	pendingAcks    prometheus.Gauge
	handlesIssued  prometheus.Counter
	strayResponses prometheus.Counter
	replaced       prometheus.Counter
	discarded      prometheus.Counter
	acksRecorded   prometheus.Counter
}

// NewMetrics creates the session collectors. Register them with
// Collectors.
func NewMetrics() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uaclient",
			Subsystem: "session",
			Name:      name,
			Help:      help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uaclient",
			Subsystem: "session",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		queueDepth:     gauge("queue_depth", "Requests waiting to be written"),
		inFlight:       gauge("inflight_requests", "Requests written and awaiting a response"),
		heldResponses:  gauge("held_responses", "Responses received and not yet claimed"),
		pendingAcks:    gauge("pending_acks", "Subscription acknowledgements waiting for the next publish request"),
		handlesIssued:  counter("handles_issued_total", "Request handles issued"),
		strayResponses: counter("stray_responses_total", "Responses received with no matching in-flight request"),
		replaced:       counter("replaced_responses_total", "Held responses overwritten by a later response with the same handle"),
		discarded:      counter("discarded_responses_total", "Held responses dropped by teardown or sweep"),
		acksRecorded:   counter("acks_recorded_total", "Subscription acknowledgements recorded"),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queueDepth,
		m.inFlight,
		m.heldResponses,
		m.pendingAcks,
		m.handlesIssued,
		m.strayResponses,
		m.replaced,
		m.discarded,
		m.acksRecorded,
	}
}

func (m *Metrics) observe(s Stats) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(s.QueuedRequests))
	m.inFlight.Set(float64(s.InFlightRequests))
	m.heldResponses.Set(float64(s.HeldResponses))
	m.pendingAcks.Set(float64(s.PendingAcks))
}

func (m *Metrics) handleIssued() {
	if m != nil {
		m.handlesIssued.Inc()
	}
}

func (m *Metrics) strayResponse() {
	if m != nil {
		m.strayResponses.Inc()
	}
}

func (m *Metrics) replacedResponse() {
	if m != nil {
		m.replaced.Inc()
	}
}

func (m *Metrics) discardedResponses(n int) {
	if m != nil && n > 0 {
		m.discarded.Add(float64(n))
	}
}

func (m *Metrics) ackRecorded() {
	if m != nil {
		m.acksRecorded.Inc()
	}
}

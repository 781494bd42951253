// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the capture and flow-builder counters over
// Prometheus. This is ambient: spec §1 excludes "general logging" and the
// CLI parser from scope but never excludes observability, and every
// other component already has counters worth exporting (captured packets,
// emitted sets, builder bugs).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors dnsflow exports. The four
// capture-counter fields are Gauges, not Counters: the capture collaborator
// (spec §6 get_stats) already hands back a cumulative running total each
// time it's read, so the scheduler's periodic read (internal/scheduler) is
// a Set, not an Add.
type Metrics struct {
	PacketsCaptured  prometheus.Gauge
	PacketsReceived  prometheus.Gauge
	PacketsDropped   prometheus.Gauge
	PacketsIfDropped prometheus.Gauge

	SetsAppended      prometheus.Counter
	DatagramsSent     prometheus.Counter
	BuilderBugs       prometheus.Counter
	SendFailures      prometheus.Counter
	DNSDecodeWarnings prometheus.Counter
}

// New creates and registers a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsCaptured: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dnsflow_packets_captured",
			Help: "Packets captured by the worker's capture handle (spec C10 'captured').",
		}),
		PacketsReceived: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dnsflow_packets_received",
			Help: "Packets received by the capture library, before sampling (spec C10 'received').",
		}),
		PacketsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dnsflow_packets_dropped",
			Help: "Packets dropped by the capture library's internal buffer (spec C10 'dropped').",
		}),
		PacketsIfDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dnsflow_packets_ifdropped",
			Help: "Packets dropped by the network interface driver (spec C10 'ifdropped').",
		}),
		SetsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsflow_sets_appended_total",
			Help: "Total FlowSet entries appended to the flow builder.",
		}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsflow_datagrams_sent_total",
			Help: "Total flow datagrams (data or stats) handed to the emitter.",
		}),
		BuilderBugs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsflow_builder_bugs_total",
			Help: "Total flow-builder overruns that forced a batch reset (spec BuilderBug).",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsflow_send_failures_total",
			Help: "Total UDP send failures to a configured destination (spec SendWarn).",
		}),
		DNSDecodeWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsflow_dns_decode_warnings_total",
			Help: "Total malformed DNS payloads reported by the decoder (spec DNSDecodeWarn).",
		}),
	}

	reg.MustRegister(
		m.PacketsCaptured, m.PacketsReceived, m.PacketsDropped, m.PacketsIfDropped,
		m.SetsAppended, m.DatagramsSent, m.BuilderBugs, m.SendFailures, m.DNSDecodeWarnings,
	)
	return m
}

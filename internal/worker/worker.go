// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package worker wires capture → netdecode → dnsgate → flow.Builder →
// emit into the explicit per-process state object spec §9 calls for:
// "structure it as an explicit Worker state object constructed at
// startup and passed into callbacks; avoid process-level globals beyond
// what signal handlers require."
package worker

import (
	"github.com/miekg/dns"

	"github.com/shellb0y/dnsflow/internal/dnsgate"
	"github.com/shellb0y/dnsflow/internal/flow"
	"github.com/shellb0y/dnsflow/internal/logging"
	"github.com/shellb0y/dnsflow/internal/metrics"
	"github.com/shellb0y/dnsflow/internal/netdecode"
)

// Packet mirrors scheduler.Packet; worker does not import scheduler to
// avoid a dependency edge running the wrong direction (scheduler is the
// generic loop, worker is the dnsflow-specific payload it drives).
type Packet struct {
	Length int
	Bytes  []byte
}

// Worker holds everything a single capture-to-emit pipeline needs. One
// Worker per process (spec §5): nothing here is shared across workers.
type Worker struct {
	encapCfg netdecode.EncapConfig
	builder  *flow.Builder
	logger   *logging.Logger
	metrics  *metrics.Metrics // nil-safe: metrics are ambient, not spec-mandated
}

// New builds a Worker. m may be nil if the metrics HTTP surface is
// disabled.
func New(encapCfg netdecode.EncapConfig, builder *flow.Builder, logger *logging.Logger, m *metrics.Metrics) *Worker {
	return &Worker{encapCfg: encapCfg, builder: builder, logger: logger, metrics: m}
}

// Process runs one captured frame through the full pipeline (spec §4.1-
// §4.5). It never returns an error: every failure mode in this path is
// either a silent drop (spec §7 PacketDropSilent) or a logged warning
// that does not stop the worker.
func (w *Worker) Process(pkt Packet) {
	outer, ok := netdecode.ValidateIPv4UDP(pkt.Bytes)
	if !ok {
		return
	}

	inner := outer
	if strippedInner, stripped, ok := netdecode.StripEncap(pkt.Bytes, outer, w.encapCfg); stripped {
		if !ok {
			return
		}
		inner = strippedInner
	}

	payload := pkt.Bytes[inner.PayloadOffset : inner.UDPOffset+inner.UDPLength]

	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		if w.metrics != nil {
			w.metrics.DNSDecodeWarnings.Inc()
		}
		w.logger.Warn("malformed DNS payload", "err", err)
		return
	}

	if !dnsgate.Accept(msg) {
		return
	}

	rec, ok := dnsgate.Extract(msg, inner.DstIP)
	if !ok {
		return
	}

	if err := w.builder.Append(flow.Record{ClientIP: rec.ClientIP, Names: rec.Names, IPs: rec.IPs}); err != nil {
		if w.metrics != nil {
			w.metrics.BuilderBugs.Inc()
		}
		w.logger.Error("flow builder append failed", "err", err)
		return
	}
	if w.metrics != nil {
		w.metrics.SetsAppended.Inc()
	}
}

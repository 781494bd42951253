// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package filterexpr generates the packet-filter (BPF) expression that
// selects recursive A responses for a given worker shard and encap layer
// (spec §4.7, C7). It returns a plain string — an owned value, not a
// shared static buffer — so it is safe to call repeatedly and
// concurrently (spec §9 "static return buffers").
package filterexpr

import "fmt"

// Params parameterizes the generated expression.
type Params struct {
	// EncapOffset is the byte distance from the end of the outer UDP
	// header to the inner IP header; 0 means no outer encapsulation.
	EncapOffset int
	WorkerIndex int // 1-based
	NWorkers    int
	EnableMDNS  bool
}

// Generate produces the filter expression described in spec §4.7.
func Generate(p Params) string {
	var udpBase, ipBase int
	if p.EncapOffset > 0 {
		udpBase = 8 + p.EncapOffset + 20
		ipBase = 20 + 8 + p.EncapOffset
	}

	port := fmt.Sprintf("udp[%d:2] == 53", udpBase)
	if p.EnableMDNS {
		port = fmt.Sprintf("(udp[%d:2] == 53 or udp[%d:2] == 5353)", udpBase, udpBase)
	}

	flags := fmt.Sprintf("udp[%d:2] & 0x8187 == 0x8180", udpBase+10)

	inner := fmt.Sprintf("udp and %s and %s", port, flags)

	if p.NWorkers > 1 {
		dstOffset := ipBase + 16
		shard := fmt.Sprintf(
			"(ip[%d:4] - ip[%d:4] / %d * %d) == %d",
			dstOffset, dstOffset, p.NWorkers, p.NWorkers, p.WorkerIndex-1,
		)
		inner = fmt.Sprintf("%s and %s", inner, shard)
	}

	return fmt.Sprintf("(%s) or (vlan and (%s))", inner, inner)
}

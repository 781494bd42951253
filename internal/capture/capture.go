// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package capture implements the capture collaborator contract from spec
// §6 against real libpcap handles (gopacket/pcap). The raw packet-capture
// library itself is an explicit Non-goal/external-collaborator in spec
// §1 — this package is the thin adapter that lets dnsflow's own pipeline
// (netdecode/dnsgate/flow) consume it without depending on gopacket types
// directly.
package capture

import (
	"fmt"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcap"
)

// Packet is what register_with_event_loop delivers: (timestamp, ip_length,
// ip_bytes), at most once per captured frame, in capture order (spec §6).
type Packet struct {
	Timestamp time.Time
	Length    int
	Bytes     []byte
}

// Stats mirrors the capture collaborator's get_stats() fields (spec §6).
type Stats struct {
	Captured   uint32
	Received   uint32
	Dropped    uint32
	IfDropped  uint32
	SampleRate uint32
}

// Handle wraps a live or offline pcap handle.
type Handle struct {
	ph         *pcap.Handle
	isFile     bool
	sampleRate uint32
	seen       uint64
	captured   uint64
}

// InitLive opens a live capture on iface (empty selects any/default),
// installs filterExpr, and returns a Handle (spec §6 init_live).
func InitLive(iface string, promisc bool, filterExpr string) (*Handle, error) {
	inactive, err := pcap.NewInactiveHandle(iface)
	if err != nil {
		return nil, fmt.Errorf("capture: open interface %q: %w", iface, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(65535); err != nil {
		return nil, fmt.Errorf("capture: set snaplen: %w", err)
	}
	if err := inactive.SetPromisc(promisc); err != nil {
		return nil, fmt.Errorf("capture: set promisc: %w", err)
	}
	if err := inactive.SetTimeout(time.Second); err != nil {
		return nil, fmt.Errorf("capture: set timeout: %w", err)
	}

	ph, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("capture: activate %q: %w", iface, err)
	}

	if err := ph.SetBPFFilter(filterExpr); err != nil {
		ph.Close()
		return nil, fmt.Errorf("capture: compile/install filter: %w", err)
	}

	return &Handle{ph: ph, sampleRate: 1}, nil
}

// InitFile opens path as an offline capture source and installs
// filterExpr (spec §6 init_file).
func InitFile(path string, filterExpr string) (*Handle, error) {
	ph, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open file %q: %w", path, err)
	}
	if filterExpr != "" {
		if err := ph.SetBPFFilter(filterExpr); err != nil {
			ph.Close()
			return nil, fmt.Errorf("capture: compile/install filter: %w", err)
		}
	}
	return &Handle{ph: ph, isFile: true, sampleRate: 1}, nil
}

// SetSampleRate configures 1-in-N software sampling, settable before
// capture starts (spec §6). A rate of 0 or 1 disables sampling.
func (h *Handle) SetSampleRate(n uint32) {
	if n == 0 {
		n = 1
	}
	h.sampleRate = n
}

// RegisterWithEventLoop starts a reader goroutine that feeds captured
// frames into the returned channel, letting the scheduler's single select
// loop (spec §5) multiplex packet arrival with its timers instead of
// dispatching from a detached goroutine. The channel is closed when the
// handle is closed or the source is exhausted.
func (h *Handle) RegisterWithEventLoop() <-chan Packet {
	out := make(chan Packet, 64)
	go func() {
		defer close(out)
		for {
			data, ci, err := h.ph.ReadPacketData()
			if err != nil {
				if err == pcap.NextErrorNoMorePackets || err == pcap.NextErrorTimeoutExpired {
					if h.isFile {
						return
					}
					continue
				}
				return
			}
			h.seen++
			if h.sampleRate > 1 && h.seen%uint64(h.sampleRate) != 0 {
				continue
			}
			h.captured++
			out <- Packet{Timestamp: ci.Timestamp, Length: ci.Length, Bytes: data}
		}
	}()
	return out
}

// LoopAll drains a file source synchronously, invoking cb for each frame
// in capture order, then returns (spec §6 loop_all). It is used instead of
// RegisterWithEventLoop for file-read mode, which has no timers to
// multiplex with.
func (h *Handle) LoopAll(cb func(Packet)) error {
	for {
		data, ci, err := h.ph.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorNoMorePackets {
				return nil
			}
			return fmt.Errorf("capture: read packet: %w", err)
		}
		h.seen++
		if h.sampleRate > 1 && h.seen%uint64(h.sampleRate) != 0 {
			continue
		}
		h.captured++
		cb(Packet{Timestamp: ci.Timestamp, Length: ci.Length, Bytes: data})
	}
}

// Stats returns the current capture counters (spec §6 get_stats).
func (h *Handle) Stats() (captured, received, dropped, ifdropped, sampleRate uint32, err error) {
	if h.isFile {
		return uint32(h.captured), uint32(h.seen), 0, 0, h.sampleRate, nil
	}
	st, serr := h.ph.Stats()
	if serr != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("capture: stats: %w", serr)
	}
	return uint32(h.captured), uint32(st.PacketsReceived), uint32(st.PacketsDropped), uint32(st.PacketsIfDropped), h.sampleRate, nil
}

// Close releases the underlying pcap handle.
func (h *Handle) Close() {
	h.ph.Close()
}

// LinkType exposes the datalink type of the underlying handle, mainly so
// callers can assert Ethernet framing before skipping a link header. Not
// part of spec §6; dnsflow's own pipeline starts at the IPv4 header and
// assumes the capture filter/BPF already excludes anything else.
func (h *Handle) LinkType() gopacket.LinkType {
	return h.ph.LinkType()
}

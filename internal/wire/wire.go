// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire defines the dnsflow datagram format: a small fixed header
// followed by either data sets (client_ip/names/ips) or a single stats set.
// Both datagram kinds share the same 8-byte header, so the header writer
// lives here instead of being duplicated between the flow builder and the
// stats emitter.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// Version is the only wire version this implementation speaks.
	Version = 2

	// MaxDatagramLen is the hard cap on a serialized datagram.
	MaxDatagramLen = 65535

	// FlushSize triggers a flush once the batch reaches this size.
	FlushSize = 1200

	// MaxSets is the hard per-datagram set-count cap (one byte, and the
	// count-based flush threshold).
	MaxSets = 255

	// MaxNames and MaxIPs bound a single FlowSet (wire fields are one byte).
	MaxNames = 255
	MaxIPs   = 255

	// MaxNameLen is the largest permitted wire-format domain name.
	MaxNameLen = 255

	// HeaderLen is the size of the shared datagram header.
	HeaderLen = 8

	// SetHeaderLen is the size of one FlowSet header (client_ip + counts + names_len).
	SetHeaderLen = 8

	// StatsSetLen is the size of a stats set body: five uint32 counters.
	StatsSetLen = 20

	// FlagsStats marks a datagram as a StatsFrame rather than data sets.
	FlagsStats = 0x0001
)

// Header is the 8-byte datagram header shared by data and stats datagrams.
type Header struct {
	Version    uint8
	SetsCount  uint8
	Flags      uint16
	Sequence   uint32
}

// PutHeader writes h into buf[0:8] in network byte order.
func PutHeader(buf []byte, h Header) {
	_ = buf[7]
	buf[0] = h.Version
	buf[1] = h.SetsCount
	binary.BigEndian.PutUint16(buf[2:4], h.Flags)
	binary.BigEndian.PutUint32(buf[4:8], h.Sequence)
}

// ParseHeader reads the 8-byte header at the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	return Header{
		Version:   buf[0],
		SetsCount: buf[1],
		Flags:     binary.BigEndian.Uint16(buf[2:4]),
		Sequence:  binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// SetHeader is the per-FlowSet header (client_ip, counts, names_len).
type SetHeader struct {
	ClientIP   [4]byte
	NamesCount uint8
	IPsCount   uint8
	NamesLen   uint16
}

// PutSetHeader writes h into buf[0:8].
func PutSetHeader(buf []byte, h SetHeader) {
	_ = buf[7]
	copy(buf[0:4], h.ClientIP[:])
	buf[4] = h.NamesCount
	buf[5] = h.IPsCount
	binary.BigEndian.PutUint16(buf[6:8], h.NamesLen)
}

// ParseSetHeader reads a FlowSet header at the start of buf.
func ParseSetHeader(buf []byte) (SetHeader, error) {
	if len(buf) < SetHeaderLen {
		return SetHeader{}, fmt.Errorf("wire: short set header: %d bytes", len(buf))
	}
	var h SetHeader
	copy(h.ClientIP[:], buf[0:4])
	h.NamesCount = buf[4]
	h.IPsCount = buf[5]
	h.NamesLen = binary.BigEndian.Uint16(buf[6:8])
	return h, nil
}

// PadLen returns the number of zero bytes needed to bring n up to a
// multiple of 4.
func PadLen(n int) int {
	if r := n % 4; r != 0 {
		return 4 - r
	}
	return 0
}

// Set is a decoded FlowSet: a client address plus its name chain and A
// records, exactly as they appeared on the wire.
type Set struct {
	ClientIP [4]byte
	Names    [][]byte
	IPs      [][4]byte
}

// Datagram is a fully decoded dnsflow datagram.
type Datagram struct {
	Header Header
	Sets   []Set
}

// IsStats reports whether h carries a StatsFrame rather than data sets.
func (h Header) IsStats() bool { return h.Flags&FlagsStats != 0 }

// StatsCounters is the five-counter payload of a StatsFrame set.
type StatsCounters struct {
	Captured   uint32
	Received   uint32
	Dropped    uint32
	IfDropped  uint32
	SampleRate uint32
}

// PutStatsCounters writes c into buf[0:20].
func PutStatsCounters(buf []byte, c StatsCounters) {
	_ = buf[19]
	binary.BigEndian.PutUint32(buf[0:4], c.Captured)
	binary.BigEndian.PutUint32(buf[4:8], c.Received)
	binary.BigEndian.PutUint32(buf[8:12], c.Dropped)
	binary.BigEndian.PutUint32(buf[12:16], c.IfDropped)
	binary.BigEndian.PutUint32(buf[16:20], c.SampleRate)
}

// ParseStatsCounters reads the five counters from buf[0:20].
func ParseStatsCounters(buf []byte) (StatsCounters, error) {
	if len(buf) < StatsSetLen {
		return StatsCounters{}, fmt.Errorf("wire: short stats set: %d bytes", len(buf))
	}
	return StatsCounters{
		Captured:   binary.BigEndian.Uint32(buf[0:4]),
		Received:   binary.BigEndian.Uint32(buf[4:8]),
		Dropped:    binary.BigEndian.Uint32(buf[8:12]),
		IfDropped:  binary.BigEndian.Uint32(buf[12:16]),
		SampleRate: binary.BigEndian.Uint32(buf[16:20]),
	}, nil
}

// Parse decodes a full datagram, validating that the declared sets_count
// consumes exactly the remaining bytes (invariant 1 in spec §8).
func Parse(buf []byte) (Datagram, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return Datagram{}, err
	}
	off := HeaderLen

	if hdr.IsStats() {
		if _, err := ParseStatsCounters(buf[off:]); err != nil {
			return Datagram{}, err
		}
		if off+StatsSetLen != len(buf) {
			return Datagram{}, fmt.Errorf("wire: stats datagram length mismatch: have %d want %d", len(buf), off+StatsSetLen)
		}
		return Datagram{Header: hdr}, nil
	}

	sets := make([]Set, 0, hdr.SetsCount)
	for i := 0; i < int(hdr.SetsCount); i++ {
		sh, err := ParseSetHeader(buf[off:])
		if err != nil {
			return Datagram{}, fmt.Errorf("wire: set %d: %w", i, err)
		}
		off += SetHeaderLen

		if int(sh.NamesLen)%4 != 0 {
			return Datagram{}, fmt.Errorf("wire: set %d: names_len %d not 4-byte aligned", i, sh.NamesLen)
		}
		if off+int(sh.NamesLen) > len(buf) {
			return Datagram{}, fmt.Errorf("wire: set %d: names_len overruns buffer", i)
		}
		names, err := splitNames(buf[off:off+int(sh.NamesLen)], int(sh.NamesCount))
		if err != nil {
			return Datagram{}, fmt.Errorf("wire: set %d: %w", i, err)
		}
		off += int(sh.NamesLen)

		ipsLen := int(sh.IPsCount) * 4
		if off+ipsLen > len(buf) {
			return Datagram{}, fmt.Errorf("wire: set %d: ips overrun buffer", i)
		}
		ips := make([][4]byte, sh.IPsCount)
		for j := range ips {
			copy(ips[j][:], buf[off+j*4:off+j*4+4])
		}
		off += ipsLen

		sets = append(sets, Set{ClientIP: sh.ClientIP, Names: names, IPs: ips})
	}

	if off != len(buf) {
		return Datagram{}, fmt.Errorf("wire: trailing %d bytes after %d sets", len(buf)-off, hdr.SetsCount)
	}
	return Datagram{Header: hdr, Sets: sets}, nil
}

// splitNames walks count wire-format domain names packed back to back
// (with trailing zero padding, which is silently not consumed as a name).
func splitNames(buf []byte, count int) ([][]byte, error) {
	names := make([][]byte, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		start := off
		for off < len(buf) {
			labelLen := int(buf[off])
			off++
			if labelLen == 0 {
				break
			}
			if off+labelLen > len(buf) {
				return nil, fmt.Errorf("name %d: label overruns buffer", i)
			}
			off += labelLen
		}
		names = append(names, buf[start:off])
	}
	return names, nil
}

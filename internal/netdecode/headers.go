// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netdecode implements the per-packet header validators (spec §4.1,
// C1) and the one-level encapsulation peeler (spec §4.2, C2). Every check
// fails silently: a rejected packet is simply dropped by its caller, never
// logged (spec §7 PacketDropSilent).
package netdecode

import "encoding/binary"

const (
	protoUDP = 17

	pcapRecordHeaderLen = 20 // pcap_record_header + ethernet_header, spec §4.2
	jmirrorHeaderLen    = 8  // intercept_id + session_id, spec §4.2
)

// IPv4UDP is the result of a successful header validation: offsets into
// the original buffer, not copies.
type IPv4UDP struct {
	IPHeaderLen  int
	TotalLen     int
	UDPOffset    int
	UDPLength    int
	PayloadOffset int
	SrcIP        [4]byte
	DstIP        [4]byte
	SrcPort      uint16
	DstPort      uint16
}

// ValidateIPv4UDP runs the eight bounds checks from spec §4.1 in order,
// against buf assumed to start at the IPv4 header. ok is false on any
// failure; no error detail is produced (silent drop).
func ValidateIPv4UDP(buf []byte) (IPv4UDP, bool) {
	n := len(buf)

	// 1. pkt_len >= 20 (minimum IPv4 header)
	if n < 20 {
		return IPv4UDP{}, false
	}

	verIHL := buf[0]
	version := verIHL >> 4
	ihl := int(verIHL&0x0f) * 4

	// 2. version == 4
	if version != 4 {
		return IPv4UDP{}, false
	}

	// 3. pkt_len >= ihl*4
	if n < ihl {
		return IPv4UDP{}, false
	}

	totalLen := int(binary.BigEndian.Uint16(buf[2:4]))

	// 4. pkt_len >= ip.total_length
	if n < totalLen {
		return IPv4UDP{}, false
	}

	// 5. ip.total_length >= ihl*4
	if totalLen < ihl {
		return IPv4UDP{}, false
	}

	protocol := buf[9]

	// 6. ip.protocol == UDP
	if protocol != protoUDP {
		return IPv4UDP{}, false
	}

	// 7. pkt_len >= ihl*4 + 8 (UDP header)
	if n < ihl+8 {
		return IPv4UDP{}, false
	}

	udpOff := ihl
	udpLength := int(binary.BigEndian.Uint16(buf[udpOff+4 : udpOff+6]))

	// 8. pkt_len >= ihl*4 + udp.length
	if n < ihl+udpLength {
		return IPv4UDP{}, false
	}

	var h IPv4UDP
	h.IPHeaderLen = ihl
	h.TotalLen = totalLen
	h.UDPOffset = udpOff
	h.UDPLength = udpLength
	h.PayloadOffset = udpOff + 8
	copy(h.SrcIP[:], buf[12:16])
	copy(h.DstIP[:], buf[16:20])
	h.SrcPort = binary.BigEndian.Uint16(buf[udpOff : udpOff+2])
	h.DstPort = binary.BigEndian.Uint16(buf[udpOff+2 : udpOff+4])
	return h, true
}

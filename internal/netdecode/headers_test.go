// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netdecode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildIPv4UDP builds a minimal IPv4/UDP packet carrying payload, with the
// given destination port. It is used both as a direct test fixture and as
// the payload wrapped by encap tests.
func buildIPv4UDP(srcIP, dstIP [4]byte, srcPort, dstPort uint16, payload []byte) []byte {
	udpLen := 8 + len(payload)
	totalLen := 20 + udpLen

	buf := make([]byte, totalLen)
	buf[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	buf[9] = protoUDP
	copy(buf[12:16], srcIP[:])
	copy(buf[16:20], dstIP[:])

	binary.BigEndian.PutUint16(buf[20:22], srcPort)
	binary.BigEndian.PutUint16(buf[22:24], dstPort)
	binary.BigEndian.PutUint16(buf[24:26], uint16(udpLen))
	copy(buf[28:], payload)
	return buf
}

func TestValidateIPv4UDPAccepts(t *testing.T) {
	buf := buildIPv4UDP([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 53, 12345, []byte("hello"))
	h, ok := ValidateIPv4UDP(buf)
	require.True(t, ok)
	require.Equal(t, 20, h.IPHeaderLen)
	require.Equal(t, uint16(53), h.SrcPort)
	require.Equal(t, uint16(12345), h.DstPort)
	require.Equal(t, [4]byte{10, 0, 0, 1}, h.SrcIP)
	require.Equal(t, "hello", string(buf[h.PayloadOffset:]))
}

func TestValidateIPv4UDPRejectsShortPacket(t *testing.T) {
	_, ok := ValidateIPv4UDP(make([]byte, 10))
	require.False(t, ok)
}

func TestValidateIPv4UDPRejectsNonIPv4(t *testing.T) {
	buf := buildIPv4UDP([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 1, 2, []byte("x"))
	buf[0] = 0x65 // version 6
	_, ok := ValidateIPv4UDP(buf)
	require.False(t, ok)
}

func TestValidateIPv4UDPRejectsTruncatedTotalLength(t *testing.T) {
	buf := buildIPv4UDP([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 1, 2, []byte("x"))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(buf)+100))
	_, ok := ValidateIPv4UDP(buf)
	require.False(t, ok)
}

func TestValidateIPv4UDPRejectsNonUDPProtocol(t *testing.T) {
	buf := buildIPv4UDP([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 1, 2, []byte("x"))
	buf[9] = 6 // TCP
	_, ok := ValidateIPv4UDP(buf)
	require.False(t, ok)
}

func TestValidateIPv4UDPRejectsTruncatedUDPLength(t *testing.T) {
	buf := buildIPv4UDP([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 1, 2, []byte("x"))
	binary.BigEndian.PutUint16(buf[24:26], 9000)
	_, ok := ValidateIPv4UDP(buf)
	require.False(t, ok)
}

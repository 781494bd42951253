// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

// assertBytesEqual renders a unified hex diff on mismatch instead of dumping
// two raw []byte slices, which is unreadable for anything past a few bytes.
func assertBytesEqual(t *testing.T, want, got []byte) {
	t.Helper()
	if string(want) == string(got) {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(hex.Dump(want)),
		B:        difflib.SplitLines(hex.Dump(got)),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	t.Fatalf("byte mismatch:\n%s", diff)
}

// buildS1 constructs the literal S1 scenario from spec §8: client
// 192.0.2.10, question example.com., one A record 198.51.100.5.
func buildS1(seq uint32) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, 0, 0, 0, 0, 0, 0, 0, 0) // header placeholder
	PutHeader(buf, Header{Version: Version, SetsCount: 1, Sequence: seq})

	setHdrOff := len(buf)
	buf = append(buf, make([]byte, SetHeaderLen)...)

	name := []byte{7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}
	namesStart := len(buf)
	buf = append(buf, name...)
	for i := 0; i < PadLen(len(name)); i++ {
		buf = append(buf, 0)
	}
	namesLen := len(buf) - namesStart

	PutSetHeader(buf[setHdrOff:], SetHeader{
		ClientIP:   [4]byte{192, 0, 2, 10},
		NamesCount: 1,
		IPsCount:   1,
		NamesLen:   uint16(namesLen),
	})

	buf = append(buf, 198, 51, 100, 5)
	return buf
}

func TestS1MinimalRecord(t *testing.T) {
	got := buildS1(1)
	want, err := hex.DecodeString("0201000000000001" + "C000020A01010010" + "076578616D706C6503636F6D00" + "000000" + "C6336405")
	require.NoError(t, err)
	assertBytesEqual(t, want, got)
	require.Equal(t, 36, len(got))
}

func TestParseRoundTrip(t *testing.T) {
	orig := buildS1(7)
	dg, err := Parse(orig)
	require.NoError(t, err)
	require.Equal(t, uint8(1), dg.Header.SetsCount)
	require.Equal(t, uint32(7), dg.Header.Sequence)
	require.Len(t, dg.Sets, 1)
	require.Equal(t, [4]byte{192, 0, 2, 10}, dg.Sets[0].ClientIP)
	require.Equal(t, [][]byte{{7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}}, dg.Sets[0].Names)
	require.Equal(t, [][4]byte{{198, 51, 100, 5}}, dg.Sets[0].IPs)

	// re-serialize and compare byte-for-byte
	reserialized := make([]byte, 0, len(orig))
	reserialized = append(reserialized, make([]byte, HeaderLen)...)
	PutHeader(reserialized, dg.Header)
	for _, s := range dg.Sets {
		hdrOff := len(reserialized)
		reserialized = append(reserialized, make([]byte, SetHeaderLen)...)
		namesStart := len(reserialized)
		for _, n := range s.Names {
			reserialized = append(reserialized, n...)
		}
		for i := 0; i < PadLen(len(reserialized)-namesStart); i++ {
			reserialized = append(reserialized, 0)
		}
		PutSetHeader(reserialized[hdrOff:], SetHeader{
			ClientIP:   s.ClientIP,
			NamesCount: uint8(len(s.Names)),
			IPsCount:   uint8(len(s.IPs)),
			NamesLen:   uint16(len(reserialized) - namesStart),
		})
		for _, ip := range s.IPs {
			reserialized = append(reserialized, ip[:]...)
		}
	}
	assertBytesEqual(t, orig, reserialized)
}

func TestParseRejectsTrailingBytes(t *testing.T) {
	orig := buildS1(1)
	_, err := Parse(append(orig, 0xff))
	require.Error(t, err)
}

func TestParseRejectsUnalignedNamesLen(t *testing.T) {
	orig := buildS1(1)
	// corrupt names_len to something not a multiple of 4
	orig[14] = 0
	orig[15] = 15
	_, err := Parse(orig)
	require.Error(t, err)
}

func TestStatsFrameRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderLen+StatsSetLen)
	PutHeader(buf, Header{Version: Version, SetsCount: 1, Flags: FlagsStats, Sequence: 42})
	PutStatsCounters(buf[HeaderLen:], StatsCounters{Captured: 100, Received: 95, Dropped: 5, IfDropped: 1, SampleRate: 1})

	dg, err := Parse(buf)
	require.NoError(t, err)
	require.True(t, dg.Header.IsStats())
	require.Equal(t, uint32(42), dg.Header.Sequence)

	counters, err := ParseStatsCounters(buf[HeaderLen:])
	require.NoError(t, err)
	require.Equal(t, StatsCounters{Captured: 100, Received: 95, Dropped: 5, IfDropped: 1, SampleRate: 1}, counters)
}

func TestPadLen(t *testing.T) {
	cases := map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 13: 3, 16: 0}
	for in, want := range cases {
		require.Equal(t, want, PadLen(in), fmt.Sprintf("PadLen(%d)", in))
	}
}

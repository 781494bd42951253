// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

func writeTestCapture(t *testing.T, frames [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pcapgo.NewWriter(f)
	require.NoError(t, err)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeIPv4))

	base := time.Unix(1700000000, 0)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return path
}

func TestInitFileAndLoopAllDeliversInOrder(t *testing.T) {
	frames := [][]byte{
		{0x01, 0x02, 0x03},
		{0x04, 0x05, 0x06, 0x07},
		{0x08},
	}
	path := writeTestCapture(t, frames)

	h, err := InitFile(path, "")
	require.NoError(t, err)
	defer h.Close()

	var got [][]byte
	require.NoError(t, h.LoopAll(func(p Packet) {
		got = append(got, append([]byte(nil), p.Bytes...))
	}))

	require.Equal(t, frames, got)

	captured, received, _, _, _, err := h.Stats()
	require.NoError(t, err)
	require.Equal(t, uint32(3), captured)
	require.Equal(t, uint32(3), received)
}

func TestSampleRateSkipsFrames(t *testing.T) {
	frames := [][]byte{{1}, {2}, {3}, {4}, {5}, {6}}
	path := writeTestCapture(t, frames)

	h, err := InitFile(path, "")
	require.NoError(t, err)
	defer h.Close()
	h.SetSampleRate(2)

	var got [][]byte
	require.NoError(t, h.LoopAll(func(p Packet) {
		got = append(got, append([]byte(nil), p.Bytes...))
	}))

	require.Equal(t, [][]byte{{2}, {4}, {6}}, got)

	captured, _, _, _, sampleRate, err := h.Stats()
	require.NoError(t, err)
	require.Equal(t, uint32(3), captured)
	require.Equal(t, uint32(2), sampleRate)
}

func TestSampleRateZeroMeansEvery(t *testing.T) {
	h := &Handle{sampleRate: 1, isFile: true}
	h.SetSampleRate(0)
	require.Equal(t, uint32(1), h.sampleRate)
}

func TestRegisterWithEventLoopDeliversFromFile(t *testing.T) {
	frames := [][]byte{{0xaa}, {0xbb}}
	path := writeTestCapture(t, frames)

	h, err := InitFile(path, "")
	require.NoError(t, err)
	defer h.Close()

	ch := h.RegisterWithEventLoop()

	var got [][]byte
	timeout := time.After(2 * time.Second)
	for len(got) < len(frames) {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed early after %d packets", len(got))
			}
			got = append(got, append([]byte(nil), p.Bytes...))
		case <-timeout:
			t.Fatal("timed out waiting for packets")
		}
	}
	require.Equal(t, frames, got)
}

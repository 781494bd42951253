// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package emit

import (
	"net"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/shellb0y/dnsflow/internal/metrics"
)

type fakeCapture struct {
	packets [][]byte
	infos   []gopacket.CaptureInfo
}

func (f *fakeCapture) WritePacket(ci gopacket.CaptureInfo, data []byte) error {
	f.packets = append(f.packets, append([]byte(nil), data...))
	f.infos = append(f.infos, ci)
	return nil
}

func TestEmitWritesCaptureRecordWithLoopbackHeader(t *testing.T) {
	cap := &fakeCapture{}
	e, err := New(Config{Capture: cap}, nil)
	require.NoError(t, err)

	payload := []byte{0x02, 0x01, 0, 0, 0, 0, 0, 1}
	require.NoError(t, e.Emit(payload))

	require.Len(t, cap.packets, 1)
	require.Equal(t, len(payload)+4, len(cap.packets[0]))
	require.Equal(t, []byte{0, 0, 0, 0}, cap.packets[0][:4])
	require.Equal(t, payload, cap.packets[0][4:])
	require.Equal(t, len(payload)+4, cap.infos[0].CaptureLength)
	require.Equal(t, len(payload)+4, cap.infos[0].Length)
}

func TestEmitSendsToEachUDPDestination(t *testing.T) {
	var received [][]byte
	done := make(chan struct{})

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		buf := make([]byte, 1500)
		n, _, _ := listener.ReadFromUDP(buf)
		received = append(received, append([]byte(nil), buf[:n]...))
		close(done)
	}()

	dest := listener.LocalAddr().(*net.UDPAddr)
	e, err := New(Config{Destinations: []net.IP{dest.IP}}, nil)
	require.NoError(t, err)
	// The emitter always targets the fixed protocol port; redirect the test
	// socket there by overriding the destination port directly.
	e.destinations[0].Port = dest.Port

	payload := []byte{1, 2, 3, 4}
	require.NoError(t, e.Emit(payload))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for UDP datagram")
	}
	require.Equal(t, payload, received[0])
	require.NoError(t, e.Close())
}

func TestNewRejectsTooManyDestinations(t *testing.T) {
	var dests []net.IP
	for i := 0; i < MaxDestinations+1; i++ {
		dests = append(dests, net.IPv4(127, 0, 0, byte(i)))
	}
	_, err := New(Config{Destinations: dests}, nil)
	require.Error(t, err)
}

func TestEmitIsNoopWithNoDestinationsOrCapture(t *testing.T) {
	e, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Emit([]byte{1, 2, 3}))
}

func TestEmitIncrementsDatagramsSent(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e, err := New(Config{Metrics: m}, nil)
	require.NoError(t, err)

	require.NoError(t, e.Emit([]byte{1, 2, 3}))
	require.NoError(t, e.Emit([]byte{4, 5, 6}))

	require.Equal(t, float64(2), testutil.ToFloat64(m.DatagramsSent))
}

func TestEmitIncrementsSendFailuresOnUnreachableDestination(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	// An unconnected UDP write to a non-listening port normally succeeds
	// (the ICMP port-unreachable would arrive asynchronously, if at all).
	// Destination port 0 is rejected by the kernel at sendto time, which
	// reliably forces a synchronous send error on this path.
	e, err := New(Config{Destinations: []net.IP{net.IPv4(127, 0, 0, 1)}, Metrics: m}, nil)
	require.NoError(t, err)
	e.destinations[0].Port = 0

	require.NoError(t, e.Emit([]byte{1, 2, 3}))
	require.Equal(t, float64(1), testutil.ToFloat64(m.DatagramsSent))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SendFailures))
	require.NoError(t, e.Close())
}

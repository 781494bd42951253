// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package emit implements the flow-packet emitter (spec §4.6): fan-out of a
// completed datagram to zero or more UDP destinations and, optionally, a
// synthetic capture-file record.
package emit

import (
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"

	"github.com/shellb0y/dnsflow/internal/errors"
	"github.com/shellb0y/dnsflow/internal/logging"
	"github.com/shellb0y/dnsflow/internal/metrics"
)

// DestinationPort is the fixed UDP port every destination listens on
// (spec §6).
const DestinationPort = 5300

// MaxDestinations is the hard cap on configured UDP destinations (spec §6).
const MaxDestinations = 10

// loopbackHeaderLen is the 4-byte DLT_NULL/BSD loopback address-family
// header prepended to every capture-file record (spec §4.6/§6). PF_UNSPEC
// is 0 on every platform this tool targets.
const loopbackHeaderLen = 4

// CaptureWriter is the narrow capture-file sink Emitter needs. It is
// satisfied by *pcapgo.Writer.
type CaptureWriter interface {
	WritePacket(ci gopacket.CaptureInfo, data []byte) error
}

// Clock lets tests control the capture-file timestamp.
type Clock func() (sec int64, nsec int64)

// Emitter is C6: it owns the lazily-created UDP socket and the optional
// capture-file writer for the lifetime of the worker process.
type Emitter struct {
	destinations []*net.UDPAddr
	conn         *net.UDPConn
	capture      CaptureWriter
	logger       *logging.Logger
	now          Clock
	metrics      *metrics.Metrics // nil-safe: metrics are ambient, not spec-mandated
}

// Config configures an Emitter.
type Config struct {
	Destinations []net.IP // up to MaxDestinations; port is always DestinationPort
	Capture      CaptureWriter
	Metrics      *metrics.Metrics // optional; nil disables metrics recording
}

// New validates cfg and returns an Emitter. Socket creation is deferred to
// the first Emit call (spec §4.6 "created lazily on first send").
func New(cfg Config, logger *logging.Logger) (*Emitter, error) {
	if len(cfg.Destinations) > MaxDestinations {
		return nil, fmt.Errorf("emit: too many destinations: %d > %d", len(cfg.Destinations), MaxDestinations)
	}
	e := &Emitter{
		logger:  logger,
		capture: cfg.Capture,
		now:     defaultClock,
		metrics: cfg.Metrics,
	}
	for _, ip := range cfg.Destinations {
		e.destinations = append(e.destinations, &net.UDPAddr{IP: ip, Port: DestinationPort})
	}
	return e, nil
}

func defaultClock() (int64, int64) {
	t := timeNow()
	return t.Unix(), int64(t.Nanosecond())
}

// Emit sends buf to every configured UDP destination (best-effort, spec
// §4.6 SendWarn) and writes it to the capture file if configured.
func (e *Emitter) Emit(buf []byte) error {
	if e.metrics != nil {
		e.metrics.DatagramsSent.Inc()
	}

	if e.capture != nil {
		if err := e.writeCapture(buf); err != nil && e.logger != nil {
			e.logger.Error("emit: capture-file write failed", "error", err)
		}
	}

	if len(e.destinations) == 0 {
		return nil
	}
	if err := e.ensureSocket(); err != nil {
		return fmt.Errorf("emit: create socket: %w", err)
	}
	for _, dst := range e.destinations {
		if _, err := e.conn.WriteToUDP(buf, dst); err != nil {
			if e.metrics != nil {
				e.metrics.SendFailures.Inc()
			}
			if e.logger != nil {
				sendErr := errors.Wrap(err, errors.KindSendWarn, "emit: send failed")
				e.logger.Warn(sendErr.Error(), "dest", dst.String())
			}
			continue
		}
	}
	return nil
}

func (e *Emitter) ensureSocket() error {
	if e.conn != nil {
		return nil
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return err
	}
	e.conn = conn
	return nil
}

func (e *Emitter) writeCapture(buf []byte) error {
	sec, nsec := e.now()
	rec := make([]byte, loopbackHeaderLen+len(buf))
	// PF_UNSPEC = 0; the remaining 3 bytes stay zero.
	copy(rec[loopbackHeaderLen:], buf)
	return e.capture.WritePacket(gopacket.CaptureInfo{
		Timestamp:     timeUnix(sec, nsec),
		CaptureLength: len(rec),
		Length:        len(rec),
	}, rec)
}

// Close releases the UDP socket, if one was created.
func (e *Emitter) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// NewCaptureFile wraps w in a pcapgo writer and writes the file header with
// the DLT_NULL link type (spec §6). It is the real implementation behind
// CaptureWriter.
func NewCaptureFile(w interface{ Write([]byte) (int, error) }) (*pcapgo.Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(uint32(65535+loopbackHeaderLen), layers.LinkTypeNull); err != nil {
		return nil, fmt.Errorf("emit: write pcap file header: %w", err)
	}
	return pw, nil
}

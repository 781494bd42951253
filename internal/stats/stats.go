// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package stats implements the periodic statistics emitter (spec §4.10,
// C10): it reads capture counters and serializes them as a StatsFrame
// sharing the data datagram's sequence namespace.
package stats

import (
	"github.com/shellb0y/dnsflow/internal/wire"
)

// Source is the narrow view of the capture collaborator (spec §6)
// the stats component needs.
type Source interface {
	Stats() (captured, received, dropped, ifdropped, sampleRate uint32, err error)
}

// Emitter is the same sink the flow builder uses, so stats and data share
// wire framing without depending on the flow package.
type Emitter interface {
	Emit(buf []byte) error
}

// SequenceCounter is the shared per-worker sequence number (spec §3): data
// and stats datagrams draw from the same counter.
type SequenceCounter interface {
	AdvanceSequence() uint32
}

// Emit builds and sends one StatsFrame (spec §3/§4.10). It always produces
// exactly one set, flagged FlagsStats.
func Emit(src Source, seq SequenceCounter, emit Emitter) error {
	captured, received, dropped, ifdropped, sampleRate, err := src.Stats()
	if err != nil {
		return err
	}

	buf := make([]byte, wire.HeaderLen+wire.StatsSetLen)
	wire.PutHeader(buf, wire.Header{
		Version:   wire.Version,
		SetsCount: 1,
		Flags:     wire.FlagsStats,
		Sequence:  seq.AdvanceSequence(),
	})
	wire.PutStatsCounters(buf[wire.HeaderLen:], wire.StatsCounters{
		Captured:   captured,
		Received:   received,
		Dropped:    dropped,
		IfDropped:  ifdropped,
		SampleRate: sampleRate,
	})
	return emit.Emit(buf)
}

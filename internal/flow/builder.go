// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flow implements the per-worker FlowBatch builder (spec §4.5): it
// appends per-client record sets into a single fixed buffer and flushes it
// to an Emitter on size, count, or time thresholds.
package flow

import (
	"time"

	"github.com/shellb0y/dnsflow/internal/errors"
	"github.com/shellb0y/dnsflow/internal/logging"
	"github.com/shellb0y/dnsflow/internal/wire"
)

// Record is one extracted client's name chain and resolved addresses,
// ready to be appended to the current batch.
type Record struct {
	ClientIP [4]byte
	Names    [][]byte
	IPs      [][4]byte
}

// Emitter is the collaborator that actually ships a completed datagram
// (UDP sends and/or capture-file write). Builder only depends on this
// narrow interface so it can be tested without real sockets.
type Emitter interface {
	Emit(buf []byte) error
}

// Builder owns the single fixed 65535-byte buffer for one worker and
// tracks the running sequence number shared between data and stats
// datagrams (spec §3 SequenceNumber).
type Builder struct {
	buf    []byte // fixed capacity MaxDatagramLen, buf[:dbLen] is the live batch
	dbLen  int
	sets   uint8
	seq    uint32
	lastAt time.Time

	emit      Emitter
	logger    *logging.Logger
	now       func() time.Time
	flushSize int // overridable in tests; production callers leave this at wire.FlushSize
}

// New constructs a Builder bound to the given Emitter.
func New(emit Emitter, logger *logging.Logger) *Builder {
	return &Builder{
		buf:       make([]byte, wire.MaxDatagramLen),
		flushSize: wire.FlushSize,
		emit:      emit,
		logger: logger,
		now:    time.Now,
	}
}

// NextSequence returns the sequence number stamped on the most recently
// emitted datagram (0 before the first); the next data or stats datagram
// carries this value plus one (spec §3 "data and stats").
func (b *Builder) NextSequence() uint32 { return b.seq }

// AdvanceSequence lets a caller (the stats component, when it emits between
// appends) advance the shared counter, and returns the new value.
func (b *Builder) AdvanceSequence() uint32 {
	b.seq++
	return b.seq
}

// LastFlush reports when the batch was last flushed (or built, if never).
func (b *Builder) LastFlush() time.Time { return b.lastAt }

// Empty reports whether the batch currently has no sets.
func (b *Builder) Empty() bool { return b.dbLen == 0 }

// Append adds one client's record set to the current batch and flushes
// afterward if the size or count threshold is now crossed (spec §4.5 step
// 8), so a batch never stays at the count cap between appends.
func (b *Builder) Append(rec Record) error {
	if b.dbLen == 0 {
		wire.PutHeader(b.buf[:wire.HeaderLen], wire.Header{Version: wire.Version})
		b.dbLen = wire.HeaderLen
		if b.lastAt.IsZero() {
			b.lastAt = b.now()
		}
	}

	names := rec.Names
	if len(names) > wire.MaxNames {
		names = names[:wire.MaxNames]
	}
	ips := rec.IPs
	if len(ips) > wire.MaxIPs {
		ips = ips[:wire.MaxIPs]
	}

	nameBytes := 0
	for _, n := range names {
		nameBytes += len(n)
	}
	padded := nameBytes + wire.PadLen(b.dbLen+wire.SetHeaderLen+nameBytes)
	need := wire.SetHeaderLen + padded + len(ips)*4

	if b.dbLen+need > len(b.buf) {
		// Builder bug (spec §4.5 overflow policy / §7 BuilderBug): the
		// capture filter bounds DNS payload size far below the buffer, so
		// this should never happen in practice.
		bugErr := errors.New(errors.KindBuilderBug, "flow: batch overflow, discarding batch")
		if b.logger != nil {
			b.logger.Error(bugErr.Error(), "db_len", b.dbLen, "need", need, "cap", len(b.buf))
		}
		b.dbLen = 0
		b.sets = 0
		return bugErr
	}

	setHdrOff := b.dbLen
	b.dbLen += wire.SetHeaderLen
	namesStart := b.dbLen
	for _, n := range names {
		b.dbLen += copy(b.buf[b.dbLen:], n)
	}
	pad := wire.PadLen(b.dbLen - namesStart)
	for i := 0; i < pad; i++ {
		b.buf[b.dbLen] = 0
		b.dbLen++
	}
	namesLen := b.dbLen - namesStart

	var clientIP [4]byte = rec.ClientIP
	wire.PutSetHeader(b.buf[setHdrOff:setHdrOff+wire.SetHeaderLen], wire.SetHeader{
		ClientIP:   clientIP,
		NamesCount: uint8(len(names)),
		IPsCount:   uint8(len(ips)),
		NamesLen:   uint16(namesLen),
	})

	for _, ip := range ips {
		b.dbLen += copy(b.buf[b.dbLen:], ip[:])
	}

	b.sets++
	b.buf[1] = b.sets // sets_count byte in the header

	if b.dbLen >= b.flushSize || b.sets == wire.MaxSets {
		return b.Flush()
	}
	return nil
}

// Flush hands the current batch to the Emitter and resets to empty (spec
// §4.5 "flush").
func (b *Builder) Flush() error {
	if b.dbLen == 0 {
		return nil
	}
	b.seq++
	wire.PutHeader(b.buf[:wire.HeaderLen], wire.Header{
		Version:   wire.Version,
		SetsCount: b.sets,
		Sequence:  b.seq,
	})

	out := make([]byte, b.dbLen)
	copy(out, b.buf[:b.dbLen])

	b.dbLen = 0
	b.sets = 0
	b.lastAt = b.now()

	return b.emit.Emit(out)
}

// MaybeFlush flushes only if the batch is non-empty and at least the push
// interval has elapsed since the last flush (spec §4.5 condition iii).
func (b *Builder) MaybeFlush(minInterval time.Duration) error {
	if b.Empty() {
		return nil
	}
	if b.now().Sub(b.lastAt) < minInterval {
		return nil
	}
	return b.Flush()
}

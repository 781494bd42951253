// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"os"

	"github.com/shellb0y/dnsflow/internal/capture"
	"github.com/shellb0y/dnsflow/internal/config"
	"github.com/shellb0y/dnsflow/internal/emit"
	"github.com/shellb0y/dnsflow/internal/errors"
	"github.com/shellb0y/dnsflow/internal/flow"
	"github.com/shellb0y/dnsflow/internal/logging"
	"github.com/shellb0y/dnsflow/internal/metrics"
	"github.com/shellb0y/dnsflow/internal/parentwatch"
	"github.com/shellb0y/dnsflow/internal/scheduler"
	"github.com/shellb0y/dnsflow/internal/stats"
	"github.com/shellb0y/dnsflow/internal/supervisor"
	"github.com/shellb0y/dnsflow/internal/worker"
)

// runFileMode drains a capture file synchronously via LoopAll (spec §6
// "loop_all(handle) — drain a file source then return"), then performs a
// final flush: the resolved open question (spec §9 / SPEC_FULL.md) keeps
// file-mode's existing drain-then-flush behavior and additionally applies
// the same final flush to live-mode shutdown.
func runFileMode(cfg *config.Config, filterExpr string, w *worker.Worker, builder *flow.Builder, emitter *emit.Emitter, outFile *os.File, logger *logging.Logger) error {
	h, err := capture.InitFile(cfg.ReadFile, filterExpr)
	if err != nil {
		return errors.Wrap(err, errors.KindCaptureInit, "open capture file")
	}
	defer h.Close()

	h.LoopAll(func(pkt capture.Packet) {
		w.Process(worker.Packet{Length: pkt.Length, Bytes: pkt.Bytes})
	})

	if err := builder.Flush(); err != nil {
		logger.Error("final flush failed", "err", err)
	}
	if err := stats.Emit(h, builder, emitter); err != nil {
		logger.Warn("final stats emit failed", "err", err)
	}
	if err := emitter.Close(); err != nil {
		logger.Warn("close emitter failed", "err", err)
	}
	if outFile != nil {
		if err := outFile.Close(); err != nil {
			logger.Warn("close output file failed", "err", err)
		}
	}
	return nil
}

// runLiveMode opens a live interface and drives the spec §4.8 cooperative
// event loop: capture.RegisterWithEventLoop feeds the loop's packet
// channel while independent push/stats timers fire against the same
// builder.
func runLiveMode(cfg *config.Config, filterExpr string, w *worker.Worker, builder *flow.Builder, emitter *emit.Emitter, outFile *os.File, logger *logging.Logger, fanout *supervisor.Fanout, m *metrics.Metrics) error {
	h, err := capture.InitLive(cfg.Interface, cfg.Promisc, filterExpr)
	if err != nil {
		return errors.Wrap(err, errors.KindCaptureInit, "open capture interface")
	}
	defer h.Close()
	h.SetSampleRate(cfg.SampleRate)

	pktCh := h.RegisterWithEventLoop()
	packets := make(chan scheduler.Packet, 64)
	go func() {
		defer close(packets)
		for pkt := range pktCh {
			packets <- scheduler.Packet{
				TimestampUnixNano: pkt.Timestamp.UnixNano(),
				Length:            pkt.Length,
				Bytes:             pkt.Bytes,
			}
		}
	}()

	var watcher parentwatch.Watcher
	if cfg.IsForkedChild() {
		watcher = parentwatch.New()
	}

	loop := scheduler.New(scheduler.Config{
		Packets: packets,
		Process: func(pkt scheduler.Packet) {
			w.Process(worker.Packet{Length: pkt.Length, Bytes: pkt.Bytes})
		},
		Flusher: builder,
		Stats:   statsEmitter{src: h, seq: builder, emit: emitter},
		Counter: h,
		Closer:  closerFunc(func() error { return closeAll(emitter, outFile) }),
		Logger:  logger,
		Watcher: watcher,
		Children: func() scheduler.ChildSignaler {
			if fanout == nil {
				return nil
			}
			return fanout
		}(),
		Metrics: m,
	})

	return loop.Run()
}

// statsEmitter adapts the stats package's free function into the
// scheduler.StatsEmitter interface.
type statsEmitter struct {
	src  stats.Source
	seq  stats.SequenceCounter
	emit stats.Emitter
}

func (s statsEmitter) Emit() error { return stats.Emit(s.src, s.seq, s.emit) }

// closerFunc adapts a plain function to scheduler.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func closeAll(emitter *emit.Emitter, outFile *os.File) error {
	err := emitter.Close()
	if outFile != nil {
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

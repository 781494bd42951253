// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scheduler implements the single-threaded cooperative event loop
// described in spec §4.8/§5 (C8): a push timer that flushes the flow
// builder, a stats timer that emits a StatsFrame and periodically prints
// human-readable counters, signal-driven clean shutdown, and an optional
// parent-death watchdog.
package scheduler

import (
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shellb0y/dnsflow/internal/errors"
	"github.com/shellb0y/dnsflow/internal/logging"
	"github.com/shellb0y/dnsflow/internal/metrics"
	"github.com/shellb0y/dnsflow/internal/parentwatch"
)

const (
	pushInterval  = time.Second
	statsInterval = 10 * time.Second
	// printEvery ticks of the stats timer print human-readable counters,
	// i.e. roughly once a minute at the nominal 10s interval (spec §4.8).
	printEvery = 6
)

// Flusher is the narrow view of the flow builder the push timer and
// shutdown path need.
type Flusher interface {
	MaybeFlush(minInterval time.Duration) error
	// Flush forces out the current (possibly partial) batch. Called once
	// more during clean shutdown so a live-mode exit does not silently
	// drop a trailing partial batch (resolved open question, spec §9).
	Flush() error
}

// StatsEmitter is the narrow view of the stats component the stats timer
// needs.
type StatsEmitter interface {
	Emit() error
}

// CounterSource supplies the human-readable counters printed once a
// minute (spec §4.8).
type CounterSource interface {
	Stats() (captured, received, dropped, ifdropped, sampleRate uint32, err error)
}

// ChildSignaler lets the scheduler propagate shutdown to forked workers
// (spec §4.8/§4.9) without depending on the supervisor package directly.
type ChildSignaler interface {
	SignalAll(sig os.Signal)
	Reap() (pid int, ok bool)
}

// Closer is anything that must be closed as part of ordered shutdown
// (e.g. the capture-file writer).
type Closer interface {
	Close() error
}

// Packet is a single captured frame handed to the loop from the capture
// collaborator (spec §6).
type Packet struct {
	TimestampUnixNano int64
	Length            int
	Bytes             []byte
}

// Loop is the per-worker cooperative event loop (spec §5): exactly one
// goroutine owns the builder, sockets, and timers.
type Loop struct {
	flusher Flusher
	stats   StatsEmitter
	counter CounterSource
	closer  Closer
	logger  *logging.Logger
	watcher parentwatch.Watcher
	metrics *metrics.Metrics // nil-safe: metrics are ambient, not spec-mandated

	packets <-chan Packet
	process func(Packet)

	children ChildSignaler

	rand *rand.Rand
}

// Config wires the loop's collaborators.
type Config struct {
	Packets  <-chan Packet
	Process  func(Packet)
	Flusher  Flusher
	Stats    StatsEmitter
	Counter  CounterSource
	Closer   Closer
	Logger   *logging.Logger
	Watcher  parentwatch.Watcher // nil if this is the parent (no orphan watch needed)
	Children ChildSignaler       // nil if this process never forks
	Metrics  *metrics.Metrics    // optional; nil disables metrics recording
}

// New constructs a Loop from cfg.
func New(cfg Config) *Loop {
	return &Loop{
		flusher:  cfg.Flusher,
		stats:    cfg.Stats,
		counter:  cfg.Counter,
		closer:   cfg.Closer,
		logger:   cfg.Logger,
		watcher:  cfg.Watcher,
		metrics:  cfg.Metrics,
		packets:  cfg.Packets,
		process:  cfg.Process,
		children: cfg.Children,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *Loop) jitter(base time.Duration) time.Duration {
	return base + time.Duration(l.rand.Int63n(int64(base)))
}

// Run drives the event loop until a shutdown signal arrives, then
// performs the clean-exit ordering from spec §4.8: signal children,
// close the capture-file writer, emit final stats, terminate.
func (l *Loop) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	orphanCh := make(chan struct{}, 1)
	if l.watcher != nil {
		l.watcher.OnOrphan(func() {
			select {
			case orphanCh <- struct{}{}:
			default:
			}
		})
		defer l.watcher.Stop()
	}

	pushTimer := time.NewTimer(l.jitter(pushInterval))
	defer pushTimer.Stop()
	statsTimer := time.NewTimer(l.jitter(statsInterval))
	defer statsTimer.Stop()

	tick := 0

	for {
		select {
		case pkt, ok := <-l.packets:
			if !ok {
				l.packets = nil
				continue
			}
			l.process(pkt)

		case <-pushTimer.C:
			if err := l.flusher.MaybeFlush(pushInterval); err != nil {
				l.logger.Error("flow batch flush failed", "err", err)
			}
			pushTimer.Reset(l.jitter(pushInterval))

		case <-statsTimer.C:
			if err := l.stats.Emit(); err != nil {
				l.logger.Error("stats emit failed", "err", err)
			}
			l.updateMetrics()
			tick++
			if tick%printEvery == 0 {
				l.printCounters()
			}
			statsTimer.Reset(l.jitter(statsInterval))

		case <-orphanCh:
			l.logger.Warn("parent process disappeared, shutting down")
			return l.shutdown()

		case sig := <-sigCh:
			if sig == syscall.SIGCHLD && l.children != nil {
				if pid, ok := l.children.Reap(); ok {
					childExit := errors.New(errors.KindChildExit, "shutting down worker group")
					l.logger.Warn(childExit.Error(), "pid", pid)
				}
			}
			l.logger.Info("received signal, shutting down", "signal", sig.String())
			return l.shutdown()
		}
	}
}

func (l *Loop) shutdown() error {
	if l.children != nil {
		l.children.SignalAll(syscall.SIGTERM)
	}
	if err := l.flusher.Flush(); err != nil {
		l.logger.Error("final flush failed", "err", err)
	}
	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			l.logger.Error("close capture writer failed", "err", err)
		}
	}
	l.printCounters()
	return nil
}

// updateMetrics reads the capture collaborator's counters (spec §6
// get_stats) and records them as Gauges (internal/metrics), independent of
// the once-a-minute human-readable print in printCounters.
func (l *Loop) updateMetrics() {
	if l.metrics == nil || l.counter == nil {
		return
	}
	captured, received, dropped, ifdropped, _, err := l.counter.Stats()
	if err != nil {
		return
	}
	l.metrics.PacketsCaptured.Set(float64(captured))
	l.metrics.PacketsReceived.Set(float64(received))
	l.metrics.PacketsDropped.Set(float64(dropped))
	l.metrics.PacketsIfDropped.Set(float64(ifdropped))
}

func (l *Loop) printCounters() {
	if l.counter == nil {
		return
	}
	captured, received, dropped, ifdropped, sampleRate, err := l.counter.Stats()
	if err != nil {
		l.logger.Warn("could not read capture counters", "err", err)
		return
	}
	l.logger.Info("capture counters",
		"captured", captured,
		"received", received,
		"dropped", dropped,
		"ifdropped", ifdropped,
		"sample_rate", sampleRate,
	)
}

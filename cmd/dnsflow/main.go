// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command dnsflow observes DNS traffic and emits compact, aggregated
// summaries of successful recursive A-record responses to one or more
// downstream collectors (spec §1). This file wires the components
// specified in §4 (C1-C10) into a single worker process; spec §4.9's
// multi-process fan-out is driven by internal/supervisor re-execing this
// same binary with -worker-index.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shellb0y/dnsflow/internal/config"
	"github.com/shellb0y/dnsflow/internal/emit"
	"github.com/shellb0y/dnsflow/internal/errors"
	"github.com/shellb0y/dnsflow/internal/filterexpr"
	"github.com/shellb0y/dnsflow/internal/flow"
	"github.com/shellb0y/dnsflow/internal/logging"
	"github.com/shellb0y/dnsflow/internal/metrics"
	"github.com/shellb0y/dnsflow/internal/netdecode"
	"github.com/shellb0y/dnsflow/internal/pidfile"
	"github.com/shellb0y/dnsflow/internal/supervisor"
	"github.com/shellb0y/dnsflow/internal/worker"
)

// encapHeaderLen returns the fixed-size wrapper length for whichever encap
// port is configured (spec §4.2/§4.7). At most one is set; Validate does
// not currently reject both being set, but StripEncap only ever peels one
// layer, matching the Non-goal against nested encapsulation, so we prefer
// the pcap-record port when both happen to be configured.
func encapHeaderLen(cfg *config.Config) int {
	switch {
	case cfg.PcapRecordPort != 0:
		return 20
	case cfg.JMirrorPort != 0:
		return 8
	default:
		return 0
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dnsflow: "+err.Error())
		return 1
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		fmt.Fprintln(os.Stderr, "dnsflow: "+errs.Error())
		return 1
	}

	logger := logging.New(logging.DefaultConfig())
	if cfg.IsForkedChild() {
		logger = logger.With("worker", cfg.WorkerIndex)
	}

	// Only the original process holds the pid file; forked children are
	// cooperating members of the same worker group, not rival instances
	// (spec §6 "second instance with the same pid file fails").
	var pf *pidfile.File
	if cfg.PidFile != "" && !cfg.IsForkedChild() {
		pf, err = pidfile.Acquire(cfg.PidFile)
		if err != nil {
			logger.Error("pid file", "err", err)
			return 1
		}
		defer pf.Close()
	}

	var fanout *supervisor.Fanout
	if cfg.AutoFork > 1 && !cfg.IsForkedChild() {
		self, err := os.Executable()
		if err != nil {
			logger.Error("resolve own executable for auto-fork", "err", err)
			return 1
		}
		fanout = supervisor.New(self, logger)
		if err := fanout.Spawn(cfg.AutoFork, func(workerIndex int) []string {
			return append(append([]string{}, args...), "-worker-index", fmt.Sprint(workerIndex))
		}); err != nil {
			logger.Error("spawn workers", "err", err)
			return 1
		}
	}

	if err := runWorker(cfg, logger, fanout); err != nil {
		logger.Error("worker exited with error", "err", err)
		return 1
	}
	return 0
}

// runWorker runs the capture-to-emit pipeline for a single worker process
// (spec §5: one independent FlowBatch, sequence counter, sockets, and
// event loop per process).
func runWorker(cfg *config.Config, logger *logging.Logger, fanout *supervisor.Fanout) error {
	encapCfg := netdecode.EncapConfig{PcapRecordPort: cfg.PcapRecordPort, JMirrorPort: cfg.JMirrorPort}

	filterExpr := cfg.FilterOverride
	if filterExpr == "" {
		filterExpr = filterexpr.Generate(filterexpr.Params{
			EncapOffset: encapHeaderLen(cfg),
			WorkerIndex: cfg.FilterWorkerIndex(),
			NWorkers:    cfg.FilterWorkerCount(),
			EnableMDNS:  cfg.EnableMDNS,
		})
	}

	var reg *prometheus.Registry
	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		m = metrics.New(reg)
		srv := metrics.NewServer(cfg.MetricsAddr, reg)
		if err := srv.Start(); err != nil {
			logger.Warn("metrics server failed to start", "err", err)
		} else {
			defer srv.Stop(context.Background())
		}
	}

	emitCfg := emit.Config{Destinations: cfg.Destinations, Metrics: m}
	var outFile *os.File
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return errors.Wrap(err, errors.KindConfig, "open output file")
		}
		outFile = f
		writer, err := emit.NewCaptureFile(f)
		if err != nil {
			f.Close()
			return err
		}
		emitCfg.Capture = writer
	}

	emitter, err := emit.New(emitCfg, logger)
	if err != nil {
		if outFile != nil {
			outFile.Close()
		}
		return err
	}

	builder := flow.New(emitter, logger)
	w := worker.New(encapCfg, builder, logger, m)

	if cfg.ReadFile != "" {
		return runFileMode(cfg, filterExpr, w, builder, emitter, outFile, logger)
	}
	return runLiveMode(cfg, filterExpr, w, builder, emitter, outFile, logger, fanout, m)
}

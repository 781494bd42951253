// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config implements the CLI argument parser and validation rules
// named as an external collaborator in spec §1/§6: flag parsing itself is
// ambient plumbing, but the ConfigError taxonomy (spec §7) belongs here.
package config

import (
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/shellb0y/dnsflow/internal/errors"
)

// Config holds the parsed CLI surface described in spec §6.
type Config struct {
	Interface      string   // -i
	ReadFile       string   // -r
	FilterOverride string   // -f
	ShardIndex     int      // from -m i/n; 0 means unset
	ShardCount     int      // from -m i/n; 0 means unset
	AutoFork       int      // -M n
	Promisc        bool     // default true, cleared by -p
	PidFile        string   // -P
	SampleRate     uint32   // -s
	Destinations   []net.IP // -u, repeatable
	PcapRecordPort uint16   // -X
	JMirrorPort    uint16   // -J
	EnableMDNS     bool     // -Y
	OutputFile     string   // -w

	// MetricsAddr is ambient: not named by spec §6, but the prometheus
	// HTTP surface needs a listen address to bind.
	MetricsAddr string

	// HCLConfig optionally overlays defaults for any flag the operator
	// didn't pass on the command line.
	HCLConfig string

	// WorkerIndex is not part of the documented CLI surface (spec §6): it
	// is how a re-exec'd child (spec §4.9 MULTI-PROCESS MODEL NOTE) learns
	// which worker index it is. The binary re-execs itself with
	// -worker-index N for N in 2..AutoFork; the process that never sees
	// the flag stays index 1, matching fork_workers's "parent retains
	// index 1" rule.
	WorkerIndex int
}

// IsForkedChild reports whether this process is a re-exec'd child worker
// rather than the original process that parsed -M.
func (c *Config) IsForkedChild() bool { return c.WorkerIndex > 1 }

type destinationList struct {
	ips *[]net.IP
}

func (d destinationList) String() string {
	if d.ips == nil {
		return ""
	}
	parts := make([]string, len(*d.ips))
	for i, ip := range *d.ips {
		parts[i] = ip.String()
	}
	return strings.Join(parts, ",")
}

func (d destinationList) Set(s string) error {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid destination IP: %s", s)
	}
	*d.ips = append(*d.ips, ip)
	return nil
}

// Parse parses CLI arguments into a Config. Flag-syntax errors, a -u value
// that is not an IPv4 address and a malformed or out-of-range -m shard spec
// surface here as ConfigError (spec §7); the remaining cross-field checks
// are done separately by Validate.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("dnsflow", flag.ContinueOnError)

	cfg := &Config{Promisc: true}
	var shardSpec string
	var nonPromisc bool

	fs.StringVar(&cfg.Interface, "i", "", "capture interface")
	fs.StringVar(&cfg.ReadFile, "r", "", "read from capture file instead of a live interface")
	fs.StringVar(&cfg.FilterOverride, "f", "", "override the generated packet filter")
	fs.StringVar(&shardSpec, "m", "", "manual shard assignment, i/n")
	fs.IntVar(&cfg.AutoFork, "M", 0, "auto-fork n worker processes")
	fs.BoolVar(&nonPromisc, "p", false, "disable promiscuous capture")
	fs.StringVar(&cfg.PidFile, "P", "", "pid file path")
	var sampleRate uint
	fs.UintVar(&sampleRate, "s", 0, "capture sample rate (1-in-N)")
	fs.Var(destinationList{ips: &cfg.Destinations}, "u", "UDP destination (repeatable)")
	var pcapRecordPort, jmirrorPort uint
	fs.UintVar(&pcapRecordPort, "X", 0, "pcap-record encap port")
	fs.UintVar(&jmirrorPort, "J", 0, "jmirror encap port")
	fs.BoolVar(&cfg.EnableMDNS, "Y", false, "enable mDNS (port 5353) in addition to 53")
	fs.StringVar(&cfg.OutputFile, "w", "", "write flow datagrams to a capture file")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on")
	fs.StringVar(&cfg.HCLConfig, "config", "", "optional HCL defaults file")
	cfg.WorkerIndex = 1
	fs.IntVar(&cfg.WorkerIndex, "worker-index", 1, "internal: re-exec'd worker index, set by the auto-fork supervisor")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "parse CLI arguments")
	}

	cfg.Promisc = !nonPromisc
	cfg.SampleRate = uint32(sampleRate)
	cfg.PcapRecordPort = uint16(pcapRecordPort)
	cfg.JMirrorPort = uint16(jmirrorPort)

	if shardSpec != "" {
		idx, n, err := parseShardSpec(shardSpec)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, "parse shard spec")
		}
		cfg.ShardIndex, cfg.ShardCount = idx, n
	}

	if cfg.HCLConfig != "" {
		overlay, err := LoadOverlay(cfg.HCLConfig)
		if err != nil {
			return nil, err
		}
		ApplyOverlay(cfg, overlay)
	}

	return cfg, nil
}

func parseShardSpec(spec string) (index, count int, err error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("shard spec %q must be of the form i/n", spec)
	}
	index, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("shard spec %q: invalid index: %w", spec, err)
	}
	count, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("shard spec %q: invalid count: %w", spec, err)
	}
	if count < 1 || index < 1 || index > count {
		return 0, 0, fmt.Errorf("shard spec %q: index must be in 1..n", spec)
	}
	return index, count, nil
}

// ValidationError is one configuration problem (spec §7 ConfigError).
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every ConfigError found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) HasErrors() bool { return len(e) > 0 }

const maxDestinations = 10

// Validate checks the ConfigError conditions named in spec §7: invalid
// shard spec, conflicting -M with -w, invalid destination IP, too many
// destinations, and missing capture source.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Interface == "" && c.ReadFile == "" {
		errs = append(errs, ValidationError{Field: "-i/-r", Message: "a capture interface or read-file is required"})
	}
	if c.Interface != "" && c.ReadFile != "" {
		errs = append(errs, ValidationError{Field: "-i/-r", Message: "live interface and read-file are mutually exclusive"})
	}

	if c.AutoFork > 64 {
		errs = append(errs, ValidationError{Field: "-M", Message: "auto-fork count exceeds the 64-worker maximum"})
	}
	if c.AutoFork > 1 && c.OutputFile != "" {
		errs = append(errs, ValidationError{
			Field:   "-M/-w",
			Message: "auto-fork is incompatible with file output: workers cannot share a capture-file writer",
		})
	}
	if c.AutoFork > 1 && c.ShardCount > 0 {
		errs = append(errs, ValidationError{Field: "-m/-M", Message: "manual shard assignment and auto-fork are mutually exclusive"})
	}

	if len(c.Destinations) > maxDestinations {
		errs = append(errs, ValidationError{
			Field:   "-u",
			Message: fmt.Sprintf("at most %d UDP destinations are allowed, got %d", maxDestinations, len(c.Destinations)),
		})
	}
	for _, ip := range c.Destinations {
		if ip.To4() == nil {
			errs = append(errs, ValidationError{Field: "-u", Message: fmt.Sprintf("not an IPv4 address: %s", ip)})
		}
	}

	if len(c.Destinations) == 0 && c.OutputFile == "" {
		errs = append(errs, ValidationError{Field: "-u/-w", Message: "at least one UDP destination or an output file is required"})
	}

	return errs
}

// FilterWorkerIndex and FilterWorkerCount resolve the (worker_index,
// n_workers) pair a single worker process should build its filter with,
// whichever of -m or -M selected it (spec §4.7/§4.9).
func (c *Config) FilterWorkerIndex() int {
	if c.ShardCount > 0 {
		return c.ShardIndex
	}
	if c.AutoFork > 1 && c.WorkerIndex > 0 {
		return c.WorkerIndex
	}
	return 1
}

func (c *Config) FilterWorkerCount() int {
	if c.ShardCount > 0 {
		return c.ShardCount
	}
	if c.AutoFork > 1 {
		return c.AutoFork
	}
	return 1
}

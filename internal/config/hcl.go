// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"net"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/shellb0y/dnsflow/internal/errors"
)

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil
	}
	return ip
}

// Overlay is an optional declarative defaults file. Each field below fills
// the matching Config field when the CLI left it at its zero value; flags
// with no field here (-r, -w, -M, -m, -P, -p) are CLI-only.
type Overlay struct {
	Interface      string   `hcl:"interface,optional"`
	FilterOverride string   `hcl:"filter,optional"`
	SampleRate     uint32   `hcl:"sample_rate,optional"`
	Destinations   []string `hcl:"destinations,optional"`
	PcapRecordPort uint16   `hcl:"pcap_record_port,optional"`
	JMirrorPort    uint16   `hcl:"jmirror_port,optional"`
	EnableMDNS     bool     `hcl:"enable_mdns,optional"`
	MetricsAddr    string   `hcl:"metrics_addr,optional"`
}

// LoadOverlay decodes an HCL defaults file.
func LoadOverlay(path string) (*Overlay, error) {
	var o Overlay
	if err := hclsimple.DecodeFile(path, nil, &o); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "decode HCL config overlay")
	}
	return &o, nil
}

// ApplyOverlay fills in any Config field the CLI left at its zero value.
func ApplyOverlay(cfg *Config, o *Overlay) {
	if cfg.Interface == "" {
		cfg.Interface = o.Interface
	}
	if cfg.FilterOverride == "" {
		cfg.FilterOverride = o.FilterOverride
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = o.SampleRate
	}
	if len(cfg.Destinations) == 0 {
		for _, s := range o.Destinations {
			if ip := parseIPv4(s); ip != nil {
				cfg.Destinations = append(cfg.Destinations, ip)
			}
		}
	}
	if cfg.PcapRecordPort == 0 {
		cfg.PcapRecordPort = o.PcapRecordPort
	}
	if cfg.JMirrorPort == 0 {
		cfg.JMirrorPort = o.JMirrorPort
	}
	if !cfg.EnableMDNS {
		cfg.EnableMDNS = o.EnableMDNS
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = o.MetricsAddr
	}
}

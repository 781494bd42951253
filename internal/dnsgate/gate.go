// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dnsgate implements the DNS gate (spec §4.3, C3) and extractor
// (spec §4.4, C4). Wire decoding itself is delegated to miekg/dns, the
// external DNS library collaborator named in spec §6.
package dnsgate

import (
	"github.com/miekg/dns"

	"github.com/shellb0y/dnsflow/internal/wire"
)

// ExtractedRecord is the transient per-packet result described in spec §3:
// names[0] is the question owner, names[1:] the CNAME chain in answer
// order, ips the resolved A records.
type ExtractedRecord struct {
	ClientIP [4]byte
	Names    [][]byte
	IPs      [][4]byte
}

// Accept runs the DNS gate (spec §4.3): only qr=1, rd=1, ra=1, rcode=0,
// qdcount=1, question qtype=A passes. Any other shape is a silent drop
// (spec §7 PacketDropSilent) and is not logged.
func Accept(msg *dns.Msg) bool {
	if !msg.Response || !msg.RecursionDesired || !msg.RecursionAvailable {
		return false
	}
	if msg.Rcode != dns.RcodeSuccess {
		return false
	}
	if len(msg.Question) != 1 {
		return false
	}
	return msg.Question[0].Qtype == dns.TypeA
}

// Extract builds an ExtractedRecord from an already-gated message (spec
// §4.4). It returns ok=false when there is nothing worth emitting: an
// overlong question name, or no names/no A records after walking the
// answer section.
func Extract(msg *dns.Msg, clientIP [4]byte) (ExtractedRecord, bool) {
	owner := nameToWire(msg.Question[0].Name)
	if len(owner) > wire.MaxNameLen {
		return ExtractedRecord{}, false
	}

	rec := ExtractedRecord{ClientIP: clientIP, Names: [][]byte{owner}}

	for _, rr := range msg.Answer {
		switch a := rr.(type) {
		case *dns.CNAME:
			if len(rec.Names) >= wire.MaxNames {
				continue
			}
			name := nameToWire(a.Target)
			if len(name) > wire.MaxNameLen {
				continue
			}
			rec.Names = append(rec.Names, name)
		case *dns.A:
			if len(rec.IPs) >= wire.MaxIPs {
				continue
			}
			v4 := a.A.To4()
			if v4 == nil {
				continue
			}
			var ip [4]byte
			copy(ip[:], v4)
			rec.IPs = append(rec.IPs, ip)
		}
	}

	if len(rec.Names) == 0 || len(rec.IPs) == 0 {
		return ExtractedRecord{}, false
	}
	return rec, true
}

// nameToWire renders a dns-library name back into its wire-format label
// sequence (each label length-prefixed, terminated by a zero root label),
// the same bytes that appeared on the wire.
func nameToWire(name string) []byte {
	labels := dns.SplitDomainName(dns.Fqdn(name))
	out := make([]byte, 0, len(name)+1)
	for _, l := range labels {
		out = append(out, byte(len(l)))
		out = append(out, l...)
	}
	out = append(out, 0)
	return out
}

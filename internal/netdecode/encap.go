// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netdecode

// EncapConfig names the destination ports that select a one-level
// encapsulation peel (spec §4.2). A zero value disables that encap kind.
type EncapConfig struct {
	PcapRecordPort uint16
	JMirrorPort    uint16
}

// StripEncap inspects h (already validated as IPv4/UDP) and, if its outer
// UDP destination port matches a configured encap port, advances past the
// fixed-size wrapper and revalidates the residual bytes as IPv4/UDP. At
// most one level is stripped, matching the Non-goal against nested
// encapsulation. ok is false if no encap is configured/matched (caller
// should treat the outer header as final) or if the inner packet fails
// validation. The returned inner's offsets are relative to buf (the same
// base as outer's), not to the inner residual slice, so callers can index
// buf directly without re-deriving the base offset themselves.
func StripEncap(buf []byte, outer IPv4UDP, cfg EncapConfig) (inner IPv4UDP, stripped bool, ok bool) {
	payload := buf[outer.PayloadOffset:]

	var skip int
	switch {
	case cfg.PcapRecordPort != 0 && outer.DstPort == cfg.PcapRecordPort:
		skip = pcapRecordHeaderLen
	case cfg.JMirrorPort != 0 && outer.DstPort == cfg.JMirrorPort:
		skip = jmirrorHeaderLen
	default:
		return IPv4UDP{}, false, false
	}

	if len(payload) < skip {
		return IPv4UDP{}, true, false
	}

	base := outer.PayloadOffset + skip
	inner, ok = ValidateIPv4UDP(payload[skip:])
	if !ok {
		return IPv4UDP{}, true, false
	}
	inner.UDPOffset += base
	inner.PayloadOffset += base
	return inner, true, true
}

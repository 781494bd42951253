// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package errors implements the error taxonomy from spec §7: errors raised
// at the taxonomy's boundaries (config, pid file, capture open, builder
// overflow, send failure, child exit) are tagged with one of these Kinds,
// so a caller can classify a failure (fatal-at-startup vs.
// logged-and-continue) with errors.Is/GetKind instead of string matching.
// Errors built with plain fmt.Errorf elsewhere carry no Kind (GetKind
// reports KindUnknown for them).
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes an error by which spec §7 bucket it belongs to.
type Kind int

const (
	KindUnknown Kind = iota

	// KindConfig is spec §7's ConfigError: fatal at startup (invalid shard
	// spec, conflicting -M with -w, invalid destination IP, too many
	// destinations, pid-file contention, missing output).
	KindConfig

	// KindCaptureInit is spec §7's CaptureInitError: fatal (interface open
	// failure, filter compile/install failure).
	KindCaptureInit

	// KindPacketDropSilent is spec §7's PacketDropSilent: any C1-C4
	// validation failure. Never logged; counted only via the capture
	// library's own drop counters, so this Kind exists for classification
	// (metrics labeling, tests) rather than for logged error values.
	KindPacketDropSilent

	// KindDNSDecodeWarn is spec §7's DNSDecodeWarn: a malformed DNS payload
	// reported by the decoder, logged at warn and counted.
	KindDNSDecodeWarn

	// KindBuilderBug is spec §7's BuilderBug: a flow-builder buffer
	// overrun. Logged; the batch is reset and the worker continues.
	KindBuilderBug

	// KindSendWarn is spec §7's SendWarn: a send syscall failure to one
	// UDP destination. Logged; the worker continues to the next
	// destination.
	KindSendWarn

	// KindChildExit is spec §7's ChildExit: any child worker death, which
	// causes the parent to signal its siblings and exit.
	KindChildExit

	// KindInternal is the fallback for failures outside the spec §7
	// taxonomy (e.g. an unexpected I/O error while writing a pid file).
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindCaptureInit:
		return "capture_init"
	case KindPacketDropSilent:
		return "packet_drop_silent"
	case KindDNSDecodeWarn:
		return "dns_decode_warn"
	case KindBuilderBug:
		return "builder_bug"
	case KindSendWarn:
		return "send_warn"
	case KindChildExit:
		return "child_exit"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error wrapping an optional underlying cause.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is(err, errors.ErrConfig) (and the other sentinels below)
// match any *Error carrying the same Kind, regardless of message or
// underlying cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for the spec §7 taxonomy, for use with errors.Is when the
// caller only cares about the category, not the message.
var (
	ErrConfig           = &Error{Kind: KindConfig}
	ErrCaptureInit      = &Error{Kind: KindCaptureInit}
	ErrPacketDropSilent = &Error{Kind: KindPacketDropSilent}
	ErrDNSDecodeWarn    = &Error{Kind: KindDNSDecodeWarn}
	ErrBuilderBug       = &Error{Kind: KindBuilderBug}
	ErrSendWarn         = &Error{Kind: KindSendWarn}
	ErrChildExit        = &Error{Kind: KindChildExit}
)

// New creates a new Error of the given Kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap wraps err as a new Error of the given Kind. Returns nil if err is
// nil, so Wrap can sit directly in a `return Wrap(err, ...)` idiom.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// GetKind returns the Kind of err, or KindUnknown if err doesn't wrap an
// *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target (a thin
// re-export of the standard library's errors.Is, kept here so call sites
// that import this package under its natural name "errors" don't also need
// a second, aliased import of the standard library package).
func Is(err, target error) bool {
	return errors.Is(err, target)
}

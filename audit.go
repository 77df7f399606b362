package authcore

import (
	"io"

	"github.com/loopwire/authcore/internal/audit"
)

// AuditEvent is the record handed to audit sinks. It carries identifiers
// and a stable failure reason only; token strings and credentials never
// appear in it.
type AuditEvent = audit.Event

// AuditSink receives emitted audit events, asynchronously, on the
// dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mainly for tests.
type ChannelSink = audit.ChannelSink

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// JSONWriterSink writes one JSON object per event line to w.
type JSONWriterSink = audit.JSONWriterSink

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

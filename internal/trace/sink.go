package trace

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sink records messages as they are emitted. Implementations must be safe for
// concurrent use and must not block the pipeline.
type Sink interface {
	Record(ctx context.Context, msg Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, msg Message)

// Record calls f(ctx, msg).
func (f SinkFunc) Record(ctx context.Context, msg Message) {
	f(ctx, msg)
}

// Multi returns a sink that records to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var active []Sink
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(ctx context.Context, msg Message) {
		for _, s := range active {
			s.Record(ctx, msg)
		}
	})
}

// Nop discards messages.
var Nop Sink = SinkFunc(func(context.Context, Message) {})

var tracer = otel.Tracer("kotae/trace")

func messageAttrs(msg Message) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("kotae.trace_id", msg.TraceID),
		attribute.String("kotae.message.type", string(msg.Type)),
		attribute.String("kotae.message.sender", msg.Sender),
		attribute.String("kotae.message.receiver", msg.Receiver),
	}
}

// SpanSink records each message as an OpenTelemetry span with a single event.
// Spans go nowhere unless a tracer provider is installed (see package telemetry).
type SpanSink struct{}

// Record starts a span named after the message type and records the hand-off.
func (SpanSink) Record(ctx context.Context, msg Message) {
	_, span := tracer.Start(ctx, "kotae."+string(msg.Type))
	defer span.End()
	span.AddEvent(string(msg.Type), oteltrace.WithAttributes(messageAttrs(msg)...))
}

// LogSink logs each message at debug level.
type LogSink struct {
	Logger *zap.Logger
}

// Record logs the message envelope without its payload.
func (s LogSink) Record(_ context.Context, msg Message) {
	if s.Logger == nil {
		return
	}
	s.Logger.Debug("trace message",
		zap.String("type", string(msg.Type)),
		zap.String("sender", msg.Sender),
		zap.String("receiver", msg.Receiver),
		zap.String("trace_id", msg.TraceID),
	)
}

// Collector keeps every recorded message in memory.
type Collector struct {
	mu   sync.Mutex
	msgs []Message
}

// Record appends msg.
func (c *Collector) Record(_ context.Context, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

// Messages returns a copy of the recorded messages in order.
func (c *Collector) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

// ByTraceID returns the recorded messages that share traceID.
func (c *Collector) ByTraceID(traceID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Message
	for _, m := range c.msgs {
		if m.TraceID == traceID {
			out = append(out, m)
		}
	}
	return out
}

package hook

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelHook creates one OpenTelemetry span per node/step execution,
// grounded on the teacher's OTelEmitter. Unlike the teacher (one event per
// call), a Hook's start/complete/error callbacks bracket a single node
// invocation, so OTelHook tracks the in-flight span per (flow id, node id)
// between OnNodeStart and its matching completion callback.
type OTelHook struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewOTelHook creates an OTelHook using the named tracer from the global
// TracerProvider (set the provider via go.opentelemetry.io/otel/sdk/trace
// before constructing, per the teacher's integration pattern).
func NewOTelHook(name string) *OTelHook {
	return &OTelHook{
		tracer: otel.Tracer(name),
		spans:  make(map[string]trace.Span),
	}
}

func spanKey(flowID, nodeID string) string { return flowID + "/" + nodeID }

func (h *OTelHook) OnNodeStart(ctx context.Context, e NodeEvent) {
	_, span := h.tracer.Start(ctx, e.ComponentName,
		trace.WithAttributes(
			attribute.String("flow_id", e.FlowID),
			attribute.String("node_id", e.NodeID),
			attribute.Int("step", e.Step),
		))
	h.mu.Lock()
	h.spans[spanKey(e.FlowID, e.NodeID)] = span
	h.mu.Unlock()
}

func (h *OTelHook) OnNodeComplete(_ context.Context, e NodeEvent) {
	h.endSpan(e, codes.Ok, "")
}

func (h *OTelHook) OnNodeError(_ context.Context, e NodeEvent) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	h.endSpan(e, codes.Error, msg)
}

func (h *OTelHook) OnNodeSkipped(_ context.Context, e NodeEvent) {
	h.mu.Lock()
	span, ok := h.spans[spanKey(e.FlowID, e.NodeID)]
	delete(h.spans, spanKey(e.FlowID, e.NodeID))
	h.mu.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(attribute.Bool("skipped", true))
	span.End()
}

func (h *OTelHook) OnFlowSuspended(ctx context.Context, e SuspendEvent) {
	_, span := h.tracer.Start(ctx, "flow_suspended", trace.WithAttributes(
		attribute.String("flow_id", e.FlowID),
		attribute.String("node_id", e.NodeID),
		attribute.String("checkpoint_id", e.CheckpointID),
		attribute.String("reason", e.Reason),
	))
	span.End()
}

func (h *OTelHook) endSpan(e NodeEvent, code codes.Code, description string) {
	h.mu.Lock()
	span, ok := h.spans[spanKey(e.FlowID, e.NodeID)]
	delete(h.spans, spanKey(e.FlowID, e.NodeID))
	h.mu.Unlock()
	if !ok {
		return
	}
	span.SetStatus(code, description)
	span.End()
}

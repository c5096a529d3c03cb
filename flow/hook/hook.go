// Package hook provides pluggable observability for flow execution
// (spec.md §4.8). Hook implementations can log, trace, or record metrics
// for every node/step lifecycle transition without the execution engine
// depending on any particular backend.
package hook

import (
	"context"
	"time"
)

// NodeEvent describes one node/step lifecycle transition.
type NodeEvent struct {
	FlowID        string
	NodeID        string // "step:<n>" for sequential/conditional flows, node id for graph flows
	ComponentName string
	Step          int
	Duration      time.Duration
	Err           error
}

// SuspendEvent describes a flow pausing at a checkpoint.
type SuspendEvent struct {
	FlowID       string
	NodeID       string
	CheckpointID string
	Reason       string
}

// Hook receives lifecycle callbacks from the flow engine. A Hook must
// never block execution for long and must never panic across the call
// boundary into the engine — the engine recovers and isolates hook
// failures (Safe below), but a well-behaved Hook shouldn't rely on that
// as its error handling strategy.
type Hook interface {
	OnNodeStart(ctx context.Context, event NodeEvent)
	OnNodeComplete(ctx context.Context, event NodeEvent)
	OnNodeError(ctx context.Context, event NodeEvent)
	OnNodeSkipped(ctx context.Context, event NodeEvent)
	OnFlowSuspended(ctx context.Context, event SuspendEvent)
}

// NullHook implements Hook with no-ops. It is the default when no hook is
// configured.
type NullHook struct{}

func (NullHook) OnNodeStart(context.Context, NodeEvent)        {}
func (NullHook) OnNodeComplete(context.Context, NodeEvent)     {}
func (NullHook) OnNodeError(context.Context, NodeEvent)        {}
func (NullHook) OnNodeSkipped(context.Context, NodeEvent)      {}
func (NullHook) OnFlowSuspended(context.Context, SuspendEvent) {}

// MultiHook fans out every callback to each of its members, in order.
type MultiHook []Hook

func (m MultiHook) OnNodeStart(ctx context.Context, e NodeEvent) {
	for _, h := range m {
		h.OnNodeStart(ctx, e)
	}
}

func (m MultiHook) OnNodeComplete(ctx context.Context, e NodeEvent) {
	for _, h := range m {
		h.OnNodeComplete(ctx, e)
	}
}

func (m MultiHook) OnNodeError(ctx context.Context, e NodeEvent) {
	for _, h := range m {
		h.OnNodeError(ctx, e)
	}
}

func (m MultiHook) OnNodeSkipped(ctx context.Context, e NodeEvent) {
	for _, h := range m {
		h.OnNodeSkipped(ctx, e)
	}
}

func (m MultiHook) OnFlowSuspended(ctx context.Context, e SuspendEvent) {
	for _, h := range m {
		h.OnFlowSuspended(ctx, e)
	}
}

// Safe wraps h so that a panic in any one callback cannot propagate into,
// or crash, flow execution. A slow callback is not cut short: the engine
// waits for it to return. The engine calls hooks only through a
// Safe-wrapped reference.
func Safe(h Hook) Hook {
	if h == nil {
		return NullHook{}
	}
	return safeHook{h}
}

type safeHook struct{ inner Hook }

func (s safeHook) OnNodeStart(ctx context.Context, e NodeEvent) {
	defer recoverHook()
	s.inner.OnNodeStart(ctx, e)
}

func (s safeHook) OnNodeComplete(ctx context.Context, e NodeEvent) {
	defer recoverHook()
	s.inner.OnNodeComplete(ctx, e)
}

func (s safeHook) OnNodeError(ctx context.Context, e NodeEvent) {
	defer recoverHook()
	s.inner.OnNodeError(ctx, e)
}

func (s safeHook) OnNodeSkipped(ctx context.Context, e NodeEvent) {
	defer recoverHook()
	s.inner.OnNodeSkipped(ctx, e)
}

func (s safeHook) OnFlowSuspended(ctx context.Context, e SuspendEvent) {
	defer recoverHook()
	s.inner.OnFlowSuspended(ctx, e)
}

// recoverHook swallows a panicking hook. Hooks are observability, never a
// control-flow dependency; a broken hook must not take the flow down with
// it.
func recoverHook() {
	_ = recover()
}

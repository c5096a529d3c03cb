package flow

import (
	"context"
	"time"
)

// Component is the abstract processing unit a flow orchestrates (spec.md
// §4.7). Implementations are constructed once, Init'd once, then reused
// across every step/node that references them by name; Setup/Teardown
// bracket every individual invocation.
type Component interface {
	// Init is called once, before the component's first use.
	Init(config map[string]Value) error

	// Setup runs before every Process call.
	Setup(ctx *Context) error

	// Process is the synchronous unit of work. It may mutate ctx.Data, call
	// SetOutputPort to steer graph routing, or call ctx.Suspend to pause the
	// flow.
	Process(ctx context.Context, fctx *Context) error

	// Teardown always runs after Setup, regardless of whether Process
	// succeeded, returned an error, or was cancelled by a timeout.
	Teardown(fctx *Context) error

	// ValidateConfig returns a list of configuration issue strings (empty if
	// valid).
	ValidateConfig() []string

	// HealthCheck reports whether the component is currently healthy.
	HealthCheck(ctx context.Context) bool
}

// AsyncComponent is an optional capability: components that support
// cooperative async execution implement this in addition to Component. The
// engine calls ProcessAsync instead of Process when both the component
// declares support and the active timeout mode is async-capable
// (hard_async).
type AsyncComponent interface {
	Component
	ProcessAsync(ctx context.Context, fctx *Context) error
}

// SetOutputPort sets the active port on fctx, read by the graph executor
// immediately after Process returns to decide which outgoing edges fire.
func SetOutputPort(fctx *Context, port string) {
	fctx.ActivePort = port
}

// deadlineCheckThreshold is the fixed 1-second strict-mode threshold from
// spec.md §4.2.
const deadlineCheckThreshold = time.Second

// CheckDeadline is called by a component during Process to cooperatively
// assert its execution deadline has not passed. It reads the guard the
// executor attached to fctx for the currently running node; components
// under hard_async or hard_process modes may call it too, though the
// engine itself enforces those deadlines independently.
func CheckDeadline(fctx *Context) error {
	guard := fctx.guard
	if guard == nil {
		return nil
	}
	guard.noteCheck()
	if guard.Reached() {
		return &TimeoutError{
			Elapsed: guard.Elapsed(),
			Budget:  guard.Budget(),
		}
	}
	return nil
}

package flow

import "context"

// runCooperative runs one Setup/Process/Teardown cycle in-process, on the
// authoritative Context, trusting the component to call CheckDeadline
// itself (spec.md §4.2 cooperative mode). This is the cheapest mode and the
// default: no copying, no extra goroutine, no process.
func runCooperative(ctx context.Context, comp Component, fctx *Context, guard *DeadlineGuard) error {
	fctx.guard = guard
	defer func() { fctx.guard = nil }()

	if err := comp.Setup(fctx); err != nil {
		_ = comp.Teardown(fctx)
		return err
	}
	procErr := comp.Process(ctx, fctx)
	tdErr := comp.Teardown(fctx)
	if procErr != nil {
		return procErr
	}
	return tdErr
}

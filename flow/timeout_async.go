package flow

import (
	"context"
	"fmt"
)

// runHardAsync runs Setup/Process/Teardown on a background goroutine against
// a deep copy of fctx, racing it against guard's budget via
// context.WithTimeout (spec.md §4.2 hard_async mode).
//
// Open Question 1 (SPEC_FULL.md §7): a component that is still running when
// the deadline fires keeps running — Go has no safe way to preempt a
// goroutine — but its mutations are discarded. Only a clone that finishes
// before the deadline is merged back into the authoritative context. The
// result channel is buffered so the abandoned goroutine's eventual send
// never blocks and the goroutine can still exit on its own. On timeout,
// Teardown still runs — on the main goroutine, against the authoritative
// fctx, never the abandoned clone — before Timeout is raised.
func runHardAsync(ctx context.Context, comp Component, fctx *Context, guard *DeadlineGuard, componentName string) error {
	clone := fctx.clone()
	clone.guard = guard

	workCtx := ctx
	if budget := guard.Budget(); budget > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("component %s panicked: %v", componentName, r)
			}
		}()
		if err := comp.Setup(clone); err != nil {
			_ = comp.Teardown(clone)
			done <- err
			return
		}
		var procErr error
		if ac, ok := comp.(AsyncComponent); ok {
			procErr = ac.ProcessAsync(workCtx, clone)
		} else {
			procErr = comp.Process(workCtx, clone)
		}
		tdErr := comp.Teardown(clone)
		if procErr != nil {
			done <- procErr
			return
		}
		done <- tdErr
	}()

	select {
	case err := <-done:
		if err == nil {
			fctx.mergeFrom(clone)
		}
		return err
	case <-workCtx.Done():
		_ = comp.Teardown(fctx)
		return &TimeoutError{Elapsed: guard.Elapsed(), Budget: guard.Budget()}
	}
}

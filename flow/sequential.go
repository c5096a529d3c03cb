package flow

import (
	"context"
	"fmt"
)

// runSequential executes every configured step in order, unconditionally
// (spec.md §4.4 Sequential Executor). resumeAt, when non-empty, is the
// "step:<n>" node id a Resume call suspended at; steps before it are
// skipped since their effects already live in the restored Context.
func (e *Engine) runSequential(ctx context.Context, execCtx *Context, resumeAt string) error {
	startIdx := 0
	if resumeAt != "" {
		var n int
		if _, err := fmt.Sscanf(resumeAt, "step:%d", &n); err == nil {
			startIdx = n
		}
	}

	var firstErr error
	for i := startIdx; i < len(e.config.Steps); i++ {
		step := e.config.Steps[i]
		nodeID := fmt.Sprintf("step:%d", i)

		outcome, err := e.runNode(ctx, execCtx, nodeID, step.ComponentName, resolveErrorPolicy(step.OnError))
		if outcome == outcomeSuspended {
			return nil
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			// fail_fast=true (the default) stops at the first fail-policy
			// error; fail_fast=false keeps going so every step still runs,
			// returning the first error once the flow completes.
			if e.config.Settings.FailFast {
				return firstErr
			}
			continue
		}
		if outcome == outcomeSkipped {
			continue
		}
		execCtx.Metadata.MarkCompleted(nodeID)
	}
	return firstErr
}

// resolveErrorPolicy defaults an unset per-step policy to fail, per
// spec.md §4.4.
func resolveErrorPolicy(p ErrorPolicy) ErrorPolicy {
	if p == "" {
		return OnErrorFail
	}
	return p
}

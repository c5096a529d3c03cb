package flow

import (
	"context"
	"fmt"

	"github.com/arrowrift/flowengine/flow/eval"
)

// runConditional executes the first step whose condition evaluates true —
// an if/elif/else chain, not a sequence (spec.md §4.5 Conditional Executor,
// First-Match semantics). A step with an empty condition always matches,
// acting as the chain's "else".
func (e *Engine) runConditional(ctx context.Context, execCtx *Context, resumeAt string) error {
	if resumeAt != "" {
		return e.resumeConditionalStep(ctx, execCtx, resumeAt)
	}

	for i, step := range e.config.Steps {
		nodeID := fmt.Sprintf("step:%d", i)

		matched, condErr := e.evalStepCondition(step, execCtx)
		if condErr != nil {
			execCtx.Metadata.RecordConditionError(step.ComponentName, step.Condition, condErr.Error())
			switch e.resolveConditionErrorPolicy() {
			case OnConditionFail:
				return &ConditionEvalError{Expression: step.Condition, Reason: "evaluation failed", Cause: condErr}
			case OnConditionWarn, OnConditionSkip:
				continue
			}
		}
		if !matched {
			execCtx.Metadata.MarkSkipped(step.ComponentName)
			e.metrics.RecordSkipped(step.ComponentName, "condition_false")
			continue
		}

		outcome, err := e.runNode(ctx, execCtx, nodeID, step.ComponentName, resolveErrorPolicy(step.OnError))
		if outcome == outcomeSuspended {
			return nil
		}
		if err == nil && outcome != outcomeSkipped {
			execCtx.Metadata.MarkCompleted(nodeID)
		}
		return err
	}
	// No step matched: an empty-else chain is valid, it simply does nothing.
	return nil
}

func (e *Engine) resumeConditionalStep(ctx context.Context, execCtx *Context, resumeAt string) error {
	var n int
	if _, err := fmt.Sscanf(resumeAt, "step:%d", &n); err != nil || n < 0 || n >= len(e.config.Steps) {
		return fmt.Errorf("resume: invalid checkpoint node id %q", resumeAt)
	}
	step := e.config.Steps[n]
	outcome, err := e.runNode(ctx, execCtx, resumeAt, step.ComponentName, resolveErrorPolicy(step.OnError))
	if outcome == outcomeSuspended {
		return nil
	}
	if err == nil && outcome != outcomeSkipped {
		execCtx.Metadata.MarkCompleted(resumeAt)
	}
	return err
}

func (e *Engine) evalStepCondition(step StepConfig, execCtx *Context) (bool, error) {
	if step.Condition == "" {
		return true, nil
	}
	return eval.Eval(step.Condition, execCtx)
}

func (e *Engine) resolveConditionErrorPolicy() ConditionErrorPolicy {
	if e.config.Settings.OnConditionError == "" {
		return OnConditionSkip
	}
	return e.config.Settings.OnConditionError
}

package flow

import (
	"fmt"
	"time"
)

// ConfigurationError indicates the loaded Config is structurally invalid.
// Surfaced by Validate() before execution ever starts (spec.md §7).
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid configuration"
	}
	return fmt.Sprintf("invalid configuration: %s", e.Issues[0])
}

// ComponentError wraps an error raised by a component's Process call.
type ComponentError struct {
	NodeID        string
	ComponentName string
	Cause         error
}

func (e *ComponentError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("component %s (node %s): %v", e.ComponentName, e.NodeID, e.Cause)
	}
	return fmt.Sprintf("component %s: %v", e.ComponentName, e.Cause)
}

func (e *ComponentError) Unwrap() error { return e.Cause }

// TimeoutError indicates the deadline passed during execution.
type TimeoutError struct {
	NodeID  string
	Elapsed time.Duration
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout at node %s: elapsed %v exceeds budget %v", e.NodeID, e.Elapsed, e.Budget)
}

// DeadlineCheckError indicates a strict-mode violation: a component ran past
// the 1-second threshold without calling CheckDeadline.
type DeadlineCheckError struct {
	ComponentName string
	Observed      time.Duration
	Threshold     time.Duration
}

func (e *DeadlineCheckError) Error() string {
	return fmt.Sprintf("component %s ran %v without a deadline check (threshold %v)", e.ComponentName, e.Observed, e.Threshold)
}

// ConditionEvalError indicates a condition expression could not be
// evaluated: an unsafe construct, a parse error, or an evaluation error.
type ConditionEvalError struct {
	Expression string
	Reason     string
	Cause      error
}

func (e *ConditionEvalError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expression, e.Reason)
}

func (e *ConditionEvalError) Unwrap() error { return e.Cause }

// MaxIterationsError indicates the cyclic graph executor exceeded
// max_iterations under the fail policy.
type MaxIterationsError struct {
	MaxIterations    int
	ActualIterations int
	CycleEntryNode   string
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("max iterations (%d) exceeded: reached %d, cycle entry %q",
		e.MaxIterations, e.ActualIterations, e.CycleEntryNode)
}

// CheckpointNotFoundError indicates Resume was called with an unknown
// checkpoint id.
type CheckpointNotFoundError struct {
	CheckpointID string
}

func (e *CheckpointNotFoundError) Error() string {
	return fmt.Sprintf("checkpoint not found: %s", e.CheckpointID)
}

package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/arrowrift/flowengine/flow/hook"
	"github.com/arrowrift/flowengine/flow/metrics"
	"github.com/google/uuid"
)

// Engine runs flows of any FlowType against a fixed Config and a registry
// of named Components (spec.md §2, §4.7). Like the teacher's
// Engine[S] (graph/engine.go), it is built once via functional options and
// reused across many executions; unlike the teacher, there is no generic
// state parameter and no concurrent scheduler — flows run single-threaded
// (spec.md §5).
type Engine struct {
	config *Config

	components       map[string]Component
	componentConfigs map[string]map[string]Value

	hook    hook.Hook
	store   CheckpointStore
	metrics *metrics.Metrics

	// workerBinary/workerArgs locate the re-exec entrypoint for
	// hard_process timeout mode (flow/timeout_process.go). Defaults to the
	// current executable with no extra args.
	workerBinary string
	workerArgs   []string
}

// Option configures an Engine at construction time, mirroring the
// teacher's functional-options pattern (graph/options.go).
type Option func(*Engine) error

// WithComponent registers a Component under name. initConfig is passed to
// Component.Init once, by New, and again on every hard_process worker
// invocation (which runs in a separate process with its own instance).
func WithComponent(name string, c Component, initConfig map[string]Value) Option {
	return func(e *Engine) error {
		if name == "" {
			return fmt.Errorf("component name must not be empty")
		}
		if c == nil {
			return fmt.Errorf("component %q: nil implementation", name)
		}
		e.components[name] = c
		e.componentConfigs[name] = initConfig
		return nil
	}
}

// WithHook attaches an observability Hook. Defaults to hook.NullHook.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) error {
		e.hook = hook.Safe(h)
		return nil
	}
}

// WithStore attaches the checkpoint store used by Suspend/Resume. Required
// only for flows that can actually suspend; Execute on a flow that never
// calls Context.Suspend works with no store configured.
func WithStore(s CheckpointStore) Option {
	return func(e *Engine) error {
		e.store = s
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithWorkerBinary overrides the executable hard_process mode re-execs
// (defaults to the running binary, os.Args[0]) and any fixed leading
// arguments it should be invoked with before the worker-mode flag.
func WithWorkerBinary(path string, args ...string) Option {
	return func(e *Engine) error {
		e.workerBinary = path
		e.workerArgs = args
		return nil
	}
}

// New constructs an Engine for config, applies opts, validates the
// config structurally, and Inits every registered component.
func New(config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		return nil, &ConfigurationError{Issues: []string{"config must not be nil"}}
	}
	e := &Engine{
		config:           config,
		components:       make(map[string]Component),
		componentConfigs: make(map[string]map[string]Value),
		hook:             hook.NullHook{},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	for name, c := range e.components {
		if err := c.Init(e.componentConfigs[name]); err != nil {
			return nil, &ComponentError{ComponentName: name, Cause: err}
		}
	}
	return e, nil
}

// Validate checks structural config validity and that every referenced
// component name is registered (spec.md §6 validate()).
func (e *Engine) Validate() error {
	if err := e.config.Validate(); err != nil {
		return err
	}
	var issues []string
	names := e.referencedComponentNames()
	for _, name := range names {
		c, ok := e.components[name]
		if !ok {
			issues = append(issues, fmt.Sprintf("component %q is referenced but not registered", name))
			continue
		}
		issues = append(issues, c.ValidateConfig()...)
	}
	if len(issues) > 0 {
		return &ConfigurationError{Issues: issues}
	}
	return nil
}

func (e *Engine) referencedComponentNames() []string {
	seen := map[string]bool{}
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, s := range e.config.Steps {
		add(s.ComponentName)
	}
	for _, n := range e.config.Nodes {
		add(n.ComponentName)
	}
	return names
}

// Execute runs the flow from scratch with the given input, returning the
// final Context. If a component suspends the flow, execution stops early
// and ctx.Metadata.Suspended is true — this is not an error.
func (e *Engine) Execute(ctx context.Context, input Value) (*Context, error) {
	execCtx := NewContext(input)
	return execCtx, e.run(ctx, execCtx, "")
}

// Resume continues a suspended flow from its last checkpoint, injecting
// resumeData as the suspended node's resume_data (spec.md §4.6).
func (e *Engine) Resume(ctx context.Context, checkpointID string, resumeData Value) (*Context, error) {
	if e.store == nil {
		return nil, fmt.Errorf("resume requires a configured CheckpointStore")
	}
	cp, err := e.store.Load(ctx, checkpointID)
	if err != nil {
		return nil, &CheckpointNotFoundError{CheckpointID: checkpointID}
	}
	execCtx := cp.restoreContext(resumeData)
	err = e.run(ctx, execCtx, cp.SuspendedAtNode)
	_ = e.store.Delete(ctx, checkpointID)
	return execCtx, err
}

// DryRun validates the config and component registry without invoking any
// component's Process (spec.md §6). It returns the ordered list of
// step/node identifiers the flow would visit on a first pass (for graph
// flows, the static topological order where one exists; cyclic graphs
// report their node id set instead since a precise visit order depends on
// runtime routing).
func (e *Engine) DryRun() ([]string, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	switch e.config.Type {
	case FlowSequential, FlowConditional:
		ids := make([]string, len(e.config.Steps))
		for i, s := range e.config.Steps {
			ids[i] = fmt.Sprintf("step:%d:%s", i, s.ComponentName)
		}
		return ids, nil
	case FlowGraph:
		order, _, err := topologicalOrder(e.config.Nodes, e.config.Edges)
		if err != nil {
			ids := make([]string, len(e.config.Nodes))
			for i, n := range e.config.Nodes {
				ids[i] = n.ID
			}
			return ids, nil
		}
		return order, nil
	default:
		return nil, &ConfigurationError{Issues: []string{fmt.Sprintf("unknown flow type %q", e.config.Type)}}
	}
}

func (e *Engine) run(ctx context.Context, execCtx *Context, resumeAt string) error {
	if e.metrics != nil {
		e.metrics.ExecutionStarted()
		defer e.metrics.ExecutionFinished()
	}
	var err error
	switch e.config.Type {
	case FlowSequential:
		err = e.runSequential(ctx, execCtx, resumeAt)
	case FlowConditional:
		err = e.runConditional(ctx, execCtx, resumeAt)
	case FlowGraph:
		err = e.runGraph(ctx, execCtx, resumeAt)
	default:
		err = &ConfigurationError{Issues: []string{fmt.Sprintf("unknown flow type %q", e.config.Type)}}
	}
	if err == nil {
		execCtx.Metadata.Finalize()
	}
	return err
}

// nodeOutcome is the result of running one component within a step/node.
type nodeOutcome int

const (
	outcomeOK nodeOutcome = iota
	outcomeSkipped
	outcomeSuspended
)

// runNode executes one component invocation (Setup/Process/Teardown under
// the configured TimeoutMode), applies the error policy, records metadata
// and metrics, and detects suspension. nodeID is the step index
// ("step:<n>") for sequential/conditional flows or the graph node id.
func (e *Engine) runNode(ctx context.Context, execCtx *Context, nodeID, componentName string, onError ErrorPolicy) (nodeOutcome, error) {
	comp, ok := e.components[componentName]
	if !ok {
		return outcomeOK, &ComponentError{NodeID: nodeID, ComponentName: componentName, Cause: fmt.Errorf("component not registered")}
	}

	execCtx.clearActivePort()
	guard := NewDeadlineGuard(e.config.Settings.TimeoutSeconds, e.config.Settings.RequireDeadlineCheck)

	e.hook.OnNodeStart(ctx, hook.NodeEvent{
		FlowID: execCtx.Metadata.FlowID, NodeID: nodeID, ComponentName: componentName,
	})
	start := time.Now()

	var err error
	switch e.config.Settings.TimeoutMode {
	case TimeoutHardAsync:
		err = runHardAsync(ctx, comp, execCtx, guard, componentName)
	case TimeoutHardProcess:
		err = runHardProcess(ctx, comp, execCtx, guard, componentName, e.componentConfigs[componentName], e.workerBinary, e.workerArgs)
	default:
		err = runCooperative(ctx, comp, execCtx, guard)
	}
	// hard_process isolates the component in a separate process, so the
	// guard here never observes its CheckDeadline calls; strict-mode
	// enforcement only applies to cooperative and hard_async.
	if err == nil && e.config.Settings.TimeoutMode != TimeoutHardProcess {
		err = guard.checkStrict(componentName, start)
	}
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.ObserveStep(string(e.config.Type), componentName, status, duration)
	execCtx.Metadata.RecordStepTiming(nodeIndexOf(nodeID), componentName, start, duration)

	if err != nil {
		wrapped := &ComponentError{NodeID: nodeID, ComponentName: componentName, Cause: err}
		e.hook.OnNodeError(ctx, hook.NodeEvent{
			FlowID: execCtx.Metadata.FlowID, NodeID: nodeID, ComponentName: componentName,
			Duration: duration, Err: wrapped,
		})
		execCtx.Metadata.RecordError(componentName, wrapped.Error(), fmt.Sprintf("%T", err))

		switch onError {
		case OnErrorSkip:
			execCtx.Metadata.MarkSkipped(componentName)
			e.hook.OnNodeSkipped(ctx, hook.NodeEvent{FlowID: execCtx.Metadata.FlowID, NodeID: nodeID, ComponentName: componentName})
			e.metrics.RecordSkipped(componentName, "on_error")
			e.metrics.RecordError(componentName, "skip")
			return outcomeSkipped, nil
		case OnErrorContinue:
			// Open Question 2 (SPEC_FULL.md §7): a continue-policy error still
			// counts as having run; any mutation the component made before
			// failing remains visible to downstream nodes.
			e.metrics.RecordError(componentName, "continue")
			return outcomeOK, nil
		default: // OnErrorFail, or unset (defaults to fail)
			e.metrics.RecordError(componentName, "fail")
			return outcomeOK, wrapped
		}
	}

	e.hook.OnNodeComplete(ctx, hook.NodeEvent{
		FlowID: execCtx.Metadata.FlowID, NodeID: nodeID, ComponentName: componentName, Duration: duration,
	})

	if suspendNodeID, reason, suspended := execCtx.suspensionRequested(); suspended {
		if err := e.suspend(ctx, execCtx, nodeID, suspendNodeID, reason); err != nil {
			return outcomeOK, err
		}
		return outcomeSuspended, nil
	}

	return outcomeOK, nil
}

func (e *Engine) suspend(ctx context.Context, execCtx *Context, nodeID, suspendNodeID, reason string) error {
	checkpointID := uuid.NewString()
	execCtx.Metadata.MarkSuspended(nodeID, reason, checkpointID)
	if e.store != nil {
		cp := newCheckpoint(checkpointID, nodeID, reason, execCtx)
		if err := e.store.Save(ctx, cp); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	e.hook.OnFlowSuspended(ctx, hook.SuspendEvent{
		FlowID: execCtx.Metadata.FlowID, NodeID: nodeID, CheckpointID: checkpointID, Reason: reason,
	})
	e.metrics.RecordSuspension(suspendNodeID)
	return nil
}

// nodeIndexOf extracts the leading integer from a "step:<n>[:name]" node
// id, or 0 for graph node ids (which carry no ordinal).
func nodeIndexOf(nodeID string) int {
	var n int
	if _, err := fmt.Sscanf(nodeID, "step:%d", &n); err == nil {
		return n
	}
	return 0
}

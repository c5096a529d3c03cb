package flow

import (
	"context"
	"errors"
	"testing"
)

func TestGraph_AcyclicRunsInTopologicalOrderAndMarksCompleted(t *testing.T) {
	a := newScriptedComponent(scriptedOutcome{set: map[string]Value{"order": "a"}})
	b := newScriptedComponent(scriptedOutcome{set: map[string]Value{"order": "b"}})
	c := newScriptedComponent(scriptedOutcome{set: map[string]Value{"order": "c"}})

	cfg := &Config{
		Type:     FlowGraph,
		Settings: DefaultSettings(),
		Nodes: []NodeConfig{
			{ID: "a", ComponentName: "a"},
			{ID: "b", ComponentName: "b"},
			{ID: "c", ComponentName: "c"},
		},
		Edges: []EdgeConfig{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil), WithComponent("c", c, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if !execCtx.Metadata.CompletedNodes[id] {
			t.Fatalf("expected node %q to be marked completed, got %v", id, execCtx.Metadata.CompletedNodes)
		}
	}
	if execCtx.Get("order") != "c" {
		t.Fatalf("expected the last node to run last, got %v", execCtx.Get("order"))
	}
}

func TestGraph_PortGatedEdgeOnlyFiresOnMatchingPort(t *testing.T) {
	router := newScriptedComponent(scriptedOutcome{port: "ok"})
	okBranch := newScriptedComponent(scriptedOutcome{set: map[string]Value{"ran": "ok"}})
	errBranch := newScriptedComponent(scriptedOutcome{set: map[string]Value{"ran": "error"}})

	cfg := &Config{
		Type:     FlowGraph,
		Settings: DefaultSettings(),
		Nodes: []NodeConfig{
			{ID: "router", ComponentName: "router"},
			{ID: "ok_branch", ComponentName: "ok_branch"},
			{ID: "err_branch", ComponentName: "err_branch"},
		},
		Edges: []EdgeConfig{
			{Source: "router", Target: "ok_branch", Port: "ok"},
			{Source: "router", Target: "err_branch", Port: "error"},
		},
	}
	e, err := New(cfg,
		WithComponent("router", router, nil),
		WithComponent("ok_branch", okBranch, nil),
		WithComponent("err_branch", errBranch, nil),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if okBranch.calls() != 1 {
		t.Fatalf("expected ok_branch to run once, got %d", okBranch.calls())
	}
	if errBranch.calls() != 0 {
		t.Fatalf("expected err_branch to never run, got %d", errBranch.calls())
	}
	if execCtx.Get("ran") != "ok" {
		t.Fatalf("expected ran=ok, got %v", execCtx.Get("ran"))
	}
}

func TestGraph_UnconditionalEdgeAlwaysFiresRegardlessOfPort(t *testing.T) {
	router := newScriptedComponent(scriptedOutcome{port: "ok"})
	always := newScriptedComponent(scriptedOutcome{set: map[string]Value{"ran": true}})

	cfg := &Config{
		Type:     FlowGraph,
		Settings: DefaultSettings(),
		Nodes: []NodeConfig{
			{ID: "router", ComponentName: "router"},
			{ID: "always", ComponentName: "always"},
		},
		Edges: []EdgeConfig{
			{Source: "router", Target: "always"},
		},
	}
	e, err := New(cfg, WithComponent("router", router, nil), WithComponent("always", always, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if execCtx.Get("ran") != true {
		t.Fatal("expected the unconditional edge to fire")
	}
}

func TestGraph_CyclicCapsIterationsAndFailsByDefault(t *testing.T) {
	loop := newScriptedComponent(scriptedOutcome{port: "again"})

	settings := DefaultSettings()
	settings.MaxIterations = 3
	cfg := &Config{
		Type:     FlowGraph,
		Settings: settings,
		Nodes: []NodeConfig{
			{ID: "loop", ComponentName: "loop"},
		},
		Edges: []EdgeConfig{
			{Source: "loop", Target: "loop", Port: "again"},
		},
	}
	e, err := New(cfg, WithComponent("loop", loop, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected a MaxIterationsError")
	}
	var maxIterErr *MaxIterationsError
	if !errors.As(err, &maxIterErr) {
		t.Fatalf("expected *MaxIterationsError, got %T: %v", err, err)
	}
}

func TestGraph_CyclicOnMaxIterationsExitStopsWithoutError(t *testing.T) {
	loop := newScriptedComponent(scriptedOutcome{port: "again"})

	settings := DefaultSettings()
	settings.MaxIterations = 3
	settings.OnMaxIterations = OnMaxIterExit
	cfg := &Config{
		Type:     FlowGraph,
		Settings: settings,
		Nodes: []NodeConfig{
			{ID: "loop", ComponentName: "loop"},
		},
		Edges: []EdgeConfig{
			{Source: "loop", Target: "loop", Port: "again"},
		},
	}
	e, err := New(cfg, WithComponent("loop", loop, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error with on_max_iterations=exit, got %v", err)
	}
	if !execCtx.Metadata.MaxIterationsHit {
		t.Fatal("expected MaxIterationsHit to be recorded")
	}
	if loop.calls() != 3 {
		t.Fatalf("expected exactly MaxIterations calls, got %d", loop.calls())
	}
}

func TestGraph_NodeMaxVisitsCapSkipsFurtherVisits(t *testing.T) {
	loop := newScriptedComponent(scriptedOutcome{port: "again"})

	settings := DefaultSettings()
	settings.MaxIterations = 50
	cfg := &Config{
		Type:     FlowGraph,
		Settings: settings,
		Nodes: []NodeConfig{
			{ID: "loop", ComponentName: "loop", MaxVisits: 2},
		},
		Edges: []EdgeConfig{
			{Source: "loop", Target: "loop", Port: "again"},
		},
	}
	e, err := New(cfg, WithComponent("loop", loop, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if loop.calls() != 2 {
		t.Fatalf("expected loop to run exactly MaxVisits times, got %d", loop.calls())
	}
	if len(execCtx.Metadata.SkippedComponents) == 0 {
		t.Fatal("expected the capped visit to be recorded as skipped")
	}
}

func TestGraph_CyclicWithOnlyBackEdgeEntryRunsAndCountsFullLaps(t *testing.T) {
	// a -> b is the only way into the cycle; b -> a (port "again") is the
	// back-edge that closes it. Neither node has any other incoming edge,
	// so a's only in-edge is the back-edge itself and b's only in-edge is
	// the unconditional a -> b — raw in-degree counts both nodes as non-roots.
	a := newScriptedComponent(scriptedOutcome{})
	b := newScriptedComponent(scriptedOutcome{port: "again"})

	settings := DefaultSettings()
	settings.MaxIterations = 3
	cfg := &Config{
		Type:     FlowGraph,
		Settings: settings,
		Nodes: []NodeConfig{
			{ID: "a", ComponentName: "a"},
			{ID: "b", ComponentName: "b"},
		},
		Edges: []EdgeConfig{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a", Port: "again"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected a MaxIterationsError")
	}
	var maxIterErr *MaxIterationsError
	if !errors.As(err, &maxIterErr) {
		t.Fatalf("expected *MaxIterationsError, got %T: %v", err, err)
	}
	// 3 max iterations means 3 full laps around the back-edge, not 3 node
	// executions: each lap runs both a and b once.
	if a.calls() != 3 || b.calls() != 3 {
		t.Fatalf("expected 3 full laps (a=3, b=3), got a=%d b=%d", a.calls(), b.calls())
	}
}

func TestGraph_DryRunAcyclicReturnsTopologicalOrder(t *testing.T) {
	a := newScriptedComponent()
	b := newScriptedComponent()

	cfg := &Config{
		Type:     FlowGraph,
		Settings: DefaultSettings(),
		Nodes: []NodeConfig{
			{ID: "b", ComponentName: "b"},
			{ID: "a", ComponentName: "a"},
		},
		Edges: []EdgeConfig{
			{Source: "a", Target: "b"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	order, err := e.DryRun()
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected topological order [a b], got %v", order)
	}
	if a.calls() != 0 || b.calls() != 0 {
		t.Fatal("DryRun must never invoke a component's Process")
	}
}

func TestGraph_DryRunCyclicFallsBackToNodeSet(t *testing.T) {
	loop := newScriptedComponent()

	cfg := &Config{
		Type:     FlowGraph,
		Settings: DefaultSettings(),
		Nodes: []NodeConfig{
			{ID: "loop", ComponentName: "loop"},
		},
		Edges: []EdgeConfig{
			{Source: "loop", Target: "loop", Port: "again"},
		},
	}
	e, err := New(cfg, WithComponent("loop", loop, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	order, err := e.DryRun()
	if err != nil {
		t.Fatalf("DryRun: %v", err)
	}
	if len(order) != 1 || order[0] != "loop" {
		t.Fatalf("expected the bare node set [loop], got %v", order)
	}
}

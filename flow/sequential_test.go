package flow

import (
	"context"
	"errors"
	"testing"
)

func TestSequential_RunsEveryStepInOrder(t *testing.T) {
	a := newScriptedComponent(scriptedOutcome{set: map[string]Value{"a": true}})
	b := newScriptedComponent(scriptedOutcome{set: map[string]Value{"b": true}})

	cfg := &Config{
		Type:     FlowSequential,
		Settings: DefaultSettings(),
		Steps: []StepConfig{
			{ComponentName: "a"},
			{ComponentName: "b"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if execCtx.Get("a") != true || execCtx.Get("b") != true {
		t.Fatalf("expected both steps to run, got Data=%v", execCtx.Data)
	}
	if !execCtx.Metadata.CompletedNodes["step:0"] || !execCtx.Metadata.CompletedNodes["step:1"] {
		t.Fatalf("expected step:0 and step:1 marked completed, got %v", execCtx.Metadata.CompletedNodes)
	}
}

func TestSequential_FailFastStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := newScriptedComponent(scriptedOutcome{err: boom})
	b := newScriptedComponent(scriptedOutcome{set: map[string]Value{"b": true}})

	cfg := &Config{
		Type:     FlowSequential,
		Settings: DefaultSettings(), // FailFast: true
		Steps: []StepConfig{
			{ComponentName: "a"},
			{ComponentName: "b"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if b.calls() != 0 {
		t.Fatalf("expected step b to never run, got %d calls", b.calls())
	}
}

func TestSequential_NoFailFastRunsEveryStepAndReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := newScriptedComponent(scriptedOutcome{err: boom})
	b := newScriptedComponent(scriptedOutcome{set: map[string]Value{"b": true}})

	settings := DefaultSettings()
	settings.FailFast = false
	cfg := &Config{
		Type:     FlowSequential,
		Settings: settings,
		Steps: []StepConfig{
			{ComponentName: "a"},
			{ComponentName: "b"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected the first error to be returned")
	}
	if b.calls() != 1 {
		t.Fatalf("expected step b to still run, got %d calls", b.calls())
	}
	if execCtx.Get("b") != true {
		t.Fatal("expected step b's mutation to be visible")
	}
}

func TestSequential_OnErrorSkipContinuesWithoutPropagating(t *testing.T) {
	boom := errors.New("boom")
	a := newScriptedComponent(scriptedOutcome{err: boom})
	b := newScriptedComponent(scriptedOutcome{set: map[string]Value{"b": true}})

	cfg := &Config{
		Type:     FlowSequential,
		Settings: DefaultSettings(),
		Steps: []StepConfig{
			{ComponentName: "a", OnError: OnErrorSkip},
			{ComponentName: "b"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(execCtx.Metadata.SkippedComponents) != 1 || execCtx.Metadata.SkippedComponents[0] != "a" {
		t.Fatalf("expected component a recorded as skipped, got %v", execCtx.Metadata.SkippedComponents)
	}
	if execCtx.Metadata.CompletedNodes["step:0"] {
		t.Fatal("a skipped step must not be marked completed")
	}
}

func TestSequential_SuspendStopsExecutionAndSavesCheckpoint(t *testing.T) {
	a := newScriptedComponent(scriptedOutcome{suspend: true})
	b := newScriptedComponent(scriptedOutcome{set: map[string]Value{"b": true}})

	store := newFakeStore()
	cfg := &Config{
		Type:     FlowSequential,
		Settings: DefaultSettings(),
		Steps: []StepConfig{
			{ComponentName: "a"},
			{ComponentName: "b"},
		},
	}
	e, err := New(cfg, WithComponent("a", a, nil), WithComponent("b", b, nil), WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	execCtx, err := e.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !execCtx.Metadata.Suspended {
		t.Fatal("expected Metadata.Suspended to be true")
	}
	if b.calls() != 0 {
		t.Fatal("expected execution to stop before step b")
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one checkpoint saved, got %d", len(store.saved))
	}
}

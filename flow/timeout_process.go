package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// runHardProcess isolates one component invocation in a re-exec'd
// subprocess (spec.md §4.2 hard_process mode): if the process is still
// running when the deadline passes, exec.CommandContext kills it outright —
// unlike hard_async, this mode can actually stop a runaway component, at
// the cost of a fresh process per call and no access to in-memory
// dependencies the component's Init closed over.
//
// The subprocess is workerBinary (workerArgs..., WorkerModeFlag), and
// speaks the WorkerRequest/WorkerResponse JSON protocol over stdin/stdout
// (flow/worker.go). workerBinary defaults to the currently running
// executable (os.Args[0]) when empty.
func runHardProcess(ctx context.Context, comp Component, fctx *Context, guard *DeadlineGuard, componentName string, initConfig map[string]Value, workerBinary string, workerArgs []string) error {
	// comp.Process itself never runs here — the subprocess re-resolves the
	// component by name from its own registry and runs it there. Teardown
	// still runs on comp, in this process, against the authoritative fctx,
	// on every exit path: success, worker error, and timeout alike.
	if workerBinary == "" {
		workerBinary = os.Args[0]
	}

	procCtx := ctx
	if budget := guard.Budget(); budget > 0 {
		var cancel context.CancelFunc
		procCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	req := WorkerRequest{
		ComponentName: componentName,
		InitConfig:    initConfig,
		Data:          fctx.Data,
		Input:         fctx.Input,
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		_ = comp.Teardown(fctx)
		return fmt.Errorf("marshal worker request: %w", err)
	}

	args := append(append([]string{}, workerArgs...), WorkerModeFlag)
	cmd := exec.CommandContext(procCtx, workerBinary, args...)
	cmd.Stdin = bytes.NewReader(reqBytes)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if procCtx.Err() == context.DeadlineExceeded {
		_ = comp.Teardown(fctx)
		return &TimeoutError{Elapsed: guard.Elapsed(), Budget: guard.Budget()}
	}
	if runErr != nil {
		_ = comp.Teardown(fctx)
		return fmt.Errorf("worker process for %s: %w (stderr: %s)", componentName, runErr, stderr.String())
	}

	var resp WorkerResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		_ = comp.Teardown(fctx)
		return fmt.Errorf("decode worker response for %s: %w", componentName, err)
	}
	if resp.Error != "" {
		_ = comp.Teardown(fctx)
		return errors.New(resp.Error)
	}

	fctx.Data = resp.Data
	fctx.ActivePort = resp.ActivePort
	return comp.Teardown(fctx)
}

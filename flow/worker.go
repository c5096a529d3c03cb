package flow

import (
	"context"
	"encoding/json"
	"io"
)

// WorkerModeFlag, when present in os.Args, signals that the current process
// invocation is a hard_process re-exec rather than a normal engine run. A
// host program's main() should check for it and call RunWorkerMain instead
// of its usual startup path.
const WorkerModeFlag = "--flow-worker"

// WorkerRequest is the JSON payload written to the worker subprocess's
// stdin by runHardProcess.
type WorkerRequest struct {
	ComponentName string           `json:"component_name"`
	InitConfig    map[string]Value `json:"init_config"`
	Data          map[string]Value `json:"data"`
	Input         Value            `json:"input"`
}

// WorkerResponse is the JSON payload the worker subprocess writes to stdout
// before exiting. Error is non-empty exactly when the component failed;
// Data/ActivePort are only meaningful when Error is empty.
type WorkerResponse struct {
	Data       map[string]Value `json:"data"`
	ActivePort string           `json:"active_port,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// RunWorkerMain is the hard_process re-exec entrypoint (spec.md §4.2,
// SPEC_FULL.md §7). It decodes exactly one WorkerRequest from r, runs the
// named component's full Setup/Process/Teardown lifecycle against a fresh,
// freshly-Init'd instance from registry, and writes exactly one
// WorkerResponse to w. It never calls os.Exit — the caller's main decides
// the process exit code.
func RunWorkerMain(registry map[string]Component, r io.Reader, w io.Writer) {
	var req WorkerRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		writeWorkerResponse(w, WorkerResponse{Error: "decode worker request: " + err.Error()})
		return
	}

	comp, ok := registry[req.ComponentName]
	if !ok {
		writeWorkerResponse(w, WorkerResponse{Error: "unknown component " + req.ComponentName})
		return
	}
	if err := comp.Init(req.InitConfig); err != nil {
		writeWorkerResponse(w, WorkerResponse{Error: "init: " + err.Error()})
		return
	}

	data := req.Data
	if data == nil {
		data = make(map[string]Value)
	}
	fctx := &Context{Data: data, Input: req.Input, Metadata: NewMetadata()}

	if err := comp.Setup(fctx); err != nil {
		_ = comp.Teardown(fctx)
		writeWorkerResponse(w, WorkerResponse{Error: "setup: " + err.Error()})
		return
	}
	procErr := comp.Process(context.Background(), fctx)
	tdErr := comp.Teardown(fctx)
	if procErr != nil {
		writeWorkerResponse(w, WorkerResponse{Error: procErr.Error()})
		return
	}
	if tdErr != nil {
		writeWorkerResponse(w, WorkerResponse{Error: "teardown: " + tdErr.Error()})
		return
	}

	writeWorkerResponse(w, WorkerResponse{Data: fctx.Data, ActivePort: fctx.ActivePort})
}

func writeWorkerResponse(w io.Writer, resp WorkerResponse) {
	_ = json.NewEncoder(w).Encode(resp)
}

// IsWorkerInvocation reports whether args (typically os.Args[1:]) requests
// hard_process worker mode.
func IsWorkerInvocation(args []string) bool {
	for _, a := range args {
		if a == WorkerModeFlag {
			return true
		}
	}
	return false
}

package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogHook writes structured lifecycle events to a writer, grounded on the
// teacher's LogEmitter: text mode (human-readable key=value pairs) or JSON
// mode (one event per line).
type LogHook struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogHook creates a LogHook writing to w (os.Stdout if nil).
func NewLogHook(w io.Writer, jsonMode bool) *LogHook {
	if w == nil {
		w = os.Stdout
	}
	return &LogHook{writer: w, jsonMode: jsonMode}
}

func (l *LogHook) OnNodeStart(_ context.Context, e NodeEvent) {
	l.write("node_start", e, nil)
}

func (l *LogHook) OnNodeComplete(_ context.Context, e NodeEvent) {
	l.write("node_complete", e, nil)
}

func (l *LogHook) OnNodeError(_ context.Context, e NodeEvent) {
	l.write("node_error", e, nil)
}

func (l *LogHook) OnNodeSkipped(_ context.Context, e NodeEvent) {
	l.write("node_skipped", e, nil)
}

func (l *LogHook) OnFlowSuspended(_ context.Context, e SuspendEvent) {
	l.write("flow_suspended", NodeEvent{FlowID: e.FlowID, NodeID: e.NodeID}, map[string]any{
		"checkpoint_id": e.CheckpointID,
		"reason":        e.Reason,
	})
}

func (l *LogHook) write(msg string, e NodeEvent, extra map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		record := map[string]any{
			"msg":         msg,
			"flow_id":     e.FlowID,
			"node_id":     e.NodeID,
			"component":   e.ComponentName,
			"step":        e.Step,
			"duration_ms": e.Duration.Milliseconds(),
		}
		if e.Err != nil {
			record["error"] = e.Err.Error()
		}
		for k, v := range extra {
			record[k] = v
		}
		b, err := json.Marshal(record)
		if err != nil {
			return
		}
		fmt.Fprintln(l.writer, string(b))
		return
	}

	line := fmt.Sprintf("[%s] flow_id=%s node_id=%s component=%s step=%d duration=%s",
		msg, e.FlowID, e.NodeID, e.ComponentName, e.Step, e.Duration)
	if e.Err != nil {
		line += fmt.Sprintf(" error=%q", e.Err.Error())
	}
	for k, v := range extra {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	fmt.Fprintln(l.writer, line)
}

package flow

import (
	"context"
	"time"
)

// CheckpointStore is the persistence boundary Engine needs for suspend and
// Resume (spec.md §4.6). It is declared here, rather than imported from
// flow/store, so that flow/store (which itself imports flow for the
// Checkpoint type) can depend on this package without an import cycle;
// flow/store's MemStore/SQLiteStore/MySQLStore satisfy this interface
// structurally with no adapter.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)
	Delete(ctx context.Context, checkpointID string) error
}

// Checkpoint is a durable snapshot of one suspended Context, enabling
// Resume to pick an execution back up later (spec.md §4.6, §6 persisted
// state layout). Unlike the teacher's per-step Checkpoint[S]/CheckpointV2[S]
// (one row per execution step, carrying a scheduler frontier and replay
// log), a flow keeps at most one live checkpoint at a time: the single
// snapshot taken when a component calls Context.Suspend.
type Checkpoint struct {
	// CheckpointID uniquely identifies this checkpoint; generated with
	// google/uuid at suspension time.
	CheckpointID string `json:"checkpoint_id"`

	// FlowID is the Metadata.FlowID of the suspended execution.
	FlowID string `json:"flow_id"`

	// SuspendedAtNode is the step index (sequential/conditional flows,
	// formatted as "step:<n>") or node id (graph flows) the flow suspended
	// at. Resume re-executes this node.
	SuspendedAtNode string `json:"suspended_at_node"`

	// Reason is the caller-supplied suspension reason from Context.Suspend.
	Reason string `json:"reason"`

	// Data is a deep copy of Context.Data at the moment of suspension.
	Data map[string]Value `json:"data"`

	// Metadata is a deep copy of the Context's Metadata at suspension time.
	Metadata *Metadata `json:"metadata"`

	// CreatedAt records when the checkpoint was taken.
	CreatedAt time.Time `json:"created_at"`
}

// newCheckpoint snapshots ctx into a Checkpoint for the given node/step
// identifier and reason. It deep-copies Data and Metadata so later
// mutation of ctx never reaches back into the stored checkpoint.
func newCheckpoint(checkpointID, suspendedAtNode, reason string, ctx *Context) *Checkpoint {
	clone := ctx.clone()
	return &Checkpoint{
		CheckpointID:    checkpointID,
		FlowID:          ctx.Metadata.FlowID,
		SuspendedAtNode: suspendedAtNode,
		Reason:          reason,
		Data:            clone.Data,
		Metadata:        clone.Metadata,
		CreatedAt:       time.Now(),
	}
}

// restoreContext builds the Context a Resume call continues from: Data and
// Metadata come back from the checkpoint as copies, with the suspension
// fields (Suspended, SuspendedAtNode, SuspensionReason, CheckpointID)
// cleared and resumeData written
// into Data under the well-known resume_data key so the suspended node's
// next Process call can retrieve it via Context.ResumeData.
func (c *Checkpoint) restoreContext(resumeData Value) *Context {
	metaCopy := *c.Metadata
	metaCopy.StepTimings = append([]StepTiming(nil), c.Metadata.StepTimings...)
	metaCopy.SkippedComponents = append([]string(nil), c.Metadata.SkippedComponents...)
	metaCopy.Errors = append([]ErrorRecord(nil), c.Metadata.Errors...)
	metaCopy.ConditionErrors = append([]ConditionErrorRecord(nil), c.Metadata.ConditionErrors...)
	metaCopy.CompletedNodes = copyBoolMap(c.Metadata.CompletedNodes)
	metaCopy.NodeVisitCounts = copyIntMap(c.Metadata.NodeVisitCounts)
	metaCopy.Suspended = false
	metaCopy.SuspendedAtNode = ""
	metaCopy.SuspensionReason = ""
	metaCopy.CheckpointID = ""

	ctx := &Context{
		Data:     deepCopyMap(c.Data),
		Metadata: &metaCopy,
	}
	if resumeData != nil {
		ctx.Set(resumeDataKey, resumeData)
	}
	return ctx
}

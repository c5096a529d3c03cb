package flow

import (
	"time"

	"github.com/google/uuid"
)

// StepTiming records one executed step's timing and provenance.
type StepTiming struct {
	StepIndex     int           `json:"step_index"`
	ComponentName string        `json:"component_name"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Order         int           `json:"order"`
}

// ErrorRecord captures a single component-level error.
type ErrorRecord struct {
	Component string    `json:"component"`
	Message   string    `json:"message"`
	ErrorType string    `json:"error_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ConditionErrorRecord captures a single condition-evaluation failure.
type ConditionErrorRecord struct {
	Component string `json:"component"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
}

// Metadata is the per-execution telemetry record described in spec.md §3.
//
// Invariant: StartedAt <= every StepTimings[i].StartedAt <= CompletedAt once
// CompletedAt is set. CompletedNodes and the keys of NodeVisitCounts are
// disjoint from each other only for DAG execution: cycle participants
// appear in NodeVisitCounts but never in CompletedNodes, since they never
// terminate in the classic sense while the cycle is live.
type Metadata struct {
	FlowID      string     `json:"flow_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	StepTimings       []StepTiming           `json:"step_timings"`
	SkippedComponents []string               `json:"skipped_components"`
	Errors            []ErrorRecord          `json:"errors"`
	ConditionErrors   []ConditionErrorRecord `json:"condition_errors"`

	CompletedNodes   map[string]bool `json:"completed_nodes"`
	NodeVisitCounts  map[string]int  `json:"node_visit_counts"`
	IterationCount   int             `json:"iteration_count"`
	MaxIterationsHit bool            `json:"max_iterations_reached"`

	Suspended        bool   `json:"suspended"`
	SuspendedAtNode  string `json:"suspended_at_node,omitempty"`
	SuspensionReason string `json:"suspension_reason,omitempty"`
	CheckpointID     string `json:"checkpoint_id,omitempty"`

	nextOrder int
}

// NewMetadata creates a fresh Metadata record with a newly generated FlowID
// and StartedAt set to now.
func NewMetadata() *Metadata {
	return &Metadata{
		FlowID:            uuid.NewString(),
		StartedAt:         time.Now(),
		StepTimings:       make([]StepTiming, 0),
		SkippedComponents: make([]string, 0),
		Errors:            make([]ErrorRecord, 0),
		ConditionErrors:   make([]ConditionErrorRecord, 0),
		CompletedNodes:    make(map[string]bool),
		NodeVisitCounts:   make(map[string]int),
	}
}

// RecordStepTiming appends a step timing entry, assigning it the next
// monotonically increasing execution-order counter.
func (m *Metadata) RecordStepTiming(stepIndex int, componentName string, startedAt time.Time, duration time.Duration) {
	m.StepTimings = append(m.StepTimings, StepTiming{
		StepIndex:     stepIndex,
		ComponentName: componentName,
		StartedAt:     startedAt,
		Duration:      duration,
		Order:         m.nextOrder,
	})
	m.nextOrder++
}

// MarkSkipped records a component name as skipped (condition false, policy
// skip, or unreachable in a graph).
func (m *Metadata) MarkSkipped(componentName string) {
	m.SkippedComponents = append(m.SkippedComponents, componentName)
}

// RecordError appends a component error.
func (m *Metadata) RecordError(component, message, errorType string) {
	m.Errors = append(m.Errors, ErrorRecord{
		Component: component,
		Message:   message,
		ErrorType: errorType,
		Timestamp: time.Now(),
	})
}

// RecordConditionError appends a condition evaluation failure.
func (m *Metadata) RecordConditionError(component, condition, message string) {
	m.ConditionErrors = append(m.ConditionErrors, ConditionErrorRecord{
		Component: component,
		Condition: condition,
		Message:   message,
	})
}

// MarkCompleted records a node as having terminated normally. Cycle
// participants that are still inside a live cycle must not be passed here;
// only terminal and non-cycle nodes belong in CompletedNodes.
func (m *Metadata) MarkCompleted(nodeID string) {
	m.CompletedNodes[nodeID] = true
}

// IncrementVisit bumps the visit counter for a graph node and returns the
// new count.
func (m *Metadata) IncrementVisit(nodeID string) int {
	m.NodeVisitCounts[nodeID]++
	return m.NodeVisitCounts[nodeID]
}

// Finalize sets CompletedAt to now. Idempotent after the first call.
func (m *Metadata) Finalize() {
	if m.CompletedAt != nil {
		return
	}
	now := time.Now()
	m.CompletedAt = &now
}

// MarkSuspended records suspension state on the metadata.
func (m *Metadata) MarkSuspended(nodeID, reason, checkpointID string) {
	m.Suspended = true
	m.SuspendedAtNode = nodeID
	m.SuspensionReason = reason
	m.CheckpointID = checkpointID
}

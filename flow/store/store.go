// Package store provides checkpoint persistence for suspended flow
// executions (spec.md §4.6). Unlike the teacher's Store[S] (a generic,
// per-step, replay-capable state log), a flow has at most one live
// checkpoint per suspended execution, so the interface here is a plain
// keyed snapshot store: Save, Load, Delete.
package store

import (
	"errors"

	"github.com/arrowrift/flowengine/flow"
)

// ErrNotFound is returned when a requested checkpoint id does not exist.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists and retrieves flow.Checkpoint snapshots by checkpoint id.
// It is an alias of flow.CheckpointStore (declared there to avoid an
// import cycle, since this package must import flow for the Checkpoint
// type) so callers can spell it either way.
//
// Implementations:
//   - MemStore: in-process map, for tests and single-process flows.
//   - SQLiteStore: single-file embedded persistence.
//   - MySQLStore: shared, multi-process persistence.
type Store = flow.CheckpointStore

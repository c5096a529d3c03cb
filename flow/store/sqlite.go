package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arrowrift/flowengine/flow"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file, embedded checkpoint store. Designed for
// development and single-process deployments that still want checkpoints
// to survive a restart, without standing up a database server.
//
// Schema: one table, flow_checkpoints, keyed by checkpoint_id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures the checkpoint table exists. path may be ":memory:" for an
// ephemeral database useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite allows one writer at a time

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS flow_checkpoints (
	checkpoint_id     TEXT PRIMARY KEY,
	flow_id           TEXT NOT NULL,
	suspended_at_node TEXT NOT NULL,
	reason            TEXT NOT NULL,
	data_json         TEXT NOT NULL,
	metadata_json     TEXT NOT NULL,
	created_at        TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(ctx context.Context, cp *flow.Checkpoint) error {
	dataJSON, err := json.Marshal(cp.Data)
	if err != nil {
		return fmt.Errorf("marshal checkpoint data: %w", err)
	}
	metaJSON, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("marshal checkpoint metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO flow_checkpoints (checkpoint_id, flow_id, suspended_at_node, reason, data_json, metadata_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(checkpoint_id) DO UPDATE SET
	flow_id = excluded.flow_id,
	suspended_at_node = excluded.suspended_at_node,
	reason = excluded.reason,
	data_json = excluded.data_json,
	metadata_json = excluded.metadata_json,
	created_at = excluded.created_at`,
		cp.CheckpointID, cp.FlowID, cp.SuspendedAtNode, cp.Reason, string(dataJSON), string(metaJSON), cp.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, checkpointID string) (*flow.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT flow_id, suspended_at_node, reason, data_json, metadata_json, created_at
FROM flow_checkpoints WHERE checkpoint_id = ?`, checkpointID)

	var (
		flowID, suspendedAt, reason, dataJSON, metaJSON, createdAtStr string
	)
	if err := row.Scan(&flowID, &suspendedAt, &reason, &dataJSON, &metaJSON, &createdAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp := &flow.Checkpoint{
		CheckpointID:    checkpointID,
		FlowID:          flowID,
		SuspendedAtNode: suspendedAt,
		Reason:          reason,
	}
	if err := json.Unmarshal([]byte(dataJSON), &cp.Data); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint data: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &cp.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint metadata: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	cp.CreatedAt = createdAt
	return cp, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE checkpoint_id = ?`, checkpointID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

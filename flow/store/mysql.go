package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arrowrift/flowengine/flow"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a shared checkpoint store for deployments running the
// engine across more than one process: a suspended flow checkpointed by
// one process can be resumed by another.
//
// Schema: one table, flow_checkpoints, keyed by checkpoint_id.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection (DSN per go-sql-driver/mysql's
// format, e.g. "user:pass@tcp(127.0.0.1:3306)/dbname?parseTime=true") and
// ensures the checkpoint table exists.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS flow_checkpoints (
	checkpoint_id     VARCHAR(64) PRIMARY KEY,
	flow_id           VARCHAR(64) NOT NULL,
	suspended_at_node VARCHAR(255) NOT NULL,
	reason            TEXT NOT NULL,
	data_json         LONGTEXT NOT NULL,
	metadata_json     LONGTEXT NOT NULL,
	created_at        DATETIME(6) NOT NULL
) ENGINE=InnoDB`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) Save(ctx context.Context, cp *flow.Checkpoint) error {
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
ON DUPLICATE KEY UPDATE
	flow_id = VALUES(flow_id),
	suspended_at_node = VALUES(suspended_at_node),
	reason = VALUES(reason),
	data_json = VALUES(data_json),
	metadata_json = VALUES(metadata_json),
	created_at = VALUES(created_at)`,
		cp.CheckpointID, cp.FlowID, cp.SuspendedAtNode, cp.Reason, string(dataJSON), string(metaJSON), cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *MySQLStore) Load(ctx context.Context, checkpointID string) (*flow.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT flow_id, suspended_at_node, reason, data_json, metadata_json, created_at
FROM flow_checkpoints WHERE checkpoint_id = ?`, checkpointID)

	var (
		flowID, suspendedAt, reason, dataJSON, metaJSON string
		createdAt                                       time.Time
	)
	if err := row.Scan(&flowID, &suspendedAt, &reason, &dataJSON, &metaJSON, &createdAt); err != nil {
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
		CreatedAt:       createdAt,
	}
	if err := json.Unmarshal([]byte(dataJSON), &cp.Data); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint data: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &cp.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint metadata: %w", err)
	}
	return cp, nil
}

func (s *MySQLStore) Delete(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE checkpoint_id = ?`, checkpointID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/arrowrift/flowengine/flow"
	"github.com/arrowrift/flowengine/flow/store"
)

// testMySQLDSN returns the DSN configured for live integration testing, or
// "" if none is set. Set TEST_MYSQL_DSN (e.g.
// "user:pass@tcp(127.0.0.1:3306)/flowengine_test?parseTime=true") to run
// these against a real server; there is no in-process MySQL to fall back
// to the way SQLiteStore falls back to ":memory:".
func testMySQLDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("skipping: TEST_MYSQL_DSN not set")
	}
	return dsn
}

func TestMySQLStore_SaveLoadDelete(t *testing.T) {
	dsn := testMySQLDSN(t)
	ctx := context.Background()

	st, err := store.NewMySQLStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	defer st.Close()

	id := "cp-mysql-" + time.Now().Format("20060102150405.000000")
	cp := &flow.Checkpoint{
		CheckpointID:    id,
		FlowID:          "flow-1",
		SuspendedAtNode: "node-a",
		Reason:          "waiting_for_approval",
		Data:            map[string]flow.Value{"count": float64(7)},
		Metadata:        flow.NewMetadata(),
		CreatedAt:       time.Now(),
	}

	if err := st.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := st.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.FlowID != "flow-1" {
		t.Fatalf("expected the saved checkpoint back, got %+v", loaded)
	}

	if err := st.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Load(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMySQLStore_LoadUnknownCheckpointFails(t *testing.T) {
	dsn := testMySQLDSN(t)
	ctx := context.Background()

	st, err := store.NewMySQLStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	defer st.Close()

	if _, err := st.Load(ctx, "nonexistent-"+time.Now().Format("20060102150405.000000")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQLStore_InvalidDSNFailsToOpen(t *testing.T) {
	testMySQLDSN(t) // only run alongside the rest of the suite
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := store.NewMySQLStore(ctx, "bad:dsn@@@"); err == nil {
		t.Fatal("expected an invalid DSN to fail")
	}
}

func TestMySQLStore_InterfaceCompliance(t *testing.T) {
	var _ store.Store = (*store.MySQLStore)(nil)
}

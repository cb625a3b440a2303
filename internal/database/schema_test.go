package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExecer struct {
	stmts []string
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	return pgconn.CommandTag{}, f.err
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeExecer{}
	if err := EnsureSchema(context.Background(), db, false); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.stmts) != 1 {
		t.Fatalf("statements = %d, want 1", len(db.stmts))
	}
	if !strings.Contains(db.stmts[0], "CREATE TABLE IF NOT EXISTS candles") {
		t.Errorf("statement = %q, want candles table", db.stmts[0])
	}

	db = &fakeExecer{}
	if err := EnsureSchema(context.Background(), db, true); err != nil {
		t.Fatalf("EnsureSchema(hypertable) error = %v", err)
	}
	if len(db.stmts) != 2 || !strings.Contains(db.stmts[1], "create_hypertable") {
		t.Errorf("statements = %q, want table then hypertable", db.stmts)
	}
}

func TestEnsureSchema_Error(t *testing.T) {
	boom := errors.New("boom")
	err := EnsureSchema(context.Background(), &fakeExecer{err: boom}, true)
	if !errors.Is(err, boom) {
		t.Errorf("EnsureSchema() error = %v, want wrapped boom", err)
	}
}

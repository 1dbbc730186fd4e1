package service_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/db"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
	"github.com/yazinsai/cal-ai/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, loc *time.Location) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calai.db")
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store.New(store.NewSQLiteKV(sqldb), loc, discardLogger())
}

func newMemoryStore(loc *time.Location) *store.Store {
	return store.New(store.NewMemoryKV(), loc, discardLogger())
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("zoneinfo %s unavailable: %v", name, err)
	}
	return loc
}

func mustAppend(t *testing.T, st *store.Store, clk clock.Clock, in service.CreateEntryInput) model.FoodEntry {
	t.Helper()
	e, err := service.AppendEntry(st, clk, in)
	if err != nil {
		t.Fatalf("append %q: %v", in.Name, err)
	}
	return e
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

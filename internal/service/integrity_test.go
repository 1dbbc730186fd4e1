package service_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
	"github.com/yazinsai/cal-ai/internal/store"
)

func TestBackupCreateListRestore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "calai.db")
	content := bytes.Repeat([]byte("calai-ledger-"), 512)
	if err := os.WriteFile(dbPath, content, 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}
	backupDir := filepath.Join(dir, "backups")

	plain, err := service.CreateBackup(dbPath, filepath.Join(backupDir, "plain.db"), false)
	if err != nil {
		t.Fatalf("plain backup: %v", err)
	}
	packed, err := service.CreateBackup(dbPath, filepath.Join(backupDir, "packed.db"), true)
	if err != nil {
		t.Fatalf("compressed backup: %v", err)
	}
	if !strings.HasSuffix(packed.Path, ".db.xz") || packed.SizeBytes >= plain.SizeBytes {
		t.Fatalf("expected smaller .xz backup, got %+v vs %+v", packed, plain)
	}

	list, err := service.ListBackups(backupDir)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 backups, got %+v %v", list, err)
	}
	for _, b := range list {
		if b.Checksum == "" {
			t.Fatalf("expected checksum sidecar for %s", b.Path)
		}
	}

	for _, b := range []service.BackupInfo{plain, packed} {
		target := filepath.Join(dir, "restored-"+filepath.Base(b.Path)+".db")
		if err := service.RestoreBackup(b.Path, target, false); err != nil {
			t.Fatalf("restore %s: %v", b.Path, err)
		}
		got, err := os.ReadFile(target)
		if err != nil || !bytes.Equal(got, content) {
			t.Fatalf("restored content mismatch for %s", b.Path)
		}
		if err := service.RestoreBackup(b.Path, target, false); err == nil {
			t.Fatalf("expected restore over existing db to need force")
		}
	}
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "calai.db")
	if err := os.WriteFile(dbPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("write db: %v", err)
	}
	b, err := service.CreateBackup(dbPath, filepath.Join(dir, "b.db"), false)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := os.WriteFile(b.Path, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := service.RestoreBackup(b.Path, filepath.Join(dir, "out.db"), true); err == nil {
		t.Fatalf("expected checksum mismatch")
	}
}

func TestListBackupsMissingDir(t *testing.T) {
	t.Parallel()
	list, err := service.ListBackups(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %+v %v", list, err)
	}
}

func TestDoctorFindsAndFixesProblems(t *testing.T) {
	t.Parallel()
	kv := store.NewMemoryKV()
	st := store.New(kv, time.UTC, discardLogger())

	at := func(day, hour int) time.Time { return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC) }
	if err := st.PutLedger("2026-03-04", []model.FoodEntry{
		{ID: "a", Name: "Eggs", Calories: 150, Timestamp: at(4, 8)},
		{ID: "b", Name: "Late pizza", Calories: 600, Timestamp: at(5, 1)},
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	if err := st.PutLedger("2026-03-05", []model.FoodEntry{
		{ID: "a", Name: "Eggs", Calories: 150, Timestamp: at(5, 8)},
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	_ = kv.Set("ledger/2026-03-06", `[{"id":"c","name":"Tea","calories":2,"protein":0,"carbs":0,"fat":0,"sugar":0,"timestamp":"2026-03-06T09:00:00Z"}]`)
	_ = kv.Set("singleton/profile", `{{{`)
	_ = kv.Set("ledger/someday", `[]`)

	report, err := service.RunDoctor(st, false)
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if len(report.MalformedRecords) != 2 || report.LegacyRecords != 1 || report.MisfiledEntries != 1 || report.DuplicateEntryIDs != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Healthy() {
		t.Fatalf("report should not be healthy")
	}

	report, err = service.RunDoctor(st, true)
	if err != nil {
		t.Fatalf("doctor fix: %v", err)
	}
	if report.UpgradedRecords != 1 || report.DeletedRecords != 2 || report.MovedEntries != 1 || report.DroppedDuplicates != 1 {
		t.Fatalf("unexpected fix report %+v", report)
	}

	again, err := service.RunDoctor(st, false)
	if err != nil || !again.Healthy() {
		t.Fatalf("expected healthy store after fix, got %+v %v", again, err)
	}
	mar5, _ := st.Ledger("2026-03-05")
	if len(mar5) != 1 || mar5[0].ID != "b" {
		t.Fatalf("expected only the moved entry on 2026-03-05, got %+v", mar5)
	}
}

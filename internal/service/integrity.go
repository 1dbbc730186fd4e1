package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const compressedSuffix = ".xz"

type BackupInfo struct {
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
}

type DoctorReport struct {
	MalformedRecords  []string `json:"malformed_records,omitempty"`
	LegacyRecords     int      `json:"legacy_records"`
	MisfiledEntries   int      `json:"misfiled_entries"`
	DuplicateEntryIDs int      `json:"duplicate_entry_ids"`
	UpgradedRecords   int      `json:"upgraded_records,omitempty"`
	DeletedRecords    int      `json:"deleted_records,omitempty"`
	MovedEntries      int      `json:"moved_entries,omitempty"`
	DroppedDuplicates int      `json:"dropped_duplicates,omitempty"`
}

func (r DoctorReport) Healthy() bool {
	return len(r.MalformedRecords) == 0 && r.LegacyRecords == 0 && r.MisfiledEntries == 0 && r.DuplicateEntryIDs == 0
}

// CreateBackup copies the sqlite file at dbPath to outPath, xz-compressing
// it when compress is set, and writes a .sha256 sidecar of the output.
func CreateBackup(dbPath, outPath string, compress bool) (BackupInfo, error) {
	if strings.TrimSpace(dbPath) == "" {
		return BackupInfo{}, fmt.Errorf("db path is required")
	}
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, fmt.Errorf("backup output path is required")
	}
	if compress && !strings.HasSuffix(outPath, compressedSuffix) {
		outPath += compressedSuffix
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	var err error
	if compress {
		err = compressFile(dbPath, outPath)
	} else {
		err = copyFile(dbPath, outPath)
	}
	if err != nil {
		return BackupInfo{}, err
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o644); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	return BackupInfo{Path: outPath, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size(), Compressed: compress}, nil
}

// DefaultBackupName is calai-YYYYMMDD-HHMMSS.db in UTC.
func DefaultBackupName(now time.Time) string {
	return "calai-" + now.UTC().Format("20060102-150405") + ".db"
}

func RestoreBackup(backupPath, dbPath string, force bool) error {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("backup path and db path are required")
	}
	if !force {
		if _, err := os.Stat(dbPath); err == nil {
			return fmt.Errorf("target db already exists; use --force to overwrite")
		}
	}
	if expected, err := os.ReadFile(backupPath + ".sha256"); err == nil {
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return fmt.Errorf("backup checksum mismatch")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	if strings.HasSuffix(backupPath, compressedSuffix) {
		return decompressFile(backupPath, dbPath)
	}
	return copyFile(backupPath, dbPath)
}

// ListBackups returns .db and .db.xz files in dir, newest first. A missing
// dir yields no backups.
func ListBackups(dir string) ([]BackupInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]BackupInfo, 0)
	for _, f := range files {
		name := f.Name()
		compressed := strings.HasSuffix(name, ".db"+compressedSuffix)
		if f.IsDir() || !(compressed || strings.HasSuffix(name, ".db")) {
			continue
		}
		full := filepath.Join(dir, name)
		st, err := os.Stat(full)
		if err != nil {
			continue
		}
		checksum := ""
		if b, err := os.ReadFile(full + ".sha256"); err == nil {
			checksum = strings.TrimSpace(string(b))
		}
		out = append(out, BackupInfo{Path: full, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size(), Compressed: compressed})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// RunDoctor checks every stored record and ledger. With fix set it
// upgrades legacy records, deletes malformed ones, moves entries into the
// ledger their timestamp belongs to and drops repeated entry IDs keeping
// the first occurrence.
func RunDoctor(st *store.Store, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	records, err := st.Inspect()
	if err != nil {
		return report, fmt.Errorf("doctor inspect: %w", err)
	}
	for _, r := range records {
		switch r.Status {
		case store.StatusMalformed:
			report.MalformedRecords = append(report.MalformedRecords, r.Key)
		case store.StatusLegacy:
			report.LegacyRecords++
		}
	}

	loc := st.Location()
	dates := st.LedgerDates()
	ledgers := make(map[string][]model.FoodEntry, len(dates))
	seen := make(map[string]struct{})
	for _, d := range dates {
		entries, err := st.Ledger(d)
		if err != nil {
			return report, err
		}
		ledgers[d] = entries
		for _, e := range entries {
			if clock.DateKey(e.Timestamp, loc) != d {
				report.MisfiledEntries++
			}
			if _, dup := seen[e.ID]; dup {
				report.DuplicateEntryIDs++
			}
			seen[e.ID] = struct{}{}
		}
	}
	if !fix {
		return report, nil
	}

	n, err := st.UpgradeLegacy()
	report.UpgradedRecords = n
	if err != nil {
		return report, fmt.Errorf("doctor upgrade: %w", err)
	}
	for _, key := range report.MalformedRecords {
		if err := st.DeleteRecord(key); err != nil {
			return report, fmt.Errorf("doctor delete %s: %w", key, err)
		}
		report.DeletedRecords++
	}
	if report.MisfiledEntries == 0 && report.DuplicateEntryIDs == 0 {
		return report, nil
	}

	fixed := make(map[string][]model.FoodEntry, len(ledgers))
	kept := make(map[string]struct{})
	for _, d := range dates {
		fixed[d] = make([]model.FoodEntry, 0, len(ledgers[d]))
	}
	for _, d := range dates {
		for _, e := range ledgers[d] {
			if _, dup := kept[e.ID]; dup {
				report.DroppedDuplicates++
				continue
			}
			kept[e.ID] = struct{}{}
			home := clock.DateKey(e.Timestamp, loc)
			if home != d {
				report.MovedEntries++
			}
			fixed[home] = append(fixed[home], e)
		}
	}
	dateKeys := make([]string, 0, len(fixed))
	for d := range fixed {
		dateKeys = append(dateKeys, d)
	}
	sort.Strings(dateKeys)
	for _, d := range dateKeys {
		entries := fixed[d]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
		if len(entries) == 0 {
			if err := st.DeleteLedger(d); err != nil {
				return report, fmt.Errorf("doctor clear ledger %s: %w", d, err)
			}
			continue
		}
		if err := st.PutLedger(d, entries); err != nil {
			return report, fmt.Errorf("doctor rewrite ledger %s: %w", d, err)
		}
	}
	return report, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync destination file: %w", err)
	}
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer out.Close()
	zw, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		return fmt.Errorf("compress file: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish xz stream: %w", err)
	}
	return out.Sync()
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer in.Close()
	zr, err := xz.NewReader(in)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}
	tmp := dst + ".restore"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("decompress backup: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync destination file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}
	return os.Rename(tmp, dst)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

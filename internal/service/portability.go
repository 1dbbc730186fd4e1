package service

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const SnapshotVersion = "1.0"

var csvHeader = []string{"Date", "Meal", "Food", "Calories", "Protein", "Carbs", "Fat", "Sugar"}

// Snapshot is the JSON backup document.
type Snapshot struct {
	Version       string                `json:"version"`
	ExportDate    time.Time             `json:"exportDate"`
	Profile       *model.UserProfile    `json:"profile"`
	Targets       *model.DailyTarget    `json:"targets"`
	Settings      *model.Settings       `json:"settings,omitempty"`
	QuickLogItems []model.QuickLogItem  `json:"quickLogItems,omitempty"`
	History       []model.DailyProgress `json:"history"`
}

type ImportMode string

const (
	ImportModeFail    ImportMode = "fail"
	ImportModeSkip    ImportMode = "skip"
	ImportModeMerge   ImportMode = "merge"
	ImportModeReplace ImportMode = "replace"
)

type ImportOptions struct {
	Mode   ImportMode
	DryRun bool
}

// ImportReport counts days, except Entries which counts entries written.
type ImportReport struct {
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Conflicts int      `json:"conflicts"`
	Entries   int      `json:"entries"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ExportSnapshot bundles singletons with history. days > 0 exports that
// many calendar days ending today; otherwise every stored ledger.
func ExportSnapshot(st *store.Store, clk clock.Clock, days int) (*Snapshot, error) {
	history, err := exportHistory(st, clk, days)
	if err != nil {
		return nil, err
	}
	settings := st.Settings()
	return &Snapshot{
		Version:       SnapshotVersion,
		ExportDate:    clk.Now(),
		Profile:       st.Profile(),
		Targets:       st.Target(),
		Settings:      &settings,
		QuickLogItems: st.QuickLog(),
		History:       history,
	}, nil
}

func exportHistory(st *store.Store, clk clock.Clock, days int) ([]model.DailyProgress, error) {
	if days > 0 {
		return GetHistory(st, clk, days)
	}
	out := make([]model.DailyProgress, 0)
	for _, d := range st.LedgerDates() {
		p, err := ComputeProgress(st, d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func WriteSnapshotJSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// WriteCSV renders one row per entry with local "YYYY-MM-DD HH:MM"
// timestamps. Entries without a meal are labelled Other.
func WriteCSV(w io.Writer, history []model.DailyProgress, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, day := range history {
		for _, e := range day.Entries {
			meal := "Other"
			if e.MealType != "" {
				meal = string(e.MealType)
			}
			row := []string{
				e.Timestamp.In(loc).Format("2006-01-02 15:04"),
				meal,
				e.Name,
				formatNumber(e.Calories),
				formatNumber(e.Protein),
				formatNumber(e.Carbs),
				formatNumber(e.Fat),
				formatNumber(e.Sugar),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DecodeSnapshot parses a JSON snapshot; version and history are required.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var raw map[string]json.RawMessage
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errvalues.ErrInvalidSnapshot, err)
	}
	if _, ok := raw["version"]; !ok {
		return nil, fmt.Errorf("%w: missing version", errvalues.ErrInvalidSnapshot)
	}
	if h, ok := raw["history"]; !ok || string(h) == "null" {
		return nil, fmt.Errorf("%w: missing history", errvalues.ErrInvalidSnapshot)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", errvalues.ErrInvalidSnapshot, err)
	}
	if strings.TrimSpace(snap.Version) == "" {
		return nil, fmt.Errorf("%w: empty version", errvalues.ErrInvalidSnapshot)
	}
	return &snap, nil
}

// ImportSnapshot writes snap into st according to opts.Mode. Entries are
// filed under the local date of their own timestamp whatever history row
// carried them, and a repeated entry id keeps its first occurrence.
// Singletons are overwritten in replace and merge modes and only filled
// when absent otherwise.
func ImportSnapshot(st *store.Store, snap *Snapshot, opts ImportOptions) (ImportReport, error) {
	if opts.Mode == "" {
		opts.Mode = ImportModeReplace
	}
	switch opts.Mode {
	case ImportModeFail, ImportModeSkip, ImportModeMerge, ImportModeReplace:
	default:
		return ImportReport{}, fmt.Errorf("invalid import mode %q", opts.Mode)
	}
	if snap == nil {
		return ImportReport{}, errvalues.ErrInvalidSnapshot
	}
	if err := validateSnapshotSingletons(snap); err != nil {
		return ImportReport{}, err
	}

	type plannedDay struct {
		date    string
		entries []model.FoodEntry
	}
	report := ImportReport{}
	loc := st.Location()

	byDate := make(map[string][]model.FoodEntry)
	seenIDs := make(map[string]struct{})
	for _, day := range snap.History {
		if _, err := clock.ParseDateKey(day.Date, loc); err != nil {
			return report, fmt.Errorf("%w: %v", errvalues.ErrInvalidSnapshot, err)
		}
		for i, e := range day.Entries {
			if err := e.Validate(); err != nil {
				return report, fmt.Errorf("%w: %s entry %d: %v", errvalues.ErrInvalidSnapshot, day.Date, i, err)
			}
			if _, dup := seenIDs[e.ID]; dup {
				report.Warnings = append(report.Warnings, fmt.Sprintf("entry %s repeated on %s was dropped", e.ID, day.Date))
				continue
			}
			seenIDs[e.ID] = struct{}{}
			home := clock.DateKey(e.Timestamp, loc)
			if home != day.Date {
				report.Warnings = append(report.Warnings, fmt.Sprintf("entry %s listed on %s was filed under %s", e.ID, day.Date, home))
			}
			byDate[home] = append(byDate[home], e)
		}
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	plan := make([]plannedDay, 0, len(dates))
	for _, date := range dates {
		incoming := byDate[date]
		sort.SliceStable(incoming, func(i, j int) bool { return incoming[i].Timestamp.Before(incoming[j].Timestamp) })
		existing, err := st.Ledger(date)
		if err != nil {
			return report, err
		}
		if len(existing) == 0 {
			report.Inserted++
			report.Entries += len(incoming)
			plan = append(plan, plannedDay{date: date, entries: incoming})
			continue
		}
		switch opts.Mode {
		case ImportModeFail:
			report.Conflicts++
		case ImportModeSkip:
			report.Skipped++
		case ImportModeReplace:
			report.Updated++
			report.Entries += len(incoming)
			plan = append(plan, plannedDay{date: date, entries: incoming})
		case ImportModeMerge:
			seen := make(map[string]struct{}, len(existing))
			for _, e := range existing {
				seen[e.ID] = struct{}{}
			}
			merged := append([]model.FoodEntry(nil), existing...)
			added := 0
			for _, e := range incoming {
				if _, ok := seen[e.ID]; ok {
					continue
				}
				merged = append(merged, e)
				added++
			}
			if added == 0 {
				report.Skipped++
				continue
			}
			report.Updated++
			report.Entries += added
			plan = append(plan, plannedDay{date: date, entries: merged})
		}
	}
	if report.Conflicts > 0 {
		return report, fmt.Errorf("import conflicts on %d day(s); use --mode skip, merge or replace", report.Conflicts)
	}

	items := make([]model.QuickLogItem, 0, len(snap.QuickLogItems))
	for _, it := range snap.QuickLogItems {
		if err := it.Validate(); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("skipped %v", err))
			continue
		}
		items = append(items, it)
	}
	items = capQuickLog(items)

	if opts.DryRun {
		return report, nil
	}

	for _, p := range plan {
		if err := st.PutLedger(p.date, p.entries); err != nil {
			return report, fmt.Errorf("import ledger %s: %w", p.date, err)
		}
	}
	overwrite := opts.Mode == ImportModeReplace || opts.Mode == ImportModeMerge
	var errs []error
	if snap.Profile != nil && (overwrite || st.Profile() == nil) {
		errs = append(errs, SetProfile(st, *snap.Profile))
	}
	if snap.Targets != nil && (overwrite || st.Target() == nil) {
		errs = append(errs, SetTarget(st, *snap.Targets))
	}
	if snap.Settings != nil && overwrite {
		errs = append(errs, st.SetSettings(*snap.Settings))
	}
	if len(items) > 0 && (overwrite || len(st.QuickLog()) == 0) {
		errs = append(errs, st.SetQuickLog(items))
	}
	if err := errors.Join(errs...); err != nil {
		return report, fmt.Errorf("import singletons: %w", err)
	}
	return report, nil
}

// validateSnapshotSingletons rejects the snapshot before anything is
// written when a singleton would fail to store.
func validateSnapshotSingletons(snap *Snapshot) error {
	if snap.Profile != nil {
		if err := snap.Profile.Validate(); err != nil {
			return fmt.Errorf("%w: profile: %v", errvalues.ErrInvalidSnapshot, err)
		}
	}
	if snap.Targets != nil {
		if err := snap.Targets.Macros().Validate(); err != nil {
			return fmt.Errorf("%w: targets: %v", errvalues.ErrInvalidSnapshot, err)
		}
	}
	if snap.Settings != nil {
		if err := snap.Settings.Validate(); err != nil {
			return fmt.Errorf("%w: settings: %v", errvalues.ErrInvalidSnapshot, err)
		}
	}
	return nil
}

package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const DefaultUndoWindow = 5 * time.Second

type CreateEntryInput struct {
	ID         string
	Name       string
	Calories   float64
	Protein    float64
	Carbs      float64
	Fat        float64
	Sugar      float64
	Timestamp  time.Time
	MealType   model.MealType
	ImageURL   string
	Portion    string
	Confidence *float64
}

// EntryPatch holds the fields to change; nil fields are left as they are.
type EntryPatch struct {
	Name       *string
	Calories   *float64
	Protein    *float64
	Carbs      *float64
	Fat        *float64
	Sugar      *float64
	MealType   *model.MealType
	ImageURL   *string
	Portion    *string
	Confidence *float64
}

type ListEntriesFilter struct {
	Date     string
	FromDate string
	ToDate   string
	MealType model.MealType
	Limit    int
}

func (in CreateEntryInput) macros() model.Macros {
	return model.Macros{Calories: in.Calories, Protein: in.Protein, Carbs: in.Carbs, Fat: in.Fat, Sugar: in.Sugar}
}

// AppendEntry stores a new entry in the ledger of its own timestamp's local
// date and records it in the quick-log cache.
func AppendEntry(st *store.Store, clk clock.Clock, in CreateEntryInput) (model.FoodEntry, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return model.FoodEntry{}, fmt.Errorf("entry name is required")
	}
	if err := in.macros().Validate(); err != nil {
		return model.FoodEntry{}, err
	}
	if !in.MealType.Valid() {
		return model.FoodEntry{}, fmt.Errorf("invalid meal type %q", in.MealType)
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 1 || math.IsNaN(*in.Confidence)) {
		return model.FoodEntry{}, fmt.Errorf("confidence must be between 0 and 1")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = clk.Now()
	}
	if in.MealType == "" {
		in.MealType = model.MealForTime(in.Timestamp.In(clk.Location()))
	}
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	} else {
		taken, err := ledgerHolding(st, in.ID)
		if err != nil {
			return model.FoodEntry{}, err
		}
		if taken != "" {
			return model.FoodEntry{}, fmt.Errorf("entry %q already exists on %s", in.ID, taken)
		}
	}

	entry := model.FoodEntry{
		ID:         in.ID,
		Name:       in.Name,
		Timestamp:  in.Timestamp,
		MealType:   in.MealType,
		ImageURL:   strings.TrimSpace(in.ImageURL),
		Portion:    strings.TrimSpace(in.Portion),
		Confidence: in.Confidence,
	}
	entry.SetMacros(in.macros())

	date := clock.DateKey(entry.Timestamp, clk.Location())
	entries, err := st.Ledger(date)
	if err != nil {
		return model.FoodEntry{}, err
	}
	entries = append(entries, entry)
	if err := st.PutLedger(date, entries); err != nil {
		return model.FoodEntry{}, fmt.Errorf("save ledger %s: %w", date, err)
	}
	if err := RecordQuickLog(st, entry, clk.Now()); err != nil {
		return entry, fmt.Errorf("update quick-log: %w", err)
	}
	return entry, nil
}

// ledgerHolding returns the date of the ledger that already holds id, or
// "" when no ledger does.
func ledgerHolding(st *store.Store, id string) (string, error) {
	for _, d := range st.LedgerDates() {
		entries, err := st.Ledger(d)
		if err != nil {
			return "", err
		}
		if indexOfEntry(entries, id) >= 0 {
			return d, nil
		}
	}
	return "", nil
}

// UpdateEntry patches an entry in today's ledger. An unknown id is a no-op
// reported as false.
func UpdateEntry(st *store.Store, clk clock.Clock, id string, patch EntryPatch) (bool, error) {
	today := clock.Today(clk)
	entries, err := st.Ledger(today)
	if err != nil {
		return false, err
	}
	idx := indexOfEntry(entries, id)
	if idx < 0 {
		return false, nil
	}
	updated := applyPatch(entries[idx], patch)
	updated.Name = strings.TrimSpace(updated.Name)
	if err := updated.Validate(); err != nil {
		return false, err
	}
	entries[idx] = updated
	if err := st.PutLedger(today, entries); err != nil {
		return false, fmt.Errorf("save ledger %s: %w", today, err)
	}
	return true, nil
}

// AdjustEntryCalories nudges calories by delta (floored at 0) and scales
// the other macros by the same ratio, rounded to 0.1 g.
func AdjustEntryCalories(st *store.Store, clk clock.Clock, id string, delta float64) (bool, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return false, fmt.Errorf("delta must be a finite number")
	}
	entries, err := st.Ledger(clock.Today(clk))
	if err != nil {
		return false, err
	}
	idx := indexOfEntry(entries, id)
	if idx < 0 {
		return false, nil
	}
	e := entries[idx]
	newCalories := math.Max(0, e.Calories+delta)
	ratio := 1.0
	if e.Calories > 0 {
		ratio = newCalories / e.Calories
	}
	protein := RoundGrams(e.Protein * ratio)
	carbs := RoundGrams(e.Carbs * ratio)
	fat := RoundGrams(e.Fat * ratio)
	sugar := RoundGrams(e.Sugar * ratio)
	return UpdateEntry(st, clk, id, EntryPatch{
		Calories: &newCalories,
		Protein:  &protein,
		Carbs:    &carbs,
		Fat:      &fat,
		Sugar:    &sugar,
	})
}

// RemoveEntry deletes an entry from today's ledger and keeps it restorable
// until now+window. An unknown id returns nil without error.
func RemoveEntry(st *store.Store, clk clock.Clock, id string, window time.Duration) (*model.FoodEntry, error) {
	today := clock.Today(clk)
	entries, err := st.Ledger(today)
	if err != nil {
		return nil, err
	}
	idx := indexOfEntry(entries, id)
	if idx < 0 {
		return nil, nil
	}
	removed := entries[idx]
	entries = append(entries[:idx], entries[idx+1:]...)
	if err := st.PutLedger(today, entries); err != nil {
		return nil, fmt.Errorf("save ledger %s: %w", today, err)
	}
	if window > 0 {
		undo := model.PendingUndo{Date: today, Index: idx, Entry: removed, ExpiresAt: clk.Now().Add(window)}
		if err := st.SetPendingUndo(undo); err != nil {
			return &removed, fmt.Errorf("record undo: %w", err)
		}
	}
	return &removed, nil
}

// RemoveEntries deletes several entries from today's ledger at once and
// returns how many were found. Bulk removal is not undoable.
func RemoveEntries(st *store.Store, clk clock.Clock, ids []string) (int, error) {
	today := clock.Today(clk)
	entries, err := st.Ledger(today)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if _, ok := drop[e.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := st.PutLedger(today, kept); err != nil {
		return 0, fmt.Errorf("save ledger %s: %w", today, err)
	}
	return removed, nil
}

// UndoRemove puts the last removed entry back at its former position.
func UndoRemove(st *store.Store, clk clock.Clock) (model.FoodEntry, error) {
	undo := st.PendingUndo()
	if undo == nil {
		return model.FoodEntry{}, errvalues.ErrNothingToUndo
	}
	if clk.Now().After(undo.ExpiresAt) {
		if err := st.ClearPendingUndo(); err != nil {
			return model.FoodEntry{}, errors.Join(errvalues.ErrUndoExpired, fmt.Errorf("clear undo: %w", err))
		}
		return model.FoodEntry{}, errvalues.ErrUndoExpired
	}
	entries, err := st.Ledger(undo.Date)
	if err != nil {
		return model.FoodEntry{}, err
	}
	if indexOfEntry(entries, undo.Entry.ID) < 0 {
		idx := undo.Index
		if idx < 0 {
			idx = 0
		}
		if idx > len(entries) {
			idx = len(entries)
		}
		entries = append(entries, model.FoodEntry{})
		copy(entries[idx+1:], entries[idx:])
		entries[idx] = undo.Entry
		if err := st.PutLedger(undo.Date, entries); err != nil {
			return model.FoodEntry{}, fmt.Errorf("save ledger %s: %w", undo.Date, err)
		}
	}
	if err := st.ClearPendingUndo(); err != nil {
		return undo.Entry, fmt.Errorf("clear undo: %w", err)
	}
	return undo.Entry, nil
}

// FindEntry looks an entry up in today's ledger.
func FindEntry(st *store.Store, clk clock.Clock, id string) (*model.FoodEntry, error) {
	entries, err := st.Ledger(clock.Today(clk))
	if err != nil {
		return nil, err
	}
	idx := indexOfEntry(entries, id)
	if idx < 0 {
		return nil, errvalues.ErrEntryNotFound
	}
	return &entries[idx], nil
}

// ListEntries walks the ledgers selected by f in date order. With no date
// bounds it lists today.
func ListEntries(st *store.Store, clk clock.Clock, f ListEntriesFilter) ([]model.FoodEntry, error) {
	if f.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0")
	}
	if !f.MealType.Valid() {
		return nil, fmt.Errorf("invalid meal type %q", f.MealType)
	}
	dates, err := filterDates(st, clk, f)
	if err != nil {
		return nil, err
	}
	out := make([]model.FoodEntry, 0)
	for _, d := range dates {
		entries, err := st.Ledger(d)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if f.MealType != "" && e.MealType != f.MealType {
				continue
			}
			out = append(out, e)
			if f.Limit > 0 && len(out) >= f.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func filterDates(st *store.Store, clk clock.Clock, f ListEntriesFilter) ([]string, error) {
	loc := clk.Location()
	if strings.TrimSpace(f.Date) != "" {
		if f.FromDate != "" || f.ToDate != "" {
			return nil, fmt.Errorf("--date cannot be combined with --from/--to")
		}
		if _, err := clock.ParseDateKey(f.Date, loc); err != nil {
			return nil, err
		}
		return []string{f.Date}, nil
	}
	if f.FromDate == "" && f.ToDate == "" {
		return []string{clock.Today(clk)}, nil
	}
	for _, d := range []string{f.FromDate, f.ToDate} {
		if d == "" {
			continue
		}
		if _, err := clock.ParseDateKey(d, loc); err != nil {
			return nil, err
		}
	}
	if f.FromDate != "" && f.ToDate != "" && f.FromDate > f.ToDate {
		return nil, fmt.Errorf("--from must be on or before --to")
	}
	out := make([]string, 0)
	for _, d := range st.LedgerDates() {
		if f.FromDate != "" && d < f.FromDate {
			continue
		}
		if f.ToDate != "" && d > f.ToDate {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func indexOfEntry(entries []model.FoodEntry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func applyPatch(e model.FoodEntry, p EntryPatch) model.FoodEntry {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Calories != nil {
		e.Calories = *p.Calories
	}
	if p.Protein != nil {
		e.Protein = *p.Protein
	}
	if p.Carbs != nil {
		e.Carbs = *p.Carbs
	}
	if p.Fat != nil {
		e.Fat = *p.Fat
	}
	if p.Sugar != nil {
		e.Sugar = *p.Sugar
	}
	if p.MealType != nil {
		e.MealType = *p.MealType
	}
	if p.ImageURL != nil {
		e.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.Portion != nil {
		e.Portion = strings.TrimSpace(*p.Portion)
	}
	if p.Confidence != nil {
		c := *p.Confidence
		e.Confidence = &c
	}
	return e
}

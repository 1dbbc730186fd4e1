package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const QuickLogCap = 20

type LogQuickItemInput struct {
	IDOrName  string
	Servings  float64
	MealType  model.MealType
	Timestamp time.Time
}

// UpsertQuickLog folds entry into items: a case-insensitive name match
// bumps frequency and lastUsed, otherwise a new item starts at 1. The
// result is ordered by frequency then recency and capped at QuickLogCap.
func UpsertQuickLog(items []model.QuickLogItem, entry model.FoodEntry, now time.Time) []model.QuickLogItem {
	out := make([]model.QuickLogItem, len(items), len(items)+1)
	copy(out, items)

	key := normalizeName(entry.Name)
	found := false
	for i := range out {
		if normalizeName(out[i].Name) == key {
			out[i].Frequency++
			out[i].LastUsed = now
			found = true
			break
		}
	}
	if !found {
		out = append(out, model.QuickLogItem{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(entry.Name),
			Calories:  entry.Calories,
			Protein:   entry.Protein,
			Carbs:     entry.Carbs,
			Fat:       entry.Fat,
			Sugar:     entry.Sugar,
			ImageURL:  entry.ImageURL,
			LastUsed:  now,
			Frequency: 1,
		})
	}

	return capQuickLog(out)
}

// capQuickLog orders items by frequency then recency and keeps the first
// QuickLogCap.
func capQuickLog(items []model.QuickLogItem) []model.QuickLogItem {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Frequency != items[j].Frequency {
			return items[i].Frequency > items[j].Frequency
		}
		return items[i].LastUsed.After(items[j].LastUsed)
	})
	if len(items) > QuickLogCap {
		items = items[:QuickLogCap]
	}
	return items
}

func RecordQuickLog(st *store.Store, entry model.FoodEntry, now time.Time) error {
	return st.SetQuickLog(UpsertQuickLog(st.QuickLog(), entry, now))
}

// RecentScore is frequency*2 plus lastUsed scaled into [0,1] over the
// [oldest, newest] range, so one extra use always outranks recency.
func RecentScore(item model.QuickLogItem, oldest, newest time.Time) float64 {
	recency := 0.0
	span := newest.Sub(oldest)
	if span > 0 {
		recency = float64(item.LastUsed.Sub(oldest)) / float64(span)
		if recency < 0 {
			recency = 0
		}
		if recency > 1 {
			recency = 1
		}
	}
	return float64(item.Frequency)*2 + recency
}

// Recents ranks the non-starred items by RecentScore. limit <= 0 means no
// limit.
func Recents(items []model.QuickLogItem, limit int) []model.QuickLogItem {
	pool := make([]model.QuickLogItem, 0, len(items))
	for _, it := range items {
		if !it.Starred {
			pool = append(pool, it)
		}
	}
	if len(pool) == 0 {
		return pool
	}
	oldest, newest := pool[0].LastUsed, pool[0].LastUsed
	for _, it := range pool[1:] {
		if it.LastUsed.Before(oldest) {
			oldest = it.LastUsed
		}
		if it.LastUsed.After(newest) {
			newest = it.LastUsed
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return RecentScore(pool[i], oldest, newest) > RecentScore(pool[j], oldest, newest)
	})
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

// Favorites returns starred items in cache order.
func Favorites(items []model.QuickLogItem) []model.QuickLogItem {
	out := make([]model.QuickLogItem, 0)
	for _, it := range items {
		if it.Starred {
			out = append(out, it)
		}
	}
	return out
}

func SetStarred(st *store.Store, idOrName string, starred bool) (model.QuickLogItem, error) {
	items := st.QuickLog()
	idx := resolveQuickLogItem(items, idOrName)
	if idx < 0 {
		return model.QuickLogItem{}, fmt.Errorf("%w: %q", errvalues.ErrQuickLogItemNotFound, idOrName)
	}
	items[idx].Starred = starred
	if err := st.SetQuickLog(items); err != nil {
		return model.QuickLogItem{}, fmt.Errorf("save quick-log: %w", err)
	}
	return items[idx], nil
}

func RemoveQuickLogItem(st *store.Store, idOrName string) error {
	items := st.QuickLog()
	idx := resolveQuickLogItem(items, idOrName)
	if idx < 0 {
		return fmt.Errorf("%w: %q", errvalues.ErrQuickLogItemNotFound, idOrName)
	}
	items = append(items[:idx], items[idx+1:]...)
	if err := st.SetQuickLog(items); err != nil {
		return fmt.Errorf("save quick-log: %w", err)
	}
	return nil
}

// LogQuickItem appends a new entry from a cached template scaled by
// servings.
func LogQuickItem(st *store.Store, clk clock.Clock, in LogQuickItemInput) (model.FoodEntry, error) {
	if in.Servings == 0 {
		in.Servings = 1
	}
	if err := validateNonNegativeFloat("servings", in.Servings); err != nil {
		return model.FoodEntry{}, err
	}
	items := st.QuickLog()
	idx := resolveQuickLogItem(items, in.IDOrName)
	if idx < 0 {
		return model.FoodEntry{}, fmt.Errorf("%w: %q", errvalues.ErrQuickLogItemNotFound, in.IDOrName)
	}
	item := items[idx]
	m := item.Macros().Scale(in.Servings)
	return AppendEntry(st, clk, CreateEntryInput{
		Name:      item.Name,
		Calories:  m.Calories,
		Protein:   m.Protein,
		Carbs:     m.Carbs,
		Fat:       m.Fat,
		Sugar:     m.Sugar,
		Timestamp: in.Timestamp,
		MealType:  in.MealType,
		ImageURL:  item.ImageURL,
	})
}

func resolveQuickLogItem(items []model.QuickLogItem, idOrName string) int {
	idOrName = strings.TrimSpace(idOrName)
	if idOrName == "" {
		return -1
	}
	for i, it := range items {
		if it.ID == idOrName {
			return i
		}
	}
	key := normalizeName(idOrName)
	for i, it := range items {
		if normalizeName(it.Name) == key {
			return i
		}
	}
	return -1
}

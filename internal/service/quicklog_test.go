package service_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

func TestQuickLogCapsAtTwenty(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, time.UTC)
	clk := clock.NewFake(time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC), time.UTC)
	for i := 0; i < 25; i++ {
		mustAppend(t, st, clk, service.CreateEntryInput{Name: fmt.Sprintf("Food %02d", i), Calories: 100})
		clk.Advance(time.Minute)
	}
	items := st.QuickLog()
	if len(items) != service.QuickLogCap {
		t.Fatalf("expected %d items, got %d", service.QuickLogCap, len(items))
	}
	// All frequencies tie, so the newest twenty survive.
	if items[0].Name != "Food 24" || items[19].Name != "Food 05" {
		t.Fatalf("unexpected order %s .. %s", items[0].Name, items[19].Name)
	}
}

func TestQuickLogUpsertIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	items := service.UpsertQuickLog(nil, model.FoodEntry{Name: "Banana", Calories: 105}, now)
	items = service.UpsertQuickLog(items, model.FoodEntry{Name: "Apple", Calories: 95}, now.Add(time.Minute))
	items = service.UpsertQuickLog(items, model.FoodEntry{Name: " banana ", Calories: 999}, now.Add(2*time.Minute))

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].Name != "Banana" || items[0].Frequency != 2 || items[0].Calories != 105 {
		t.Fatalf("expected banana bumped with its first macros, got %+v", items[0])
	}
	if !items[0].LastUsed.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("expected lastUsed refreshed, got %v", items[0].LastUsed)
	}
}

func TestRecentsRankFrequencyOverRecency(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []model.QuickLogItem{
		{ID: "a", Name: "Old favourite", Frequency: 3, LastUsed: base},
		{ID: "b", Name: "New thing", Frequency: 2, LastUsed: base.Add(48 * time.Hour)},
		{ID: "c", Name: "Starred", Frequency: 9, LastUsed: base.Add(time.Hour), Starred: true},
		{ID: "d", Name: "Middle", Frequency: 2, LastUsed: base.Add(24 * time.Hour)},
	}
	got := service.Recents(items, 0)
	if len(got) != 3 {
		t.Fatalf("expected starred item excluded, got %+v", got)
	}
	order := []string{got[0].ID, got[1].ID, got[2].ID}
	if order[0] != "a" || order[1] != "b" || order[2] != "d" {
		t.Fatalf("unexpected order %v", order)
	}
	fav := service.Favorites(items)
	if len(fav) != 1 || fav[0].ID != "c" {
		t.Fatalf("unexpected favorites %+v", fav)
	}
	if got := service.Recents(items, 1); len(got) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(got))
	}
}

func TestLogQuickItemScalesServings(t *testing.T) {
	t.Parallel()
	st := newMemoryStore(time.UTC)
	clk := clock.NewFake(time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC), time.UTC)
	mustAppend(t, st, clk, service.CreateEntryInput{Name: "Protein Shake", Calories: 200, Protein: 20, Carbs: 20, Fat: 5, Sugar: 5})

	e, err := service.LogQuickItem(st, clk, service.LogQuickItemInput{IDOrName: "protein shake", Servings: 1.5})
	if err != nil {
		t.Fatalf("log quick item: %v", err)
	}
	if e.Calories != 300 || e.Protein != 30 || e.MealType != model.MealLunch {
		t.Fatalf("unexpected entry %+v", e)
	}
	if items := st.QuickLog(); items[0].Frequency != 2 {
		t.Fatalf("expected frequency 2, got %+v", items)
	}
	if _, err := service.LogQuickItem(st, clk, service.LogQuickItemInput{IDOrName: "nope"}); !errors.Is(err, errvalues.ErrQuickLogItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStarAndRemoveQuickLogItem(t *testing.T) {
	t.Parallel()
	st := newMemoryStore(time.UTC)
	clk := clock.NewFake(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), time.UTC)
	mustAppend(t, st, clk, service.CreateEntryInput{Name: "Edamame", Calories: 95})

	item, err := service.SetStarred(st, "edamame", true)
	if err != nil || !item.Starred {
		t.Fatalf("star: %+v %v", item, err)
	}
	if !st.QuickLog()[0].Starred {
		t.Fatalf("expected starred flag persisted")
	}
	if err := service.RemoveQuickLogItem(st, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(st.QuickLog()) != 0 {
		t.Fatalf("expected empty quick-log")
	}
}

package service

import (
	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

// TargetStatus compares a day's totals with the daily target. Remaining
// may be negative once a field is exceeded.
type TargetStatus struct {
	Target    model.DailyTarget `json:"target"`
	Remaining model.Macros      `json:"remaining"`
	Percent   model.Macros      `json:"percent"`
	OverSugar bool              `json:"over_sugar"`
}

type DayStatus struct {
	model.DailyProgress
	HasTarget bool          `json:"has_target"`
	Progress  *TargetStatus `json:"progress,omitempty"`
}

// SumTotals is the canonical reduction: plain float addition in ledger
// order with no intermediate rounding.
func SumTotals(entries []model.FoodEntry) model.Macros {
	var total model.Macros
	for _, e := range entries {
		total = total.Add(e.Macros())
	}
	return total
}

// ComputeProgress reads the ledger for dateKey and totals it. It never
// writes.
func ComputeProgress(st *store.Store, dateKey string) (model.DailyProgress, error) {
	entries, err := st.Ledger(dateKey)
	if err != nil {
		return model.DailyProgress{}, err
	}
	return model.DailyProgress{Date: dateKey, Entries: entries, Totals: SumTotals(entries)}, nil
}

// TargetProgress returns nil when no target is configured.
func TargetProgress(totals model.Macros, target *model.DailyTarget) *TargetStatus {
	if target == nil {
		return nil
	}
	t := target.Macros()
	return &TargetStatus{
		Target:    *target,
		Remaining: t.Sub(totals),
		Percent: model.Macros{
			Calories: percentOf(totals.Calories, t.Calories),
			Protein:  percentOf(totals.Protein, t.Protein),
			Carbs:    percentOf(totals.Carbs, t.Carbs),
			Fat:      percentOf(totals.Fat, t.Fat),
			Sugar:    percentOf(totals.Sugar, t.Sugar),
		},
		OverSugar: t.Sugar > 0 && totals.Sugar > t.Sugar,
	}
}

func DaySummary(st *store.Store, dateKey string) (*DayStatus, error) {
	progress, err := ComputeProgress(st, dateKey)
	if err != nil {
		return nil, err
	}
	target := st.Target()
	return &DayStatus{
		DailyProgress: progress,
		HasTarget:     target != nil,
		Progress:      TargetProgress(progress.Totals, target),
	}, nil
}

func TodaySummary(st *store.Store, clk clock.Clock) (*DayStatus, error) {
	return DaySummary(st, clock.Today(clk))
}

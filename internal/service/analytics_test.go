package service_test

import (
	"testing"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

func day(date string, calories ...float64) model.DailyProgress {
	p := model.DailyProgress{Date: date, Entries: []model.FoodEntry{}}
	for i, c := range calories {
		p.Entries = append(p.Entries, model.FoodEntry{ID: date + string(rune('a'+i)), Name: "x", Calories: c})
		p.Totals.Calories += c
	}
	return p
}

func TestGetHistoryCoversEveryDay(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, time.UTC)
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)
	mustAppend(t, st, clk, service.CreateEntryInput{Name: "Lunch", Calories: 600})
	clk.Set(time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC))
	mustAppend(t, st, clk, service.CreateEntryInput{Name: "Old lunch", Calories: 400})
	clk.Set(time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC))

	history, err := service.GetHistory(st, clk, 30)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 30 {
		t.Fatalf("expected 30 days, got %d", len(history))
	}
	if history[0].Date != "2026-02-09" || history[29].Date != "2026-03-10" {
		t.Fatalf("unexpected range %s..%s", history[0].Date, history[29].Date)
	}
	for i := 1; i < len(history); i++ {
		if history[i-1].Date >= history[i].Date {
			t.Fatalf("history not ascending at %d", i)
		}
	}
	byDate := map[string]float64{}
	for _, d := range history {
		byDate[d.Date] = d.Totals.Calories
	}
	if byDate["2026-03-10"] != 600 || byDate["2026-02-20"] != 400 || byDate["2026-03-01"] != 0 {
		t.Fatalf("unexpected totals %+v", byDate)
	}
}

func TestAdherenceBandIsInclusive(t *testing.T) {
	t.Parallel()
	target := 2000.0
	cases := []struct {
		cal  float64
		want float64
	}{
		{2200, 100},
		{1800, 100},
		{2201, 0},
		{1799, 0},
	}
	for _, tc := range cases {
		got := service.Adherence([]model.DailyProgress{day("2026-01-01", tc.cal)}, target)
		if got != tc.want {
			t.Fatalf("calories %v: expected adherence %v, got %v", tc.cal, tc.want, got)
		}
	}
	if !service.AdherenceWithin(0, 0, service.AdherenceTolerance) || service.AdherenceWithin(1, 0, service.AdherenceTolerance) {
		t.Fatalf("zero target is only met by zero")
	}
}

func TestComputeStatistics(t *testing.T) {
	t.Parallel()
	history := []model.DailyProgress{
		day("2026-01-01", 2500),
		day("2026-01-02"),
		day("2026-01-03", 1900),
		day("2026-01-04", 2100),
		day("2026-01-05", 1000, 1000),
	}
	target := &model.DailyTarget{Calories: 2000, Protein: 100, Carbs: 200, Fat: 60, Sugar: 30}
	stats := service.ComputeStatistics(history, target)

	if stats.Days != 5 || !stats.HasTarget {
		t.Fatalf("unexpected header %+v", stats)
	}
	if !approx(stats.WeeklyAverage, 7500.0/5) {
		t.Fatalf("expected weekly average 1500, got %v", stats.WeeklyAverage)
	}
	if stats.WeeklyAdherence != 60 {
		t.Fatalf("expected 60%% adherence, got %v", stats.WeeklyAdherence)
	}
	if stats.Streak != 3 {
		t.Fatalf("expected streak 3, got %d", stats.Streak)
	}
	if stats.BestDay == nil || stats.BestDay.Date != "2026-01-05" {
		t.Fatalf("expected best day 2026-01-05, got %+v", stats.BestDay)
	}
	if stats.WorstDay == nil || stats.WorstDay.Date != "2026-01-02" {
		t.Fatalf("expected worst day 2026-01-02, got %+v", stats.WorstDay)
	}
}

func TestComputeStatisticsWithoutTargetOrHistory(t *testing.T) {
	t.Parallel()
	stats := service.ComputeStatistics(nil, nil)
	if stats.Days != 0 || stats.WeeklyAverage != 0 || stats.BestDay != nil || stats.HasTarget {
		t.Fatalf("expected zero statistics, got %+v", stats)
	}
	stats = service.ComputeStatistics([]model.DailyProgress{day("2026-01-01", 1200)}, nil)
	if stats.WeeklyAverage != 1200 || stats.WeeklyAdherence != 0 || stats.WorstDay != nil {
		t.Fatalf("expected averages without target fields, got %+v", stats)
	}
}

func TestExtremeDayTiesKeepFirst(t *testing.T) {
	t.Parallel()
	history := []model.DailyProgress{
		day("2026-01-01", 2100),
		day("2026-01-02", 1900),
		day("2026-01-03", 2300),
		day("2026-01-04", 1700),
	}
	stats := service.ComputeStatistics(history, &model.DailyTarget{Calories: 2000})
	if stats.BestDay.Date != "2026-01-01" || stats.WorstDay.Date != "2026-01-03" {
		t.Fatalf("expected first of tied days, got best %s worst %s", stats.BestDay.Date, stats.WorstDay.Date)
	}
}

func TestRollingAverage(t *testing.T) {
	t.Parallel()
	history := []model.DailyProgress{day("a", 100), day("b", 200), day("c", 300), day("d", 400)}
	got := service.RollingAverage(history, 2)
	want := []float64{100, 150, 250, 350}
	for i := range want {
		if !approx(got[i], want[i]) {
			t.Fatalf("position %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestTargetProgress(t *testing.T) {
	t.Parallel()
	if service.TargetProgress(model.Macros{Calories: 100}, nil) != nil {
		t.Fatalf("expected nil progress without target")
	}
	status := service.TargetProgress(
		model.Macros{Calories: 2500, Protein: 50, Sugar: 40},
		&model.DailyTarget{Calories: 2000, Protein: 100, Sugar: 30},
	)
	if status.Remaining.Calories != -500 || status.Percent.Protein != 50 || !status.OverSugar {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Percent.Carbs != 0 {
		t.Fatalf("expected zero percent for zero target field, got %v", status.Percent.Carbs)
	}
}

package service

import (
	"fmt"
	"math"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const (
	AdherenceTolerance = 0.10
	weekWindow         = 7
	monthWindow        = 30
)

// DayDeviation is one day's distance from the calorie target.
type DayDeviation struct {
	Date      string  `json:"date"`
	Calories  float64 `json:"calories"`
	Deviation float64 `json:"deviation"`
}

type Statistics struct {
	Days             int           `json:"days"`
	HasTarget        bool          `json:"has_target"`
	WeeklyAverage    float64       `json:"weekly_average"`
	MonthlyAverage   float64       `json:"monthly_average"`
	WeeklyMacros     model.Macros  `json:"weekly_macros"`
	WeeklyAdherence  float64       `json:"weekly_adherence"`
	MonthlyAdherence float64       `json:"monthly_adherence"`
	Streak           int           `json:"streak"`
	BestDay          *DayDeviation `json:"best_day,omitempty"`
	WorstDay         *DayDeviation `json:"worst_day,omitempty"`
}

// GetHistory returns one DailyProgress per calendar date for the last
// days dates ending today, oldest first. Empty days carry zero totals.
func GetHistory(st *store.Store, clk clock.Clock, days int) ([]model.DailyProgress, error) {
	return HistoryEnding(st, clock.Today(clk), days, clk.Location())
}

// HistoryEnding is GetHistory anchored at an arbitrary end date.
func HistoryEnding(st *store.Store, endDate string, days int, loc *time.Location) ([]model.DailyProgress, error) {
	if days <= 0 {
		return []model.DailyProgress{}, nil
	}
	end, err := clock.ParseDateKey(endDate, loc)
	if err != nil {
		return nil, err
	}
	out := make([]model.DailyProgress, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := time.Date(end.Year(), end.Month(), end.Day()-i, 0, 0, 0, 0, end.Location())
		progress, err := ComputeProgress(st, d.Format(clock.DateLayout))
		if err != nil {
			return nil, fmt.Errorf("history day %s: %w", d.Format(clock.DateLayout), err)
		}
		out = append(out, progress)
	}
	return out, nil
}

// ComputeStatistics tolerates an empty history and a missing target; the
// target-relative fields stay zero or nil in those cases.
func ComputeStatistics(history []model.DailyProgress, target *model.DailyTarget) Statistics {
	week := lastN(history, weekWindow)
	month := lastN(history, monthWindow)
	stats := Statistics{
		Days:           len(history),
		HasTarget:      target != nil,
		WeeklyAverage:  averageCalories(week),
		MonthlyAverage: averageCalories(month),
		WeeklyMacros:   averageMacros(week),
		Streak:         Streak(history),
	}
	if target != nil {
		stats.WeeklyAdherence = Adherence(week, target.Calories)
		stats.MonthlyAdherence = Adherence(month, target.Calories)
		stats.BestDay, stats.WorstDay = extremeDays(month, target.Calories)
	}
	return stats
}

// Adherence is the percentage of days whose calories fall inside the
// inclusive ±10% band around target.
func Adherence(days []model.DailyProgress, target float64) float64 {
	if len(days) == 0 {
		return 0
	}
	within := 0
	for _, d := range days {
		if AdherenceWithin(d.Totals.Calories, target, AdherenceTolerance) {
			within++
		}
	}
	return float64(within) / float64(len(days)) * 100
}

// Streak counts trailing days with at least one entry, stopping at the
// first empty day.
func Streak(history []model.DailyProgress) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		if len(history[i].Entries) == 0 {
			break
		}
		n++
	}
	return n
}

// RollingAverage returns the trailing mean of calories over window days
// for each position. Positions with fewer than window predecessors
// average what is available.
func RollingAverage(history []model.DailyProgress, window int) []float64 {
	out := make([]float64, len(history))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, d := range history {
		sum += d.Totals.Calories
		if i >= window {
			sum -= history[i-window].Totals.Calories
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// extremeDays picks the smallest and largest absolute deviation. Ties keep
// the day encountered first.
func extremeDays(days []model.DailyProgress, target float64) (*DayDeviation, *DayDeviation) {
	if len(days) == 0 {
		return nil, nil
	}
	var best, worst DayDeviation
	for i, d := range days {
		dev := DayDeviation{Date: d.Date, Calories: d.Totals.Calories, Deviation: math.Abs(d.Totals.Calories - target)}
		if i == 0 || dev.Deviation < best.Deviation {
			best = dev
		}
		if i == 0 || dev.Deviation > worst.Deviation {
			worst = dev
		}
	}
	return &best, &worst
}

func lastN(history []model.DailyProgress, n int) []model.DailyProgress {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func averageCalories(days []model.DailyProgress) float64 {
	if len(days) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range days {
		sum += d.Totals.Calories
	}
	return sum / float64(len(days))
}

func averageMacros(days []model.DailyProgress) model.Macros {
	if len(days) == 0 {
		return model.Macros{}
	}
	var sum model.Macros
	for _, d := range days {
		sum = sum.Add(d.Totals)
	}
	return sum.Scale(1 / float64(len(days)))
}

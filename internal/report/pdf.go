package report

import (
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

// History is the input for a history report. History is oldest first.
type History struct {
	Title          string
	Days           []model.DailyProgress
	Target         *model.DailyTarget
	Location       *time.Location
	GeneratedAt    time.Time
	IncludeEntries bool
}

var stripe = &color.Color{Red: 240, Green: 240, Blue: 240}

func WriteFile(path string, h History) error {
	return build(h).OutputFileAndClose(path)
}

func Write(w io.Writer, h History) error {
	buf, err := build(h).Output()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func build(h History) pdf.Maroto {
	if h.Title == "" {
		h.Title = "Nutrition History"
	}
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	stats := service.ComputeStatistics(h.Days, h.Target)

	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(h.Title, props.Text{Top: 3, Style: consts.Bold, Align: consts.Center, Size: 16})
			})
		})
		m.Row(8, func() {
			m.Col(12, func() {
				m.Text(dateRange(h.Days), props.Text{Top: 2, Align: consts.Center, Size: 11})
			})
		})
	})

	sectionTitle(m, "Summary")
	summary := [][]string{
		{"Days", fmt.Sprintf("%d", stats.Days)},
		{"7-day average", kcal(stats.WeeklyAverage)},
		{"30-day average", kcal(stats.MonthlyAverage)},
		{"Logging streak", fmt.Sprintf("%d days", stats.Streak)},
	}
	if h.Target != nil {
		summary = append(summary,
			[]string{"Calorie target", kcal(h.Target.Calories)},
			[]string{"7-day adherence", percent(stats.WeeklyAdherence)},
			[]string{"30-day adherence", percent(stats.MonthlyAdherence)},
		)
		if stats.BestDay != nil {
			summary = append(summary, []string{"Closest day", fmt.Sprintf("%s (%s off)", stats.BestDay.Date, kcal(stats.BestDay.Deviation))})
		}
		if stats.WorstDay != nil {
			summary = append(summary, []string{"Furthest day", fmt.Sprintf("%s (%s off)", stats.WorstDay.Date, kcal(stats.WorstDay.Deviation))})
		}
	}
	m.TableList([]string{"Metric", "Value"}, summary, props.TableList{
		HeaderProp:           props.TableListContent{Size: 10, GridSizes: []uint{6, 6}},
		ContentProp:          props.TableListContent{Size: 10, GridSizes: []uint{6, 6}},
		Align:                consts.Left,
		AlternatedBackground: stripe,
		HeaderContentSpace:   1,
	})

	sectionTitle(m, "Daily totals")
	header := []string{"Date", "Entries", "Calories", "Protein", "Carbs", "Fat", "Sugar"}
	rows := make([][]string, 0, len(h.Days))
	for _, d := range h.Days {
		rows = append(rows, []string{
			d.Date,
			fmt.Sprintf("%d", len(d.Entries)),
			fmt.Sprintf("%.0f", service.RoundCalories(d.Totals.Calories)),
			grams(d.Totals.Protein),
			grams(d.Totals.Carbs),
			grams(d.Totals.Fat),
			grams(d.Totals.Sugar),
		})
	}
	grid := []uint{3, 1, 2, 2, 2, 1, 1}
	m.TableList(header, rows, props.TableList{
		HeaderProp:           props.TableListContent{Size: 9, GridSizes: grid},
		ContentProp:          props.TableListContent{Size: 9, GridSizes: grid},
		Align:                consts.Center,
		AlternatedBackground: stripe,
		HeaderContentSpace:   1,
	})

	if h.IncludeEntries {
		entryRows := [][]string{}
		for _, d := range h.Days {
			for _, e := range d.Entries {
				meal := "Other"
				if e.MealType != "" {
					meal = string(e.MealType)
				}
				entryRows = append(entryRows, []string{
					e.Timestamp.In(loc).Format("2006-01-02 15:04"),
					meal,
					e.Name,
					fmt.Sprintf("%.0f", service.RoundCalories(e.Calories)),
				})
			}
		}
		if len(entryRows) > 0 {
			sectionTitle(m, "Entries")
			m.TableList([]string{"Time", "Meal", "Food", "Calories"}, entryRows, props.TableList{
				HeaderProp:           props.TableListContent{Size: 9, GridSizes: []uint{3, 2, 5, 2}},
				ContentProp:          props.TableListContent{Size: 9, GridSizes: []uint{3, 2, 5, 2}},
				Align:                consts.Left,
				AlternatedBackground: stripe,
				HeaderContentSpace:   1,
			})
		}
	}

	if !h.GeneratedAt.IsZero() {
		m.Row(12, func() {
			m.Col(12, func() {
				m.Text("Generated "+h.GeneratedAt.In(loc).Format("2006-01-02 15:04"), props.Text{
					Top: 6, Size: 8, Align: consts.Right,
				})
			})
		})
	}
	return m
}

func sectionTitle(m pdf.Maroto, title string) {
	m.Row(12, func() {
		m.Col(12, func() {
			m.Text(title, props.Text{Top: 5, Style: consts.Bold, Size: 13})
		})
	})
}

func dateRange(days []model.DailyProgress) string {
	if len(days) == 0 {
		return "no data"
	}
	return fmt.Sprintf("%s - %s", days[0].Date, days[len(days)-1].Date)
}

func kcal(v float64) string {
	return fmt.Sprintf("%.0f kcal", service.RoundCalories(v))
}

func grams(v float64) string {
	return fmt.Sprintf("%.1f g", service.RoundGrams(v))
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v)
}

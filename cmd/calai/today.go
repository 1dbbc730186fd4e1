package calai

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/service"
)

var (
	todayDate    string
	todayEntries bool
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's totals and target progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			date := clock.Today(e.clk)
			if todayDate != "" {
				if _, err := clock.ParseDateKey(todayDate, e.clk.Location()); err != nil {
					return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", todayDate)
				}
				date = todayDate
			}
			status, err := service.DaySummary(e.st, date)
			if err != nil {
				return err
			}
			printDayStatus(cmd.OutOrStdout(), status)
			if todayEntries && len(status.Entries) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				printEntries(cmd.OutOrStdout(), e, status.Entries)
			}
			return nil
		})
	},
}

func printDayStatus(w io.Writer, s *service.DayStatus) {
	t := s.Totals
	fmt.Fprintf(w, "Date: %s\n", s.Date)
	fmt.Fprintf(w, "Entries: %d\n", len(s.Entries))
	fmt.Fprintf(w, "Intake: %.0f kcal\n", service.RoundCalories(t.Calories))
	fmt.Fprintf(w, "Macros: P %.1fg | C %.1fg | F %.1fg | S %.1fg\n",
		service.RoundGrams(t.Protein), service.RoundGrams(t.Carbs), service.RoundGrams(t.Fat), service.RoundGrams(t.Sugar))
	if !s.HasTarget || s.Progress == nil {
		fmt.Fprintln(w, "Target: not set")
		return
	}
	p := s.Progress
	fmt.Fprintf(w, "Target: %s\n", formatTarget(p.Target))
	fmt.Fprintf(w, "Remaining: %.0f kcal | P %.1fg | C %.1fg | F %.1fg\n",
		service.RoundCalories(p.Remaining.Calories), service.RoundGrams(p.Remaining.Protein),
		service.RoundGrams(p.Remaining.Carbs), service.RoundGrams(p.Remaining.Fat))
	fmt.Fprintf(w, "Progress: %.0f%% kcal | P %.0f%% | C %.0f%% | F %.0f%%\n",
		p.Percent.Calories, p.Percent.Protein, p.Percent.Carbs, p.Percent.Fat)
	if p.OverSugar {
		fmt.Fprintf(w, "Sugar: over the %.0fg ceiling\n", p.Target.Sugar)
	}
}

func init() {
	rootCmd.AddCommand(todayCmd)
	todayCmd.Flags().StringVar(&todayDate, "date", "", "Date YYYY-MM-DD (default today)")
	todayCmd.Flags().BoolVar(&todayEntries, "entries", false, "Also list the day's entries")
}

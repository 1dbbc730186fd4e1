package calai

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/estimate"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

var (
	historyDays   int
	historyWindow int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show daily totals for recent days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyDays <= 0 {
			return fmt.Errorf("--days must be > 0")
		}
		return withStore(func(e *env) error {
			history, err := service.GetHistory(e.st, e.clk, historyDays)
			if err != nil {
				return err
			}
			rolling := service.RollingAverage(history, historyWindow)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "DATE\tENTRIES\tKCAL\tP\tC\tF\tS\tAVG%d\n", historyWindow)
			for i, d := range history {
				fmt.Fprintf(out, "%s\t%d\t%.0f\t%.1f\t%.1f\t%.1f\t%.1f\t%.0f\n",
					d.Date, len(d.Entries),
					service.RoundCalories(d.Totals.Calories),
					service.RoundGrams(d.Totals.Protein),
					service.RoundGrams(d.Totals.Carbs),
					service.RoundGrams(d.Totals.Fat),
					service.RoundGrams(d.Totals.Sugar),
					service.RoundCalories(rolling[i]))
			}
			return nil
		})
	},
}

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show averages, adherence and streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsDays <= 0 {
			return fmt.Errorf("--days must be > 0")
		}
		return withStore(func(e *env) error {
			history, err := service.GetHistory(e.st, e.clk, statsDays)
			if err != nil {
				return err
			}
			s := service.ComputeStatistics(history, e.st.Target())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Days: %d\n", s.Days)
			fmt.Fprintf(out, "Weekly average: %.0f kcal\n", service.RoundCalories(s.WeeklyAverage))
			fmt.Fprintf(out, "Monthly average: %.0f kcal\n", service.RoundCalories(s.MonthlyAverage))
			fmt.Fprintf(out, "Weekly macros: P %.1fg | C %.1fg | F %.1fg | S %.1fg\n",
				service.RoundGrams(s.WeeklyMacros.Protein), service.RoundGrams(s.WeeklyMacros.Carbs),
				service.RoundGrams(s.WeeklyMacros.Fat), service.RoundGrams(s.WeeklyMacros.Sugar))
			fmt.Fprintf(out, "Streak: %d\n", s.Streak)
			if !s.HasTarget {
				fmt.Fprintln(out, "Target: not set")
				return nil
			}
			fmt.Fprintf(out, "Weekly adherence: %.0f%%\n", s.WeeklyAdherence)
			fmt.Fprintf(out, "Monthly adherence: %.0f%%\n", s.MonthlyAdherence)
			if s.BestDay != nil {
				fmt.Fprintf(out, "Best day: %s (%.0f kcal, %.0f off)\n", s.BestDay.Date, s.BestDay.Calories, s.BestDay.Deviation)
			}
			if s.WorstDay != nil {
				fmt.Fprintf(out, "Worst day: %s (%.0f kcal, %.0f off)\n", s.WorstDay.Date, s.WorstDay.Calories, s.WorstDay.Deviation)
			}
			return nil
		})
	},
}

var (
	suggestLimit   int
	suggestCatalog string
	suggestIdeas   bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest foods that fit what is left of today's target",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := service.DefaultCatalog()
		if suggestCatalog != "" {
			var err error
			if catalog, err = service.LoadCatalog(suggestCatalog); err != nil {
				return err
			}
		}
		return withStore(func(e *env) error {
			target := e.st.Target()
			if target == nil {
				return fmt.Errorf("%w: run `calai target set` first", errvalues.ErrTargetNotConfigured)
			}
			status, err := service.TodaySummary(e.st, e.clk)
			if err != nil {
				return err
			}
			remaining := service.Remaining(status.Totals, *target)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Remaining: %.0f kcal | P %.1fg | C %.1fg | F %.1fg\n",
				service.RoundCalories(remaining.Calories), service.RoundGrams(remaining.Protein),
				service.RoundGrams(remaining.Carbs), service.RoundGrams(remaining.Fat))
			list := service.SuggestMeals(status.Totals, *target, catalog, suggestLimit)
			if len(list) == 0 {
				fmt.Fprintln(out, "No suggestions fit the remaining budget")
			} else {
				fmt.Fprintln(out, "NAME\tKCAL\tP\tC\tF\tSCORE")
				for _, s := range list {
					fmt.Fprintf(out, "%s\t%.0f\t%.1f\t%.1f\t%.1f\t%.2f\n", s.Name, s.Calories, s.Protein, s.Carbs, s.Fat, s.Score)
				}
			}
			if suggestIdeas {
				printMealIdeas(cmd, e, remaining)
			}
			return nil
		})
	},
}

func printMealIdeas(cmd *cobra.Command, e *env, remaining model.Macros) {
	ideas, ok := newEstimator(false).(estimate.MealIdeas)
	if !ok {
		return
	}
	list, err := ideas.SuggestMealIdeas(cmd.Context(), remaining, model.MealForTime(e.clk.Now()))
	if err != nil {
		logger.Warn("meal ideas unavailable", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nIdeas:")
	for _, idea := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", idea)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd, statsCmd, suggestCmd)
	historyCmd.Flags().IntVar(&historyDays, "days", 7, "Number of days ending today")
	historyCmd.Flags().IntVar(&historyWindow, "window", 7, "Rolling average window in days")
	statsCmd.Flags().IntVar(&statsDays, "days", 30, "Number of days ending today")
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", service.DefaultSuggestionLimit, "Maximum suggestions")
	suggestCmd.Flags().StringVar(&suggestCatalog, "catalog", "", "JSON file of candidate foods")
	suggestCmd.Flags().BoolVar(&suggestIdeas, "ideas", false, "Also ask the estimator for meal ideas")
}

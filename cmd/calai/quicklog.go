package calai

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

var quicklogCmd = &cobra.Command{
	Use:     "quicklog",
	Aliases: []string{"ql"},
	Short:   "Re-log foods you eat often",
}

var quicklogLimit int

var quicklogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorites and ranked recent foods",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			items := e.st.QuickLog()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Favorites:")
			printQuickItems(out, service.Favorites(items))
			fmt.Fprintln(out, "Recent:")
			printQuickItems(out, service.Recents(items, quicklogLimit))
			return nil
		})
	},
}

func printQuickItems(w io.Writer, items []model.QuickLogItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "  %s\t%s\t%.0f kcal\tx%d\t%s\n", it.ID, it.Name, it.Calories, it.Frequency, it.LastUsed.Format(time.RFC3339))
	}
}

func starCommand(use, short string, starred bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id-or-name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(e *env) error {
				item, err := service.SetStarred(e.st, args[0], starred)
				if err != nil {
					return err
				}
				verb := "Starred"
				if !starred {
					verb = "Unstarred"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, item.Name)
				return nil
			})
		},
	}
}

var quicklogRemoveCmd = &cobra.Command{
	Use:   "remove <id-or-name>",
	Short: "Forget a cached food",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			if err := service.RemoveQuickLogItem(e.st, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		})
	},
}

var (
	quicklogServings float64
	quicklogMeal     string
)

var quicklogLogCmd = &cobra.Command{
	Use:   "log <id-or-name>",
	Short: "Log a cached food as a new entry now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meal, err := parseMealType(quicklogMeal)
		if err != nil {
			return err
		}
		return withStore(func(e *env) error {
			added, err := service.LogQuickItem(e.st, e.clk, service.LogQuickItemInput{
				IDOrName: args[0],
				Servings: quicklogServings,
				MealType: meal,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added entry %s (%s, %.0f kcal)\n", added.ID, added.Name, service.RoundCalories(added.Calories))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(quicklogCmd)
	quicklogCmd.AddCommand(
		quicklogListCmd,
		starCommand("star", "Pin a food to favorites", true),
		starCommand("unstar", "Unpin a food from favorites", false),
		quicklogRemoveCmd,
		quicklogLogCmd,
	)
	quicklogListCmd.Flags().IntVar(&quicklogLimit, "limit", 10, "Maximum recent items (0 = all)")
	quicklogLogCmd.Flags().Float64Var(&quicklogServings, "servings", 1, "Serving multiplier")
	quicklogLogCmd.Flags().StringVar(&quicklogMeal, "meal", "", "Meal (default by time of day)")
}

package calai

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage food entries",
}

var (
	entryName       string
	entryCalories   float64
	entryProtein    float64
	entryCarbs      float64
	entryFat        float64
	entrySugar      float64
	entryMeal       string
	entryDate       string
	entryTime       string
	entryPortion    string
	entryImage      string
	entryConfidence float64
)

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		meal, err := parseMealType(entryMeal)
		if err != nil {
			return err
		}
		return withStore(func(e *env) error {
			ts, err := parseDateTimeOrNow(e.clk, entryDate, entryTime)
			if err != nil {
				return err
			}
			in := service.CreateEntryInput{
				Name:      entryName,
				Calories:  entryCalories,
				Protein:   entryProtein,
				Carbs:     entryCarbs,
				Fat:       entryFat,
				Sugar:     entrySugar,
				Timestamp: ts,
				MealType:  meal,
				Portion:   entryPortion,
				ImageURL:  entryImage,
			}
			if cmd.Flags().Changed("confidence") {
				c := entryConfidence
				in.Confidence = &c
			}
			added, err := service.AppendEntry(e.st, e.clk, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added entry %s\n", added.ID)
			return nil
		})
	},
}

var (
	listDate     string
	listFromDate string
	listToDate   string
	listMeal     string
	listLimit    int
)

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries (today unless a date range is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		meal, err := parseMealType(listMeal)
		if err != nil {
			return err
		}
		filter := service.ListEntriesFilter{
			Date:     listDate,
			FromDate: listFromDate,
			ToDate:   listToDate,
			MealType: meal,
			Limit:    listLimit,
		}
		return withStore(func(e *env) error {
			entries, err := service.ListEntries(e.st, e.clk, filter)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), e, entries)
			return nil
		})
	},
}

func printEntries(w io.Writer, e *env, entries []model.FoodEntry) {
	fmt.Fprintln(w, "ID\tTIME\tMEAL\tNAME\tKCAL\tP\tC\tF\tS")
	for _, x := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.1f\t%.1f\t%.1f\t%.1f\n",
			x.ID,
			x.Timestamp.In(e.clk.Location()).Format("2006-01-02 15:04"),
			formatMeal(x.MealType),
			x.Name,
			service.RoundCalories(x.Calories),
			service.RoundGrams(x.Protein),
			service.RoundGrams(x.Carbs),
			service.RoundGrams(x.Fat),
			service.RoundGrams(x.Sugar))
	}
}

var entryUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of one of today's entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := entryPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		return withStore(func(e *env) error {
			ok, err := service.UpdateEntry(e.st, e.clk, args[0], patch)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No entry %s today\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated entry %s\n", args[0])
			return nil
		})
	},
}

func entryPatchFromFlags(cmd *cobra.Command) (service.EntryPatch, error) {
	var p service.EntryPatch
	f := cmd.Flags()
	changed := 0
	floatField := func(name string, v float64, dst **float64) {
		if f.Changed(name) {
			x := v
			*dst = &x
			changed++
		}
	}
	stringField := func(name, v string, dst **string) {
		if f.Changed(name) {
			x := v
			*dst = &x
			changed++
		}
	}
	stringField("name", entryName, &p.Name)
	floatField("calories", entryCalories, &p.Calories)
	floatField("protein", entryProtein, &p.Protein)
	floatField("carbs", entryCarbs, &p.Carbs)
	floatField("fat", entryFat, &p.Fat)
	floatField("sugar", entrySugar, &p.Sugar)
	floatField("confidence", entryConfidence, &p.Confidence)
	stringField("portion", entryPortion, &p.Portion)
	stringField("image", entryImage, &p.ImageURL)
	if f.Changed("meal") {
		meal, err := parseMealType(entryMeal)
		if err != nil {
			return p, err
		}
		p.MealType = &meal
		changed++
	}
	if changed == 0 {
		return p, fmt.Errorf("set at least one flag")
	}
	return p, nil
}

var adjustDelta float64

var entryAdjustCmd = &cobra.Command{
	Use:   "adjust <id>",
	Short: "Nudge an entry's calories and scale its macros to match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			ok, err := service.AdjustEntryCalories(e.st, e.clk, args[0], adjustDelta)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No entry %s today\n", args[0])
				return nil
			}
			updated, err := service.FindEntry(e.st, e.clk, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Adjusted entry %s to %.0f kcal\n", args[0], service.RoundCalories(updated.Calories))
			return nil
		})
	},
}

var entryRemoveCmd = &cobra.Command{
	Use:   "remove <id> [id...]",
	Short: "Remove entries from today; a single removal can be undone briefly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			if len(args) > 1 {
				n, err := service.RemoveEntries(e.st, e.clk, args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			}
			removed, err := service.RemoveEntry(e.st, e.clk, args[0], cfg.UndoWindow)
			if err != nil {
				return err
			}
			if removed == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No entry %s today\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", removed.Name, removed.ID)
			if cfg.UndoWindow > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Run `calai entry undo` within %s to restore it\n", cfg.UndoWindow)
			}
			return nil
		})
	},
}

var entryUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the most recently removed entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			restored, err := service.UndoRemove(e.st, e.clk)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (%s)\n", restored.Name, restored.ID)
			return nil
		})
	},
}

func addEntryFields(cmd *cobra.Command) {
	cmd.Flags().StringVar(&entryName, "name", "", "Food name")
	cmd.Flags().Float64Var(&entryCalories, "calories", 0, "Calories")
	cmd.Flags().Float64Var(&entryProtein, "protein", 0, "Protein grams")
	cmd.Flags().Float64Var(&entryCarbs, "carbs", 0, "Carbs grams")
	cmd.Flags().Float64Var(&entryFat, "fat", 0, "Fat grams")
	cmd.Flags().Float64Var(&entrySugar, "sugar", 0, "Sugar grams")
	cmd.Flags().StringVar(&entryMeal, "meal", "", "breakfast, lunch, dinner or snack (default by time of day)")
	cmd.Flags().StringVar(&entryPortion, "portion", "", "Portion description")
	cmd.Flags().StringVar(&entryImage, "image", "", "Image reference")
	cmd.Flags().Float64Var(&entryConfidence, "confidence", 0, "Estimate confidence between 0 and 1")
}

func init() {
	rootCmd.AddCommand(entryCmd)
	entryCmd.AddCommand(entryAddCmd, entryListCmd, entryUpdateCmd, entryAdjustCmd, entryRemoveCmd, entryUndoCmd)

	addEntryFields(entryAddCmd)
	entryAddCmd.Flags().StringVar(&entryDate, "date", "", "Date in YYYY-MM-DD (default today)")
	entryAddCmd.Flags().StringVar(&entryTime, "time", "", "Time in HH:MM")
	_ = entryAddCmd.MarkFlagRequired("name")

	addEntryFields(entryUpdateCmd)

	entryListCmd.Flags().StringVar(&listDate, "date", "", "Filter by date YYYY-MM-DD")
	entryListCmd.Flags().StringVar(&listFromDate, "from", "", "Filter from date YYYY-MM-DD")
	entryListCmd.Flags().StringVar(&listToDate, "to", "", "Filter to date YYYY-MM-DD")
	entryListCmd.Flags().StringVar(&listMeal, "meal", "", "Filter by meal")
	entryListCmd.Flags().IntVar(&listLimit, "limit", 0, "Result limit (0 = no limit)")

	entryAdjustCmd.Flags().Float64Var(&adjustDelta, "delta", 0, "Calories to add (negative to subtract)")
	_ = entryAdjustCmd.MarkFlagRequired("delta")
}

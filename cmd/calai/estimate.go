package calai

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/estimate"
	"github.com/yazinsai/cal-ai/internal/service"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate nutrition from a description or a photo",
}

var (
	estimateLog  bool
	estimateMeal string
)

var estimateTextCmd = &cobra.Command{
	Use:   "text <description>",
	Short: "Estimate nutrition from a text description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newEstimator(false).EstimateFromText(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return reportEstimate(cmd, res, "")
	},
}

var estimateImageCmd = &cobra.Command{
	Use:   "image <path>",
	Short: "Estimate nutrition from a food photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := estimate.LoadImage(args[0])
		if err != nil {
			return err
		}
		res, err := newEstimator(false).EstimateFromImage(cmd.Context(), img)
		if err != nil {
			return err
		}
		return reportEstimate(cmd, res, args[0])
	},
}

func reportEstimate(cmd *cobra.Command, res estimate.Result, imageRef string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Food: %s\n", res.Name)
	if res.Portion != "" {
		fmt.Fprintf(out, "Portion: %s\n", res.Portion)
	}
	fmt.Fprintf(out, "Calories: %.0f\n", service.RoundCalories(res.Calories))
	fmt.Fprintf(out, "Macros: P %.1fg | C %.1fg | F %.1fg | S %.1fg\n",
		service.RoundGrams(res.Protein), service.RoundGrams(res.Carbs), service.RoundGrams(res.Fat), service.RoundGrams(res.Sugar))
	if res.Confidence != nil {
		fmt.Fprintf(out, "Confidence: %.0f%%\n", *res.Confidence*100)
	}
	if !estimateLog {
		return nil
	}
	meal, err := parseMealType(estimateMeal)
	if err != nil {
		return err
	}
	return withStore(func(e *env) error {
		m := res.Macros()
		added, err := service.AppendEntry(e.st, e.clk, service.CreateEntryInput{
			Name:       res.Name,
			Calories:   m.Calories,
			Protein:    m.Protein,
			Carbs:      m.Carbs,
			Fat:        m.Fat,
			Sugar:      m.Sugar,
			MealType:   meal,
			Portion:    res.Portion,
			ImageURL:   imageRef,
			Confidence: res.Confidence,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Added entry %s\n", added.ID)
		return nil
	})
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	estimateCmd.AddCommand(estimateTextCmd, estimateImageCmd)
	estimateCmd.PersistentFlags().BoolVar(&estimateLog, "log", false, "Append the estimate as an entry")
	estimateCmd.PersistentFlags().StringVar(&estimateMeal, "meal", "", "Meal for --log (default by time of day)")
}

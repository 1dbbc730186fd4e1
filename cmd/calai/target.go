package calai

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the user profile used to estimate targets",
}

var (
	profileAge      int
	profileGender   string
	profileActivity string
	profileGoal     string
	profileWeight   float64
	profileHeight   float64
	profileUnits    string
)

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields; unset flags keep their saved value",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			p := model.UserProfile{}
			if cur := service.CurrentProfile(e.st); cur != nil {
				p = *cur
			}
			f := cmd.Flags()
			if f.Changed("age") {
				age := profileAge
				p.Age = &age
			}
			if f.Changed("gender") {
				p.Gender = model.Gender(strings.ToLower(profileGender))
			}
			if f.Changed("activity") {
				p.ActivityLevel = model.ActivityLevel(strings.ToLower(profileActivity))
			}
			if f.Changed("goal") {
				p.Goal = model.Goal(strings.ToLower(profileGoal))
			}
			if f.Changed("weight") {
				w := profileWeight
				p.CurrentWeight = &w
			}
			if f.Changed("height") {
				h := profileHeight
				p.Height = &h
			}
			if f.Changed("units") {
				p.Units = model.Units(strings.ToLower(profileUnits))
			}
			if err := service.SetProfile(e.st, p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved profile")
			return nil
		})
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			p := service.CurrentProfile(e.st)
			if p == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Profile: not set")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Age: %s\n", optInt(p.Age))
			fmt.Fprintf(out, "Gender: %s\n", orDash(string(p.Gender)))
			fmt.Fprintf(out, "Activity: %s\n", orDash(string(p.ActivityLevel)))
			fmt.Fprintf(out, "Goal: %s\n", orDash(string(p.Goal)))
			fmt.Fprintf(out, "Weight: %s\n", optFloat(p.CurrentWeight))
			fmt.Fprintf(out, "Height: %s\n", optFloat(p.Height))
			fmt.Fprintf(out, "Units: %s\n", orDash(string(p.Units)))
			return nil
		})
	},
}

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage the daily nutrition target",
}

var (
	targetCalories float64
	targetProtein  float64
	targetCarbs    float64
	targetFat      float64
	targetSugar    float64
	targetOffline  bool
)

var targetSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the daily target",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := model.DailyTarget{
			Calories: targetCalories,
			Protein:  targetProtein,
			Carbs:    targetCarbs,
			Fat:      targetFat,
			Sugar:    targetSugar,
		}
		return withStore(func(e *env) error {
			if err := service.SetTarget(e.st, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Target set: %s\n", formatTarget(t))
			return nil
		})
	},
}

var targetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the daily target",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(e *env) error {
			t := service.CurrentTarget(e.st)
			if t == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Target: not set")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Target: %s\n", formatTarget(*t))
			return nil
		})
	},
}

var targetEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate and save a target from the saved profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		est := newEstimator(targetOffline)
		return withStore(func(e *env) error {
			t, err := service.EstimateTargets(cmd.Context(), e.st, est)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Target set: %s\n", formatTarget(t))
			return nil
		})
	},
}

func formatTarget(t model.DailyTarget) string {
	return fmt.Sprintf("%.0f kcal | P %.1fg | C %.1fg | F %.1fg | sugar <= %.1fg", t.Calories, t.Protein, t.Carbs, t.Fat, t.Sugar)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(profileCmd, targetCmd)
	profileCmd.AddCommand(profileSetCmd, profileShowCmd)
	targetCmd.AddCommand(targetSetCmd, targetShowCmd, targetEstimateCmd)

	profileSetCmd.Flags().IntVar(&profileAge, "age", 0, "Age in years")
	profileSetCmd.Flags().StringVar(&profileGender, "gender", "", "male, female or other")
	profileSetCmd.Flags().StringVar(&profileActivity, "activity", "", "sedentary, light, moderate, active or very_active")
	profileSetCmd.Flags().StringVar(&profileGoal, "goal", "", "lose_weight, maintain or gain_muscle")
	profileSetCmd.Flags().Float64Var(&profileWeight, "weight", 0, "Current weight (kg or lb per --units)")
	profileSetCmd.Flags().Float64Var(&profileHeight, "height", 0, "Height (cm or in per --units)")
	profileSetCmd.Flags().StringVar(&profileUnits, "units", "", "metric or imperial")

	targetSetCmd.Flags().Float64Var(&targetCalories, "calories", 0, "Daily calories")
	targetSetCmd.Flags().Float64Var(&targetProtein, "protein", 0, "Protein grams")
	targetSetCmd.Flags().Float64Var(&targetCarbs, "carbs", 0, "Carbs grams")
	targetSetCmd.Flags().Float64Var(&targetFat, "fat", 0, "Fat grams")
	targetSetCmd.Flags().Float64Var(&targetSugar, "sugar", 0, "Sugar ceiling grams")
	_ = targetSetCmd.MarkFlagRequired("calories")
	targetEstimateCmd.Flags().BoolVar(&targetOffline, "offline", false, "Use the built-in formula instead of the remote estimator")
}

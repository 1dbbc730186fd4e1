package estimate

import (
	"context"
	"math"

	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
)

const (
	minSugarCeiling = 25
	maxSugarCeiling = 30
)

// NormalizeTargets rounds calories to the nearest 50 and protein, carbs
// and fat to the nearest 5, and clamps the sugar ceiling to [25, 30].
func NormalizeTargets(t model.DailyTarget) model.DailyTarget {
	return model.DailyTarget{
		Calories: roundTo(t.Calories, 50),
		Protein:  roundTo(t.Protein, 5),
		Carbs:    roundTo(t.Carbs, 5),
		Fat:      roundTo(t.Fat, 5),
		Sugar:    math.Min(maxSugarCeiling, math.Max(minSugarCeiling, t.Sugar)),
	}
}

func roundTo(v, step float64) float64 {
	return math.Round(v/step) * step
}

// Local derives targets offline with the Mifflin-St Jeor equation. It
// cannot analyse food.
type Local struct{}

var activityFactors = map[model.ActivityLevel]float64{
	model.ActivitySedentary:  1.2,
	model.ActivityLight:      1.375,
	model.ActivityModerate:   1.55,
	model.ActivityActive:     1.725,
	model.ActivityVeryActive: 1.9,
}

var goalAdjustments = map[model.Goal]float64{
	model.GoalLoseWeight: -500,
	model.GoalMaintain:   0,
	model.GoalGainMuscle: 300,
}

// Defaults applied when the profile leaves a field empty.
const (
	defaultAge    = 30
	defaultWeight = 70.0
	defaultHeight = 170.0
)

func (Local) EstimateTargets(_ context.Context, p model.UserProfile) (model.DailyTarget, error) {
	if err := p.Validate(); err != nil {
		return model.DailyTarget{}, err
	}
	age := defaultAge
	if p.Age != nil {
		age = *p.Age
	}
	weight, height := defaultWeight, defaultHeight
	if p.CurrentWeight != nil {
		weight = *p.CurrentWeight
		if p.Units == model.UnitsImperial {
			weight *= 0.45359237
		}
	}
	if p.Height != nil {
		height = *p.Height
		if p.Units == model.UnitsImperial {
			height *= 2.54
		}
	}

	bmr := 10*weight + 6.25*height - 5*float64(age)
	switch p.Gender {
	case model.GenderMale:
		bmr += 5
	case model.GenderFemale:
		bmr -= 161
	default:
		bmr -= 78
	}
	factor, ok := activityFactors[p.ActivityLevel]
	if !ok {
		factor = activityFactors[model.ActivityModerate]
	}
	calories := bmr*factor + goalAdjustments[p.Goal]
	calories = math.Max(1200, calories)

	return NormalizeTargets(model.DailyTarget{
		Calories: calories,
		Protein:  calories * 0.30 / 4,
		Carbs:    calories * 0.40 / 4,
		Fat:      calories * 0.30 / 9,
		Sugar:    minSugarCeiling,
	}), nil
}

func (Local) EstimateFromImage(context.Context, Image) (Result, error) {
	return Result{}, errvalues.ErrUnsupported
}

func (Local) EstimateFromText(context.Context, string) (Result, error) {
	return Result{}, errvalues.ErrUnsupported
}

package service

import (
	"context"
	"fmt"
	"math"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

// TargetEstimator is the part of the estimation collaborator used to
// derive targets from a profile.
type TargetEstimator interface {
	EstimateTargets(ctx context.Context, profile model.UserProfile) (model.DailyTarget, error)
}

func SetTarget(st *store.Store, t model.DailyTarget) error {
	if err := t.Macros().Validate(); err != nil {
		return err
	}
	if err := st.SetTarget(t); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	return nil
}

// CurrentTarget returns nil when no target has been configured.
func CurrentTarget(st *store.Store) *model.DailyTarget {
	return st.Target()
}

func SetProfile(st *store.Store, p model.UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := st.SetProfile(p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// CurrentProfile returns nil when no profile has been saved.
func CurrentProfile(st *store.Store) *model.UserProfile {
	return st.Profile()
}

// EstimateTargets asks est for targets derived from the saved profile and
// stores the result. An absent profile is sent as empty.
func EstimateTargets(ctx context.Context, st *store.Store, est TargetEstimator) (model.DailyTarget, error) {
	profile := model.UserProfile{}
	if p := st.Profile(); p != nil {
		profile = *p
	}
	t, err := est.EstimateTargets(ctx, profile)
	if err != nil {
		return model.DailyTarget{}, err
	}
	if err := SetTarget(st, t); err != nil {
		return model.DailyTarget{}, err
	}
	return t, nil
}

// AdherenceWithin reports whether actual lies in the inclusive band
// target*(1±tolerance). A zero target is only met by zero.
func AdherenceWithin(actual float64, target float64, tolerance float64) bool {
	if target == 0 {
		return actual == 0
	}
	band := math.Abs(target) * tolerance
	return math.Abs(actual-target) <= band+1e-9
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, time.UTC)

	if v, ok, err := service.GetSetting(st, "dark_mode"); err != nil || !ok || v != "true" {
		t.Fatalf("expected default dark_mode=true, got %q %v %v", v, ok, err)
	}
	if err := service.SetSetting(st, "Notifications", "true"); err != nil {
		t.Fatalf("set notifications: %v", err)
	}
	if err := service.SetSetting(st, "reminder_times", "19:00, 08:30"); err != nil {
		t.Fatalf("set reminders: %v", err)
	}
	all := service.ListSettings(st)
	if all["notifications"] != "true" || all["reminder_times"] != "08:30,19:00" {
		t.Fatalf("unexpected settings %+v", all)
	}

	for _, tc := range []struct{ key, value string }{
		{"dark_mode", "maybe"},
		{"reminder_times", "25:00"},
		{"volume", "11"},
		{"", "x"},
	} {
		if err := service.SetSetting(st, tc.key, tc.value); err == nil {
			t.Fatalf("expected error for %s=%s", tc.key, tc.value)
		}
	}
	if _, ok, _ := service.GetSetting(st, "volume"); ok {
		t.Fatalf("unknown key should not be found")
	}
}

type stubTargetEstimator struct {
	got    model.UserProfile
	target model.DailyTarget
	err    error
}

func (s *stubTargetEstimator) EstimateTargets(_ context.Context, p model.UserProfile) (model.DailyTarget, error) {
	s.got = p
	return s.target, s.err
}

func TestEstimateTargetsStoresResult(t *testing.T) {
	t.Parallel()
	st := newMemoryStore(time.UTC)
	age := 30
	if err := service.SetProfile(st, model.UserProfile{Age: &age, Goal: model.GoalMaintain}); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	est := &stubTargetEstimator{target: model.DailyTarget{Calories: 2200, Protein: 165, Carbs: 220, Fat: 75, Sugar: 25}}
	got, err := service.EstimateTargets(context.Background(), st, est)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.got.Age == nil || *est.got.Age != 30 {
		t.Fatalf("expected profile passed through, got %+v", est.got)
	}
	stored := service.CurrentTarget(st)
	if stored == nil || *stored != got {
		t.Fatalf("expected stored target %+v, got %+v", got, stored)
	}

	failing := &stubTargetEstimator{err: errors.New("boom")}
	if _, err := service.EstimateTargets(context.Background(), st, failing); err == nil {
		t.Fatalf("expected estimator error")
	}
	if *service.CurrentTarget(st) != got {
		t.Fatalf("failed estimate must not overwrite the target")
	}
}

func TestSetTargetAndProfileValidate(t *testing.T) {
	t.Parallel()
	st := newMemoryStore(time.UTC)
	if err := service.SetTarget(st, model.DailyTarget{Calories: -1}); err == nil {
		t.Fatalf("expected negative target to fail")
	}
	if err := service.SetProfile(st, model.UserProfile{Goal: "bulk"}); err == nil {
		t.Fatalf("expected invalid goal to fail")
	}
	if service.CurrentTarget(st) != nil || service.CurrentProfile(st) != nil {
		t.Fatalf("nothing should be stored")
	}
}

package calai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yazinsai/cal-ai/internal/app"
	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/db"
	"github.com/yazinsai/cal-ai/internal/estimate"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/store"
)

const postgresConnectTimeout = 10 * time.Second

// newClock is replaced in tests.
var newClock = func(loc *time.Location) clock.Clock { return clock.NewSystem(loc) }

type env struct {
	st  *store.Store
	clk clock.Clock
}

func withStore(run func(*env) error) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	kv, closeKV, err := openKV()
	if err != nil {
		return err
	}
	defer closeKV()
	return run(&env{st: store.New(kv, loc, logger), clk: newClock(loc)})
}

func openKV() (store.KV, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		return store.NewMemoryKV(), func() {}, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
		defer cancel()
		kv, err := store.NewPostgresKV(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	default:
		if err := app.EnsureDBDir(cfg.DBPath); err != nil {
			return nil, nil, err
		}
		sqldb, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.ApplyMigrations(sqldb); err != nil {
			_ = sqldb.Close()
			return nil, nil, err
		}
		return store.NewSQLiteKV(sqldb), func() { _ = sqldb.Close() }, nil
	}
}

// newEstimator builds the remote estimator with the local TDEE formula as
// the fallback for targets. offline skips the remote client entirely.
func newEstimator(offline bool) estimate.Estimator {
	if offline {
		return estimate.Local{}
	}
	client := &estimate.Client{
		BaseURL:      cfg.Estimator.BaseURL,
		Credentials:  estimate.EnvCredentials{Var: cfg.Estimator.APIKeyEnv},
		TextModel:    cfg.Estimator.TextModel,
		ImageModel:   cfg.Estimator.ImageModel,
		Timeout:      cfg.Estimator.Timeout,
		RoundTargets: cfg.Estimator.RoundTargets,
	}
	return estimate.WithFallback{Primary: client, Secondary: estimate.Local{}}
}

func parseDateTimeOrNow(clk clock.Clock, date, timeStr string) (time.Time, error) {
	date = strings.TrimSpace(date)
	timeStr = strings.TrimSpace(timeStr)
	loc := clk.Location()
	if date == "" && timeStr == "" {
		return clk.Now(), nil
	}
	if date == "" {
		date = clk.Now().In(loc).Format(clock.DateLayout)
	}
	if timeStr == "" {
		t, err := time.ParseInLocation(clock.DateLayout, date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", date)
		}
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date/--time (expected YYYY-MM-DD and HH:MM)")
	}
	return t, nil
}

func parseMealType(value string) (model.MealType, error) {
	m := model.MealType(strings.ToLower(strings.TrimSpace(value)))
	if !m.Valid() {
		return "", fmt.Errorf("invalid meal %q (expected breakfast, lunch, dinner or snack)", value)
	}
	return m, nil
}

func formatMeal(m model.MealType) string {
	if m == "" {
		return "-"
	}
	return string(m)
}

package estimate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/model"
)

// Estimator turns a photo or a description into nutrition figures and a
// profile into daily targets.
type Estimator interface {
	EstimateFromImage(ctx context.Context, img Image) (Result, error)
	EstimateFromText(ctx context.Context, description string) (Result, error)
	EstimateTargets(ctx context.Context, profile model.UserProfile) (model.DailyTarget, error)
}

// MealIdeas is implemented by estimators that can propose free-text meal
// ideas for a remaining budget.
type MealIdeas interface {
	SuggestMealIdeas(ctx context.Context, remaining model.Macros, meal model.MealType) ([]string, error)
}

// Result is a validated nutrition estimate. Omitted numeric fields are 0.
type Result struct {
	Name       string   `json:"name"`
	Calories   float64  `json:"calories"`
	Protein    float64  `json:"protein"`
	Carbs      float64  `json:"carbs"`
	Fat        float64  `json:"fat"`
	Sugar      float64  `json:"sugar"`
	Portion    string   `json:"portion,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (r Result) Macros() model.Macros {
	return model.Macros{Calories: r.Calories, Protein: r.Protein, Carbs: r.Carbs, Fat: r.Fat, Sugar: r.Sugar}
}

func (r Result) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is empty", errvalues.ErrInvalidEstimate)
	}
	if err := r.Macros().Validate(); err != nil {
		return fmt.Errorf("%w: %v", errvalues.ErrInvalidEstimate, err)
	}
	if c := r.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return fmt.Errorf("%w: confidence %v outside [0,1]", errvalues.ErrInvalidEstimate, *c)
	}
	return nil
}

// Image is a photo to analyse.
type Image struct {
	Data     []byte
	MIMEType string
}

const maxImageBytes = 20 << 20

// LoadImage reads path and sniffs its content type.
func LoadImage(path string) (Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	return NewImage(b)
}

func NewImage(b []byte) (Image, error) {
	if len(b) == 0 {
		return Image{}, fmt.Errorf("image is empty")
	}
	if len(b) > maxImageBytes {
		return Image{}, fmt.Errorf("image is larger than %d bytes", maxImageBytes)
	}
	mime := http.DetectContentType(b)
	if !strings.HasPrefix(mime, "image/") {
		return Image{}, fmt.Errorf("unsupported image type %q", mime)
	}
	return Image{Data: b, MIMEType: mime}, nil
}

// WithFallback uses primary for targets and falls back to secondary when
// primary fails. Food estimates always come from primary.
type WithFallback struct {
	Primary   Estimator
	Secondary Estimator
}

func (f WithFallback) EstimateFromImage(ctx context.Context, img Image) (Result, error) {
	return f.Primary.EstimateFromImage(ctx, img)
}

func (f WithFallback) EstimateFromText(ctx context.Context, description string) (Result, error) {
	return f.Primary.EstimateFromText(ctx, description)
}

func (f WithFallback) EstimateTargets(ctx context.Context, profile model.UserProfile) (model.DailyTarget, error) {
	t, err := f.Primary.EstimateTargets(ctx, profile)
	if err == nil || f.Secondary == nil {
		return t, err
	}
	fallback, ferr := f.Secondary.EstimateTargets(ctx, profile)
	if ferr != nil {
		return model.DailyTarget{}, errors.Join(err, ferr)
	}
	return fallback, nil
}

func (f WithFallback) SuggestMealIdeas(ctx context.Context, remaining model.Macros, meal model.MealType) ([]string, error) {
	if m, ok := f.Primary.(MealIdeas); ok {
		return m.SuggestMealIdeas(ctx, remaining, meal)
	}
	return nil, errvalues.ErrUnsupported
}

package service

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/yazinsai/cal-ai/internal/model"
)

const (
	DefaultSuggestionLimit = 6
	suggestMinCalories     = 150.0
	suggestMaxCalories     = 400.0
	suggestOverBudget      = 50.0
)

type Suggestion struct {
	model.CatalogItem
	Score float64 `json:"score"`
}

func catalogItem(name string, cal, protein, carbs, fat, sugar float64) model.CatalogItem {
	return model.CatalogItem{Name: name, Macros: model.Macros{Calories: cal, Protein: protein, Carbs: carbs, Fat: fat, Sugar: sugar}}
}

// DefaultCatalog is the built-in set of snack and meal candidates.
func DefaultCatalog() []model.CatalogItem {
	return []model.CatalogItem{
		catalogItem("Grilled Chicken Breast", 165, 31, 0, 3.6, 0),
		catalogItem("Greek Yogurt (Plain)", 100, 17, 6, 0.7, 4),
		catalogItem("Cottage Cheese", 98, 11, 3.4, 4.3, 2.7),
		catalogItem("Hard Boiled Eggs (2)", 155, 13, 1.1, 11, 1.1),
		catalogItem("Tuna (in water)", 116, 26, 0, 1, 0),
		catalogItem("Apple with Peanut Butter", 267, 8, 35, 13, 20),
		catalogItem("Protein Shake", 200, 20, 20, 5, 5),
		catalogItem("Turkey Sandwich", 350, 24, 35, 12, 5),
		catalogItem("Mixed Nuts (30g)", 180, 5, 8, 16, 1),
		catalogItem("Avocado Toast", 250, 6, 30, 14, 3),
		catalogItem("Baby Carrots with Hummus", 150, 5, 20, 7, 6),
		catalogItem("Rice Cakes (2)", 70, 1, 15, 0.5, 0),
		catalogItem("String Cheese", 80, 6, 1, 6, 0),
		catalogItem("Edamame", 95, 8, 7, 4, 2),
		catalogItem("Cucumber Slices", 16, 0.7, 3.6, 0.1, 1.7),
		catalogItem("Protein Bar", 250, 20, 25, 9, 8),
		catalogItem("Trail Mix", 350, 10, 35, 22, 15),
		catalogItem("Banana with Almond Butter", 300, 8, 35, 16, 18),
		catalogItem("Quinoa Bowl", 400, 15, 55, 12, 5),
		catalogItem("Salmon Filet", 280, 35, 0, 15, 0),
	}
}

// LoadCatalog reads a JSON array of catalog items.
func LoadCatalog(path string) ([]model.CatalogItem, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var items []model.CatalogItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("catalog item %d has no name", i)
		}
		if err := it.Macros.Validate(); err != nil {
			return nil, fmt.Errorf("catalog item %q: %w", it.Name, err)
		}
	}
	return items, nil
}

// Remaining is target minus consumed per field; values may be negative.
func Remaining(consumed model.Macros, target model.DailyTarget) model.Macros {
	return target.Macros().Sub(consumed)
}

// SuggestMeals ranks catalog candidates against the remaining budget. An
// exhausted budget legitimately yields no suggestions.
func SuggestMeals(consumed model.Macros, target model.DailyTarget, catalog []model.CatalogItem, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	remaining := Remaining(consumed, target)
	upper := math.Min(suggestMaxCalories, remaining.Calories+suggestOverBudget)

	out := make([]Suggestion, 0)
	for _, c := range catalog {
		if c.Calories < suggestMinCalories || c.Calories > upper {
			continue
		}
		out = append(out, Suggestion{CatalogItem: c, Score: scoreCandidate(c.Macros, remaining)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func scoreCandidate(c, remaining model.Macros) float64 {
	score := 0.0
	if remaining.Protein > 10 {
		score += c.Protein / remaining.Protein * 100
	}
	if remaining.Sugar < 5 && c.Sugar > 5 {
		score -= 50
	}
	if c.Calories > 0 {
		if c.Protein*4/c.Calories > 0.25 {
			score += 30
		}
		if c.Carbs*4/c.Calories < 0.5 {
			score += 20
		}
		if c.Fat*9/c.Calories < 0.4 {
			score += 10
		}
	}
	if remaining.Calories > 0 {
		fit := 1 - math.Abs(c.Calories-remaining.Calories*0.3)/remaining.Calories
		score += fit * 50
	}
	return score
}

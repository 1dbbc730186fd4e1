package service

import (
	"fmt"
	"math"
	"strings"
)

func validateNonNegativeFloat(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	if value < 0 {
		return fmt.Errorf("%s must be >= 0", name)
	}
	return nil
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// RoundCalories and RoundGrams are for rendering only; totals keep full
// precision everywhere else.
func RoundCalories(v float64) float64 {
	return math.Round(v)
}

func RoundGrams(v float64) float64 {
	return math.Round(v*10) / 10
}

// percentOf returns 0 instead of NaN or Inf when whole is 0.
func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

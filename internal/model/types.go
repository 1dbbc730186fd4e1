package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Macros is the five-field nutrition vector shared by entries, totals,
// targets and remaining budgets.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Sugar    float64 `json:"sugar"`
}

func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
		Sugar:    m.Sugar + o.Sugar,
	}
}

func (m Macros) Sub(o Macros) Macros {
	return Macros{
		Calories: m.Calories - o.Calories,
		Protein:  m.Protein - o.Protein,
		Carbs:    m.Carbs - o.Carbs,
		Fat:      m.Fat - o.Fat,
		Sugar:    m.Sugar - o.Sugar,
	}
}

func (m Macros) Scale(f float64) Macros {
	return Macros{
		Calories: m.Calories * f,
		Protein:  m.Protein * f,
		Carbs:    m.Carbs * f,
		Fat:      m.Fat * f,
		Sugar:    m.Sugar * f,
	}
}

// Validate rejects negative, NaN and infinite fields.
func (m Macros) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"calories", m.Calories},
		{"protein", m.Protein},
		{"carbs", m.Carbs},
		{"fat", m.Fat},
		{"sugar", m.Sugar},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%s must be >= 0", f.name)
		}
	}
	return nil
}

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

func (m MealType) Valid() bool {
	switch m {
	case "", MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// MealForTime classifies a wall-clock time into a meal slot.
func MealForTime(t time.Time) MealType {
	h := t.Hour()
	switch {
	case h < 11:
		return MealBreakfast
	case h < 15:
		return MealLunch
	case h < 20:
		return MealDinner
	default:
		return MealSnack
	}
}

type FoodEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Calories   float64   `json:"calories"`
	Protein    float64   `json:"protein"`
	Carbs      float64   `json:"carbs"`
	Fat        float64   `json:"fat"`
	Sugar      float64   `json:"sugar"`
	Timestamp  time.Time `json:"timestamp"`
	MealType   MealType  `json:"mealType,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Portion    string    `json:"portion,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

func (e FoodEntry) Macros() Macros {
	return Macros{Calories: e.Calories, Protein: e.Protein, Carbs: e.Carbs, Fat: e.Fat, Sugar: e.Sugar}
}

func (e *FoodEntry) SetMacros(m Macros) {
	e.Calories = m.Calories
	e.Protein = m.Protein
	e.Carbs = m.Carbs
	e.Fat = m.Fat
	e.Sugar = m.Sugar
}

// Validate checks the stored shape of an entry.
func (e FoodEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("entry name is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("entry timestamp is required")
	}
	if err := e.Macros().Validate(); err != nil {
		return err
	}
	if !e.MealType.Valid() {
		return fmt.Errorf("invalid meal type %q", e.MealType)
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1 || math.IsNaN(*e.Confidence)) {
		return fmt.Errorf("confidence must be between 0 and 1")
	}
	return nil
}

type DailyProgress struct {
	Date    string      `json:"date"`
	Entries []FoodEntry `json:"entries"`
	Totals  Macros      `json:"totals"`
}

// DailyTarget holds goal values; Sugar is a ceiling rather than a goal.
type DailyTarget struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Sugar    float64 `json:"sugar"`
}

func (t DailyTarget) Macros() Macros {
	return Macros{Calories: t.Calories, Protein: t.Protein, Carbs: t.Carbs, Fat: t.Fat, Sugar: t.Sugar}
}

func TargetFromMacros(m Macros) DailyTarget {
	return DailyTarget{Calories: m.Calories, Protein: m.Protein, Carbs: m.Carbs, Fat: m.Fat, Sugar: m.Sugar}
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

type Goal string

const (
	GoalLoseWeight Goal = "lose_weight"
	GoalMaintain   Goal = "maintain"
	GoalGainMuscle Goal = "gain_muscle"
)

type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

type UserProfile struct {
	Age           *int          `json:"age,omitempty"`
	Gender        Gender        `json:"gender,omitempty"`
	ActivityLevel ActivityLevel `json:"activityLevel,omitempty"`
	Goal          Goal          `json:"goal,omitempty"`
	CurrentWeight *float64      `json:"currentWeight,omitempty"`
	Height        *float64      `json:"height,omitempty"`
	Units         Units         `json:"units,omitempty"`
}

func (p UserProfile) Validate() error {
	switch p.Gender {
	case "", GenderMale, GenderFemale, GenderOther:
	default:
		return fmt.Errorf("invalid gender %q", p.Gender)
	}
	switch p.ActivityLevel {
	case "", ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive:
	default:
		return fmt.Errorf("invalid activity level %q", p.ActivityLevel)
	}
	switch p.Goal {
	case "", GoalLoseWeight, GoalMaintain, GoalGainMuscle:
	default:
		return fmt.Errorf("invalid goal %q", p.Goal)
	}
	switch p.Units {
	case "", UnitsMetric, UnitsImperial:
	default:
		return fmt.Errorf("invalid units %q", p.Units)
	}
	if p.Age != nil && *p.Age <= 0 {
		return fmt.Errorf("age must be > 0")
	}
	if p.CurrentWeight != nil && *p.CurrentWeight <= 0 {
		return fmt.Errorf("weight must be > 0")
	}
	if p.Height != nil && *p.Height <= 0 {
		return fmt.Errorf("height must be > 0")
	}
	return nil
}

type QuickLogItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Calories  float64   `json:"calories"`
	Protein   float64   `json:"protein"`
	Carbs     float64   `json:"carbs"`
	Fat       float64   `json:"fat"`
	Sugar     float64   `json:"sugar"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	LastUsed  time.Time `json:"lastUsed"`
	Frequency int       `json:"frequency"`
	Starred   bool      `json:"starred,omitempty"`
}

func (q QuickLogItem) Macros() Macros {
	return Macros{Calories: q.Calories, Protein: q.Protein, Carbs: q.Carbs, Fat: q.Fat, Sugar: q.Sugar}
}

func (q QuickLogItem) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("quick-log item name is required")
	}
	if q.Frequency < 1 {
		return fmt.Errorf("quick-log item %q has frequency %d", q.Name, q.Frequency)
	}
	if err := q.Macros().Validate(); err != nil {
		return fmt.Errorf("quick-log item %q: %w", q.Name, err)
	}
	return nil
}

type Settings struct {
	QuickCapture  bool     `json:"quickCapture"`
	AutoSubmit    bool     `json:"autoSubmit"`
	DarkMode      bool     `json:"darkMode"`
	Notifications bool     `json:"notifications"`
	ReminderTimes []string `json:"reminderTimes,omitempty"`
}

// Validate checks that every reminder time is HH:MM.
func (s Settings) Validate() error {
	for _, r := range s.ReminderTimes {
		if _, err := time.Parse("15:04", r); err != nil {
			return fmt.Errorf("invalid reminder time %q", r)
		}
	}
	return nil
}

func DefaultSettings() Settings {
	return Settings{QuickCapture: true, AutoSubmit: true, DarkMode: true}
}

// CatalogItem is a candidate food for the suggestion scorer.
type CatalogItem struct {
	Name string `json:"name"`
	Macros
}

// PendingUndo remembers the most recently removed entry so it can be
// restored at its former position until ExpiresAt.
type PendingUndo struct {
	Date      string    `json:"date"`
	Index     int       `json:"index"`
	Entry     FoodEntry `json:"entry"`
	ExpiresAt time.Time `json:"expiresAt"`
}

package models

import (
	"time"
)

// DateLayout is the ISO-8601 calendar date format used for log dates.
const DateLayout = "2006-01-02"

// MealEntry is one submitted meal for a day
type MealEntry struct {
	Name     string   `json:"name"`
	Items    []string `json:"items"`    // already comma-split
	Calories float64  `json:"calories"` // kcal
}

// Effect describes how a GRPM association influences the score
type Effect string

const (
	EffectBeneficial Effect = "beneficial"
	EffectAdverse    Effect = "adverse"
	EffectNeutral    Effect = "neutral"
)

// Match records one scored (marker, item) pair
type Match struct {
	Marker string  `json:"marker"`
	Item   string  `json:"item"`
	Effect Effect  `json:"effect"`
	Weight float64 `json:"weight"`
}

// Evaluation is the scoring engine's output for a set of meals
type Evaluation struct {
	TotalCalories float64 `json:"total_calories"`
	Score         float64 `json:"score"` // 0-100
	Assessment    string  `json:"assessment"`
	Matches       []Match `json:"matches,omitempty"`
	Degraded      bool    `json:"degraded,omitempty"` // index unavailable, neutral-only scoring
}

// DailyLog is a persisted evaluation for one day
type DailyLog struct {
	ID            string      `json:"id"`
	Owner         string      `json:"owner"`
	Date          string      `json:"date"` // YYYY-MM-DD
	Meals         []MealEntry `json:"meals"`
	TotalCalories float64     `json:"calories"`
	Score         float64     `json:"score"`
	Assessment    string      `json:"assessment"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Plan holds calorie and macro targets derived from body metrics
type Plan struct {
	BMR            float64 `json:"bmr"`
	TDEE           float64 `json:"tdee"`
	TargetCalories float64 `json:"target_calories"`
	ProteinGrams   float64 `json:"protein_g"`
	CarbGrams      float64 `json:"carb_g"`
	FatGrams       float64 `json:"fat_g"`
	ProteinPct     float64 `json:"protein_pct"`
	CarbPct        float64 `json:"carb_pct"`
	FatPct         float64 `json:"fat_pct"`
	BMI            float64 `json:"bmi,omitempty"`
	BMICategory    string  `json:"bmi_category,omitempty"`
}

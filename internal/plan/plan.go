// Package plan derives calorie and macro targets from body metrics.
package plan

import (
	"errors"
	"math"
	"strings"

	"github.com/franckalain/grpmnutrition/internal/models"
)

// DefaultActivityMultiplier is the moderate-activity TDEE factor.
const DefaultActivityMultiplier = 1.55

const (
	kcalPerGramProtein = 4
	kcalPerGramCarb    = 4
	kcalPerGramFat     = 9

	pctProtein = 0.25
	pctCarb    = 0.50
	pctFat     = 0.25
)

// ErrIncompleteProfile is returned when height or weight is missing.
var ErrIncompleteProfile = errors.New("profile needs height and weight")

// BMR estimates basal metabolic rate with the Mifflin-St Jeor equation.
func BMR(weightKg, heightCm float64, age int, sex models.Sex) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if strings.HasPrefix(strings.ToLower(string(sex)), "m") {
		return base + 5
	}
	return base - 161
}

// TDEE scales BMR by an activity multiplier, rounded to whole kcal.
func TDEE(bmr, multiplier float64) float64 {
	return math.Round(bmr * multiplier)
}

// Macros is a gram split of a calorie target.
type Macros struct {
	ProteinGrams float64
	CarbGrams    float64
	FatGrams     float64
}

// MacroSplit divides calories 25/50/25 across protein, carbs and fat.
func MacroSplit(totalCal float64) Macros {
	return Macros{
		ProteinGrams: math.Round(totalCal * pctProtein / kcalPerGramProtein),
		CarbGrams:    math.Round(totalCal * pctCarb / kcalPerGramCarb),
		FatGrams:     math.Round(totalCal * pctFat / kcalPerGramFat),
	}
}

// ForProfile builds a maintain-weight plan.
func ForProfile(p models.Profile) (models.Plan, error) {
	if p.HeightCm <= 0 || p.WeightKg <= 0 {
		return models.Plan{}, ErrIncompleteProfile
	}

	bmr := BMR(p.WeightKg, p.HeightCm, p.Age, p.Sex)
	tdee := TDEE(bmr, DefaultActivityMultiplier)
	target := tdee
	macros := MacroSplit(target)

	out := models.Plan{
		BMR:            math.Round(bmr),
		TDEE:           tdee,
		TargetCalories: target,
		ProteinGrams:   macros.ProteinGrams,
		CarbGrams:      macros.CarbGrams,
		FatGrams:       macros.FatGrams,
		ProteinPct:     pctProtein * 100,
		CarbPct:        pctCarb * 100,
		FatPct:         pctFat * 100,
	}

	if bmi, err := BMI(p.HeightCm, p.WeightKg); err == nil {
		out.BMI = math.Round(bmi*10) / 10
		out.BMICategory = BMICategory(bmi)
	}
	return out, nil
}

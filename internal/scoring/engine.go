// Package scoring implements the GRPM meal evaluation.
//
// Evaluation is a pure function of the meals, the profile and the index:
// it performs no I/O and reads no clock.
package scoring

import (
	"fmt"
	"math"

	"github.com/franckalain/grpmnutrition/internal/grpm"
	"github.com/franckalain/grpmnutrition/internal/models"
)

const (
	// DefaultBaseline is the neutral starting score.
	DefaultBaseline = 50.0

	MinScore = 0.0
	MaxScore = 100.0

	degradedSuffix = " (GRPM index unavailable)"
)

// Assessment labels, best first.
const (
	LabelExcellent        = "Excellent"
	LabelGood             = "Good"
	LabelFair             = "Fair"
	LabelNeedsImprovement = "Needs Improvement"
)

// Thresholds are inclusive lower bounds for each assessment label.
type Thresholds struct {
	Excellent float64 `json:"excellent"`
	Good      float64 `json:"good"`
	Fair      float64 `json:"fair"`
}

// DefaultThresholds: >=80 Excellent, >=60 Good, >=40 Fair, else Needs Improvement.
var DefaultThresholds = Thresholds{Excellent: 80, Good: 60, Fair: 40}

// Validate checks the thresholds are strictly descending within the score range.
func (t Thresholds) Validate() error {
	if !(t.Excellent <= MaxScore && t.Excellent > t.Good && t.Good > t.Fair && t.Fair >= MinScore) {
		return fmt.Errorf("thresholds must satisfy 100 >= excellent > good > fair >= 0, got %v/%v/%v",
			t.Excellent, t.Good, t.Fair)
	}
	return nil
}

// Label maps a score to its assessment label.
func (t Thresholds) Label(score float64) string {
	switch {
	case score >= t.Excellent:
		return LabelExcellent
	case score >= t.Good:
		return LabelGood
	case score >= t.Fair:
		return LabelFair
	default:
		return LabelNeedsImprovement
	}
}

// Engine scores meals against a GRPM index.
type Engine struct {
	index      *grpm.Index
	baseline   float64
	thresholds Thresholds
}

// Option configures an Engine.
type Option func(*Engine)

// WithBaseline overrides the neutral baseline score.
func WithBaseline(b float64) Option {
	return func(e *Engine) { e.baseline = b }
}

// WithThresholds overrides the assessment thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// New creates an engine. A nil index scores in degraded mode.
func New(index *grpm.Index, opts ...Option) (*Engine, error) {
	e := &Engine{
		index:      index,
		baseline:   DefaultBaseline,
		thresholds: DefaultThresholds,
	}
	for _, opt := range opts {
		opt(e)
	}

	if math.IsNaN(e.baseline) || e.baseline < MinScore || e.baseline > MaxScore {
		return nil, fmt.Errorf("baseline %v outside [0,100]", e.baseline)
	}
	if err := e.thresholds.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Evaluate computes total calories, score and assessment for a day's meals.
// A nil profile yields no marker matches.
func (e *Engine) Evaluate(meals []models.MealEntry, profile *models.Profile) models.Evaluation {
	total := TotalCalories(meals)

	var notes string
	if profile != nil {
		notes = profile.Notes
	}

	matches := e.match(grpm.Tokens(notes), meals)

	score := e.baseline
	for _, m := range matches {
		switch m.Effect {
		case models.EffectBeneficial:
			score += m.Weight
		case models.EffectAdverse:
			score -= m.Weight
		}
	}

	// An empty day carries no dietary evidence.
	if total == 0 && score > e.baseline {
		score = e.baseline
	}
	score = clamp(score)

	assessment := e.thresholds.Label(score)
	degraded := e.index.Degraded()
	if degraded {
		assessment += degradedSuffix
	}

	return models.Evaluation{
		TotalCalories: total,
		Score:         score,
		Assessment:    assessment,
		Matches:       matches,
		Degraded:      degraded,
	}
}

// match pairs carried markers with meal items. A pair applies when the
// carried marker's association is the item, or the item is itself a key whose
// association is a carried marker. Each (item occurrence, entry) pair counts once.
func (e *Engine) match(markers []string, meals []models.MealEntry) []models.Match {
	if len(markers) == 0 || e.index.Len() == 0 {
		return nil
	}

	carried := make([]grpm.Entry, 0, len(markers))
	carriedSet := make(map[string]struct{}, len(markers))
	for _, tok := range markers {
		carriedSet[tok] = struct{}{}
		if entry, ok := e.index.Lookup(tok); ok {
			carried = append(carried, entry)
		}
	}

	var matches []models.Match
	for _, meal := range meals {
		for _, raw := range meal.Items {
			item := grpm.NormalizeItem(raw)
			if item == "" {
				continue
			}

			applied := make(map[string]struct{})
			for _, entry := range carried {
				if entry.AssociationKey() != item {
					continue
				}
				applied[entry.Key()] = struct{}{}
				matches = append(matches, newMatch(entry, entry.Marker, raw))
			}

			entry, ok := e.index.Lookup(grpm.NormalizeMarker(item))
			if !ok {
				continue
			}
			if _, done := applied[entry.Key()]; done {
				continue
			}
			if _, carries := carriedSet[grpm.NormalizeMarker(entry.AssociationKey())]; carries {
				matches = append(matches, newMatch(entry, entry.Association, raw))
			}
		}
	}
	return matches
}

func newMatch(entry grpm.Entry, marker, item string) models.Match {
	return models.Match{
		Marker: marker,
		Item:   item,
		Effect: entry.Effect,
		Weight: entry.Weight,
	}
}

// TotalCalories sums declared calories, counting negative or non-finite values
// as 0. The sum saturates at math.MaxFloat64 and is always finite.
func TotalCalories(meals []models.MealEntry) float64 {
	var total float64
	for _, m := range meals {
		c := m.Calories
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			continue
		}
		if c > math.MaxFloat64-total {
			return math.MaxFloat64
		}
		total += c
	}
	return total
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, score))
}

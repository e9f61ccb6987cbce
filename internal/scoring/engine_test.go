package scoring

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/franckalain/grpmnutrition/internal/grpm"
	"github.com/franckalain/grpmnutrition/internal/models"
)

func mustIndex(t *testing.T, entries ...grpm.Entry) *grpm.Index {
	t.Helper()
	idx, err := grpm.New("test", entries)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func mustEngine(t *testing.T, idx *grpm.Index, opts ...Option) *Engine {
	t.Helper()
	e, err := New(idx, opts...)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return e
}

func breakfast(items ...string) []models.MealEntry {
	return []models.MealEntry{{Name: "Breakfast", Items: items, Calories: 300}}
}

func TestEvaluateBeneficialScenario(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "MTHFR", Association: "folate-rich greens", Effect: models.EffectBeneficial, Weight: 20})
	e := mustEngine(t, idx)

	got := e.Evaluate(breakfast("folate-rich greens"), &models.Profile{Notes: "MTHFR"})

	if got.TotalCalories != 300 {
		t.Errorf("expected 300 kcal, got %v", got.TotalCalories)
	}
	if got.Score != 70 {
		t.Errorf("expected score 70, got %v", got.Score)
	}
	if got.Assessment != LabelGood {
		t.Errorf("expected %q, got %q", LabelGood, got.Assessment)
	}
	want := []models.Match{{Marker: "MTHFR", Item: "folate-rich greens", Effect: models.EffectBeneficial, Weight: 20}}
	if !reflect.DeepEqual(got.Matches, want) {
		t.Errorf("unexpected matches %+v", got.Matches)
	}
	if got.Degraded {
		t.Error("did not expect degraded evaluation")
	}
}

func TestEvaluateAdverseScenario(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "MTHFR", Association: "folate-rich greens", Effect: models.EffectAdverse, Weight: 20})
	e := mustEngine(t, idx)

	got := e.Evaluate(breakfast("folate-rich greens"), &models.Profile{Notes: "MTHFR"})

	if got.Score != 30 {
		t.Errorf("expected score 30, got %v", got.Score)
	}
	if got.Assessment != LabelNeedsImprovement {
		t.Errorf("expected %q, got %q", LabelNeedsImprovement, got.Assessment)
	}
}

func TestEvaluateMatchingIsCaseAndSpaceInsensitive(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "MTHFR", Association: "folate-rich greens", Effect: models.EffectBeneficial, Weight: 20})
	e := mustEngine(t, idx)

	got := e.Evaluate(breakfast("  Folate-Rich  Greens "), &models.Profile{Notes: "genotype: mthfr (C677T)."})
	if got.Score != 70 {
		t.Fatalf("expected score 70, got %v", got.Score)
	}
}

func TestEvaluateNoFuzzyMatching(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "MTHFR", Association: "folate-rich greens", Effect: models.EffectBeneficial, Weight: 20})
	e := mustEngine(t, idx)

	got := e.Evaluate(breakfast("greens", "folate-rich greens salad"), &models.Profile{Notes: "MTHFR1 xMTHFR"})
	if got.Score != DefaultBaseline || len(got.Matches) != 0 {
		t.Fatalf("expected neutral score with no matches, got %v %+v", got.Score, got.Matches)
	}
}

func TestEvaluateReverseKeyMatch(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "coffee", Association: "CYP1A2", Effect: models.EffectAdverse, Weight: 10})
	e := mustEngine(t, idx)

	got := e.Evaluate(breakfast("Coffee"), &models.Profile{Notes: "slow metabolizer CYP1A2"})
	if got.Score != 40 {
		t.Fatalf("expected score 40, got %v", got.Score)
	}
	if len(got.Matches) != 1 || got.Matches[0].Marker != "CYP1A2" || got.Matches[0].Item != "Coffee" {
		t.Fatalf("unexpected matches %+v", got.Matches)
	}
}

func TestEvaluateNeutralAndUnmatched(t *testing.T) {
	idx := mustIndex(t,
		grpm.Entry{Marker: "AMY1", Association: "white rice", Effect: models.EffectNeutral, Weight: 30},
		grpm.Entry{Marker: "FTO", Association: "fried food", Effect: models.EffectAdverse, Weight: 15},
	)
	e := mustEngine(t, idx)

	got := e.Evaluate(breakfast("white rice", "apples"), &models.Profile{Notes: "AMY1"})
	if got.Score != DefaultBaseline {
		t.Fatalf("expected baseline, got %v", got.Score)
	}
	if len(got.Matches) != 1 || got.Matches[0].Effect != models.EffectNeutral {
		t.Fatalf("expected one neutral match, got %+v", got.Matches)
	}
}

func TestEvaluateEachOccurrenceCounts(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "LCT", Association: "milk", Effect: models.EffectAdverse, Weight: 10})
	e := mustEngine(t, idx)

	meals := []models.MealEntry{
		{Name: "Breakfast", Items: []string{"milk", "oats"}, Calories: 350},
		{Name: "Dinner", Items: []string{"Milk"}, Calories: 120},
	}
	got := e.Evaluate(meals, &models.Profile{Notes: "LCT LCT lct"})
	if got.Score != 30 {
		t.Fatalf("expected score 30, got %v", got.Score)
	}
	if got.TotalCalories != 470 {
		t.Fatalf("expected 470 kcal, got %v", got.TotalCalories)
	}
}

func TestEvaluateEmptyMealsNeverAboveBaseline(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "MTHFR", Association: "folate-rich greens", Effect: models.EffectBeneficial, Weight: 40})
	e := mustEngine(t, idx)

	for _, notes := range []string{"", "MTHFR", strings.Repeat("MTHFR ", 100)} {
		got := e.Evaluate(nil, &models.Profile{Notes: notes})
		if got.TotalCalories != 0 {
			t.Errorf("expected 0 kcal, got %v", got.TotalCalories)
		}
		if got.Score > DefaultBaseline {
			t.Errorf("notes %q: score %v above baseline", notes, got.Score)
		}
	}

	// Items logged with zero calories still carry no evidence for a higher score.
	zero := []models.MealEntry{{Name: "Lunch", Items: []string{"folate-rich greens"}, Calories: 0}}
	if got := e.Evaluate(zero, &models.Profile{Notes: "MTHFR"}); got.Score != DefaultBaseline {
		t.Errorf("expected capped baseline, got %v", got.Score)
	}
}

func TestEvaluateZeroCaloriesAdverseStillApplies(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "ALDH2", Association: "alcohol", Effect: models.EffectAdverse, Weight: 20})
	e := mustEngine(t, idx)

	got := e.Evaluate([]models.MealEntry{{Items: []string{"alcohol"}}}, &models.Profile{Notes: "ALDH2"})
	if got.Score != 30 {
		t.Fatalf("expected 30, got %v", got.Score)
	}
}

func TestEvaluateClampsFloods(t *testing.T) {
	idx := mustIndex(t,
		grpm.Entry{Marker: "MTHFR", Association: "greens", Effect: models.EffectBeneficial, Weight: 50},
		grpm.Entry{Marker: "FTO", Association: "fries", Effect: models.EffectAdverse, Weight: 50},
	)
	e := mustEngine(t, idx)

	many := func(item string) []string {
		items := make([]string, 500)
		for i := range items {
			items[i] = item
		}
		return items
	}

	high := e.Evaluate([]models.MealEntry{{Items: many("greens"), Calories: 500}}, &models.Profile{Notes: "MTHFR"})
	if high.Score != MaxScore || high.Assessment != LabelExcellent {
		t.Errorf("expected clamp to 100/Excellent, got %v/%s", high.Score, high.Assessment)
	}

	low := e.Evaluate([]models.MealEntry{{Items: many("fries"), Calories: 500}}, &models.Profile{Notes: "FTO"})
	if low.Score != MinScore || low.Assessment != LabelNeedsImprovement {
		t.Errorf("expected clamp to 0/Needs Improvement, got %v/%s", low.Score, low.Assessment)
	}
}

func TestEvaluateNilAndEmptyProfile(t *testing.T) {
	idx := mustIndex(t, grpm.Entry{Marker: "MTHFR", Association: "folate-rich greens", Effect: models.EffectBeneficial, Weight: 20})
	e := mustEngine(t, idx)

	for _, p := range []*models.Profile{nil, {}} {
		got := e.Evaluate(breakfast("folate-rich greens"), p)
		if got.Score != DefaultBaseline || len(got.Matches) != 0 {
			t.Errorf("expected neutral evaluation, got %+v", got)
		}
	}
}

func TestTotalCaloriesDefensive(t *testing.T) {
	meals := []models.MealEntry{
		{Calories: 100},
		{Calories: -50},
		{Calories: math.NaN()},
		{Calories: math.Inf(1)},
		{Calories: 250.5},
	}
	if got := TotalCalories(meals); got != 350.5 {
		t.Fatalf("expected 350.5, got %v", got)
	}
	if got := TotalCalories(nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestTotalCaloriesSaturates(t *testing.T) {
	meals := []models.MealEntry{{Calories: 1e308}, {Calories: 1e308}, {Calories: 10}}

	total := TotalCalories(meals)
	if math.IsInf(total, 0) || math.IsNaN(total) {
		t.Fatalf("expected a finite total, got %v", total)
	}
	if total != math.MaxFloat64 {
		t.Fatalf("expected saturation at MaxFloat64, got %v", total)
	}

	got := mustEngine(t, mustIndex(t)).Evaluate(meals, nil)
	if math.IsInf(got.TotalCalories, 0) || got.Score != DefaultBaseline {
		t.Fatalf("unexpected evaluation %+v", got)
	}
}

func TestEvaluateDegradedIndex(t *testing.T) {
	e := mustEngine(t, grpm.Empty())

	got := e.Evaluate(breakfast("folate-rich greens"), &models.Profile{Notes: "MTHFR"})
	if !got.Degraded {
		t.Fatal("expected degraded evaluation")
	}
	if got.Score != DefaultBaseline {
		t.Errorf("expected neutral score, got %v", got.Score)
	}
	if got.Assessment != LabelFair+degradedSuffix {
		t.Errorf("unexpected assessment %q", got.Assessment)
	}

	nilEngine := mustEngine(t, nil)
	if got := nilEngine.Evaluate(nil, nil); !got.Degraded {
		t.Error("nil index should evaluate degraded")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	idx, err := grpm.LoadFile("")
	if err != nil {
		t.Fatal(err)
	}
	e := mustEngine(t, idx)

	meals := []models.MealEntry{
		{Name: "Breakfast", Items: []string{"coffee", "milk", "eggs"}, Calories: 420},
		{Name: "Lunch", Items: []string{"salmon", "whole grains", "broccoli"}, Calories: 640},
	}
	profile := &models.Profile{Notes: "CYP1A2 LCT FADS1 GSTM1 VDR"}

	first := e.Evaluate(meals, profile)
	for i := 0; i < 20; i++ {
		if got := e.Evaluate(meals, profile); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
	// 50 - 10 (coffee) - 10 (milk) + 5 (eggs) + 15 (salmon) + 10 (broccoli)
	if first.Score != 60 {
		t.Errorf("expected 60, got %v", first.Score)
	}
}

func TestThresholdBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, LabelExcellent},
		{80, LabelExcellent},
		{79.999, LabelGood},
		{60, LabelGood},
		{59.9, LabelFair},
		{40, LabelFair},
		{39.99, LabelNeedsImprovement},
		{0, LabelNeedsImprovement},
	}

	for _, tt := range tests {
		if got := DefaultThresholds.Label(tt.score); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(nil, WithBaseline(120)); err == nil {
		t.Error("expected baseline error")
	}
	if _, err := New(nil, WithThresholds(Thresholds{Excellent: 60, Good: 60, Fair: 40})); err == nil {
		t.Error("expected threshold error")
	}

	e, err := New(nil, WithBaseline(60), WithThresholds(Thresholds{Excellent: 90, Good: 70, Fair: 50}))
	if err != nil {
		t.Fatal(err)
	}
	got := e.Evaluate(nil, nil)
	if got.Score != 60 || got.Assessment != LabelFair+degradedSuffix {
		t.Errorf("unexpected evaluation %+v", got)
	}
}

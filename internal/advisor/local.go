package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/franckalain/grpmnutrition/internal/models"
)

// Local builds advice from the evaluation's matches without any model call.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (l *Local) Load(ctx context.Context) error { return nil }

func (l *Local) Advise(ctx context.Context, eval models.Evaluation, profile models.Profile) (string, error) {
	var b strings.Builder

	if eval.Degraded {
		b.WriteString("Genotype scoring is unavailable right now, so this score is neutral. ")
	}

	if eval.TotalCalories == 0 {
		b.WriteString("No calories were logged; add your meals to get a meaningful score.")
		return strings.TrimSpace(b.String()), nil
	}

	seen := make(map[string]struct{})
	for _, m := range eval.Matches {
		key := strings.ToLower(m.Marker + "|" + m.Item + "|" + string(m.Effect))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		switch m.Effect {
		case models.EffectBeneficial:
			fmt.Fprintf(&b, "%s suits your %s variant (+%g). ", m.Item, m.Marker, m.Weight)
		case models.EffectAdverse:
			fmt.Fprintf(&b, "Consider limiting %s given your %s variant (-%g). ", m.Item, m.Marker, m.Weight)
		}
	}

	if len(eval.Matches) == 0 {
		if strings.TrimSpace(profile.Notes) == "" {
			b.WriteString("Add genotype markers to your profile notes for personalized scoring.")
		} else {
			b.WriteString("No genotype-specific associations were found in today's meals.")
		}
	}

	return strings.TrimSpace(b.String()), nil
}

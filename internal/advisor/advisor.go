package advisor

import (
	"context"
	"fmt"

	"github.com/franckalain/grpmnutrition/internal/config"
	"github.com/franckalain/grpmnutrition/internal/models"
)

// Advisor turns an evaluation into narrative advice. Advice never changes the
// score or assessment.
type Advisor interface {
	// Load initializes the advisor with its configuration
	Load(ctx context.Context) error
	// Advise returns advice text, or "" when there is nothing to say
	Advise(ctx context.Context, eval models.Evaluation, profile models.Profile) (string, error)
}

// New creates an advisor for the configured type.
func New(cfg config.AdvisorConfig) (Advisor, error) {
	switch cfg.Type {
	case "", "none":
		return None{}, nil
	case "local":
		return NewLocal(), nil
	case "google":
		return NewGoogle(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported advisor type: %s", cfg.Type)
	}
}

// None gives no advice.
type None struct{}

func (None) Load(context.Context) error { return nil }

func (None) Advise(context.Context, models.Evaluation, models.Profile) (string, error) {
	return "", nil
}

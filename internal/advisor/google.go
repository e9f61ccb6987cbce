package advisor

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/franckalain/grpmnutrition/internal/config"
	"github.com/franckalain/grpmnutrition/internal/models"
	"google.golang.org/api/option"
)

// Google generates advice with a Vertex AI Gemini model
type Google struct {
	config config.AdvisorConfig
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGoogle(cfg config.AdvisorConfig) *Google {
	return &Google{config: cfg}
}

// Load initializes the Vertex AI client
func (g *Google) Load(ctx context.Context) error {
	if g.config.ProjectID == "" {
		return fmt.Errorf("google advisor: project id is required")
	}

	opts := []option.ClientOption{}
	if g.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, g.config.ProjectID, g.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	g.client = client
	g.model = client.GenerativeModel(g.config.Model)
	return nil
}

// Advise asks the model for a short explanation of the evaluation
func (g *Google) Advise(ctx context.Context, eval models.Evaluation, profile models.Profile) (string, error) {
	if g.model == nil {
		return "", fmt.Errorf("model not loaded")
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(eval, profile)))
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response generated")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// Close releases the client
func (g *Google) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func buildPrompt(eval models.Evaluation, profile models.Profile) string {
	var b strings.Builder
	b.WriteString(`You are a nutrition assistant. In at most three sentences, explain this genotype-aware
meal score to the user and suggest one concrete change. Do not change the score or invent markers.
`)
	fmt.Fprintf(&b, "Score: %.0f/100 (%s)\n", eval.Score, eval.Assessment)
	fmt.Fprintf(&b, "Total calories: %.0f kcal\n", eval.TotalCalories)
	if profile.Age > 0 {
		fmt.Fprintf(&b, "Profile: %d years, %s\n", profile.Age, profile.Sex)
	}
	if len(eval.Matches) == 0 {
		b.WriteString("Matches: none\n")
	}
	for _, m := range eval.Matches {
		fmt.Fprintf(&b, "- marker %s, food %s: %s (weight %g)\n", m.Marker, m.Item, m.Effect, m.Weight)
	}
	return b.String()
}

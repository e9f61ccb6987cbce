package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/franckalain/grpmnutrition/internal/models"
)

// SaveProfile upserts the single profile owned by username. Last write wins.
func (s *SQLiteDB) SaveProfile(ctx context.Context, username string, profile models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		INSERT INTO profiles (
			username, name, age, sex, height_cm, weight_kg, notes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			sex = excluded.sex,
			height_cm = excluded.height_cm,
			weight_kg = excluded.weight_kg,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		username, profile.Name, profile.Age, string(profile.Sex),
		profile.HeightCm, profile.WeightKg, profile.Notes,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// LoadProfile returns the profile for username, or an empty profile and false
// when none was saved yet.
func (s *SQLiteDB) LoadProfile(ctx context.Context, username string) (models.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT name, age, sex, height_cm, weight_kg, notes
		FROM profiles WHERE username = ?
	`

	var (
		p   models.Profile
		sex string
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&p.Name, &p.Age, &sex, &p.HeightCm, &p.WeightKg, &p.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, false, nil
	}
	if err != nil {
		return models.Profile{}, false, fmt.Errorf("select profile: %w", err)
	}
	p.Sex = models.Sex(sex)
	return p, true, nil
}

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/franckalain/grpmnutrition/internal/models"
	"github.com/google/uuid"
)

// SaveDailyLog appends one immutable log record. Several logs may share a date.
// ID and CreatedAt are assigned when empty.
func (s *SQLiteDB) SaveDailyLog(ctx context.Context, log *models.DailyLog) error {
	if log.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidLog)
	}
	if _, err := time.Parse(models.DateLayout, log.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidLog, log.Date)
	}
	if math.IsNaN(log.Score) || log.Score < 0 || log.Score > 100 {
		return fmt.Errorf("%w: score %v outside [0,100]", ErrInvalidLog, log.Score)
	}
	if math.IsNaN(log.TotalCalories) || math.IsInf(log.TotalCalories, 0) || log.TotalCalories < 0 {
		return fmt.Errorf("%w: total calories %v", ErrInvalidLog, log.TotalCalories)
	}

	meals := log.Meals
	if meals == nil {
		meals = []models.MealEntry{}
	}
	mealsJSON, err := json.Marshal(meals)
	if err != nil {
		return fmt.Errorf("%w: encode meals: %v", ErrInvalidLog, err)
	}

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		INSERT INTO daily_logs (
			id, username, date, meals, total_calories, score, assessment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		log.ID, log.Owner, log.Date, string(mealsJSON),
		log.TotalCalories, log.Score, log.Assessment,
		log.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert daily log: %w", err)
	}
	return nil
}

// LoadLogs returns at most limit logs for username, most recent date first.
// Logs sharing a date are ordered newest insert first.
func (s *SQLiteDB) LoadLogs(ctx context.Context, username string, limit int) ([]models.DailyLog, error) {
	if limit <= 0 {
		return []models.DailyLog{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, username, date, meals, total_calories, score, assessment, created_at
		FROM daily_logs
		WHERE username = ?
		ORDER BY date DESC, seq DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("select daily logs: %w", err)
	}
	defer rows.Close()

	results := []models.DailyLog{}
	for rows.Next() {
		var (
			l         models.DailyLog
			mealsJSON string
			createdAt string
		)
		if err := rows.Scan(
			&l.ID, &l.Owner, &l.Date, &mealsJSON,
			&l.TotalCalories, &l.Score, &l.Assessment, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan daily log: %w", err)
		}

		if err := json.Unmarshal([]byte(mealsJSON), &l.Meals); err != nil {
			return nil, fmt.Errorf("decode meals for log %s: %w", l.ID, err)
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily logs: %w", err)
	}
	return results, nil
}

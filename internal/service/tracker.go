package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/franckalain/grpmnutrition/internal/advisor"
	"github.com/franckalain/grpmnutrition/internal/auth"
	"github.com/franckalain/grpmnutrition/internal/database"
	"github.com/franckalain/grpmnutrition/internal/models"
	"github.com/franckalain/grpmnutrition/internal/plan"
	"github.com/franckalain/grpmnutrition/internal/scoring"
)

const (
	// LatestLimit is how many logs the latest-assessment view reads.
	LatestLimit = 7
	// HistoryLimit is the default trend window.
	HistoryLimit = 365
	// MaxMeals bounds a single submission.
	MaxMeals = 10
	// MaxMealCalories bounds the calories declared for one meal.
	MaxMealCalories = 100000
)

// User-facing failure reasons.
const (
	ReasonEmptyCredentials   = "Username and password cannot be empty."
	ReasonPasswordMismatch   = "Passwords do not match."
	ReasonUsernameTaken      = "Registration failed. That username may already be taken."
	ReasonInvalidLogin       = "Invalid username or password."
	ReasonSessionExpired     = "Your session has expired. Please log in again."
	ReasonStorageUnavailable = "Storage is unavailable right now. Please try again."
	ReasonInvalidDate        = "Date must be in YYYY-MM-DD format."
	ReasonTooManyMeals       = "At most 10 meals can be logged at once."
	ReasonTooManyCalories    = "A meal cannot exceed 100000 calories."
	ReasonProfileIncomplete  = "Save your profile with height and weight to see a plan."
	ReasonWipeFailed         = "Failed to delete all data. Check server logs and permissions."
)

// Status reports whether an operation succeeded and, if not, why.
type Status struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func ok() Status { return Status{OK: true} }

func fail(reason string) Status { return Status{Reason: reason} }

// EvaluationResult is the outcome of evaluating and saving a day's meals
type EvaluationResult struct {
	Log        models.DailyLog   `json:"log"`
	Evaluation models.Evaluation `json:"evaluation"`
	Advice     string            `json:"advice,omitempty"`
}

// Tracker exposes account, profile and meal-log operations for callers.
// Storage and advisor errors are logged and reported as a Status.
type Tracker struct {
	db       database.DB
	engine   *scoring.Engine
	advisor  advisor.Advisor
	issuer   *auth.Issuer
	indexErr error
	logger   *slog.Logger
	now      func() time.Time
}

// Options collects Tracker dependencies
type Options struct {
	DB       database.DB
	Engine   *scoring.Engine
	Advisor  advisor.Advisor
	Issuer   *auth.Issuer
	IndexErr error // set when the GRPM index failed to load
	Logger   *slog.Logger
}

// NewTracker constructs a Tracker
func NewTracker(opts Options) (*Tracker, error) {
	if opts.DB == nil {
		return nil, errors.New("database is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("scoring engine is required")
	}
	if opts.Issuer == nil {
		return nil, errors.New("token issuer is required")
	}
	if opts.Advisor == nil {
		opts.Advisor = advisor.None{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		db:       opts.DB,
		engine:   opts.Engine,
		advisor:  opts.Advisor,
		issuer:   opts.Issuer,
		indexErr: opts.IndexErr,
		logger:   opts.Logger,
		now:      time.Now,
	}, nil
}

// IndexError returns the GRPM index load failure, if any.
func (t *Tracker) IndexError() error { return t.indexErr }

// Ping checks storage availability.
func (t *Tracker) Ping(ctx context.Context) error { return t.db.Ping(ctx) }

// Register creates an account.
func (t *Tracker) Register(ctx context.Context, username, password, confirm string) Status {
	if username == "" || password == "" {
		return fail(ReasonEmptyCredentials)
	}
	if password != confirm {
		return fail(ReasonPasswordMismatch)
	}

	created, err := t.db.RegisterUser(ctx, username, password)
	if err != nil {
		t.logger.Error("register user failed", "user", username, "error", err)
		return fail(ReasonStorageUnavailable)
	}
	if !created {
		return fail(ReasonUsernameTaken)
	}
	t.logger.Info("user registered", "user", username)
	return ok()
}

// Login verifies credentials and issues a session token.
func (t *Tracker) Login(ctx context.Context, username, password string) (string, Status) {
	valid, err := t.db.VerifyUser(ctx, username, password)
	if err != nil {
		t.logger.Error("verify user failed", "user", username, "error", err)
		return "", fail(ReasonStorageUnavailable)
	}
	if !valid {
		t.logger.Info("login rejected", "user", username)
		return "", fail(ReasonInvalidLogin)
	}

	accountID, exists, err := t.db.AccountID(ctx, username)
	if err != nil {
		t.logger.Error("lookup account failed", "user", username, "error", err)
		return "", fail(ReasonStorageUnavailable)
	}
	if !exists {
		return "", fail(ReasonInvalidLogin)
	}

	token, err := t.issuer.Issue(username, accountID)
	if err != nil {
		t.logger.Error("issue token failed", "user", username, "error", err)
		return "", fail(ReasonStorageUnavailable)
	}
	return token, ok()
}

// Resume validates a session token and confirms it was issued to the account
// that currently holds the username.
func (t *Tracker) Resume(ctx context.Context, token string) (string, Status) {
	sess, err := t.issuer.Parse(token)
	if err != nil {
		return "", fail(ReasonSessionExpired)
	}

	accountID, exists, err := t.db.AccountID(ctx, sess.Username)
	if err != nil {
		t.logger.Error("lookup account failed", "user", sess.Username, "error", err)
		return "", fail(ReasonStorageUnavailable)
	}
	if !exists || accountID != sess.AccountID {
		t.logger.Info("stale session rejected", "user", sess.Username)
		return "", fail(ReasonSessionExpired)
	}
	return sess.Username, ok()
}

// SaveProfile stores the user's profile, replacing any previous one.
func (t *Tracker) SaveProfile(ctx context.Context, username string, p models.Profile) Status {
	if err := p.Validate(); err != nil {
		return fail("Invalid profile: " + err.Error() + ".")
	}
	if err := t.db.SaveProfile(ctx, username, p); err != nil {
		t.logger.Error("save profile failed", "user", username, "error", err)
		return fail(ReasonStorageUnavailable)
	}
	return ok()
}

// LoadProfile returns the user's profile; found is false when none was saved.
func (t *Tracker) LoadProfile(ctx context.Context, username string) (models.Profile, bool, Status) {
	p, found, err := t.db.LoadProfile(ctx, username)
	if err != nil {
		t.logger.Error("load profile failed", "user", username, "error", err)
		return models.Profile{}, false, fail(ReasonStorageUnavailable)
	}
	return p, found, ok()
}

// Evaluate scores meals against the user's profile without saving.
func (t *Tracker) Evaluate(ctx context.Context, username string, meals []models.MealEntry) (models.Evaluation, Status) {
	if st := checkMeals(meals); !st.OK {
		return models.Evaluation{}, st
	}
	profile, _, st := t.LoadProfile(ctx, username)
	if !st.OK {
		return models.Evaluation{}, st
	}
	return t.engine.Evaluate(NormalizeMeals(meals), &profile), ok()
}

// EvaluateAndSave scores meals and appends the result to the user's history.
// An empty date means today.
func (t *Tracker) EvaluateAndSave(ctx context.Context, username, date string, meals []models.MealEntry) (EvaluationResult, Status) {
	if date == "" {
		date = t.now().Format(models.DateLayout)
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return EvaluationResult{}, fail(ReasonInvalidDate)
	}
	if st := checkMeals(meals); !st.OK {
		return EvaluationResult{}, st
	}

	profile, _, st := t.LoadProfile(ctx, username)
	if !st.OK {
		return EvaluationResult{}, st
	}

	meals = NormalizeMeals(meals)
	eval := t.engine.Evaluate(meals, &profile)

	log := models.DailyLog{
		Owner:         username,
		Date:          date,
		Meals:         meals,
		TotalCalories: eval.TotalCalories,
		Score:         eval.Score,
		Assessment:    eval.Assessment,
	}
	if err := t.db.SaveDailyLog(ctx, &log); err != nil {
		t.logger.Error("save daily log failed", "user", username, "date", date, "error", err)
		return EvaluationResult{}, fail(ReasonStorageUnavailable)
	}

	t.logger.Info("daily log saved",
		"user", username,
		"date", date,
		"score", eval.Score,
		"assessment", eval.Assessment,
		"matches", len(eval.Matches),
	)

	advice, err := t.advisor.Advise(ctx, eval, profile)
	if err != nil {
		t.logger.Warn("advisor failed", "user", username, "error", err)
		advice = ""
	}

	return EvaluationResult{Log: log, Evaluation: eval, Advice: advice}, ok()
}

// Latest returns the most recent log, or nil when there is no history.
func (t *Tracker) Latest(ctx context.Context, username string) (*models.DailyLog, Status) {
	logs, st := t.History(ctx, username, LatestLimit)
	if !st.OK || len(logs) == 0 {
		return nil, st
	}
	return &logs[0], st
}

// History returns up to limit logs, most recent first. limit <= 0 uses HistoryLimit.
func (t *Tracker) History(ctx context.Context, username string, limit int) ([]models.DailyLog, Status) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	logs, err := t.db.LoadLogs(ctx, username, limit)
	if err != nil {
		t.logger.Error("load logs failed", "user", username, "error", err)
		return nil, fail(ReasonStorageUnavailable)
	}
	return logs, ok()
}

// Plan returns calorie and macro targets for the user's saved profile.
func (t *Tracker) Plan(ctx context.Context, username string) (models.Plan, Status) {
	profile, found, st := t.LoadProfile(ctx, username)
	if !st.OK {
		return models.Plan{}, st
	}
	if !found {
		return models.Plan{}, fail(ReasonProfileIncomplete)
	}

	p, err := plan.ForProfile(profile)
	if errors.Is(err, plan.ErrIncompleteProfile) {
		return models.Plan{}, fail(ReasonProfileIncomplete)
	}
	if err != nil {
		return models.Plan{}, fail(fmt.Sprintf("Cannot compute plan: %v.", err))
	}
	return p, ok()
}

// DeleteAllData erases every account, profile and log.
func (t *Tracker) DeleteAllData(ctx context.Context) Status {
	if err := t.db.DeleteAllData(ctx); err != nil {
		t.logger.Error("delete all data failed", "error", err)
		return fail(ReasonWipeFailed)
	}
	return ok()
}

func checkMeals(meals []models.MealEntry) Status {
	if len(meals) > MaxMeals {
		return fail(ReasonTooManyMeals)
	}
	for _, m := range meals {
		if m.Calories > MaxMealCalories {
			return fail(ReasonTooManyCalories)
		}
	}
	return ok()
}

// NormalizeMeals applies submission defaults: unnamed meals become "Meal N",
// items are trimmed with empties dropped, invalid calories become 0.
func NormalizeMeals(meals []models.MealEntry) []models.MealEntry {
	out := make([]models.MealEntry, 0, len(meals))
	for i, m := range meals {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			name = fmt.Sprintf("Meal %d", i+1)
		}

		items := make([]string, 0, len(m.Items))
		for _, it := range m.Items {
			if it = strings.TrimSpace(it); it != "" {
				items = append(items, it)
			}
		}

		cal := m.Calories
		if cal < 0 || math.IsNaN(cal) || math.IsInf(cal, 0) {
			cal = 0
		}

		out = append(out, models.MealEntry{Name: name, Items: items, Calories: cal})
	}
	return out
}

// SplitItems turns a comma separated item list into trimmed tokens.
func SplitItems(s string) []string {
	var items []string
	for _, it := range strings.Split(s, ",") {
		if it = strings.TrimSpace(it); it != "" {
			items = append(items, it)
		}
	}
	return items
}

// Package cycle stores menstrual cycle tracking data. Each user owns at most
// one record; it is private to them unless they enable sharing, in which case
// their partner can read it and is told about updates.
package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cycle phases derived from the last period date.
const (
	PhaseMenstrual  = "menstrual"
	PhaseFollicular = "follicular"
	PhaseOvulation  = "ovulation"
	PhaseLuteal     = "luteal"
)

// Record is one user's cycle tracking state. CurrentPhase and
// DaysUntilNextPeriod are derived at read time, never stored.
type Record struct {
	UserID              string    `json:"user_id"`
	LastPeriodDate      *string   `json:"last_period_date"` // YYYY-MM-DD
	CycleLength         int       `json:"cycle_length"`     // days
	PeriodLength        int       `json:"period_length"`    // days
	Symptoms            []string  `json:"symptoms"`
	SharedWithPartner   bool      `json:"shared_with_partner"`
	CurrentPhase        string    `json:"current_phase,omitempty"`
	DaysUntilNextPeriod *int      `json:"days_until_next_period,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UpdateInput holds optional fields for a partial cycle update.
type UpdateInput struct {
	LastPeriodDate    *string   `json:"last_period_date,omitempty"`
	CycleLength       *int      `json:"cycle_length,omitempty"`
	PeriodLength      *int      `json:"period_length,omitempty"`
	Symptoms          *[]string `json:"symptoms,omitempty"`
	SharedWithPartner *bool     `json:"shared_with_partner,omitempty"`
}

// Defaults used when a user first saves tracking data without lengths.
const (
	defaultCycleLength  = 28
	defaultPeriodLength = 5
)

// Derive computes the current phase and days until the next period for a
// record as of the given day. Records without a last period date are left
// untouched.
func Derive(r *Record, today time.Time) {
	if r == nil || r.LastPeriodDate == nil {
		return
	}
	start, err := time.Parse("2006-01-02", *r.LastPeriodDate)
	if err != nil {
		return
	}
	elapsed := int(today.Sub(start).Hours() / 24)
	if elapsed < 0 {
		return
	}

	day := elapsed % r.CycleLength
	remaining := r.CycleLength - day
	r.DaysUntilNextPeriod = &remaining

	// Ovulation is estimated at 14 days before the next period.
	ovulation := r.CycleLength - 14
	switch {
	case day < r.PeriodLength:
		r.CurrentPhase = PhaseMenstrual
	case day >= ovulation-1 && day <= ovulation+1:
		r.CurrentPhase = PhaseOvulation
	case day < ovulation:
		r.CurrentPhase = PhaseFollicular
	default:
		r.CurrentPhase = PhaseLuteal
	}
}

// Store persists cycle records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a cycle store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const cycleColumns = `user_id, last_period_date, cycle_length, period_length, symptoms, shared_with_partner, updated_at`

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var r Record
	var symptomsJSON []byte
	err := scan(&r.UserID, &r.LastPeriodDate, &r.CycleLength, &r.PeriodLength, &symptomsJSON, &r.SharedWithPartner, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(symptomsJSON) > 0 {
		if err := json.Unmarshal(symptomsJSON, &r.Symptoms); err != nil {
			return nil, fmt.Errorf("decoding symptoms: %w", err)
		}
	}
	if r.Symptoms == nil {
		r.Symptoms = []string{}
	}
	return &r, nil
}

// Get returns a user's cycle record with derived fields populated, or
// (nil, nil) when none exists.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+cycleColumns+` FROM cycle_data WHERE user_id = $1`, userID)
	r, err := scanRecord(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cycle data: %w", err)
	}
	Derive(r, time.Now())
	return r, nil
}

// Upsert applies a partial update, creating the record with defaults on first
// write.
func (s *Store) Upsert(ctx context.Context, userID string, in UpdateInput) (*Record, error) {
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := Record{
		UserID:       userID,
		CycleLength:  defaultCycleLength,
		PeriodLength: defaultPeriodLength,
		Symptoms:     []string{},
	}
	if existing != nil {
		next = *existing
	}
	if in.LastPeriodDate != nil {
		next.LastPeriodDate = in.LastPeriodDate
	}
	if in.CycleLength != nil && *in.CycleLength > 0 {
		next.CycleLength = *in.CycleLength
	}
	if in.PeriodLength != nil && *in.PeriodLength > 0 {
		next.PeriodLength = *in.PeriodLength
	}
	if in.Symptoms != nil {
		next.Symptoms = *in.Symptoms
	}
	if in.SharedWithPartner != nil {
		next.SharedWithPartner = *in.SharedWithPartner
	}

	symptomsJSON, err := json.Marshal(next.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("encoding symptoms: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO cycle_data (user_id, last_period_date, cycle_length, period_length, symptoms, shared_with_partner)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			last_period_date = EXCLUDED.last_period_date,
			cycle_length = EXCLUDED.cycle_length,
			period_length = EXCLUDED.period_length,
			symptoms = EXCLUDED.symptoms,
			shared_with_partner = EXCLUDED.shared_with_partner,
			updated_at = now()
		RETURNING `+cycleColumns,
		next.UserID, next.LastPeriodDate, next.CycleLength, next.PeriodLength, symptomsJSON, next.SharedWithPartner)

	r, err := scanRecord(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("saving cycle data: %w", err)
	}
	Derive(r, time.Now())
	return r, nil
}

// Delete removes a user's cycle record entirely.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cycle_data WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting cycle data: %w", err)
	}
	return nil
}

package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const habitColumns = `id, title, description, frequency, target_days, target_count, time, assigned_to,
	progress, streak, last_completed, created_by, couple_id, is_personal, created_at, updated_at`

// scanHabit scans a habit row, handling the JSONB target_days and progress
// columns.
func scanHabit(scan func(dest ...any) error) (*Habit, error) {
	h := &Habit{}
	var targetDaysJSON, progressJSON []byte
	err := scan(&h.ID, &h.Title, &h.Description, &h.Frequency, &targetDaysJSON, &h.TargetCount,
		&h.Time, &h.AssignedTo, &progressJSON, &h.Streak, &h.LastCompleted,
		&h.CreatedBy, &h.CoupleID, &h.IsPersonal, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(targetDaysJSON) > 0 {
		if err := json.Unmarshal(targetDaysJSON, &h.TargetDays); err != nil {
			return nil, fmt.Errorf("unmarshaling target days: %w", err)
		}
	}
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &h.Progress); err != nil {
			return nil, fmt.Errorf("unmarshaling progress: %w", err)
		}
	}
	if h.TargetDays == nil {
		h.TargetDays = []int{}
	}
	if h.Progress == nil {
		h.Progress = map[string]bool{}
	}
	return h, nil
}

func marshalTargetDays(days []int) ([]byte, error) {
	if days == nil {
		days = []int{}
	}
	return json.Marshal(days)
}

func marshalProgress(progress map[string]bool) ([]byte, error) {
	if progress == nil {
		progress = map[string]bool{}
	}
	return json.Marshal(progress)
}

// InsertHabit persists a new habit and returns the stored row.
func (s *Store) InsertHabit(ctx context.Context, h *Habit) (*Habit, error) {
	targetDaysJSON, err := marshalTargetDays(h.TargetDays)
	if err != nil {
		return nil, fmt.Errorf("marshaling target days: %w", err)
	}
	progressJSON, err := marshalProgress(h.Progress)
	if err != nil {
		return nil, fmt.Errorf("marshaling progress: %w", err)
	}

	stored, err := scanHabit(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO habits (title, description, frequency, target_days, target_count, time, assigned_to,
			                     progress, created_by, couple_id, is_personal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING `+habitColumns,
			h.Title, h.Description, h.Frequency, targetDaysJSON, h.TargetCount, h.Time, h.AssignedTo,
			progressJSON, h.CreatedBy, h.CoupleID, h.IsPersonal,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting habit: %w", err)
	}
	return stored, nil
}

// GetHabit retrieves a habit by primary key.
func (s *Store) GetHabit(ctx context.Context, id string) (*Habit, error) {
	h, err := scanHabit(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+habitColumns+` FROM habits WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting habit: %w", err)
	}
	return h, nil
}

// UpdateHabit performs a partial update on the habit with the given id.
func (s *Store) UpdateHabit(ctx context.Context, id string, in UpdateHabitInput) (*Habit, error) {
	var sc setClause
	if in.Title != nil {
		sc.add("title", *in.Title)
	}
	if in.Description != nil {
		sc.add("description", *in.Description)
	}
	if in.Frequency != nil {
		sc.add("frequency", *in.Frequency)
	}
	if in.TargetDays != nil {
		targetDaysJSON, err := marshalTargetDays(*in.TargetDays)
		if err != nil {
			return nil, fmt.Errorf("marshaling target days: %w", err)
		}
		sc.add("target_days", targetDaysJSON)
	}
	if in.TargetCount != nil {
		sc.add("target_count", *in.TargetCount)
	}
	if in.Time != nil {
		sc.add("time", *in.Time)
	}
	if in.AssignedTo != nil {
		sc.add("assigned_to", *in.AssignedTo)
	}
	if sc.empty() {
		return s.GetHabit(ctx, id)
	}

	query, args := sc.query("habits", habitColumns, id)
	h, err := scanHabit(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating habit: %w", err)
	}
	return h, nil
}

// SetHabitProgress stores the recomputed progress map, streak, and
// last_completed marker after a day toggle.
func (s *Store) SetHabitProgress(ctx context.Context, id string, progress map[string]bool, streak int, lastCompleted *string) (*Habit, error) {
	progressJSON, err := marshalProgress(progress)
	if err != nil {
		return nil, fmt.Errorf("marshaling progress: %w", err)
	}

	h, err := scanHabit(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE habits SET progress = $1, streak = $2, last_completed = $3, updated_at = now()
			 WHERE id = $4
			 RETURNING `+habitColumns,
			progressJSON, streak, lastCompleted, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting habit progress: %w", err)
	}
	return h, nil
}

// DeleteHabit removes a habit by id.
func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting habit: %w", err)
	}
	return nil
}

// ListHabits returns couple-scoped habits for coupleID (when set) plus the
// user's personal habits. Callers de-duplicate the union.
func (s *Store) ListHabits(ctx context.Context, coupleID *string, userID string) ([]*Habit, error) {
	var out []*Habit

	if coupleID != nil {
		rows, err := s.pool.Query(ctx,
			`SELECT `+habitColumns+` FROM habits WHERE couple_id = $1 ORDER BY created_at DESC`, *coupleID)
		if err != nil {
			return nil, fmt.Errorf("listing couple habits: %w", err)
		}
		shared, err := collectRows(rows, func(r pgx.Rows) (*Habit, error) { return scanHabit(r.Scan) })
		if err != nil {
			return nil, fmt.Errorf("scanning couple habits: %w", err)
		}
		out = append(out, shared...)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE created_by = $1 AND is_personal ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing personal habits: %w", err)
	}
	personal, err := collectRows(rows, func(r pgx.Rows) (*Habit, error) { return scanHabit(r.Scan) })
	if err != nil {
		return nil, fmt.Errorf("scanning personal habits: %w", err)
	}
	return append(out, personal...), nil
}

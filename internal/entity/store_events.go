package entity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, title, description, date, end_date, time, type, location, color, all_day,
	created_by, couple_id, is_personal, created_at, updated_at`

func scanEvent(scan func(dest ...any) error) (*Event, error) {
	e := &Event{}
	err := scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.EndDate, &e.Time, &e.Type,
		&e.Location, &e.Color, &e.AllDay, &e.CreatedBy, &e.CoupleID, &e.IsPersonal,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// InsertEvent persists a new event and returns the stored row.
func (s *Store) InsertEvent(ctx context.Context, e *Event) (*Event, error) {
	stored, err := scanEvent(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO events (title, description, date, end_date, time, type, location, color, all_day,
			                     created_by, couple_id, is_personal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING `+eventColumns,
			e.Title, e.Description, e.Date, e.EndDate, e.Time, e.Type, e.Location, e.Color,
			e.AllDay, e.CreatedBy, e.CoupleID, e.IsPersonal,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return stored, nil
}

// GetEvent retrieves an event by primary key.
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	e, err := scanEvent(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return e, nil
}

// UpdateEvent performs a partial update on the event with the given id.
func (s *Store) UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (*Event, error) {
	var sc setClause
	if in.Title != nil {
		sc.add("title", *in.Title)
	}
	if in.Description != nil {
		sc.add("description", *in.Description)
	}
	if in.Date != nil {
		sc.add("date", *in.Date)
	}
	if in.EndDate != nil {
		sc.add("end_date", *in.EndDate)
	}
	if in.Time != nil {
		sc.add("time", *in.Time)
	}
	if in.Type != nil {
		sc.add("type", *in.Type)
	}
	if in.Location != nil {
		sc.add("location", *in.Location)
	}
	if in.Color != nil {
		sc.add("color", *in.Color)
	}
	if in.AllDay != nil {
		sc.add("all_day", *in.AllDay)
	}
	if sc.empty() {
		return s.GetEvent(ctx, id)
	}

	query, args := sc.query("events", eventColumns, id)
	e, err := scanEvent(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating event: %w", err)
	}
	return e, nil
}

// DeleteEvent removes an event by id.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

// ListEvents returns couple-scoped events for coupleID (when set) plus the
// user's personal events. Callers de-duplicate the union.
func (s *Store) ListEvents(ctx context.Context, coupleID *string, userID string) ([]*Event, error) {
	var out []*Event

	if coupleID != nil {
		rows, err := s.pool.Query(ctx,
			`SELECT `+eventColumns+` FROM events WHERE couple_id = $1 ORDER BY date, time`, *coupleID)
		if err != nil {
			return nil, fmt.Errorf("listing couple events: %w", err)
		}
		shared, err := collectRows(rows, func(r pgx.Rows) (*Event, error) { return scanEvent(r.Scan) })
		if err != nil {
			return nil, fmt.Errorf("scanning couple events: %w", err)
		}
		out = append(out, shared...)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE created_by = $1 AND is_personal ORDER BY date, time`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing personal events: %w", err)
	}
	personal, err := collectRows(rows, func(r pgx.Rows) (*Event, error) { return scanEvent(r.Scan) })
	if err != nil {
		return nil, fmt.Errorf("scanning personal events: %w", err)
	}
	return append(out, personal...), nil
}

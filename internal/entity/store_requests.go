package entity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, title, description, priority, from_user, to_user, status, due_date,
	reject_reason, linked_event_id, response_date, created_by, couple_id, is_personal, created_at, updated_at`

func scanRequest(scan func(dest ...any) error) (*Request, error) {
	r := &Request{}
	err := scan(&r.ID, &r.Title, &r.Description, &r.Priority, &r.FromUser, &r.ToUser, &r.Status,
		&r.DueDate, &r.RejectReason, &r.LinkedEventID, &r.ResponseDate,
		&r.CreatedBy, &r.CoupleID, &r.IsPersonal, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// InsertRequest persists a new request and returns the stored row.
func (s *Store) InsertRequest(ctx context.Context, r *Request) (*Request, error) {
	stored, err := scanRequest(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO requests (title, description, priority, from_user, to_user, status, due_date,
			                       created_by, couple_id, is_personal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING `+requestColumns,
			r.Title, r.Description, r.Priority, r.FromUser, r.ToUser, r.Status, r.DueDate,
			r.CreatedBy, r.CoupleID, r.IsPersonal,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting request: %w", err)
	}
	return stored, nil
}

// GetRequest retrieves a request by primary key.
func (s *Store) GetRequest(ctx context.Context, id string) (*Request, error) {
	r, err := scanRequest(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// UpdateRequest performs a partial update on the request with the given id.
func (s *Store) UpdateRequest(ctx context.Context, id string, in UpdateRequestInput) (*Request, error) {
	var sc setClause
	if in.Title != nil {
		sc.add("title", *in.Title)
	}
	if in.Description != nil {
		sc.add("description", *in.Description)
	}
	if in.Priority != nil {
		sc.add("priority", *in.Priority)
	}
	if in.DueDate != nil {
		sc.add("due_date", *in.DueDate)
	}
	if sc.empty() {
		return s.GetRequest(ctx, id)
	}

	query, args := sc.query("requests", requestColumns, id)
	r, err := scanRequest(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating request: %w", err)
	}
	return r, nil
}

// ResolveRequest transitions a pending request to a terminal status, stamping
// the response date and, for rejections, the reason.
func (s *Store) ResolveRequest(ctx context.Context, id, status string, rejectReason *string) (*Request, error) {
	r, err := scanRequest(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE requests SET status = $1, reject_reason = $2, response_date = now(), updated_at = now()
			 WHERE id = $3
			 RETURNING `+requestColumns,
			status, rejectReason, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("resolving request: %w", err)
	}
	return r, nil
}

// SetRequestLinkedEvent stores the id of the event synthesized on approval.
func (s *Store) SetRequestLinkedEvent(ctx context.Context, id, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE requests SET linked_event_id = $1, updated_at = now() WHERE id = $2`, eventID, id)
	if err != nil {
		return fmt.Errorf("linking request event: %w", err)
	}
	return nil
}

// DeleteRequest removes a request by id.
func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	return nil
}

// ListRequests returns couple-scoped requests for coupleID (when set) plus
// personal requests sent or received by the user. The sent and received
// queries can overlap with the couple query, so callers must de-duplicate.
func (s *Store) ListRequests(ctx context.Context, coupleID *string, userID string) ([]*Request, error) {
	var out []*Request

	if coupleID != nil {
		rows, err := s.pool.Query(ctx,
			`SELECT `+requestColumns+` FROM requests WHERE couple_id = $1 ORDER BY created_at DESC`, *coupleID)
		if err != nil {
			return nil, fmt.Errorf("listing couple requests: %w", err)
		}
		shared, err := collectRows(rows, func(r pgx.Rows) (*Request, error) { return scanRequest(r.Scan) })
		if err != nil {
			return nil, fmt.Errorf("scanning couple requests: %w", err)
		}
		out = append(out, shared...)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE from_user = $1 OR to_user = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user requests: %w", err)
	}
	mine, err := collectRows(rows, func(r pgx.Rows) (*Request, error) { return scanRequest(r.Scan) })
	if err != nil {
		return nil, fmt.Errorf("scanning user requests: %w", err)
	}
	return append(out, mine...), nil
}

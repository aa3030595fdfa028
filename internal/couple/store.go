package couple

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCodeNotFound is returned when a pairing code does not match any couple
// still waiting for a partner.
var ErrCodeNotFound = errors.New("pairing code not found")

// ErrSelfPairing is returned when a user tries to redeem their own code.
var ErrSelfPairing = errors.New("cannot pair with yourself")

const pairingCodeLen = 6

const pairingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePairingCode returns a 6-character code from A-Z0-9, suitable for
// reading out loud to a partner.
func GeneratePairingCode() (string, error) {
	b := make([]byte, pairingCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating pairing code: %w", err)
	}
	for i := range b {
		b[i] = pairingCodeAlphabet[int(b[i])%len(pairingCodeAlphabet)]
	}
	return string(b), nil
}

// Store provides database operations for couple records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new couple store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanCouple(scan func(dest ...any) error) (*Couple, error) {
	c := &Couple{}
	err := scan(&c.ID, &c.UserA, &c.UserB, &c.PairingCode, &c.Status, &c.RelationshipStartDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

const coupleColumns = `id, user_a, user_b, pairing_code, status, relationship_start_date, created_at, updated_at`

// Create inserts a pending couple for the given user with a fresh pairing code.
func (s *Store) Create(ctx context.Context, userA string) (*Couple, error) {
	code, err := GeneratePairingCode()
	if err != nil {
		return nil, err
	}

	c, err := scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO couples (user_a, pairing_code, status)
			 VALUES ($1, $2, $3)
			 RETURNING `+coupleColumns,
			userA, code, StatusPending,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating couple: %w", err)
	}
	return c, nil
}

// GetByID retrieves a couple by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Couple, error) {
	c, err := scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+coupleColumns+` FROM couples WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting couple by id: %w", err)
	}
	return c, nil
}

// GetByUser finds the couple for a user by trying the user_a side first and
// the user_b side second, returning the first hit. A (nil, nil) return means
// the user has no couple record.
func (s *Store) GetByUser(ctx context.Context, userID string) (*Couple, error) {
	c, err := scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+coupleColumns+` FROM couples WHERE user_a = $1`, userID,
		).Scan(dest...)
	})
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting couple by user_a: %w", err)
	}

	c, err = scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+coupleColumns+` FROM couples WHERE user_b = $1`, userID,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting couple by user_b: %w", err)
	}
	return c, nil
}

// Redeem links userB into the pending couple identified by the pairing code
// and activates it.
func (s *Store) Redeem(ctx context.Context, code, userB string) (*Couple, error) {
	existing, err := scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+coupleColumns+` FROM couples
			 WHERE pairing_code = $1 AND status = $2`,
			code, StatusPending,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("looking up pairing code: %w", err)
	}
	if existing.UserA == userB {
		return nil, ErrSelfPairing
	}

	// Registration gives every account its own pending couple. Drop the
	// redeemer's so GetByUser resolves to the activated one.
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM couples WHERE user_a = $1 AND status = $2 AND user_b IS NULL`,
		userB, StatusPending); err != nil {
		return nil, fmt.Errorf("discarding pending couple: %w", err)
	}

	c, err := scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE couples SET user_b = $1, status = $2, updated_at = now()
			 WHERE id = $3
			 RETURNING `+coupleColumns,
			userB, StatusActive, existing.ID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("redeeming pairing code: %w", err)
	}
	return c, nil
}

// Update performs a partial update on the couple with the given id.
func (s *Store) Update(ctx context.Context, id string, in UpdateCoupleInput) (*Couple, error) {
	if in.RelationshipStartDate == nil {
		return s.GetByID(ctx, id)
	}

	c, err := scanCouple(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE couples SET relationship_start_date = $1, updated_at = now()
			 WHERE id = $2
			 RETURNING `+coupleColumns,
			*in.RelationshipStartDate, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating couple: %w", err)
	}
	return c, nil
}

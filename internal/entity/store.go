package entity

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for all owned entity kinds. Lookups by
// id return pgx.ErrNoRows (wrapped) for missing records; the engine maps that
// to its own not-found failure.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new entity store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// setClause accumulates columns for a partial UPDATE.
type setClause struct {
	clauses []string
	args    []any
}

func (sc *setClause) add(column string, value any) {
	sc.clauses = append(sc.clauses, fmt.Sprintf("%s = $%d", column, len(sc.args)+1))
	sc.args = append(sc.args, value)
}

func (sc *setClause) empty() bool {
	return len(sc.clauses) == 0
}

// query builds the full UPDATE statement, appending id as the final argument.
func (sc *setClause) query(table, returning, id string) (string, []any) {
	sc.clauses = append(sc.clauses, "updated_at = now()")
	args := append(sc.args, id)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		table, strings.Join(sc.clauses, ", "), len(args), returning)
	return q, args
}

// collectRows scans every row with the given per-row scanner.
func collectRows[T any](rows pgx.Rows, scan func(pgx.Rows) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

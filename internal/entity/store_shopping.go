package entity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const shoppingColumns = `id, name, quantity, list_type, completed,
	created_by, couple_id, is_personal, created_at, updated_at`

func scanShoppingItem(scan func(dest ...any) error) (*ShoppingItem, error) {
	i := &ShoppingItem{}
	err := scan(&i.ID, &i.Name, &i.Quantity, &i.ListType, &i.Completed,
		&i.CreatedBy, &i.CoupleID, &i.IsPersonal, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// InsertShoppingItem persists a new shopping item and returns the stored row.
func (s *Store) InsertShoppingItem(ctx context.Context, i *ShoppingItem) (*ShoppingItem, error) {
	stored, err := scanShoppingItem(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO shopping_items (name, quantity, list_type, created_by, couple_id, is_personal)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+shoppingColumns,
			i.Name, i.Quantity, i.ListType, i.CreatedBy, i.CoupleID, i.IsPersonal,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting shopping item: %w", err)
	}
	return stored, nil
}

// GetShoppingItem retrieves a shopping item by primary key.
func (s *Store) GetShoppingItem(ctx context.Context, id string) (*ShoppingItem, error) {
	i, err := scanShoppingItem(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+shoppingColumns+` FROM shopping_items WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting shopping item: %w", err)
	}
	return i, nil
}

// UpdateShoppingItem performs a partial update on the item with the given id.
func (s *Store) UpdateShoppingItem(ctx context.Context, id string, in UpdateShoppingItemInput) (*ShoppingItem, error) {
	var sc setClause
	if in.Name != nil {
		sc.add("name", *in.Name)
	}
	if in.Quantity != nil {
		sc.add("quantity", *in.Quantity)
	}
	if in.ListType != nil {
		sc.add("list_type", *in.ListType)
	}
	if sc.empty() {
		return s.GetShoppingItem(ctx, id)
	}

	query, args := sc.query("shopping_items", shoppingColumns, id)
	i, err := scanShoppingItem(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating shopping item: %w", err)
	}
	return i, nil
}

// SetShoppingItemCompleted flips the completion state.
func (s *Store) SetShoppingItemCompleted(ctx context.Context, id string, completed bool) (*ShoppingItem, error) {
	i, err := scanShoppingItem(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE shopping_items SET completed = $1, updated_at = now()
			 WHERE id = $2
			 RETURNING `+shoppingColumns,
			completed, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting shopping item completion: %w", err)
	}
	return i, nil
}

// DeleteShoppingItem removes a shopping item by id.
func (s *Store) DeleteShoppingItem(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM shopping_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting shopping item: %w", err)
	}
	return nil
}

// ListShoppingItems returns couple-scoped items for coupleID (when set) plus
// the user's personal items. Callers de-duplicate the union.
func (s *Store) ListShoppingItems(ctx context.Context, coupleID *string, userID string) ([]*ShoppingItem, error) {
	var out []*ShoppingItem

	if coupleID != nil {
		rows, err := s.pool.Query(ctx,
			`SELECT `+shoppingColumns+` FROM shopping_items WHERE couple_id = $1 ORDER BY created_at DESC`, *coupleID)
		if err != nil {
			return nil, fmt.Errorf("listing couple shopping items: %w", err)
		}
		shared, err := collectRows(rows, func(r pgx.Rows) (*ShoppingItem, error) { return scanShoppingItem(r.Scan) })
		if err != nil {
			return nil, fmt.Errorf("scanning couple shopping items: %w", err)
		}
		out = append(out, shared...)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+shoppingColumns+` FROM shopping_items WHERE created_by = $1 AND is_personal ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing personal shopping items: %w", err)
	}
	personal, err := collectRows(rows, func(r pgx.Rows) (*ShoppingItem, error) { return scanShoppingItem(r.Scan) })
	if err != nil {
		return nil, fmt.Errorf("scanning personal shopping items: %w", err)
	}
	return append(out, personal...), nil
}

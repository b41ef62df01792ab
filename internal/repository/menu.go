package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
)

const (
	listMenuItemsSQL = `SELECT id, name, unit_price, is_parcel, available
		FROM menu_items WHERE available = TRUE ORDER BY name`

	getMenuItemByIDSQL = `SELECT id, name, unit_price, is_parcel, available
		FROM menu_items WHERE id = $1`

	getMenuItemsByIDsSQL = `SELECT id, name, unit_price, is_parcel, available
		FROM menu_items WHERE id = ANY($1)`

	upsertMenuItemSQL = `INSERT INTO menu_items (id, name, unit_price, is_parcel, available)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			is_parcel = EXCLUDED.is_parcel,
			available = EXCLUDED.available`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns the available catalog ordered by name.
func (r *MenuRepository) List(ctx context.Context) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, listMenuItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// GetByID returns a single menu item by its identifier.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &it, nil
}

// GetByIDs returns menu items matching any of the given IDs. Missing IDs
// are simply absent from the result; the caller decides whether that is an
// error.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// Upsert inserts or updates one catalog entry. Used by the seed and ingest
// commands rather than the serving path.
func (r *MenuRepository) Upsert(ctx context.Context, it menu.Item) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL,
		it.ID, it.Name, it.UnitPrice, it.IsParcel, it.Available,
	)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", it.ID, err)
	}
	return nil
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var it menu.Item
	err := row.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.IsParcel, &it.Available)
	return it, err
}

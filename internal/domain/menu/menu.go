package menu

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// Item is a sellable catalog entry. UnitPrice is in paise.
type Item struct {
	ID        string
	Name      string
	UnitPrice int64
	IsParcel  bool
	Available bool
}

// Ref is an immutable snapshot of an Item taken the moment it is added to
// a cart or order. Catalog price changes never propagate into existing
// orders; the snapshot is the truth from capture onward.
type Ref struct {
	MenuItemID string
	Name       string
	UnitPrice  int64
	IsParcel   bool
}

// Snapshot captures the item into a Ref.
func (i Item) Snapshot() Ref {
	return Ref{
		MenuItemID: i.ID,
		Name:       i.Name,
		UnitPrice:  i.UnitPrice,
		IsParcel:   i.IsParcel,
	}
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
}

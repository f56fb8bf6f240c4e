// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

// Store errors.
var (
	ErrNotFound    = errors.New("item not found")
	ErrInvalidID   = errors.New("invalid item ID")
	ErrInvalidList = errors.New("invalid list ID")
	ErrNilItem     = errors.New("item cannot be nil")
)

// Scope selects the items of one list instance owned by one user.
type Scope struct {
	ListID  string
	OwnerID string
}

// Validate checks that the scope names a list.
func (s Scope) Validate() error {
	if s.ListID == "" {
		return ErrInvalidList
	}
	return nil
}

// UpdateResult reports the outcome of a bulk update.
type UpdateResult struct {
	// Updated counts the rows written. Entries for items outside the scope
	// are skipped and not counted.
	Updated int

	// Completed holds the stored items whose complete flag went from false
	// to true in this update, with their name before the update.
	Completed []model.Item
}

// Store defines the interface for list item storage operations.
type Store interface {
	// List returns the items of scope ordered by position.
	List(ctx context.Context, scope Scope) ([]model.Item, error)

	// Create adds a new item to scope and returns it with a generated ID.
	Create(ctx context.Context, scope Scope, req *model.CreateItemRequest) (*model.Item, error)

	// UpdateItems writes name, complete and position of each entry.
	UpdateItems(ctx context.Context, scope Scope, updates []model.ItemUpdate) (UpdateResult, error)

	// Delete removes an item from scope and returns the removed record.
	Delete(ctx context.Context, scope Scope, id string) (*model.Item, error)
}

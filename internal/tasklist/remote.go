package tasklist

import (
	"context"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

// RemoteStore is the server side of a list. Every call may fail with a
// transport or validation error; the engine treats all failures alike.
type RemoteStore interface {
	// FetchItems returns the caller's items of listID ordered by position.
	FetchItems(ctx context.Context, listID string) ([]model.Item, error)

	// CreateItem stores a new item and returns it with its server id and owner.
	CreateItem(ctx context.Context, listID string, req model.CreateItemRequest) (*model.Item, error)

	// UpdateItems writes the given item states and returns how many were written.
	UpdateItems(ctx context.Context, listID string, items []model.ItemUpdate) (int, error)

	// DeleteItem removes an item and reports whether a row was removed.
	DeleteItem(ctx context.Context, listID, itemID string) (bool, error)
}

// dedupeUpdates keeps one entry per item id. The last entry for an id wins
// and takes the slot of the first one.
func dedupeUpdates(in []model.ItemUpdate) []model.ItemUpdate {
	slot := make(map[string]int, len(in))
	out := make([]model.ItemUpdate, 0, len(in))
	for _, u := range in {
		if i, ok := slot[u.ID]; ok {
			out[i] = u
			continue
		}
		slot[u.ID] = len(out)
		out = append(out, u)
	}
	return out
}

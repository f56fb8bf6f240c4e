// Package events provides the domain events emitted when list items are
// created, deleted or completed, and a small bus to fan them out.
package events

import (
	"time"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

// Type identifies the kind of a domain event.
type Type string

// Domain event types.
const (
	TypeItemCreated   Type = "item_created"
	TypeItemDeleted   Type = "item_deleted"
	TypeItemCompleted Type = "item_completed"
)

// Event is a domain event about one item. ItemCompleted is only ever
// produced for a false to true transition of the complete flag.
type Event struct {
	Type       Type      `json:"type"`
	ItemID     string    `json:"item_id"`
	Name       string    `json:"name"`
	ListID     string    `json:"list_id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ItemCreated builds a creation event for item.
func ItemCreated(item model.Item) Event {
	return newEvent(TypeItemCreated, item)
}

// ItemDeleted builds a deletion event for item.
func ItemDeleted(item model.Item) Event {
	return newEvent(TypeItemDeleted, item)
}

// ItemCompleted builds a completion event for item.
func ItemCompleted(item model.Item) Event {
	return newEvent(TypeItemCompleted, item)
}

func newEvent(t Type, item model.Item) Event {
	return Event{
		Type:       t,
		ItemID:     item.ID,
		Name:       item.Name,
		ListID:     item.ListID,
		OwnerID:    item.OwnerID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher accepts domain events.
type Publisher interface {
	Publish(Event)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

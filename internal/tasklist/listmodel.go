package tasklist

import (
	"sort"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

// Patch holds the fields of an item to change. Nil fields are left alone.
type Patch struct {
	Name     *string
	Complete *bool
	Position *int
}

// ListModel is the ordered collection of items of one list instance.
// Slice order is display order and, at rest, Position equals the index.
// ListModel is not safe for concurrent use; Engine serializes access.
type ListModel struct {
	listID       string
	ownerID      string
	items        []model.Item
	reorderDepth int
}

// NewListModel creates an empty model for listID.
func NewListModel(listID string) *ListModel {
	return &ListModel{listID: listID}
}

// ListID returns the list instance this model holds items for.
func (m *ListModel) ListID() string {
	return m.listID
}

// OwnerID returns the owner of the held items, empty until one is known.
func (m *ListModel) OwnerID() string {
	return m.ownerID
}

// Len returns the number of items.
func (m *ListModel) Len() int {
	return len(m.items)
}

// Load replaces the collection with items ordered by position. Positions are
// renumbered to 0..N-1. It fails while a reorder is in progress or when the
// items do not all belong to this list and a single owner.
func (m *ListModel) Load(items []model.Item) error {
	if m.reorderDepth > 0 {
		return invalidState("load", "", "reorder in progress")
	}

	owner := ""
	seen := make(map[string]bool, len(items))
	loaded := make([]model.Item, 0, len(items))
	for _, it := range items {
		if err := m.checkMembership("load", it); err != nil {
			return err
		}
		if it.OwnerID != "" {
			if owner != "" && owner != it.OwnerID {
				return invalidState("load", it.ID, "items of more than one owner")
			}
			owner = it.OwnerID
		}
		if seen[it.ID] {
			return invalidState("load", it.ID, "duplicate item id")
		}
		seen[it.ID] = true

		it.ListID = m.listID
		loaded = append(loaded, it)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].Position < loaded[j].Position
	})

	m.items = loaded
	m.ownerID = owner
	m.renumber(0)

	return nil
}

// Insert adds item and returns the stored copy. An item whose position lies
// inside [0, Len()) is inserted there and later items shift down by one;
// any other position appends the item at Len().
func (m *ListModel) Insert(item model.Item) (model.Item, error) {
	if err := m.checkMembership("insert", item); err != nil {
		return model.Item{}, err
	}
	if m.ownerID != "" && item.OwnerID != "" && item.OwnerID != m.ownerID {
		return model.Item{}, invalidState("insert", item.ID, "item belongs to another owner")
	}
	if m.IndexOf(item.ID) >= 0 {
		return model.Item{}, invalidState("insert", item.ID, "duplicate item id")
	}

	if m.ownerID == "" {
		m.ownerID = item.OwnerID
	}
	item.ListID = m.listID

	pos := item.Position
	if pos < 0 || pos >= len(m.items) {
		item.Position = len(m.items)
		m.items = append(m.items, item)
		return item, nil
	}

	m.items = append(m.items, model.Item{})
	copy(m.items[pos+1:], m.items[pos:])
	m.items[pos] = item
	m.renumber(pos)

	return m.items[pos], nil
}

// Remove deletes the item with id and renumbers the rest. It reports whether
// an item was removed; a missing id is not an error.
func (m *ListModel) Remove(id string) bool {
	idx := m.IndexOf(id)
	if idx < 0 {
		return false
	}

	m.items = append(m.items[:idx], m.items[idx+1:]...)
	m.renumber(idx)

	return true
}

// Update merges patch into the item with id and returns the result.
// A position patch only sets the field; call Normalize to restore order.
func (m *ListModel) Update(id string, patch Patch) (model.Item, error) {
	idx := m.IndexOf(id)
	if idx < 0 {
		return model.Item{}, notFound("update", id)
	}

	it := &m.items[idx]
	if patch.Name != nil {
		it.Name = *patch.Name
	}
	if patch.Complete != nil {
		it.Complete = *patch.Complete
	}
	if patch.Position != nil {
		it.Position = *patch.Position
	}

	return *it, nil
}

// Reorder moves the item with id to newIndex, clamped to [0, Len()-1], and
// renumbers every item. It reports whether the order changed.
func (m *ListModel) Reorder(id string, newIndex int) (bool, error) {
	idx := m.IndexOf(id)
	if idx < 0 {
		return false, notFound("reorder", id)
	}

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(m.items)-1 {
		newIndex = len(m.items) - 1
	}
	if newIndex == idx {
		return false, nil
	}

	moved := m.items[idx]
	if idx < newIndex {
		copy(m.items[idx:newIndex], m.items[idx+1:newIndex+1])
	} else {
		copy(m.items[newIndex+1:idx+1], m.items[newIndex:idx])
	}
	m.items[newIndex] = moved
	m.renumber(0)

	return true, nil
}

// Normalize sorts items by position, keeping the current order for ties,
// and renumbers them to 0..N-1.
func (m *ListModel) Normalize() {
	sort.SliceStable(m.items, func(i, j int) bool {
		return m.items[i].Position < m.items[j].Position
	})
	m.renumber(0)
}

// Snapshot returns a copy of the items in display order.
func (m *ListModel) Snapshot() []model.Item {
	out := make([]model.Item, len(m.items))
	copy(out, m.items)
	return out
}

// Get returns the item with id.
func (m *ListModel) Get(id string) (model.Item, bool) {
	idx := m.IndexOf(id)
	if idx < 0 {
		return model.Item{}, false
	}
	return m.items[idx], true
}

// IndexOf returns the display index of the item with id, or -1.
func (m *ListModel) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range m.items {
		if m.items[i].ID == id {
			return i
		}
	}
	return -1
}

// BeginReorder marks a reorder batch as in progress. Load is refused until
// the matching EndReorder.
func (m *ListModel) BeginReorder() {
	m.reorderDepth++
}

// EndReorder closes a batch opened by BeginReorder.
func (m *ListModel) EndReorder() {
	if m.reorderDepth > 0 {
		m.reorderDepth--
	}
}

// Reordering reports whether a reorder batch is in progress.
func (m *ListModel) Reordering() bool {
	return m.reorderDepth > 0
}

func (m *ListModel) checkMembership(op string, it model.Item) error {
	if !it.Persisted() {
		return invalidState(op, "", "item has no id")
	}
	if it.ListID != "" && it.ListID != m.listID {
		return invalidState(op, it.ID, "item belongs to list "+it.ListID)
	}
	return nil
}

func (m *ListModel) renumber(from int) {
	for i := from; i < len(m.items); i++ {
		m.items[i].Position = i
	}
}

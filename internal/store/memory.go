package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]model.Item
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]model.Item),
	}
}

// List returns the items of scope ordered by position.
func (s *MemoryStore) List(ctx context.Context, scope Scope) ([]model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list items: %w", ctx.Err())
	default:
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0)
	for _, item := range s.items {
		if inScope(item, scope) {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

// Create adds a new item to scope and returns it with a generated ID.
func (s *MemoryStore) Create(ctx context.Context, scope Scope, req *model.CreateItemRequest) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create item: %w", ctx.Err())
	default:
	}

	if req == nil {
		return nil, fmt.Errorf("create item: %w", ErrNilItem)
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	newItem := model.Item{
		ID:        uuid.New().String(),
		ListID:    scope.ListID,
		OwnerID:   scope.OwnerID,
		Name:      req.Name,
		Complete:  req.Complete,
		Position:  req.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.items[newItem.ID] = newItem

	return &newItem, nil
}

// UpdateItems writes name, complete and position of each entry in scope.
func (s *MemoryStore) UpdateItems(ctx context.Context, scope Scope, updates []model.ItemUpdate) (UpdateResult, error) {
	select {
	case <-ctx.Done():
		return UpdateResult{}, fmt.Errorf("update items: %w", ctx.Err())
	default:
	}

	if err := scope.Validate(); err != nil {
		return UpdateResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result UpdateResult
	now := time.Now().UTC()
	for _, u := range updates {
		existing, exists := s.items[u.ID]
		if !exists || !inScope(existing, scope) {
			continue
		}

		if u.Complete && !existing.Complete {
			result.Completed = append(result.Completed, existing)
		}

		existing.Name = u.Name
		existing.Complete = u.Complete
		existing.Position = u.Position
		existing.UpdatedAt = now
		s.items[u.ID] = existing
		result.Updated++
	}

	return result, nil
}

// Delete removes an item from scope and returns the removed record.
func (s *MemoryStore) Delete(ctx context.Context, scope Scope, id string) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delete item: %w", ctx.Err())
	default:
	}

	if id == "" {
		return nil, ErrInvalidID
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[id]
	if !exists || !inScope(existing, scope) {
		return nil, ErrNotFound
	}

	delete(s.items, id)

	return &existing, nil
}

func inScope(item model.Item, scope Scope) bool {
	return item.ListID == scope.ListID && item.OwnerID == scope.OwnerID
}

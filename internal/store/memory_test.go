package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

var (
	aliceList = Scope{ListID: "list-1", OwnerID: "alice"}
	bobList   = Scope{ListID: "list-1", OwnerID: "bob"}
	aliceAlt  = Scope{ListID: "list-2", OwnerID: "alice"}
)

// storeFactories lets every contract test run against each implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQLite(context.Background(), ":memory:")
			if err != nil {
				t.Fatalf("OpenSQLite() unexpected error: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func mustCreate(t *testing.T, s Store, scope Scope, name string, pos int) *model.Item {
	t.Helper()
	item, err := s.Create(context.Background(), scope, &model.CreateItemRequest{Name: name, Position: pos})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	return item
}

func TestNewMemoryStore(t *testing.T) {
	// Act
	store := NewMemoryStore()

	// Assert
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.items == nil {
		t.Error("items map should be initialized")
	}
}

func TestStore_Create(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			s := factory()
			ctx := context.Background()

			// Act
			created, err := s.Create(ctx, aliceList, &model.CreateItemRequest{Name: "Buy milk", Position: 0})

			// Assert
			if err != nil {
				t.Fatalf("Create() unexpected error: %v", err)
			}
			if created.ID == "" {
				t.Error("Create() should generate an ID")
			}
			if created.ListID != aliceList.ListID || created.OwnerID != aliceList.OwnerID {
				t.Errorf("scope = %s/%s, want %s/%s", created.ListID, created.OwnerID, aliceList.ListID, aliceList.OwnerID)
			}
			if created.Name != "Buy milk" || created.Complete || created.Position != 0 {
				t.Errorf("unexpected item %+v", created)
			}
			if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
				t.Error("timestamps should be set")
			}
		})
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			if _, err := s.Create(ctx, aliceList, nil); !errors.Is(err, ErrNilItem) {
				t.Errorf("Create(nil) error = %v, want %v", err, ErrNilItem)
			}
			if _, err := s.Create(ctx, Scope{OwnerID: "alice"}, &model.CreateItemRequest{Name: "x"}); !errors.Is(err, ErrInvalidList) {
				t.Errorf("Create() without list error = %v, want %v", err, ErrInvalidList)
			}
		})
	}
}

func TestStore_List_OrderedAndScoped(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			s := factory()
			ctx := context.Background()
			mustCreate(t, s, aliceList, "third", 2)
			mustCreate(t, s, aliceList, "first", 0)
			mustCreate(t, s, aliceList, "second", 1)
			mustCreate(t, s, bobList, "bob's", 0)
			mustCreate(t, s, aliceAlt, "other list", 0)

			// Act
			items, err := s.List(ctx, aliceList)

			// Assert
			if err != nil {
				t.Fatalf("List() unexpected error: %v", err)
			}
			want := []string{"first", "second", "third"}
			if len(items) != len(want) {
				t.Fatalf("List() returned %d items, want %d", len(items), len(want))
			}
			for i, w := range want {
				if items[i].Name != w {
					t.Errorf("items[%d].Name = %s, want %s", i, items[i].Name, w)
				}
			}
		})
	}
}

func TestStore_List_Empty(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			items, err := factory().List(context.Background(), aliceList)
			if err != nil {
				t.Fatalf("List() unexpected error: %v", err)
			}
			if items == nil || len(items) != 0 {
				t.Errorf("List() = %v, want empty non-nil slice", items)
			}
		})
	}
}

func TestStore_UpdateItems(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			s := factory()
			ctx := context.Background()
			a := mustCreate(t, s, aliceList, "a", 0)
			b := mustCreate(t, s, aliceList, "b", 1)
			foreign := mustCreate(t, s, bobList, "bob", 0)

			// Act
			result, err := s.UpdateItems(ctx, aliceList, []model.ItemUpdate{
				{ID: a.ID, Name: "a renamed", Position: 1, Complete: true},
				{ID: b.ID, Name: "b", Position: 0},
				{ID: foreign.ID, Name: "hijacked", Position: 5},
				{ID: "missing", Name: "ghost", Position: 9},
			})

			// Assert
			if err != nil {
				t.Fatalf("UpdateItems() unexpected error: %v", err)
			}
			if result.Updated != 2 {
				t.Errorf("Updated = %d, want 2", result.Updated)
			}
			if len(result.Completed) != 1 || result.Completed[0].ID != a.ID || result.Completed[0].Name != "a" {
				t.Errorf("Completed = %+v, want only %s with its old name", result.Completed, a.ID)
			}

			items, _ := s.List(ctx, aliceList)
			if items[0].ID != b.ID || items[1].ID != a.ID {
				t.Errorf("order after update = %s,%s", items[0].Name, items[1].Name)
			}
			if items[1].Name != "a renamed" || !items[1].Complete {
				t.Errorf("a not updated: %+v", items[1])
			}

			bobs, _ := s.List(ctx, bobList)
			if bobs[0].Name != "bob" {
				t.Error("item of another owner must not change")
			}
		})
	}
}

func TestStore_UpdateItems_CompletedOnlyOnTransition(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()
			a := mustCreate(t, s, aliceList, "a", 0)
			done := []model.ItemUpdate{{ID: a.ID, Name: "a", Complete: true}}

			first, _ := s.UpdateItems(ctx, aliceList, done)
			second, _ := s.UpdateItems(ctx, aliceList, done)
			third, _ := s.UpdateItems(ctx, aliceList, []model.ItemUpdate{{ID: a.ID, Name: "a"}})

			if len(first.Completed) != 1 {
				t.Errorf("first Completed = %d, want 1", len(first.Completed))
			}
			if len(second.Completed) != 0 || len(third.Completed) != 0 {
				t.Error("Completed reported without a false to true transition")
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			s := factory()
			ctx := context.Background()
			a := mustCreate(t, s, aliceList, "a", 0)
			foreign := mustCreate(t, s, bobList, "bob", 0)

			tests := []struct {
				name    string
				id      string
				wantErr error
			}{
				{name: "existing item", id: a.ID},
				{name: "already deleted", id: a.ID, wantErr: ErrNotFound},
				{name: "other owner", id: foreign.ID, wantErr: ErrNotFound},
				{name: "empty id", id: "", wantErr: ErrInvalidID},
			}

			for _, tt := range tests {
				// Act
				removed, err := s.Delete(ctx, aliceList, tt.id)

				// Assert
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Errorf("%s: Delete() error = %v, want %v", tt.name, err, tt.wantErr)
					}
					continue
				}
				if err != nil {
					t.Fatalf("%s: Delete() unexpected error: %v", tt.name, err)
				}
				if removed.ID != a.ID || removed.Name != "a" {
					t.Errorf("%s: removed = %+v", tt.name, removed)
				}
			}

			if bobs, _ := s.List(ctx, bobList); len(bobs) != 1 {
				t.Error("item of another owner must survive")
			}
		})
	}
}

func TestMemoryStore_ContextCancellation(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	// Act & Assert
	if _, err := store.List(ctx, aliceList); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
	if _, err := store.Create(ctx, aliceList, &model.CreateItemRequest{Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
	if _, err := store.UpdateItems(ctx, aliceList, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("UpdateItems() error = %v, want context.Canceled", err)
	}
	if _, err := store.Delete(ctx, aliceList, "id"); !errors.Is(err, context.Canceled) {
		t.Errorf("Delete() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	const workers = 20

	var wg sync.WaitGroup
	wg.Add(workers)

	// Act
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			item, err := store.Create(ctx, aliceList, &model.CreateItemRequest{Name: fmt.Sprintf("task %d", n), Position: n})
			if err != nil {
				t.Errorf("Create() unexpected error: %v", err)
				return
			}
			_, _ = store.UpdateItems(ctx, aliceList, []model.ItemUpdate{{ID: item.ID, Name: item.Name, Position: n, Complete: true}})
			_, _ = store.List(ctx, aliceList)
		}(i)
	}
	wg.Wait()

	// Assert
	items, err := store.List(ctx, aliceList)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(items) != workers {
		t.Errorf("List() returned %d items, want %d", len(items), workers)
	}
	for i, item := range items {
		if item.Position != i || !item.Complete {
			t.Errorf("items[%d] = %+v", i, item)
		}
	}
}

func TestStore_ImplementsInterface(_ *testing.T) {
	var _ Store = (*MemoryStore)(nil)
	var _ Store = (*SQLiteStore)(nil)
}

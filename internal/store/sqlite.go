package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/tasklist/internal/model"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasklist_items (
	id         TEXT PRIMARY KEY,
	list_id    TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	complete   INTEGER NOT NULL DEFAULT 0,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasklist_items_scope
	ON tasklist_items (list_id, owner_id, position);
`

const selectItemColumns = `id, list_id, owner_id, name, complete, position, created_at, updated_at`

// SQLiteStore implements Store on a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	if path == ":memory:" {
		dsn = "file::memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers; one connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns the items of scope ordered by position.
func (s *SQLiteStore) List(ctx context.Context, scope Scope) ([]model.Item, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectItemColumns+` FROM tasklist_items
		 WHERE list_id = ? AND owner_id = ?
		 ORDER BY position, created_at`,
		scope.ListID, scope.OwnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

// Create adds a new item to scope and returns it with a generated ID.
func (s *SQLiteStore) Create(ctx context.Context, scope Scope, req *model.CreateItemRequest) (*model.Item, error) {
	if req == nil {
		return nil, fmt.Errorf("create item: %w", ErrNilItem)
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := model.Item{
		ID:        uuid.New().String(),
		ListID:    scope.ListID,
		OwnerID:   scope.OwnerID,
		Name:      req.Name,
		Complete:  req.Complete,
		Position:  req.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasklist_items (`+selectItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ListID, item.OwnerID, item.Name, boolToInt(item.Complete), item.Position,
		item.CreatedAt.UnixNano(), item.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return &item, nil
}

// UpdateItems writes name, complete and position of each entry in scope
// within one transaction.
func (s *SQLiteStore) UpdateItems(ctx context.Context, scope Scope, updates []model.ItemUpdate) (UpdateResult, error) {
	if err := scope.Validate(); err != nil {
		return UpdateResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update items: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var result UpdateResult
	now := time.Now().UTC().UnixNano()
	for _, u := range updates {
		existing, err := getItemTx(ctx, tx, scope, u.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return UpdateResult{}, fmt.Errorf("update items: %w", err)
		}

		if u.Complete && !existing.Complete {
			result.Completed = append(result.Completed, existing)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tasklist_items SET name = ?, complete = ?, position = ?, updated_at = ?
			 WHERE id = ?`,
			u.Name, boolToInt(u.Complete), u.Position, now, u.ID,
		)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("update items: %w", err)
		}
		result.Updated++
	}

	if err := tx.Commit(); err != nil {
		return UpdateResult{}, fmt.Errorf("update items: commit: %w", err)
	}

	return result, nil
}

// Delete removes an item from scope and returns the removed record.
func (s *SQLiteStore) Delete(ctx context.Context, scope Scope, id string) (*model.Item, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	if err := scope.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete item: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := getItemTx(ctx, tx, scope, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasklist_items WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete item: commit: %w", err)
	}

	return &existing, nil
}

func getItemTx(ctx context.Context, tx *sql.Tx, scope Scope, id string) (model.Item, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+selectItemColumns+` FROM tasklist_items
		 WHERE id = ? AND list_id = ? AND owner_id = ?`,
		id, scope.ListID, scope.OwnerID,
	)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, ErrNotFound
	}
	return item, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (model.Item, error) {
	var (
		item     model.Item
		complete int
		created  int64
		updated  int64
	)
	if err := r.Scan(&item.ID, &item.ListID, &item.OwnerID, &item.Name, &complete,
		&item.Position, &created, &updated); err != nil {
		return model.Item{}, err
	}
	item.Complete = complete != 0
	item.CreatedAt = time.Unix(0, created).UTC()
	item.UpdatedAt = time.Unix(0, updated).UTC()
	return item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

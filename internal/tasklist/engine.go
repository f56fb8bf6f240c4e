package tasklist

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/events"
	"github.com/vyrodovalexey/tasklist/internal/model"
)

// Engine applies user commands to a ListModel and mirrors them to a
// RemoteStore. Local state is changed first; failed remote calls are
// returned to the caller and never rolled back. Responses of calls that
// were overtaken by newer ones are still applied.
type Engine struct {
	mu        sync.Mutex
	listID    string
	remote    RemoteStore
	model     *ListModel
	synced    map[string]int // last position sent to or read from the server
	loading   bool
	publisher events.Publisher
	logger    *zap.Logger
	changes   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPublisher sets where domain events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// NewEngine creates an engine for listID with an empty model.
func NewEngine(listID string, remote RemoteStore, opts ...Option) *Engine {
	e := &Engine{
		listID:    listID,
		remote:    remote,
		model:     NewListModel(listID),
		synced:    make(map[string]int),
		publisher: events.Discard,
		logger:    zap.NewNop(),
		changes:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("list_id", listID))
	return e
}

// ListID returns the list instance the engine synchronizes.
func (e *Engine) ListID() string {
	return e.listID
}

// Snapshot returns the current items in display order.
func (e *Engine) Snapshot() []model.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Snapshot()
}

// Changes signals after each local model change, before the matching
// remote call is made. Signals coalesce: a reader sees at least one signal
// after any number of changes and should re-read Snapshot.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// IndexOf returns the display index of the item with id, or -1.
func (e *Engine) IndexOf(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.IndexOf(id)
}

// Initialize fetches the list from the remote store and loads it. On a
// fetch failure the model is left empty and an ErrLoad error is returned.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.model.Reordering() {
		e.mu.Unlock()
		return invalidState("initialize", "", "reorder in progress")
	}
	e.loading = true
	e.mu.Unlock()

	items, err := e.remote.FetchItems(ctx, e.listID)

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notify()
	e.loading = false

	if err != nil {
		e.logger.Warn("fetch items failed", zap.Error(err))
		e.model = NewListModel(e.listID)
		e.synced = make(map[string]int)
		return &Error{Kind: ErrLoad, Op: "initialize", Err: err}
	}

	if err := e.model.Load(items); err != nil {
		e.logger.Warn("fetched items rejected", zap.Error(err))
		e.model = NewListModel(e.listID)
		e.synced = make(map[string]int)
		return &Error{Kind: ErrLoad, Op: "initialize", Err: err}
	}

	e.synced = make(map[string]int, len(items))
	for _, it := range items {
		e.synced[it.ID] = it.Position
	}

	e.logger.Debug("list loaded", zap.Int("items", len(items)))
	return nil
}

// AddItem creates an item named name at the end of the list. Blank names
// are ignored and return (nil, nil); other names are sent as typed. The item
// only enters the model once the server has assigned its id, and it is
// appended at the end as of that moment. When that differs from the
// position sent with the create, the list is reindexed.
func (e *Engine) AddItem(ctx context.Context, name string) (*model.Item, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	e.mu.Lock()
	pos := e.model.Len()
	e.mu.Unlock()

	created, err := e.remote.CreateItem(ctx, e.listID, model.CreateItemRequest{
		Name:     name,
		Complete: false,
		Position: pos,
	})
	if err != nil {
		e.logger.Warn("create item failed", zap.String("op", "add item"), zap.Error(err))
		return nil, remoteCall("add item", "", err)
	}
	if created == nil {
		return nil, remoteCall("add item", "", errors.New("empty create response"))
	}

	e.mu.Lock()
	item := *created
	item.Position = e.model.Len()
	stored, err := e.model.Insert(item)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.synced[stored.ID] = created.Position
	e.mu.Unlock()
	e.notify()

	e.publisher.Publish(events.ItemCreated(stored))

	if stored.Position != created.Position {
		e.logger.Debug("item appended behind a concurrent add",
			zap.String("item_id", stored.ID),
			zap.Int("sent", created.Position),
			zap.Int("position", stored.Position),
		)
		if err := e.Reindex(ctx); err != nil {
			return &stored, err
		}
	}

	return &stored, nil
}

// ToggleComplete flips the complete flag of the item with id and sends the
// item's full state. A false to true flip publishes ItemCompleted. A missing
// item is ignored.
func (e *Engine) ToggleComplete(ctx context.Context, id string) error {
	e.mu.Lock()
	current, ok := e.model.Get(id)
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("toggle on missing item ignored", zap.String("item_id", id))
		return nil
	}

	complete := !current.Complete
	updated, err := e.model.Update(id, Patch{Complete: &complete})
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.synced[id] = updated.Position
	e.mu.Unlock()
	e.notify()

	if complete {
		e.publisher.Publish(events.ItemCompleted(updated))
	}

	return e.sendUpdates(ctx, "toggle complete", id, []model.ItemUpdate{updated.ToUpdate()})
}

// RenameItem sets the name of the item with id and sends its full state.
// Blank names are rejected; other names are kept as typed.
func (e *Engine) RenameItem(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalidState("rename item", id, "name cannot be empty")
	}

	e.mu.Lock()
	updated, err := e.model.Update(id, Patch{Name: &name})
	if err != nil {
		e.mu.Unlock()
		return &Error{Kind: ErrNotFound, Op: "rename item", ItemID: id}
	}
	e.synced[id] = updated.Position
	e.mu.Unlock()
	e.notify()

	return e.sendUpdates(ctx, "rename item", id, []model.ItemUpdate{updated.ToUpdate()})
}

// DeleteItem removes the item with id locally, publishes ItemDeleted, deletes
// it remotely and reindexes the rest. ItemDeleted is published for the local
// removal, so it is sent even when the remote delete then fails. A missing
// item is ignored without any remote call.
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	e.mu.Lock()
	item, ok := e.model.Get(id)
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("delete on missing item ignored", zap.String("item_id", id))
		return nil
	}
	e.model.Remove(id)
	delete(e.synced, id)
	e.mu.Unlock()
	e.notify()

	e.publisher.Publish(events.ItemDeleted(item))

	var errs []error
	removed, err := e.remote.DeleteItem(ctx, e.listID, id)
	switch {
	case err != nil:
		e.logger.Warn("delete item failed", zap.String("item_id", id), zap.Error(err))
		errs = append(errs, remoteCall("delete item", id, err))
	case !removed:
		e.logger.Debug("item already gone on server", zap.String("item_id", id))
	}

	if err := e.Reindex(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Reorder moves the item with id to newIndex and reindexes the list.
func (e *Engine) Reorder(ctx context.Context, id string, newIndex int) error {
	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return invalidState("reorder", id, "list is loading")
	}

	e.model.BeginReorder()
	changed, err := e.model.Reorder(id, newIndex)
	e.mu.Unlock()
	if changed {
		e.notify()
	}

	defer func() {
		e.mu.Lock()
		e.model.EndReorder()
		e.mu.Unlock()
	}()

	if err != nil || !changed {
		return err
	}

	return e.Reindex(ctx)
}

// Reindex restores contiguous positions and sends one bulk update holding
// only the items whose position differs from what the server last saw.
// Nothing is sent when no position changed.
func (e *Engine) Reindex(ctx context.Context) error {
	e.mu.Lock()
	e.model.Normalize()

	var batch []model.ItemUpdate
	for _, it := range e.model.Snapshot() {
		if pos, ok := e.synced[it.ID]; ok && pos == it.Position {
			continue
		}
		e.synced[it.ID] = it.Position
		batch = append(batch, it.ToUpdate())
	}
	e.mu.Unlock()
	e.notify()

	if len(batch) == 0 {
		return nil
	}

	return e.sendUpdates(ctx, "reindex", "", batch)
}

func (e *Engine) sendUpdates(ctx context.Context, op, id string, batch []model.ItemUpdate) error {
	batch = dedupeUpdates(batch)

	n, err := e.remote.UpdateItems(ctx, e.listID, batch)
	if err != nil {
		e.logger.Warn("update items failed",
			zap.String("op", op),
			zap.String("item_id", id),
			zap.Int("batch", len(batch)),
			zap.Error(err),
		)
		return remoteCall(op, id, err)
	}

	if n < len(batch) {
		e.logger.Debug("server skipped items",
			zap.String("op", op),
			zap.Int("sent", len(batch)),
			zap.Int("updated", n),
		)
	}

	return nil
}

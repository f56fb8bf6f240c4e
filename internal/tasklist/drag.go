package tasklist

import (
	"context"
	"sync"
)

// Reorderer is the part of Engine the drag controller drives.
type Reorderer interface {
	IndexOf(id string) int
	Reorder(ctx context.Context, id string, newIndex int) error
}

// DragReorderController turns a drag-and-drop gesture into a reorder.
// It is Idle until Start, Dragging until Drop or Cancel. It is safe for
// concurrent use; the lock is not held during the reorder itself.
type DragReorderController struct {
	mu       sync.Mutex
	list     Reorderer
	subject  string
	dragging bool
}

// NewDragReorderController creates an idle controller for list.
func NewDragReorderController(list Reorderer) *DragReorderController {
	return &DragReorderController{list: list}
}

// Start makes id the drag subject. Starting again while dragging replaces
// the subject.
func (c *DragReorderController) Start(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subject = id
	c.dragging = true
}

// Cancel abandons the current drag.
func (c *DragReorderController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *DragReorderController) reset() {
	c.subject = ""
	c.dragging = false
}

// Dragging reports whether a drag is active.
func (c *DragReorderController) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

// Subject returns the id being dragged, empty when idle.
func (c *DragReorderController) Subject() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subject
}

// Drop places the subject next to targetID: after it when the subject sits
// above the target, before it otherwise. Dropping on the subject itself does
// nothing. The controller is idle again afterwards whatever the outcome.
func (c *DragReorderController) Drop(ctx context.Context, targetID string) error {
	c.mu.Lock()
	subject, dragging := c.subject, c.dragging
	c.reset()
	c.mu.Unlock()

	if !dragging {
		return invalidState("drop", targetID, "no drag in progress")
	}
	if targetID == subject {
		return nil
	}

	from := c.list.IndexOf(subject)
	if from < 0 {
		return notFound("drop", subject)
	}
	to := c.list.IndexOf(targetID)
	if to < 0 {
		return notFound("drop", targetID)
	}

	// Once the subject is lifted out, the target's own index is the slot
	// right after it (moving down) or right before it (moving up).
	return c.list.Reorder(ctx, subject, to)
}

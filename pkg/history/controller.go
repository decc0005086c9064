// ABOUTME: Undo/redo controller over a version store
// ABOUTME: Moves the cursor and republishes the snapshot into the live document

package history

import "github.com/nainya/applydesk/pkg/content"

// Publisher receives historical content, normally a *content.Document
type Publisher interface {
	Replace(c content.Content) error
}

// Controller drives undo, redo and restore. Undo and redo outside their
// valid state are no-ops so callers can wire them unconditionally.
type Controller struct {
	store  *Store
	target Publisher
}

// NewController creates a controller publishing into target
func NewController(store *Store, target Publisher) *Controller {
	return &Controller{store: store, target: target}
}

// Undo steps back one snapshot. It reports false when nothing moved.
func (c *Controller) Undo() (Snapshot, bool) {
	if !c.store.CanUndo() {
		return Snapshot{}, false
	}
	return c.step(c.store.Cursor() - 1)
}

// Redo steps forward one snapshot. It reports false when nothing moved.
func (c *Controller) Redo() (Snapshot, bool) {
	if !c.store.CanRedo() {
		return Snapshot{}, false
	}
	return c.step(c.store.Cursor() + 1)
}

// Restore republishes the snapshot at index and drops everything newer
func (c *Controller) Restore(index int) (Snapshot, error) {
	snap, err := c.store.At(index)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.target.Replace(snap.Content); err != nil {
		return Snapshot{}, err
	}
	return c.store.Restore(index)
}

// Position returns the store's cursor position
func (c *Controller) Position() Position {
	return c.store.Position()
}

func (c *Controller) step(index int) (Snapshot, bool) {
	snap, err := c.store.At(index)
	if err != nil {
		return Snapshot{}, false
	}
	// Publish first so a rejected snapshot leaves the cursor untouched
	if err := c.target.Replace(snap.Content); err != nil {
		return Snapshot{}, false
	}
	c.store.MoveTo(index)
	return snap, true
}

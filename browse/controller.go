// Package browse holds the list/detail controller of the admin console: a
// live record list that is either Browsing or Editing exactly one record.
package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pilgrimsafe/store"
	"pilgrimsafe/utils"

	"go.uber.org/zap"
)

// Record is a stored entity the controller can list, filter and edit.
type Record interface {
	RecordID() string
	SearchText() []string
}

// Editor is the form that a selected record is copied into.
type Editor[R Record] interface {
	Seed(rec R)
	Reset()
	Submit(ctx context.Context) (string, error)
}

type Mode int

const (
	Browsing Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "browsing"
}

var (
	ErrEditInProgress = errors.New("browse: another record is already being edited")
	ErrAlreadyOpen    = errors.New("browse: controller is already open")
)

// Store is the part of the record store the controller needs.
type Store interface {
	store.Writer
	store.Subscriber
}

// Controller keeps the records of one collection current through a
// subscription and tracks which record, if any, is under edit.
type Controller[R Record] struct {
	collection string
	store      Store
	editor     Editor[R]
	log        *zap.Logger

	mu       sync.Mutex
	records  []R
	query    string
	mode     Mode
	selected *R
	subErr   error
	sub      *store.Subscription
	onChange func()
}

func New[R Record](collection string, s Store, editor Editor[R], log *zap.Logger) *Controller[R] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller[R]{collection: collection, store: s, editor: editor, log: log}
}

// OnChange registers fn to run after every state change, including
// snapshot deliveries. fn runs without the controller lock held.
func (c *Controller[R]) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller[R]) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Open subscribes to the collection. The first snapshot is applied before
// Open returns.
func (c *Controller[R]) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.mu.Unlock()

	sub, err := c.store.Subscribe(ctx, c.collection, nil, c.apply, c.fail)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.collection, err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return nil
}

func (c *Controller[R]) apply(snap store.Snapshot) {
	recs, err := store.DecodeAll[R](snap)
	if err != nil {
		c.fail(err)
		return
	}
	c.mu.Lock()
	c.records = recs
	c.subErr = nil
	c.mu.Unlock()
	c.changed()
}

func (c *Controller[R]) fail(err error) {
	c.log.Warn("subscription error", zap.String("collection", c.collection), zap.Error(err))
	c.mu.Lock()
	c.subErr = err
	c.mu.Unlock()
	c.changed()
}

// Close releases the subscription. No snapshot is applied after Close
// returns.
func (c *Controller[R]) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// Select copies the record into the editor and switches to Editing.
func (c *Controller[R]) Select(id string) error {
	c.mu.Lock()
	if c.mode == Editing {
		c.mu.Unlock()
		return ErrEditInProgress
	}
	rec, ok := c.find(id)
	if !ok {
		c.mu.Unlock()
		return &store.Error{Op: store.OpGet, Collection: c.collection, ID: id, Err: store.ErrNotFound}
	}
	c.selected = &rec
	c.mode = Editing
	c.editor.Seed(rec)
	c.mu.Unlock()
	c.changed()
	return nil
}

// Cancel discards the draft and returns to Browsing. It never writes.
func (c *Controller[R]) Cancel() {
	c.mu.Lock()
	c.selected = nil
	c.mode = Browsing
	c.editor.Reset()
	c.mu.Unlock()
	c.changed()
}

// Submit saves the editor's draft. A successful save of the record under
// edit returns to Browsing.
func (c *Controller[R]) Submit(ctx context.Context) (string, error) {
	id, err := c.editor.Submit(ctx)
	if err != nil {
		c.changed()
		return "", err
	}
	c.mu.Lock()
	if c.selected != nil && (*c.selected).RecordID() == id {
		c.selected = nil
		c.mode = Browsing
	}
	c.mu.Unlock()
	c.changed()
	return id, nil
}

// Delete asks confirm and deletes the record only when it agrees. Deleting
// the record under edit returns to Browsing. The bool reports whether the
// store was called successfully.
func (c *Controller[R]) Delete(ctx context.Context, id string, confirm Confirmer) (bool, error) {
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Delete %s record %s?", c.collection, id)) {
		return false, nil
	}
	if err := c.store.Delete(ctx, c.collection, id); err != nil {
		return false, err
	}
	c.mu.Lock()
	if c.selected != nil && (*c.selected).RecordID() == id {
		c.selected = nil
		c.mode = Browsing
		c.editor.Reset()
	}
	c.mu.Unlock()
	c.changed()
	return true, nil
}

// CanEdit reports whether the edit action of row id is enabled.
func (c *Controller[R]) CanEdit(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Editing {
		return false
	}
	_, ok := c.find(id)
	return ok
}

func (c *Controller[R]) SetQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
	c.changed()
}

// Visible returns the records matching the query, in store order.
func (c *Controller[R]) Visible() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Filter(c.records, c.query)
}

func (c *Controller[R]) Records() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]R(nil), c.records...)
}

func (c *Controller[R]) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller[R]) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller[R]) Selected() (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		var zero R
		return zero, false
	}
	return *c.selected, true
}

// Err is the last subscription error, cleared by the next snapshot.
func (c *Controller[R]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subErr
}

func (c *Controller[R]) find(id string) (R, bool) {
	for _, r := range c.records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero R
	return zero, false
}

// Filter keeps the records whose search text contains q, ignoring case. An
// empty q keeps everything.
func Filter[R Record](recs []R, q string) []R {
	out := make([]R, 0, len(recs))
	for _, r := range recs {
		if q == "" || matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r Record, q string) bool {
	for _, s := range r.SearchText() {
		if utils.ContainsIgnoreCase(s, q) {
			return true
		}
	}
	return false
}

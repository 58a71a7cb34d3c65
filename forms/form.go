package forms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pilgrimsafe/store"
)

// entity describes how a draft D maps onto a stored record R.
type entity[D any, R any] struct {
	collection string
	label      string
	blank      func() D
	from       func(R) D
	build      func(D) (R, ErrorSet)
	id         func(R) string
	created    func(R) time.Time
	stamp      func(r *R, created, updated time.Time)
}

// form is the state shared by every entity form: the draft, its error map,
// the in-flight flag and the record under edit, if any.
type form[D any, R any] struct {
	ent    entity[D, R]
	store  store.Writer
	notify Notifier
	now    func() time.Time

	mu         sync.Mutex
	draft      D
	errs       ErrorSet
	submitting bool
	editing    *R
}

func newForm[D any, R any](ent entity[D, R], w store.Writer, n Notifier) *form[D, R] {
	if n == nil {
		n = discard{}
	}
	return &form[D, R]{
		ent:    ent,
		store:  w,
		notify: n,
		now:    time.Now,
		draft:  ent.blank(),
		errs:   ErrorSet{},
	}
}

// mutate applies fn to the draft and clears the errors of the touched fields.
func (f *form[D, R]) mutate(fn func(d *D) ([]string, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	touched, err := fn(&f.draft)
	if err != nil {
		return err
	}
	for _, field := range touched {
		delete(f.errs, field)
	}
	return nil
}

func (f *form[D, R]) snapshot() (D, ErrorSet, bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft, f.errs.clone(), f.submitting, f.editing != nil
}

func (f *form[D, R]) load(d D) {
	f.mu.Lock()
	f.draft = d
	f.errs = ErrorSet{}
	f.mu.Unlock()
}

func (f *form[D, R]) validate() ErrorSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, errs := f.ent.build(f.draft)
	f.errs = errs
	return errs.clone()
}

func (f *form[D, R]) seed(r R) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editing = &r
	f.draft = f.ent.from(r)
	f.errs = ErrorSet{}
}

func (f *form[D, R]) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editing = nil
	f.draft = f.ent.blank()
	f.errs = ErrorSet{}
}

func (f *form[D, R]) submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	rec, errs := f.ent.build(f.draft)
	f.errs = errs
	if len(errs) > 0 {
		f.mu.Unlock()
		return "", errs.clone()
	}
	editing := f.editing
	f.submitting = true
	f.mu.Unlock()

	id, err := f.write(ctx, rec, editing)

	f.mu.Lock()
	f.submitting = false
	var msg string
	if err == nil {
		if editing == nil {
			msg = f.ent.label + " added successfully"
		} else {
			msg = f.ent.label + " updated successfully"
		}
		f.editing = nil
		f.draft = f.ent.blank()
		f.errs = ErrorSet{}
	}
	f.mu.Unlock()

	if err != nil {
		f.notify.Alert(fmt.Sprintf("Failed to save %s: %v. Please try again.", f.ent.collection, err))
		return "", err
	}
	f.notify.Notice(msg)
	return id, nil
}

func (f *form[D, R]) write(ctx context.Context, rec R, editing *R) (string, error) {
	now := f.now().UTC()
	if editing == nil {
		f.ent.stamp(&rec, now, now)
	} else {
		f.ent.stamp(&rec, f.ent.created(*editing), now)
	}
	fields, err := store.FieldsOf(rec)
	if err != nil {
		return "", err
	}
	if editing == nil {
		return f.store.Create(ctx, f.ent.collection, fields)
	}
	id := f.ent.id(*editing)
	if err := f.store.Update(ctx, f.ent.collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

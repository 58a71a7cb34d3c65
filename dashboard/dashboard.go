// Package dashboard keeps live counts and a recent-activity feed over the
// collections the admin home screen shows.
package dashboard

import (
	"context"
	"errors"
	"sync"

	"pilgrimsafe/db"
	"pilgrimsafe/models"
	"pilgrimsafe/store"

	"go.uber.org/zap"
)

type Counts struct {
	Users        int `json:"users"`
	Volunteers   int `json:"volunteers"`
	Alerts       int `json:"alerts"`
	ActiveAlerts int `json:"activeAlerts"`
	Places       int `json:"places"`
	Events       int `json:"events"`
	LostPeople   int `json:"lostPeople"`
	FoundPeople  int `json:"foundPeople"`
}

// State is the aggregate shown on the dashboard. Errors maps a slice name
// to the last error of its subscription.
type State struct {
	Counts   Counts            `json:"counts"`
	Activity []Entry           `json:"activity"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func (s State) clone() State {
	out := State{Counts: s.Counts, Activity: append([]Entry{}, s.Activity...)}
	if len(s.Errors) > 0 {
		out.Errors = make(map[string]string, len(s.Errors))
		for k, v := range s.Errors {
			out.Errors[k] = v
		}
	}
	return out
}

func (s *State) setErr(slice string, err error) {
	if err == nil {
		delete(s.Errors, slice)
		return
	}
	if s.Errors == nil {
		s.Errors = make(map[string]string)
	}
	s.Errors[slice] = err.Error()
}

// tracker is one subscription of the dashboard and the slice it owns.
type tracker struct {
	slice      string
	collection string
	filter     store.Filter
	apply      func(st *State, snap store.Snapshot) error
}

var trackers = []tracker{
	{
		slice:      "users",
		collection: db.UsersCollection,
		filter:     store.Filter{"role": models.RoleUser},
		apply: func(st *State, snap store.Snapshot) error {
			st.Counts.Users = len(snap.Docs)
			return nil
		},
	},
	{
		slice:      "volunteers",
		collection: db.UsersCollection,
		filter:     store.Filter{"role": models.RoleVolunteer},
		apply: func(st *State, snap store.Snapshot) error {
			st.Counts.Volunteers = len(snap.Docs)
			return nil
		},
	},
	{
		slice:      "alerts",
		collection: db.AlertsCollection,
		apply: func(st *State, snap store.Snapshot) error {
			alerts, err := store.DecodeAll[models.Alert](snap)
			if err != nil {
				return err
			}
			active := 0
			for _, a := range alerts {
				if a.Status == models.AlertActive {
					active++
				}
			}
			st.Counts.Alerts = len(alerts)
			st.Counts.ActiveAlerts = active
			st.Activity = mergeFeed(st.Activity, KindAlert, alertEntries(alerts))
			return nil
		},
	},
	{
		slice:      "places",
		collection: db.PlacesCollection,
		apply: func(st *State, snap store.Snapshot) error {
			st.Counts.Places = len(snap.Docs)
			return nil
		},
	},
	{
		slice:      "events",
		collection: db.EventsCollection,
		apply: func(st *State, snap store.Snapshot) error {
			st.Counts.Events = len(snap.Docs)
			return nil
		},
	},
	{
		slice:      "lostPeople",
		collection: db.LostPeopleCollection,
		apply: func(st *State, snap store.Snapshot) error {
			people, err := store.DecodeAll[models.LostPerson](snap)
			if err != nil {
				return err
			}
			missing, found := 0, 0
			for _, p := range people {
				if p.Status == models.PersonFound {
					found++
				} else {
					missing++
				}
			}
			st.Counts.LostPeople = missing
			st.Counts.FoundPeople = found
			st.Activity = mergeFeed(st.Activity, KindLostPerson, lostPersonEntries(people))
			return nil
		},
	},
}

var ErrAlreadyOpen = errors.New("dashboard: already open")

// Dashboard holds one subscription per tracked slice. Slices update
// independently; a failing slice keeps its last value while the others
// continue.
type Dashboard struct {
	store store.Subscriber
	log   *zap.Logger

	// emit serialises listener calls; Close takes it last so no call is
	// in progress once Close returns.
	emit sync.Mutex

	mu       sync.Mutex
	state    State
	subs     []*store.Subscription
	open     bool
	closed   bool
	listener func(State)
}

func New(s store.Subscriber, log *zap.Logger) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dashboard{store: s, log: log, state: State{Activity: []Entry{}}}
}

// OnUpdate registers fn to receive the state after every change. fn runs
// on a store goroutine and must not call Close.
func (d *Dashboard) OnUpdate(fn func(State)) {
	d.mu.Lock()
	d.listener = fn
	d.mu.Unlock()
}

// Open subscribes every slice. A slice whose subscription cannot be opened
// records the error and the rest still open.
func (d *Dashboard) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return ErrAlreadyOpen
	}
	d.open = true
	d.mu.Unlock()

	for _, tr := range trackers {
		sub, err := d.store.Subscribe(ctx, tr.collection, tr.filter,
			func(snap store.Snapshot) { d.update(tr.slice, func(st *State) error { return tr.apply(st, snap) }) },
			func(err error) { d.update(tr.slice, func(*State) error { return err }) },
		)
		if err != nil {
			d.log.Warn("dashboard subscription failed", zap.String("slice", tr.slice), zap.Error(err))
			d.update(tr.slice, func(*State) error { return err })
			continue
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			sub.Close()
			return nil
		}
		d.subs = append(d.subs, sub)
		d.mu.Unlock()
	}
	return nil
}

// update applies fn to a copy of the state so a failing slice leaves its
// previous values untouched.
func (d *Dashboard) update(slice string, fn func(st *State) error) {
	d.emit.Lock()
	defer d.emit.Unlock()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	next := d.state.clone()
	if err := fn(&next); err != nil {
		d.log.Warn("dashboard slice error", zap.String("slice", slice), zap.Error(err))
		d.state.setErr(slice, err)
	} else {
		next.setErr(slice, nil)
		d.state = next
	}
	out := d.state.clone()
	listener := d.listener
	d.mu.Unlock()

	if listener != nil {
		listener(out)
	}
}

func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.clone()
}

// Close unsubscribes every slice. The listener is not called after Close
// returns.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	d.emit.Lock()
	d.emit.Unlock()
}

// Compute builds the same aggregate once from plain reads.
func Compute(ctx context.Context, r store.Reader) State {
	st := State{Activity: []Entry{}}
	for _, tr := range trackers {
		snap, err := r.Fetch(ctx, tr.collection, tr.filter)
		if err == nil {
			next := st.clone()
			if err = tr.apply(&next, snap); err == nil {
				st = next
			}
		}
		st.setErr(tr.slice, err)
	}
	return st
}

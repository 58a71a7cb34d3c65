package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pilgrimsafe/db"
	"pilgrimsafe/models"
	"pilgrimsafe/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var base = time.Date(2027, 7, 14, 6, 0, 0, 0, time.UTC)

func put(t *testing.T, mem *store.Memory, collection string, v any) string {
	t.Helper()
	fields, err := store.FieldsOf(v)
	require.NoError(t, err)
	id, err := mem.Create(context.Background(), collection, fields)
	require.NoError(t, err)
	return id
}

func seeded(t *testing.T) *store.Memory {
	mem := store.NewMemory(nil)
	put(t, mem, db.UsersCollection, models.User{Username: "asha", Role: models.RoleUser})
	put(t, mem, db.UsersCollection, models.User{Username: "ravi", Role: models.RoleUser})
	put(t, mem, db.UsersCollection, models.User{Username: "meera", Role: models.RoleVolunteer})
	put(t, mem, db.UsersCollection, models.User{Username: "root", Role: models.RoleAdmin})
	put(t, mem, db.PlacesCollection, models.Place{Name: "Ramkund"})
	put(t, mem, db.EventsCollection, models.Event{EventName: "Aarti"})
	put(t, mem, db.EventsCollection, models.Event{EventName: "Procession"})
	put(t, mem, db.AlertsCollection, models.Alert{Title: "Crowd surge", Status: models.AlertActive, CreatedAt: base})
	put(t, mem, db.LostPeopleCollection, models.LostPerson{Name: "Gopal", Status: models.PersonMissing, ReportedAt: base.Add(-time.Hour)})
	return mem
}

// spy counts listener calls.
type spy struct {
	mu    sync.Mutex
	calls int
	last  State
}

func (s *spy) record(st State) {
	s.mu.Lock()
	s.calls++
	s.last = st
	s.mu.Unlock()
}

func (s *spy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestOpenCountsEverySlice(t *testing.T) {
	mem := seeded(t)
	d := New(mem, nil)
	require.NoError(t, d.Open(context.Background()))
	defer d.Close()

	st := d.State()
	assert.Equal(t, Counts{
		Users: 2, Volunteers: 1, Alerts: 1, ActiveAlerts: 1,
		Places: 1, Events: 2, LostPeople: 1, FoundPeople: 0,
	}, st.Counts)
	require.Len(t, st.Activity, 2)
	assert.Equal(t, "Crowd surge", st.Activity[0].Title)
	assert.Equal(t, "Missing: Gopal", st.Activity[1].Title)
	assert.Empty(t, st.Errors)
	assert.Equal(t, 6, mem.ActiveSubscriptions())
	assert.ErrorIs(t, d.Open(context.Background()), ErrAlreadyOpen)
}

func TestLiveUpdatesWithoutRefetch(t *testing.T) {
	mem := seeded(t)
	d := New(mem, nil)
	s := &spy{}
	d.OnUpdate(s.record)
	require.NoError(t, d.Open(context.Background()))
	defer d.Close()

	put(t, mem, db.UsersCollection, models.User{Username: "kiran", Role: models.RoleVolunteer})
	put(t, mem, db.PlacesCollection, models.Place{Name: "Kalaram Temple"})

	st := d.State()
	assert.Equal(t, 2, st.Counts.Volunteers)
	assert.Equal(t, 2, st.Counts.Users)
	assert.Equal(t, 2, st.Counts.Places)
	s.mu.Lock()
	assert.Equal(t, st, s.last)
	s.mu.Unlock()
}

func TestNoListenerCallsAfterClose(t *testing.T) {
	mem := seeded(t)
	d := New(mem, nil)
	s := &spy{}
	d.OnUpdate(s.record)
	require.NoError(t, d.Open(context.Background()))
	require.Equal(t, 6, s.count())

	d.Close()
	before := s.count()
	put(t, mem, db.UsersCollection, models.User{Username: "late", Role: models.RoleUser})
	put(t, mem, db.AlertsCollection, models.Alert{Title: "Late", CreatedAt: base})
	put(t, mem, db.LostPeopleCollection, models.LostPerson{Name: "Late"})
	put(t, mem, db.PlacesCollection, models.Place{Name: "Late"})
	put(t, mem, db.EventsCollection, models.Event{EventName: "Late"})

	assert.Equal(t, before, s.count())
	assert.Zero(t, mem.ActiveSubscriptions())
	d.Close()
}

func TestCloseWhenContextDone(t *testing.T) {
	mem := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	d := New(mem, nil)
	require.NoError(t, d.Open(ctx))

	cancel()
	require.Eventually(t, func() bool { return mem.ActiveSubscriptions() == 0 }, time.Second, 5*time.Millisecond)
	d.Close()
}

func TestFailingSliceDoesNotStopOthers(t *testing.T) {
	mem := seeded(t)
	d := New(mem, nil)
	require.NoError(t, d.Open(context.Background()))
	defer d.Close()

	mem.SetFault(func(op store.Op, collection string) error {
		if op == store.OpFetch && collection == db.AlertsCollection {
			return errors.New("alerts shard unavailable")
		}
		return nil
	})
	put(t, mem, db.AlertsCollection, models.Alert{Title: "Medical", Status: models.AlertActive, CreatedAt: base.Add(time.Minute)})
	put(t, mem, db.EventsCollection, models.Event{EventName: "Satsang"})

	st := d.State()
	assert.Contains(t, st.Errors["alerts"], "alerts shard unavailable")
	assert.Equal(t, 1, st.Counts.Alerts)
	assert.Equal(t, 3, st.Counts.Events)
	assert.NotContains(t, st.Errors, "events")

	mem.SetFault(nil)
	put(t, mem, db.AlertsCollection, models.Alert{Title: "Resolved", Status: models.AlertResolved, CreatedAt: base.Add(2 * time.Minute)})
	st = d.State()
	assert.Equal(t, 3, st.Counts.Alerts)
	assert.Equal(t, 2, st.Counts.ActiveAlerts)
	assert.NotContains(t, st.Errors, "alerts")
}

func TestSubscribeFailureIsolated(t *testing.T) {
	mem := seeded(t)
	mem.SetFault(func(op store.Op, collection string) error {
		if op == store.OpSubscribe && collection == db.LostPeopleCollection {
			return errors.New("permission denied")
		}
		return nil
	})
	d := New(mem, nil)
	require.NoError(t, d.Open(context.Background()))
	defer d.Close()

	st := d.State()
	assert.Contains(t, st.Errors["lostPeople"], "permission denied")
	assert.Equal(t, 2, st.Counts.Users)
	assert.Equal(t, 1, st.Counts.Alerts)
	assert.Equal(t, 5, mem.ActiveSubscriptions())
}

func TestAlertFeedKeepsFiveNewestAndMergesByKind(t *testing.T) {
	mem := store.NewMemory(nil)
	for i := 0; i < 4; i++ {
		put(t, mem, db.LostPeopleCollection, models.LostPerson{
			Name: fmt.Sprintf("person-%d", i), Status: models.PersonMissing, ReportedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < 8; i++ {
		put(t, mem, db.AlertsCollection, models.Alert{
			Title: fmt.Sprintf("alert-%d", i), Status: models.AlertActive, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	d := New(mem, nil)
	require.NoError(t, d.Open(context.Background()))
	defer d.Close()

	st := d.State()
	require.Len(t, st.Activity, 9)
	var titles []string
	for _, e := range st.Activity {
		if e.Kind == KindAlert {
			titles = append(titles, e.Title)
		}
	}
	assert.Equal(t, []string{"alert-7", "alert-6", "alert-5", "alert-4", "alert-3"}, titles)
	for i := 1; i < len(st.Activity); i++ {
		assert.False(t, st.Activity[i].Timestamp.After(st.Activity[i-1].Timestamp))
	}
}

func TestMergeFeed(t *testing.T) {
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	var feed []Entry
	for i := 0; i < 8; i++ {
		feed = append(feed, Entry{Kind: KindLostPerson, Title: fmt.Sprint("lp", i), Timestamp: at(i)})
	}
	feed = append(feed, Entry{Kind: KindAlert, Title: "old alert", Timestamp: at(100)})

	got := mergeFeed(feed, KindAlert, []Entry{
		{Kind: KindAlert, Title: "a1", Timestamp: at(50)},
		{Kind: KindAlert, Title: "a2", Timestamp: at(3)},
		{Kind: KindAlert, Title: "a3", Timestamp: at(-1)},
	})

	require.Len(t, got, FeedSize)
	assert.Equal(t, "a1", got[0].Title)
	assert.Equal(t, "lp7", got[1].Title)
	for _, e := range got {
		assert.NotEqual(t, "old alert", e.Title)
		assert.NotEqual(t, "a3", e.Title)
	}
}

func TestCompute(t *testing.T) {
	mem := seeded(t)
	mem.SetFault(func(op store.Op, collection string) error {
		if collection == db.EventsCollection {
			return errors.New("timeout")
		}
		return nil
	})

	st := Compute(context.Background(), mem)

	assert.Equal(t, 2, st.Counts.Users)
	assert.Equal(t, 1, st.Counts.Places)
	assert.Zero(t, st.Counts.Events)
	assert.Contains(t, st.Errors, "events")
	assert.Len(t, st.Activity, 2)
}

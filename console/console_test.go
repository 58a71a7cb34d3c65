package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pilgrimsafe/dashboard"
	"pilgrimsafe/db"
	"pilgrimsafe/forms"
	"pilgrimsafe/models"
	"pilgrimsafe/store"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type env struct {
	mem *store.Memory
	hub *Hub
	ts  *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := store.NewMemory(nil)
	hub := NewHub(nil)
	go hub.Run()
	srv := NewServer(hub, mem, nil, nil)
	router := httprouter.New()
	router.GET("/ws/dashboard", srv.Dashboard)
	router.GET("/ws/console/:collection", srv.Console)
	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.Close()
		hub.Stop()
	})
	return &env{mem: mem, hub: hub, ts: ts}
}

func (e *env) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + path
}

func (e *env) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *env) put(t *testing.T, collection string, v any) string {
	t.Helper()
	fields, err := store.FieldsOf(v)
	require.NoError(t, err)
	id, err := e.mem.Create(context.Background(), collection, fields)
	require.NoError(t, err)
	return id
}

type inFrame struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type placeView = View[models.Place, forms.PlaceDraft]

// waitFor reads frames until match accepts one.
func waitFor(t *testing.T, conn *websocket.Conn, match func(inFrame) bool) inFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f inFrame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func placeState(t *testing.T, conn *websocket.Conn, match func(placeView) bool) placeView {
	t.Helper()
	var v placeView
	waitFor(t, conn, func(f inFrame) bool {
		if f.Type != FrameState {
			return false
		}
		var got placeView
		require.NoError(t, json.Unmarshal(f.Data, &got))
		if match(got) {
			v = got
			return true
		}
		return false
	})
	return v
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

var ramkund = models.Place{
	Name: "Ramkund", Categories: []string{"Ghats"}, Description: "Holy tank on the Godavari",
	Latitude: 20.0075, Longitude: 73.7929, CrowdLevel: models.CrowdHigh, EntryFee: models.FreeEntry(),
}

func TestDashboardSocketStreamsUpdates(t *testing.T) {
	e := newEnv(t)
	e.put(t, db.UsersCollection, models.User{Username: "asha", Role: models.RoleUser})
	conn := e.dial(t, "/ws/dashboard")

	decode := func(f inFrame) dashboard.State {
		var st dashboard.State
		require.NoError(t, json.Unmarshal(f.Data, &st))
		return st
	}
	waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameState && decode(f).Counts.Users == 1 })

	e.put(t, db.AlertsCollection, models.Alert{Title: "Crowd surge", Status: models.AlertActive, CreatedAt: time.Now().UTC()})

	f := waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameState && decode(f).Counts.Alerts == 1 })
	st := decode(f)
	assert.Equal(t, 1, st.Counts.ActiveAlerts)
	require.NotEmpty(t, st.Activity)
	assert.Equal(t, "Crowd surge", st.Activity[0].Title)
}

func TestClosingSocketsClosesSubscriptions(t *testing.T) {
	e := newEnv(t)
	dash := e.dial(t, "/ws/dashboard")
	cons := e.dial(t, "/ws/console/places")
	placeState(t, cons, func(placeView) bool { return true })

	assert.Eventually(t, func() bool { return e.mem.ActiveSubscriptions() == 7 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return e.hub.Count(DashboardRoom) == 1 }, 2*time.Second, 10*time.Millisecond)

	dash.Close()
	cons.Close()

	assert.Eventually(t, func() bool { return e.mem.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return e.hub.Count(DashboardRoom) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConsoleEditsSelectedPlace(t *testing.T) {
	e := newEnv(t)
	id := e.put(t, db.PlacesCollection, ramkund)
	conn := e.dial(t, "/ws/console/places")
	placeState(t, conn, func(v placeView) bool { return v.Total == 1 })

	send(t, conn, Command{Action: "select", ID: id})
	v := placeState(t, conn, func(v placeView) bool { return v.Mode == "editing" })
	assert.Equal(t, id, v.Selected)
	assert.Equal(t, "Ramkund", v.Draft.Name)

	send(t, conn, Command{Action: "set", Field: "name", Value: "Ramkund Ghat"})
	placeState(t, conn, func(v placeView) bool { return v.Draft.Name == "Ramkund Ghat" })

	send(t, conn, Command{Action: "submit"})
	n := waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameNotice })
	assert.Equal(t, "Place updated successfully", n.Message)
	v = placeState(t, conn, func(v placeView) bool { return v.Mode == "browsing" })
	require.Len(t, v.Records, 1)
	assert.Equal(t, "Ramkund Ghat", v.Records[0].Name)

	doc, err := e.mem.Get(context.Background(), db.PlacesCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "Ramkund Ghat", doc["name"])
}

func TestConsoleCancelDoesNotWrite(t *testing.T) {
	e := newEnv(t)
	id := e.put(t, db.PlacesCollection, ramkund)
	conn := e.dial(t, "/ws/console/places")
	placeState(t, conn, func(v placeView) bool { return v.Total == 1 })

	send(t, conn, Command{Action: "select", ID: id})
	send(t, conn, Command{Action: "set", Field: "name", Value: "Changed"})
	placeState(t, conn, func(v placeView) bool { return v.Draft.Name == "Changed" })
	send(t, conn, Command{Action: "cancel"})
	v := placeState(t, conn, func(v placeView) bool { return v.Mode == "browsing" && v.Draft.Name == "" })
	assert.Equal(t, "Ramkund", v.Records[0].Name)

	doc, err := e.mem.Get(context.Background(), db.PlacesCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "Ramkund", doc["name"])
}

func TestConsoleDeleteRequiresConfirmation(t *testing.T) {
	e := newEnv(t)
	id := e.put(t, db.PlacesCollection, ramkund)
	conn := e.dial(t, "/ws/console/places")
	placeState(t, conn, func(v placeView) bool { return v.Total == 1 })

	send(t, conn, Command{Action: "delete", ID: id})
	v := placeState(t, conn, func(placeView) bool { return true })
	assert.Equal(t, 1, v.Total)
	_, err := e.mem.Get(context.Background(), db.PlacesCollection, id)
	require.NoError(t, err)

	send(t, conn, Command{Action: "delete", ID: id, Confirm: true})
	n := waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameNotice })
	assert.Equal(t, "Place deleted successfully", n.Message)
	_, err = e.mem.Get(context.Background(), db.PlacesCollection, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsoleDeleteFailureAlerts(t *testing.T) {
	e := newEnv(t)
	id := e.put(t, db.PlacesCollection, ramkund)
	conn := e.dial(t, "/ws/console/places")
	placeState(t, conn, func(v placeView) bool { return v.Total == 1 })

	e.mem.SetFault(func(op store.Op, _ string) error {
		if op == store.OpDelete {
			return assert.AnError
		}
		return nil
	})
	send(t, conn, Command{Action: "delete", ID: id, Confirm: true})

	a := waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameAlert })
	assert.Contains(t, a.Message, "Failed to delete places")
}

func TestConsolePlaceToggles(t *testing.T) {
	e := newEnv(t)
	conn := e.dial(t, "/ws/console/places")
	placeState(t, conn, func(placeView) bool { return true })

	send(t, conn, Command{Action: "toggle", Group: "categories", Key: "Temple"})
	send(t, conn, Command{Action: "toggle", Group: "transport", Key: "Bus"})
	send(t, conn, Command{Action: "price", Group: "transport", Key: "Bus", Field: "maxPrice", Value: "40"})
	v := placeState(t, conn, func(v placeView) bool {
		return len(v.Draft.Transport) == 1 && v.Draft.Transport[0].MaxPrice == "40"
	})
	assert.Equal(t, []string{"Temple"}, v.Draft.Categories)
	assert.Equal(t, "Bus", v.Draft.Transport[0].Mode)

	send(t, conn, Command{Action: "toggle", Group: "weather", Key: "Rain"})
	f := waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Message, "unknown command")
}

func TestEventConsoleShowsFieldErrors(t *testing.T) {
	e := newEnv(t)
	conn := e.dial(t, "/ws/console/events")

	send(t, conn, Command{Action: "submit"})
	f := waitFor(t, conn, func(f inFrame) bool {
		if f.Type != FrameState {
			return false
		}
		var v View[models.Event, forms.EventDraft]
		require.NoError(t, json.Unmarshal(f.Data, &v))
		return len(v.Errors) > 0
	})
	var v View[models.Event, forms.EventDraft]
	require.NoError(t, json.Unmarshal(f.Data, &v))
	assert.Contains(t, v.Errors, "eventName")
	assert.Equal(t, "free", v.Draft.EntryFeeType)

	send(t, conn, Command{Action: "toggle", Group: "categories", Key: "Temple"})
	f = waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Message, "unknown command")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = waitFor(t, conn, func(f inFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Message, "invalid command")
}

func TestConsoleUnknownCollection(t *testing.T) {
	e := newEnv(t)
	_, resp, err := websocket.DefaultDialer.Dial(e.wsURL("/ws/console/farms"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://admin.pilgrimsafe.org"})
	req := httptest.NewRequest(http.MethodGet, "/ws/dashboard", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://admin.pilgrimsafe.org")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
	assert.True(t, checkOrigin([]string{"*"})(req))
}

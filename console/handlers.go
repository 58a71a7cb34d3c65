package console

import (
	"context"
	"net/http"
	"slices"

	"pilgrimsafe/browse"
	"pilgrimsafe/dashboard"
	"pilgrimsafe/db"
	"pilgrimsafe/forms"
	"pilgrimsafe/models"
	"pilgrimsafe/store"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const DashboardRoom = "dashboard"

// ConsoleRoom is the hub room of the console for one collection.
func ConsoleRoom(collection string) string { return "console:" + collection }

// Server upgrades admin requests into live views. Every view owns its
// subscriptions and closes them when the socket goes away.
type Server struct {
	Hub      *Hub
	Store    store.Client
	Log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, s store.Client, allowedOrigins []string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Hub:   hub,
		Store: s,
		Log:   log.Named("console"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// connect upgrades the request and registers the client in room.
func (s *Server) connect(w http.ResponseWriter, r *http.Request, room string) (*Client, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Debug("upgrade failed", zap.Error(err))
		return nil, false
	}
	c := NewClient(conn, room)
	if !s.Hub.Register(c) {
		conn.Close()
		return nil, false
	}
	go c.writePump()
	return c, true
}

func (s *Server) sender(c *Client) func(Frame) {
	return func(f Frame) { s.Hub.Send(c, encode(f)) }
}

// Dashboard streams the dashboard state on every change.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, ok := s.connect(w, r, DashboardRoom)
	if !ok {
		return
	}
	out := s.sender(c)

	ctx, cancel := context.WithCancel(context.Background())
	dash := dashboard.New(s.Store, s.Log)
	dash.OnUpdate(func(st dashboard.State) { out(Frame{Type: FrameState, Data: st}) })
	if err := dash.Open(ctx); err != nil {
		s.Log.Warn("dashboard open failed", zap.Error(err))
	}

	go func() {
		defer func() {
			dash.Close()
			cancel()
		}()
		c.readPump(s.Hub, func([]byte) {})
	}()
}

// Console hosts a browse/edit session for :collection (places or events).
func (s *Server) Console(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	collection := ps.ByName("collection")
	switch collection {
	case db.PlacesCollection, db.EventsCollection:
	default:
		http.Error(w, "Unsupported collection", http.StatusNotFound)
		return
	}

	c, ok := s.connect(w, r, ConsoleRoom(collection))
	if !ok {
		return
	}
	out := s.sender(c)
	room := ConsoleRoom(collection)
	n := notifier{
		out:      out,
		activity: func(msg string) { s.Hub.Broadcast(room, encode(Frame{Type: FrameActivity, Message: msg})) },
	}

	var (
		handle func(ctx context.Context, raw []byte)
		open   func(ctx context.Context) error
		closer func()
	)
	if collection == db.PlacesCollection {
		form := forms.NewPlaceForm(s.Store, n)
		sess := &session[models.Place, forms.PlaceDraft]{
			collection: collection,
			label:      "Place",
			ctrl:       browse.New[models.Place](collection, s.Store, form, s.Log),
			form:       form,
			extra:      placeCommands(form),
			out:        out,
			log:        s.Log,
		}
		handle, open, closer = wire(sess)
	} else {
		form := forms.NewEventForm(s.Store, n)
		sess := &session[models.Event, forms.EventDraft]{
			collection: collection,
			label:      "Event",
			ctrl:       browse.New[models.Event](collection, s.Store, form, s.Log),
			form:       form,
			out:        out,
			log:        s.Log,
		}
		handle, open, closer = wire(sess)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := open(ctx); err != nil {
		s.Log.Warn("console open failed", zap.String("collection", collection), zap.Error(err))
		out(Frame{Type: FrameAlert, Message: "Failed to load " + collection + ": " + err.Error()})
	}

	go func() {
		defer func() {
			closer()
			cancel()
		}()
		c.readPump(s.Hub, func(raw []byte) { handle(ctx, raw) })
	}()
}

func wire[R browse.Record, D any](sess *session[R, D]) (func(context.Context, []byte), func(context.Context) error, func()) {
	sess.ctrl.OnChange(sess.push)
	open := func(ctx context.Context) error {
		if err := sess.ctrl.Open(ctx); err != nil {
			return err
		}
		sess.push()
		return nil
	}
	return sess.handleRaw, open, sess.ctrl.Close
}

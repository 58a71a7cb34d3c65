package store

import (
	"context"
	"reflect"
	"sync"
	"time"

	"pilgrimsafe/mq"
	"pilgrimsafe/utils"

	"go.mongodb.org/mongo-driver/bson"
)

// FaultFunc lets tests fail chosen operations. Returning nil lets the
// operation proceed.
type FaultFunc func(op Op, collection string) error

// Memory is an in-process store for tests and the memory development mode.
// Documents round-trip through bson so they look exactly like documents
// read back from MongoDB.
type Memory struct {
	bus mq.Bus

	mu     sync.Mutex
	cols   map[string]*memCollection
	fault  FaultFunc
	active int
}

type memCollection struct {
	order []string
	docs  map[string]bson.M
}

// NewMemory returns an empty store. A nil bus gets a LocalBus.
func NewMemory(bus mq.Bus) *Memory {
	if bus == nil {
		bus = mq.NewLocalBus()
	}
	return &Memory{bus: bus, cols: make(map[string]*memCollection)}
}

func (m *Memory) SetFault(fn FaultFunc) {
	m.mu.Lock()
	m.fault = fn
	m.mu.Unlock()
}

// ActiveSubscriptions reports how many subscriptions are still open.
func (m *Memory) ActiveSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Memory) checkFault(op Op, collection string) error {
	m.mu.Lock()
	fn := m.fault
	m.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(op, collection)
}

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.cols[name]
	if !ok {
		c = &memCollection{docs: make(map[string]bson.M)}
		m.cols[name] = c
	}
	return c
}

func (m *Memory) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := m.checkFault(OpCreate, collection); err != nil {
		return "", &Error{Op: OpCreate, Collection: collection, Err: err}
	}
	doc, err := normalize(fields)
	if err != nil {
		return "", &Error{Op: OpCreate, Collection: collection, Err: err}
	}
	id := utils.GetUUID()
	doc["_id"] = id

	m.mu.Lock()
	c := m.collection(collection)
	c.order = append(c.order, id)
	c.docs[id] = doc
	m.mu.Unlock()

	m.announce(ctx, collection, id, mq.MethodCreate)
	return id, nil
}

// Update sets the given fields on an existing document. A missing id is a
// silent no-op, as with MongoDB's UpdateOne.
func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := m.checkFault(OpUpdate, collection); err != nil {
		return &Error{Op: OpUpdate, Collection: collection, ID: id, Err: err}
	}
	set, err := normalize(fields)
	if err != nil {
		return &Error{Op: OpUpdate, Collection: collection, ID: id, Err: err}
	}
	delete(set, "_id")

	m.mu.Lock()
	doc, ok := m.collection(collection).docs[id]
	if ok {
		for k, v := range set {
			doc[k] = v
		}
	}
	m.mu.Unlock()

	if ok {
		m.announce(ctx, collection, id, mq.MethodUpdate)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := m.checkFault(OpDelete, collection); err != nil {
		return &Error{Op: OpDelete, Collection: collection, ID: id, Err: err}
	}

	m.mu.Lock()
	c := m.collection(collection)
	_, ok := c.docs[id]
	if ok {
		delete(c.docs, id)
		for i, oid := range c.order {
			if oid == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if ok {
		m.announce(ctx, collection, id, mq.MethodDelete)
	}
	return nil
}

func (m *Memory) Fetch(_ context.Context, collection string, filter Filter) (Snapshot, error) {
	if err := m.checkFault(OpFetch, collection); err != nil {
		return Snapshot{}, &Error{Op: OpFetch, Collection: collection, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{Collection: collection, Docs: []bson.M{}}
	c, ok := m.cols[collection]
	if !ok {
		return snap, nil
	}
	for _, id := range c.order {
		doc := c.docs[id]
		if matches(doc, filter) {
			snap.Docs = append(snap.Docs, copyDoc(doc))
		}
	}
	return snap, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (bson.M, error) {
	if err := m.checkFault(OpGet, collection); err != nil {
		return nil, &Error{Op: OpGet, Collection: collection, ID: id, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cols[collection]; ok {
		if doc, ok := c.docs[id]; ok {
			return copyDoc(doc), nil
		}
	}
	return nil, &Error{Op: OpGet, Collection: collection, ID: id, Err: ErrNotFound}
}

func (m *Memory) Subscribe(ctx context.Context, collection string, filter Filter,
	onSnapshot func(Snapshot), onError func(error)) (*Subscription, error) {

	if err := m.checkFault(OpSubscribe, collection); err != nil {
		return nil, &Error{Op: OpSubscribe, Collection: collection, Err: err}
	}

	m.mu.Lock()
	m.active++
	m.mu.Unlock()

	sub, err := subscribe(ctx, subscribeParams{
		bus:        m.bus,
		timeout:    time.Second,
		collection: collection,
		filter:     filter,
		fetch:      m.Fetch,
		onSnapshot: onSnapshot,
		onError:    onError,
		onClose: func() {
			m.mu.Lock()
			m.active--
			m.mu.Unlock()
		},
	})
	if err != nil {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

func (m *Memory) announce(ctx context.Context, collection, id, method string) {
	// LocalBus never fails; a remote bus failure must not undo the write.
	_ = m.bus.Publish(ctx, mq.Change{Collection: collection, ID: id, Method: method})
}

func normalize(fields Fields) (bson.M, error) {
	raw, err := bson.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// copyDoc deep-copies a normalized document.
func copyDoc(doc bson.M) bson.M {
	out, err := normalize(doc)
	if err != nil {
		return bson.M{}
	}
	return out
}

func matches(doc bson.M, filter Filter) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(doc[k], want) {
			return false
		}
	}
	return true
}

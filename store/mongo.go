package store

import (
	"context"
	"errors"
	"time"

	"pilgrimsafe/mq"
	"pilgrimsafe/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Mongo is the production store. Record ids are UUID strings kept in _id.
type Mongo struct {
	DB      *mongo.Database
	Bus     mq.Bus
	Log     *zap.Logger
	Timeout time.Duration
}

func NewMongo(db *mongo.Database, bus mq.Bus, log *zap.Logger) *Mongo {
	return &Mongo{DB: db, Bus: bus, Log: log, Timeout: 5 * time.Second}
}

func (m *Mongo) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	id := utils.GetUUID()
	doc := bson.M{}
	for k, v := range fields {
		doc[k] = v
	}
	doc["_id"] = id

	if _, err := m.DB.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", &Error{Op: OpCreate, Collection: collection, Err: err}
	}
	m.announce(ctx, collection, id, mq.MethodCreate)
	return id, nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields Fields) error {
	set := bson.M{}
	for k, v := range fields {
		if k != "_id" {
			set[k] = v
		}
	}

	res, err := m.DB.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return &Error{Op: OpUpdate, Collection: collection, ID: id, Err: err}
	}
	if res.MatchedCount == 0 {
		m.Log.Debug("update matched nothing", zap.String("collection", collection), zap.String("id", id))
		return nil
	}
	m.announce(ctx, collection, id, mq.MethodUpdate)
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.DB.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return &Error{Op: OpDelete, Collection: collection, ID: id, Err: err}
	}
	if res.DeletedCount > 0 {
		m.announce(ctx, collection, id, mq.MethodDelete)
	}
	return nil
}

func (m *Mongo) Fetch(ctx context.Context, collection string, filter Filter) (Snapshot, error) {
	q := bson.M{}
	for k, v := range filter {
		q[k] = v
	}

	cursor, err := m.DB.Collection(collection).Find(ctx, q)
	if err != nil {
		return Snapshot{}, &Error{Op: OpFetch, Collection: collection, Err: err}
	}
	defer cursor.Close(ctx)

	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return Snapshot{}, &Error{Op: OpFetch, Collection: collection, Err: err}
	}
	return Snapshot{Collection: collection, Docs: docs}, nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (bson.M, error) {
	var doc bson.M
	err := m.DB.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &Error{Op: OpGet, Collection: collection, ID: id, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: OpGet, Collection: collection, ID: id, Err: err}
	}
	return doc, nil
}

func (m *Mongo) Subscribe(ctx context.Context, collection string, filter Filter,
	onSnapshot func(Snapshot), onError func(error)) (*Subscription, error) {

	return subscribe(ctx, subscribeParams{
		bus:        m.Bus,
		timeout:    m.Timeout,
		collection: collection,
		filter:     filter,
		fetch:      m.Fetch,
		onSnapshot: onSnapshot,
		onError:    onError,
	})
}

func (m *Mongo) announce(ctx context.Context, collection, id, method string) {
	if err := m.Bus.Publish(ctx, mq.Change{Collection: collection, ID: id, Method: method}); err != nil {
		m.Log.Warn("change not announced",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
	}
}

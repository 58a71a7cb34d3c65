// Package store is the record store client the admin console writes
// through. Writes are announced on an mq.Bus; subscriptions re-read their
// collection on every announcement and push the full snapshot to their
// holder.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Fields is the document body handed to Create and Update.
type Fields = bson.M

// Filter selects documents by field equality. A nil Filter matches all.
type Filter map[string]any

// Snapshot is the full current content of a subscribed collection.
type Snapshot struct {
	Collection string
	Docs       []bson.M
}

type Writer interface {
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

type Reader interface {
	Fetch(ctx context.Context, collection string, filter Filter) (Snapshot, error)
	Get(ctx context.Context, collection, id string) (bson.M, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, collection string, filter Filter, onSnapshot func(Snapshot), onError func(error)) (*Subscription, error)
}

type Client interface {
	Writer
	Reader
	Subscriber
}

var ErrNotFound = errors.New("record not found")

type Op string

const (
	OpCreate    Op = "create"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpFetch     Op = "fetch"
	OpGet       Op = "get"
	OpSubscribe Op = "subscribe"
)

// Error is returned by every failed store operation.
type Error struct {
	Op         Op
	Collection string
	ID         string
	Err        error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store: %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SubscriptionError is passed to a subscription's error callback when a
// snapshot could not be read. The subscription stays open.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// FieldsOf converts a bson-tagged struct into Fields.
func FieldsOf(v any) (Fields, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var out Fields
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return out, nil
}

// Decode converts a stored document into T through its bson tags.
func Decode[T any](doc bson.M) (T, error) {
	var out T
	raw, err := bson.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encode document: %w", err)
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// DecodeAll decodes every document of a snapshot, in snapshot order.
func DecodeAll[T any](s Snapshot) ([]T, error) {
	out := make([]T, 0, len(s.Docs))
	for _, doc := range s.Docs {
		v, err := Decode[T](doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

package forms

import (
	"context"
	"errors"
	"sync"

	"pilgrimsafe/store"
)

type writeCall struct {
	Method     string
	Collection string
	ID         string
	Fields     store.Fields
}

// spyWriter records calls. When gate is set, writes block until it closes.
type spyWriter struct {
	mu    sync.Mutex
	calls []writeCall
	err   error
	gate  chan struct{}
	enter chan struct{}
}

func (s *spyWriter) record(c writeCall) error {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	gate, enter, err := s.gate, s.enter, s.err
	s.mu.Unlock()
	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (s *spyWriter) Create(_ context.Context, collection string, fields store.Fields) (string, error) {
	if err := s.record(writeCall{Method: "create", Collection: collection, Fields: fields}); err != nil {
		return "", err
	}
	return "new-id", nil
}

func (s *spyWriter) Update(_ context.Context, collection, id string, fields store.Fields) error {
	return s.record(writeCall{Method: "update", Collection: collection, ID: id, Fields: fields})
}

func (s *spyWriter) Delete(_ context.Context, collection, id string) error {
	return s.record(writeCall{Method: "delete", Collection: collection, ID: id})
}

func (s *spyWriter) Calls() []writeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]writeCall(nil), s.calls...)
}

var errOffline = errors.New("backend offline")

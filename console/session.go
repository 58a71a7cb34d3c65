package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pilgrimsafe/browse"
	"pilgrimsafe/forms"

	"go.uber.org/zap"
)

// editor is the form side of a console session.
type editor[R browse.Record, D any] interface {
	browse.Editor[R]
	SetField(field, value string) error
	Draft() D
	Errors() forms.ErrorSet
	Submitting() bool
}

// View is the state frame payload of a console session.
type View[R any, D any] struct {
	Collection string         `json:"collection"`
	Mode       string         `json:"mode"`
	Query      string         `json:"query"`
	Records    []R            `json:"records"`
	Total      int            `json:"total"`
	Selected   string         `json:"selected,omitempty"`
	Draft      D              `json:"draft"`
	Errors     forms.ErrorSet `json:"errors,omitempty"`
	Submitting bool           `json:"submitting"`
	Error      string         `json:"error,omitempty"`
}

type session[R browse.Record, D any] struct {
	collection string
	label      string
	ctrl       *browse.Controller[R]
	form       editor[R, D]
	extra      func(cmd Command) error
	out        func(Frame)
	log        *zap.Logger
}

// notifier turns form outcomes into frames for the acting client and an
// activity line for the room.
type notifier struct {
	out      func(Frame)
	activity func(msg string)
}

func (n notifier) Notice(msg string) {
	n.out(Frame{Type: FrameNotice, Message: msg})
	n.activity(msg)
}

func (n notifier) Alert(msg string) { n.out(Frame{Type: FrameAlert, Message: msg}) }

func (s *session[R, D]) view() View[R, D] {
	recs := s.ctrl.Visible()
	v := View[R, D]{
		Collection: s.collection,
		Mode:       s.ctrl.Mode().String(),
		Query:      s.ctrl.Query(),
		Records:    recs,
		Total:      len(s.ctrl.Records()),
		Draft:      s.form.Draft(),
		Errors:     s.form.Errors(),
		Submitting: s.form.Submitting(),
	}
	if sel, ok := s.ctrl.Selected(); ok {
		v.Selected = sel.RecordID()
	}
	if err := s.ctrl.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func (s *session[R, D]) push() {
	s.out(Frame{Type: FrameState, Data: s.view()})
}

func (s *session[R, D]) handleRaw(ctx context.Context, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.out(Frame{Type: FrameError, Message: "invalid command: " + err.Error()})
		return
	}
	s.handle(ctx, cmd)
}

func (s *session[R, D]) handle(ctx context.Context, cmd Command) {
	var err error
	switch cmd.Action {
	case "filter":
		s.ctrl.SetQuery(cmd.Query)
	case "select":
		err = s.ctrl.Select(cmd.ID)
	case "cancel", "reset":
		s.ctrl.Cancel()
	case "set":
		err = s.form.SetField(cmd.Field, cmd.Value)
	case "submit":
		err = s.submit(ctx)
	case "delete":
		s.delete(ctx, cmd)
	default:
		if s.extra == nil {
			err = fmt.Errorf("%w: %s", errUnknownCommand, cmd.Action)
		} else {
			err = s.extra(cmd)
		}
	}
	if err != nil {
		s.out(Frame{Type: FrameError, Message: err.Error()})
	}
	s.push()
}

// submit reports only in-flight rejections. Field errors travel in the
// state frame and store failures were already alerted by the form.
func (s *session[R, D]) submit(ctx context.Context) error {
	_, err := s.ctrl.Submit(ctx)
	if errors.Is(err, forms.ErrSubmitInFlight) {
		return err
	}
	if err != nil {
		s.log.Debug("submit rejected", zap.String("collection", s.collection), zap.Error(err))
	}
	return nil
}

func (s *session[R, D]) delete(ctx context.Context, cmd Command) {
	deleted, err := s.ctrl.Delete(ctx, cmd.ID, browse.Confirmed(cmd.Confirm))
	if err != nil {
		s.log.Warn("delete failed", zap.String("collection", s.collection), zap.String("id", cmd.ID), zap.Error(err))
		s.out(Frame{Type: FrameAlert, Message: fmt.Sprintf("Failed to delete %s: %v. Please try again.", s.collection, err)})
		return
	}
	if deleted {
		s.out(Frame{Type: FrameNotice, Message: s.label + " deleted successfully"})
	}
}

func placeCommands(f *forms.PlaceForm) func(Command) error {
	return func(cmd Command) error {
		switch cmd.Action {
		case "toggle":
			switch cmd.Group {
			case "categories":
				return f.ToggleCategory(cmd.Key)
			case "entryTypes":
				return f.ToggleEntryType(cmd.Key)
			case "transport":
				return f.ToggleTransport(cmd.Key)
			case "facilities":
				return f.ToggleFacility(cmd.Key)
			}
		case "price":
			switch cmd.Group {
			case "transport":
				return f.SetTransportPrice(cmd.Key, cmd.Field, cmd.Value)
			case "facilities":
				return f.SetFacilityPrice(cmd.Key, cmd.Field, cmd.Value)
			}
		case "addImage":
			f.AddImage(cmd.Value)
			return nil
		case "removeImage":
			f.RemoveImage(cmd.Index)
			return nil
		default:
			return fmt.Errorf("%w: %s", errUnknownCommand, cmd.Action)
		}
		return fmt.Errorf("%w: %s %s", errUnknownCommand, cmd.Action, cmd.Group)
	}
}

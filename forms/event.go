package forms

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"pilgrimsafe/db"
	"pilgrimsafe/models"
	"pilgrimsafe/store"
)

// EventDraft mirrors models.Event for controlled inputs.
type EventDraft struct {
	EventName      string `json:"eventName"`
	EventType      string `json:"eventType"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	Description    string `json:"description"`
	Organizer      string `json:"organizer"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	ImageURL       string `json:"imageUrl"`
	IsRecurring    bool   `json:"isRecurring"`
	EntryFeeType   string `json:"entryFeeType"`
	EntryFeeAmount string `json:"entryFeeAmount"`
}

func NewEventDraft() EventDraft {
	return EventDraft{EntryFeeType: string(models.FeeFree)}
}

func EventDraftFrom(e models.Event) EventDraft {
	d := EventDraft{
		EventName:      e.EventName,
		EventType:      e.EventType,
		StartDate:      e.StartDate,
		EndDate:        e.EndDate,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		Description:    e.Description,
		Organizer:      e.Organizer,
		Latitude:       formatNumber(e.Latitude),
		Longitude:      formatNumber(e.Longitude),
		ImageURL:       e.ImageURL,
		IsRecurring:    e.IsRecurring,
		EntryFeeType:   string(models.FeeFree),
		EntryFeeAmount: e.EntryFee.AmountText(),
	}
	if e.EntryFee.IsPaid() {
		d.EntryFeeType = string(models.FeePaid)
	}
	return d
}

// ValidateEvent reports every invalid field of d.
func ValidateEvent(d EventDraft) ErrorSet {
	errs := ErrorSet{}
	required(errs, "eventName", d.EventName, "Event name")
	required(errs, "description", d.Description, "Description")
	required(errs, "organizer", d.Organizer, "Organizer")
	required(errs, "imageUrl", d.ImageURL, "Image URL")
	checkCoordinate(errs, "latitude", d.Latitude, "Latitude", 90)
	checkCoordinate(errs, "longitude", d.Longitude, "Longitude", 180)

	if required(errs, "eventType", d.EventType, "Event type") &&
		!slices.Contains(models.EventTypes, strings.TrimSpace(d.EventType)) {
		errs.Add("eventType", fmt.Sprintf("Unknown event type %q", d.EventType))
	}

	start, startOK := checkLayout(errs, "startDate", d.StartDate, "Start date", models.DateLayout, "YYYY-MM-DD")
	end, endOK := checkLayout(errs, "endDate", d.EndDate, "End date", models.DateLayout, "YYYY-MM-DD")
	if startOK && endOK && end.Before(start) {
		errs.Add("endDate", "End date must not be before start date")
	}
	from, fromOK := checkLayout(errs, "startTime", d.StartTime, "Start time", models.TimeLayout, "HH:MM")
	to, toOK := checkLayout(errs, "endTime", d.EndTime, "End time", models.TimeLayout, "HH:MM")
	if startOK && endOK && start.Equal(end) && fromOK && toOK && to.Before(from) {
		errs.Add("endTime", "End time must not be before start time on a single-day event")
	}

	switch models.FeeKind(d.EntryFeeType) {
	case models.FeeFree:
	case models.FeePaid:
		checkPrice(errs, "entryFeeAmount", d.EntryFeeAmount, "Entry fee")
	default:
		errs.Add("entryFeeType", "Entry fee type must be free or paid")
	}
	return errs
}

func checkLayout(errs ErrorSet, field, value, label, layout, hint string) (time.Time, bool) {
	if !required(errs, field, value, label) {
		return time.Time{}, false
	}
	t, ok := parseLayout(layout, value)
	if !ok {
		errs.Add(field, label+" must be formatted "+hint)
	}
	return t, ok
}

// Event validates d and coerces it into a record.
func (d EventDraft) Event() (models.Event, ErrorSet) {
	if errs := ValidateEvent(d); len(errs) > 0 {
		return models.Event{}, errs
	}
	lat, _ := parseNumber(d.Latitude)
	lng, _ := parseNumber(d.Longitude)
	e := models.Event{
		EventName:   strings.TrimSpace(d.EventName),
		EventType:   strings.TrimSpace(d.EventType),
		StartDate:   strings.TrimSpace(d.StartDate),
		EndDate:     strings.TrimSpace(d.EndDate),
		StartTime:   strings.TrimSpace(d.StartTime),
		EndTime:     strings.TrimSpace(d.EndTime),
		Description: strings.TrimSpace(d.Description),
		Organizer:   strings.TrimSpace(d.Organizer),
		Latitude:    lat,
		Longitude:   lng,
		ImageURL:    strings.TrimSpace(d.ImageURL),
		IsRecurring: d.IsRecurring,
		EntryFee:    models.FreeEntry(),
	}
	if models.FeeKind(d.EntryFeeType) == models.FeePaid {
		e.EntryFee = models.PaidEntry(optionalAmount(d.EntryFeeAmount))
	}
	return e, ErrorSet{}
}

func (d *EventDraft) text(field string) (*string, bool) {
	switch field {
	case "eventName":
		return &d.EventName, true
	case "eventType":
		return &d.EventType, true
	case "startDate":
		return &d.StartDate, true
	case "endDate":
		return &d.EndDate, true
	case "startTime":
		return &d.StartTime, true
	case "endTime":
		return &d.EndTime, true
	case "description":
		return &d.Description, true
	case "organizer":
		return &d.Organizer, true
	case "latitude":
		return &d.Latitude, true
	case "longitude":
		return &d.Longitude, true
	case "imageUrl":
		return &d.ImageURL, true
	case "entryFeeAmount":
		return &d.EntryFeeAmount, true
	}
	return nil, false
}

var eventEntity = entity[EventDraft, models.Event]{
	collection: db.EventsCollection,
	label:      "Event",
	blank:      NewEventDraft,
	from:       EventDraftFrom,
	build:      EventDraft.Event,
	id:         func(e models.Event) string { return e.ID },
	created:    func(e models.Event) time.Time { return e.CreatedAt },
	stamp: func(e *models.Event, created, updated time.Time) {
		e.CreatedAt, e.UpdatedAt = created, updated
	},
}

// EventForm is the add/edit form for events.
type EventForm struct {
	f *form[EventDraft, models.Event]
}

func NewEventForm(w store.Writer, n Notifier) *EventForm {
	return &EventForm{f: newForm(eventEntity, w, n)}
}

// SetField sets a text field. "isRecurring" takes a boolean string and
// "entryFeeType" behaves like SetFeeKind.
func (e *EventForm) SetField(field, value string) error {
	switch field {
	case "isRecurring":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("isRecurring: %w", err)
		}
		e.SetRecurring(b)
		return nil
	case "entryFeeType":
		return e.SetFeeKind(value)
	}
	return e.f.mutate(func(d *EventDraft) ([]string, error) {
		ptr, ok := d.text(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		*ptr = value
		return []string{field}, nil
	})
}

func (e *EventForm) SetRecurring(v bool) {
	_ = e.f.mutate(func(d *EventDraft) ([]string, error) {
		d.IsRecurring = v
		return []string{"isRecurring"}, nil
	})
}

// SetFeeKind switches between "free" and "paid". Switching to free clears
// the amount.
func (e *EventForm) SetFeeKind(kind string) error {
	k := models.FeeKind(kind)
	if k != models.FeeFree && k != models.FeePaid {
		return fmt.Errorf("%w: fee kind %s", ErrUnknownOption, kind)
	}
	return e.f.mutate(func(d *EventDraft) ([]string, error) {
		d.EntryFeeType = kind
		if k == models.FeeFree {
			d.EntryFeeAmount = ""
		}
		return []string{"entryFeeType", "entryFeeAmount"}, nil
	})
}

func (e *EventForm) Load(d EventDraft) { e.f.load(d) }

func (e *EventForm) Validate() ErrorSet { return e.f.validate() }

func (e *EventForm) Submit(ctx context.Context) (string, error) { return e.f.submit(ctx) }

func (e *EventForm) Seed(rec models.Event) { e.f.seed(rec) }

func (e *EventForm) Reset() { e.f.reset() }

func (e *EventForm) Draft() EventDraft {
	d, _, _, _ := e.f.snapshot()
	return d
}

func (e *EventForm) Errors() ErrorSet {
	_, errs, _, _ := e.f.snapshot()
	return errs
}

func (e *EventForm) Submitting() bool {
	_, _, s, _ := e.f.snapshot()
	return s
}

func (e *EventForm) Editing() bool {
	_, _, _, ed := e.f.snapshot()
	return ed
}

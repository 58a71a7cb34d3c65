package events

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"pilgrimsafe/admin"
	"pilgrimsafe/browse"
	"pilgrimsafe/db"
	"pilgrimsafe/forms"
	"pilgrimsafe/models"
	"pilgrimsafe/rdx"
	"pilgrimsafe/store"
	"pilgrimsafe/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const CacheKey = "events"

type Handlers struct {
	Store store.Client
	Cache rdx.Cache
	Log   *zap.Logger
}

func NewHandlers(s store.Client, cache rdx.Cache, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{Store: s, Cache: cache, Log: log.Named("events")}
}

func (h *Handlers) fetchAll(ctx context.Context) ([]models.Event, error) {
	snap, err := h.Store.Fetch(ctx, db.EventsCollection, nil)
	if err != nil {
		return nil, err
	}
	evs, err := store.DecodeAll[models.Event](snap)
	if err != nil {
		return nil, err
	}
	// Dates and times are zero-padded, so string order is chronological.
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].StartDate != evs[j].StartDate {
			return evs[i].StartDate < evs[j].StartDate
		}
		return evs[i].StartTime < evs[j].StartTime
	})
	return evs, nil
}

func (h *Handlers) load(ctx context.Context, id string) (models.Event, error) {
	doc, err := h.Store.Get(ctx, db.EventsCollection, id)
	if err != nil {
		return models.Event{}, err
	}
	return store.Decode[models.Event](doc)
}

// GetEvents lists events by start, filtered by ?q= over name, description,
// type and organizer.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	all, err := h.fetchAll(ctx)
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	opts := utils.ParseQueryOptions(r)
	matched := browse.Filter(all, opts.Search)
	start, end := opts.Window(len(matched))
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"events": matched[start:end],
		"total":  len(matched),
		"page":   opts.Page,
		"limit":  opts.Limit,
	})
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ev, err := h.load(r.Context(), ps.ByName("eventid"))
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ev)
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	draft := forms.NewEventDraft()
	if !admin.DecodeDraft(w, r, &draft) {
		return
	}
	msgs := &forms.Messages{}
	form := forms.NewEventForm(h.Store, msgs)
	form.Load(draft)
	id, err := form.Submit(r.Context())
	admin.RespondSubmit(w, h.Log, http.StatusCreated, id, err, msgs)
}

// EditEvent merges the posted fields over the stored event and saves the
// complete result.
func (h *Handlers) EditEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	current, err := h.load(r.Context(), ps.ByName("eventid"))
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	draft := forms.EventDraftFrom(current)
	if !admin.DecodeDraft(w, r, &draft) {
		return
	}
	msgs := &forms.Messages{}
	form := forms.NewEventForm(h.Store, msgs)
	form.Seed(current)
	form.Load(draft)
	id, err := form.Submit(r.Context())
	admin.RespondSubmit(w, h.Log, http.StatusOK, id, err, msgs)
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("eventid")
	confirmed := browse.Confirmed(r.URL.Query().Get("confirm") == "true")
	if !confirmed.Confirm(r.Context(), "delete event "+id) {
		utils.RespondWithError(w, http.StatusConflict, "Deletion must be confirmed with ?confirm=true")
		return
	}
	if _, err := h.load(r.Context(), id); err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	if err := h.Store.Delete(r.Context(), db.EventsCollection, id); err != nil {
		h.Log.Error("delete failed", zap.String("eventid", id), zap.Error(err))
		utils.RespondWithError(w, http.StatusBadGateway, "Failed to delete event. Please try again.")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

func (h *Handlers) PublicEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if cached, err := h.Cache.Get(ctx, CacheKey); err == nil {
		utils.RespondWithRawJSON(w, http.StatusOK, []byte(cached))
		return
	} else if !errors.Is(err, rdx.ErrMiss) {
		h.Log.Warn("cache read failed", zap.Error(err))
	}

	all, err := h.fetchAll(ctx)
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, all)
}

func (h *Handlers) KeepCacheFresh(ctx context.Context, ttl time.Duration) (*store.Subscription, error) {
	return rdx.Mirror[models.Event](ctx, h.Store, h.Cache, db.EventsCollection, CacheKey, ttl, h.Log)
}

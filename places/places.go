package places

import (
	"context"
	"errors"
	"net/http"
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

// CacheKey holds the public places list.
const CacheKey = "places"

type Handlers struct {
	Store store.Client
	Cache rdx.Cache
	Log   *zap.Logger
	// CardFont is an optional TrueType font for printed place cards.
	CardFont string
}

func NewHandlers(s store.Client, cache rdx.Cache, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{Store: s, Cache: cache, Log: log.Named("places")}
}

func (h *Handlers) fetchAll(ctx context.Context) ([]models.Place, error) {
	snap, err := h.Store.Fetch(ctx, db.PlacesCollection, nil)
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[models.Place](snap)
}

func (h *Handlers) load(ctx context.Context, id string) (models.Place, error) {
	doc, err := h.Store.Get(ctx, db.PlacesCollection, id)
	if err != nil {
		return models.Place{}, err
	}
	return store.Decode[models.Place](doc)
}

// GetPlaces lists places for the admin table, filtered by ?q= over name,
// description and categories.
func (h *Handlers) GetPlaces(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
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
		"places": matched[start:end],
		"total":  len(matched),
		"page":   opts.Page,
		"limit":  opts.Limit,
	})
}

func (h *Handlers) GetPlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.load(r.Context(), ps.ByName("placeid"))
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// CreatePlace validates the posted draft and stores it.
func (h *Handlers) CreatePlace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	draft := forms.NewPlaceDraft()
	if !admin.DecodeDraft(w, r, &draft) {
		return
	}
	msgs := &forms.Messages{}
	form := forms.NewPlaceForm(h.Store, msgs)
	form.Load(draft)
	id, err := form.Submit(r.Context())
	admin.RespondSubmit(w, h.Log, http.StatusCreated, id, err, msgs)
}

// EditPlace replaces every field of the place with the posted draft.
func (h *Handlers) EditPlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	current, err := h.load(r.Context(), ps.ByName("placeid"))
	if err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	draft := forms.PlaceDraftFrom(current)
	if !admin.DecodeDraft(w, r, &draft) {
		return
	}
	msgs := &forms.Messages{}
	form := forms.NewPlaceForm(h.Store, msgs)
	form.Seed(current)
	form.Load(draft)
	id, err := form.Submit(r.Context())
	admin.RespondSubmit(w, h.Log, http.StatusOK, id, err, msgs)
}

// DeletePlace needs ?confirm=true; without it nothing is deleted.
func (h *Handlers) DeletePlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("placeid")
	confirmed := browse.Confirmed(r.URL.Query().Get("confirm") == "true")
	if !confirmed.Confirm(r.Context(), "delete place "+id) {
		utils.RespondWithError(w, http.StatusConflict, "Deletion must be confirmed with ?confirm=true")
		return
	}
	if _, err := h.load(r.Context(), id); err != nil {
		admin.RespondGetError(w, h.Log, err)
		return
	}
	if err := h.Store.Delete(r.Context(), db.PlacesCollection, id); err != nil {
		h.Log.Error("delete failed", zap.String("placeid", id), zap.Error(err))
		utils.RespondWithError(w, http.StatusBadGateway, "Failed to delete place. Please try again.")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Place deleted successfully"})
}

// PublicPlaces serves the cached list, falling back to the store on a miss.
func (h *Handlers) PublicPlaces(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
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

// KeepCacheFresh mirrors the places collection into the cache until ctx
// ends or the subscription is closed.
func (h *Handlers) KeepCacheFresh(ctx context.Context, ttl time.Duration) (*store.Subscription, error) {
	return rdx.Mirror[models.Place](ctx, h.Store, h.Cache, db.PlacesCollection, CacheKey, ttl, h.Log)
}

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pilgrimsafe/db"
	"pilgrimsafe/models"
	"pilgrimsafe/rdx"
	"pilgrimsafe/store"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aarti = `{
	"eventName": "Godavari Aarti",
	"eventType": "Aarti",
	"startDate": "2027-08-01",
	"endDate": "2027-08-01",
	"startTime": "18:30",
	"endTime": "19:15",
	"description": "Evening aarti at Ramkund.",
	"organizer": "Ramkund Samiti",
	"latitude": "20.0075",
	"longitude": "73.7929",
	"imageUrl": "https://cdn.example.org/aarti.jpg",
	"isRecurring": true
}`

func setup(t *testing.T) (*store.Memory, *rdx.MemoryCache, *Handlers, *httprouter.Router) {
	t.Helper()
	mem := store.NewMemory(nil)
	cache := rdx.NewMemoryCache()
	h := NewHandlers(mem, cache, nil)
	router := httprouter.New()
	router.GET("/api/admin/events", h.GetEvents)
	router.POST("/api/admin/events", h.CreateEvent)
	router.GET("/api/admin/events/:eventid", h.GetEvent)
	router.PUT("/api/admin/events/:eventid", h.EditEvent)
	router.DELETE("/api/admin/events/:eventid", h.DeleteEvent)
	router.GET("/api/events", h.PublicEvents)
	return mem, cache, h, router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rec
}

func createdID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ID
}

func TestEditEventChangesOnlyName(t *testing.T) {
	mem, _, _, router := setup(t)
	id := createdID(t, serve(router, http.MethodPost, "/api/admin/events", aarti))
	before, err := mem.Get(context.Background(), db.EventsCollection, id)
	require.NoError(t, err)

	rec := serve(router, http.MethodPut, "/api/admin/events/"+id, `{"eventName":"Maha Aarti"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	after, err := mem.Get(context.Background(), db.EventsCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "Maha Aarti", after["eventName"])
	for k, v := range before {
		if k == "eventName" || k == "updatedAt" {
			continue
		}
		assert.Equal(t, v, after[k], k)
	}
}

func TestCreateEventValidation(t *testing.T) {
	_, _, _, router := setup(t)

	rec := serve(router, http.MethodPost, "/api/admin/events",
		`{"eventName":"Snan","eventType":"Holy Dip","startDate":"2027-08-03","endDate":"2027-08-02"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Contains(t, out.Errors, "endDate")
	assert.Contains(t, out.Errors, "imageUrl")
	assert.NotContains(t, out.Errors, "eventName")
}

func TestPaidEventWithoutAmount(t *testing.T) {
	_, _, _, router := setup(t)
	body := bytes.Replace([]byte(aarti), []byte(`"isRecurring": true`), []byte(`"isRecurring": true, "entryFeeType": "paid"`), 1)

	id := createdID(t, serve(router, http.MethodPost, "/api/admin/events", string(body)))

	var ev models.Event
	rec := serve(router, http.MethodGet, "/api/admin/events/"+id, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.True(t, ev.EntryFee.Varies())
	assert.True(t, ev.IsRecurring)
}

func TestDeleteEventNeedsConfirmation(t *testing.T) {
	_, _, _, router := setup(t)
	id := createdID(t, serve(router, http.MethodPost, "/api/admin/events", aarti))

	assert.Equal(t, http.StatusConflict, serve(router, http.MethodDelete, "/api/admin/events/"+id+"?confirm=no", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/admin/events/"+id, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodDelete, "/api/admin/events/"+id+"?confirm=true", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/admin/events/"+id, "").Code)
}

func TestEventsSortedByStart(t *testing.T) {
	_, cache, h, router := setup(t)
	sub, err := h.KeepCacheFresh(context.Background(), time.Minute)
	require.NoError(t, err)
	defer sub.Close()

	late := bytes.Replace([]byte(aarti), []byte(`"2027-08-01"`), []byte(`"2027-08-09"`), 2)
	createdID(t, serve(router, http.MethodPost, "/api/admin/events", string(late)))
	createdID(t, serve(router, http.MethodPost, "/api/admin/events", aarti))

	rec := serve(router, http.MethodGet, "/api/admin/events", "")
	var out struct {
		Events []models.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Events, 2)
	assert.Equal(t, "2027-08-01", out.Events[0].StartDate)

	cached, err := cache.Get(context.Background(), CacheKey)
	require.NoError(t, err)
	assert.Contains(t, cached, "2027-08-09")
}

func TestListEventsHugePaging(t *testing.T) {
	_, _, _, router := setup(t)
	createdID(t, serve(router, http.MethodPost, "/api/admin/events", aarti))

	var rec *httptest.ResponseRecorder
	require.NotPanics(t, func() {
		rec = serve(router, http.MethodGet, "/api/admin/events?page=3&limit=9223372036854775807", "")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Events []models.Event `json:"events"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Events)
	assert.Equal(t, 1, out.Total)
}

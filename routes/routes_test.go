package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pilgrimsafe/admin"
	"pilgrimsafe/auth"
	"pilgrimsafe/config"
	"pilgrimsafe/console"
	"pilgrimsafe/events"
	"pilgrimsafe/filemgr"
	"pilgrimsafe/middleware"
	"pilgrimsafe/models"
	"pilgrimsafe/places"
	"pilgrimsafe/ratelim"
	"pilgrimsafe/rdx"
	"pilgrimsafe/store"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*httprouter.Router, *auth.Service) {
	t.Helper()
	mem := store.NewMemory(nil)
	cache := rdx.NewMemoryCache()
	svc := auth.NewService(mem, "routes-test-secret", time.Hour, nil)
	hub := console.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	uploads := filemgr.NewHandler(config.UploadsConfig{
		Dir: t.TempDir(), URLPrefix: "/static/uploads", MaxBytes: 1 << 20, MaxWidth: 800,
	}, nil)
	router := New(Deps{
		Auth:      svc,
		Guard:     middleware.NewAuth(svc, nil),
		Limiter:   ratelim.NewRateLimiter(100, 100),
		Places:    places.NewHandlers(mem, cache, nil),
		Events:    events.NewHandlers(mem, cache, nil),
		Uploads:   uploads,
		Dashboard: &admin.DashboardHandler{Store: mem},
		Console:   console.NewServer(hub, mem, nil, nil),
		UploadDir: uploads.Store.Root,
	})
	return router, svc
}

func tokenFor(t *testing.T, svc *auth.Service, username, role string) string {
	t.Helper()
	_, err := svc.Register(context.Background(), auth.Registration{
		Username: username, Email: username + "@pilgrimsafe.org", Password: "correct horse",
	}, role)
	require.NoError(t, err)
	token, _, err := svc.Login(context.Background(), username, "correct horse")
	require.NoError(t, err)
	return token
}

func get(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)
	rec := get(router, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "200", rec.Body.String())
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router, svc := newRouter(t)
	adminToken := tokenFor(t, svc, "control", models.RoleAdmin)
	volunteerToken := tokenFor(t, svc, "meera", models.RoleVolunteer)

	for _, path := range []string{"/api/admin/places", "/api/admin/events", "/api/admin/dashboard"} {
		assert.Equal(t, http.StatusUnauthorized, get(router, path, "").Code, path)
		assert.Equal(t, http.StatusForbidden, get(router, path, volunteerToken).Code, path)
		assert.Equal(t, http.StatusOK, get(router, path, adminToken).Code, path)
	}
}

func TestPublicRoutesAreOpen(t *testing.T) {
	router, _ := newRouter(t)
	assert.Equal(t, http.StatusOK, get(router, "/api/places", "").Code)
	assert.Equal(t, http.StatusOK, get(router, "/api/events", "").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/places/missing", "").Code)
}

func TestAdminCreateThenPublicRead(t *testing.T) {
	router, svc := newRouter(t)
	token := tokenFor(t, svc, "control", models.RoleAdmin)

	body := `{"name":"Kalaram Temple","categories":["Temple"],"latitude":"20.0069","longitude":"73.7955",
		"description":"Black stone idol of Rama","entryTypes":["Free"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/places", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	rec = get(router, "/api/places/"+out.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Place
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Kalaram Temple", p.Name)
}

// Package routes mounts every handler on the router.
package routes

import (
	"fmt"
	"net/http"
	"strings"

	"pilgrimsafe/admin"
	"pilgrimsafe/auth"
	"pilgrimsafe/console"
	"pilgrimsafe/events"
	"pilgrimsafe/filemgr"
	"pilgrimsafe/middleware"
	"pilgrimsafe/places"
	"pilgrimsafe/ratelim"

	"github.com/julienschmidt/httprouter"
)

// Deps are the handlers the routes are mounted from.
type Deps struct {
	Auth      *auth.Service
	Guard     *middleware.Auth
	Limiter   *ratelim.RateLimiter
	Places    *places.Handlers
	Events    *events.Handlers
	Uploads   *filemgr.Handler
	Dashboard *admin.DashboardHandler
	Console   *console.Server
	UploadDir string
}

func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// New builds the router with every route group.
func New(d Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)

	AddAuthRoutes(router, d)
	AddPlaceRoutes(router, d)
	AddEventRoutes(router, d)
	AddAdminRoutes(router, d)
	AddLiveRoutes(router, d)
	AddStaticRoutes(router, d)
	return router
}

func AddStaticRoutes(router *httprouter.Router, d Deps) {
	if d.Uploads == nil {
		return
	}
	prefix := strings.TrimSuffix(d.Uploads.URLPrefix, "/")
	router.ServeFiles(prefix+"/*filepath", http.Dir(d.UploadDir))
}

func AddAuthRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/auth/register", d.Limiter.Limit(d.Auth.RegisterHandler))
	router.POST("/api/auth/login", d.Limiter.Limit(d.Auth.LoginHandler))
	router.GET("/api/auth/me", d.Guard.OptionalAuth(d.Auth.Me))
}

func AddPlaceRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/places", d.Places.PublicPlaces)
	router.GET("/api/places/:placeid", d.Places.GetPlace)

	router.GET("/api/admin/places", d.Guard.Admin(d.Places.GetPlaces))
	router.POST("/api/admin/places", d.Limiter.Limit(d.Guard.Admin(d.Places.CreatePlace)))
	router.GET("/api/admin/places/:placeid", d.Guard.Admin(d.Places.GetPlace))
	router.GET("/api/admin/places/:placeid/card", d.Guard.Admin(d.Places.PrintCard))
	router.PUT("/api/admin/places/:placeid", d.Limiter.Limit(d.Guard.Admin(d.Places.EditPlace)))
	router.DELETE("/api/admin/places/:placeid", d.Limiter.Limit(d.Guard.Admin(d.Places.DeletePlace)))
}

func AddEventRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/events", d.Events.PublicEvents)
	router.GET("/api/events/:eventid", d.Events.GetEvent)

	router.GET("/api/admin/events", d.Guard.Admin(d.Events.GetEvents))
	router.POST("/api/admin/events", d.Limiter.Limit(d.Guard.Admin(d.Events.CreateEvent)))
	router.GET("/api/admin/events/:eventid", d.Guard.Admin(d.Events.GetEvent))
	router.PUT("/api/admin/events/:eventid", d.Limiter.Limit(d.Guard.Admin(d.Events.EditEvent)))
	router.DELETE("/api/admin/events/:eventid", d.Limiter.Limit(d.Guard.Admin(d.Events.DeleteEvent)))
}

func AddAdminRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/admin/dashboard", d.Guard.Admin(d.Dashboard.GetDashboard))
	if d.Uploads != nil {
		router.POST("/api/admin/uploads/:entitytype", d.Limiter.Limit(d.Guard.Admin(d.Uploads.Upload)))
	}
}

// AddLiveRoutes mounts the websocket views. Browsers pass the token as
// ?token= on the upgrade request.
func AddLiveRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/admin/dashboard/ws", d.Guard.Admin(d.Console.Dashboard))
	router.GET("/api/admin/console/:collection/ws", d.Guard.Admin(d.Console.Console))
}

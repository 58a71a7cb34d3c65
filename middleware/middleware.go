package middleware

import (
	"net/http"
	"strings"

	"pilgrimsafe/models"
	"pilgrimsafe/session"
	"pilgrimsafe/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Auth attaches a resolved session to each request.
type Auth struct {
	Resolver session.Resolver
	Log      *zap.Logger
}

func NewAuth(resolver session.Resolver, log *zap.Logger) *Auth {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auth{Resolver: resolver, Log: log}
}

// bearerToken reads "Authorization: Bearer ...". Browsers cannot set
// headers on a websocket upgrade, so upgrades may pass ?token= instead.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
			return "", false
		}
		return h[7:], true
	}
	if websocket.IsWebSocketUpgrade(r) {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token, ok := bearerToken(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing or malformed token")
			return
		}
		sess := session.New()
		if err := sess.Resolve(r.Context(), token, a.Resolver); err != nil {
			a.Log.Debug("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r.WithContext(session.WithContext(r.Context(), sess)), ps)
	}
}

// OptionalAuth resolves a token when one is sent and proceeds regardless.
func (a *Auth) OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sess := session.New()
		if token, ok := bearerToken(r); ok {
			if err := sess.Resolve(r.Context(), token, a.Resolver); err != nil {
				a.Log.Debug("optional token rejected", zap.Error(err))
			}
		} else {
			sess.SignOut()
		}
		next(w, r.WithContext(session.WithContext(r.Context(), sess)), ps)
	}
}

// RequireRole lets through only sessions whose user has role.
func RequireRole(role string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		u := session.FromContext(r.Context()).CurrentUser()
		if u == nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Sign in required")
			return
		}
		if u.Role != role {
			utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		next(w, r, ps)
	}
}

// Admin guards the admin console routes.
func (a *Auth) Admin(next httprouter.Handle) httprouter.Handle {
	return a.Authenticate(RequireRole(models.RoleAdmin, next))
}

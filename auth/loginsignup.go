package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"pilgrimsafe/models"
	"pilgrimsafe/session"
	"pilgrimsafe/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// RegisterHandler signs up a field-app user. Admins are created with the
// create-admin command.
func (s *Service) RegisterHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reg Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	u, err := s.Register(r.Context(), reg, models.RoleUser)
	switch {
	case errors.Is(err, ErrUserExists):
		utils.RespondWithError(w, http.StatusConflict, "User already exists")
		return
	case errors.Is(err, ErrInvalidInput):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.Log.Error("register failed", zap.Error(err))
		utils.RespondWithError(w, http.StatusBadGateway, "Failed to register user")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered",
		"user":    u,
	})
}

func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if input.Username == "" || input.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, u, err := s.Login(r.Context(), input.Username, input.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		s.Log.Error("login failed", zap.String("username", input.Username), zap.Error(err))
		utils.RespondWithError(w, http.StatusBadGateway, "Login is unavailable, please retry")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"userid": u.ID,
		"role":   u.Role,
	})
}

// Me reports the session of the request: the user, or null while signed out.
func (s *Service) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := session.FromContext(r.Context())
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"user":    sess.CurrentUser(),
		"loading": sess.Loading(),
	})
}

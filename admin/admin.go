// Package admin holds what the admin REST handlers share: decoding drafts,
// mapping a form submit to a response, and the dashboard endpoint.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pilgrimsafe/dashboard"
	"pilgrimsafe/forms"
	"pilgrimsafe/store"
	"pilgrimsafe/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

// DecodeDraft reads a JSON draft body, rejecting unknown fields.
func DecodeDraft(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// RespondSubmit maps the outcome of a form submit: 422 with the field
// errors, 502 with the alert text, or okStatus with the record id.
func RespondSubmit(w http.ResponseWriter, log *zap.Logger, okStatus int, id string, err error, msgs *forms.Messages) {
	var invalid forms.ErrorSet
	switch {
	case err == nil:
		utils.RespondWithJSON(w, okStatus, map[string]any{
			"id":      id,
			"message": strings.Join(msgs.Notices(), " "),
		})
	case errors.As(err, &invalid):
		utils.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": invalid})
	default:
		log.Error("store write failed", zap.Error(err))
		msg := strings.Join(msgs.Alerts(), " ")
		if msg == "" {
			msg = err.Error()
		}
		utils.RespondWithError(w, http.StatusBadGateway, msg)
	}
}

// RespondGetError maps a failed store read.
func RespondGetError(w http.ResponseWriter, log *zap.Logger, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
		return
	}
	log.Error("store read failed", zap.Error(err))
	utils.RespondWithError(w, http.StatusBadGateway, "Failed to read from the store")
}

type DashboardHandler struct {
	Store store.Reader
	Log   *zap.Logger
}

// GetDashboard returns the dashboard aggregate computed once.
//
// Endpoint: GET /api/admin/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st := dashboard.Compute(r.Context(), h.Store)
	for slice, msg := range st.Errors {
		h.Log.Warn("dashboard slice unavailable", zap.String("slice", slice), zap.String("error", msg))
	}
	utils.RespondWithJSON(w, http.StatusOK, st)
}

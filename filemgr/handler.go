package filemgr

import (
	"errors"
	"net/http"

	"pilgrimsafe/config"
	"pilgrimsafe/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	Store     Store
	URLPrefix string
	Log       *zap.Logger
}

func NewHandler(cfg config.UploadsConfig, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:     Store{Root: cfg.Dir, MaxBytes: cfg.MaxBytes, MaxWidth: cfg.MaxWidth, ThumbWidth: 300},
		URLPrefix: cfg.URLPrefix,
		Log:       log.Named("uploads"),
	}
}

// Upload stores the multipart "image" field for a place or event and
// returns the URLs an admin pastes into the form.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	entity := EntityType(ps.ByName("entitytype"))
	if !entities[entity] {
		utils.RespondWithError(w, http.StatusBadRequest, "Unsupported entity type")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Store.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(h.Store.MaxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "No image file uploaded")
		return
	}
	defer file.Close()

	saved, err := h.Store.Save(file, entity)
	switch {
	case errors.Is(err, ErrFileTooLarge):
		utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	case errors.Is(err, ErrInvalidMIME), errors.Is(err, ErrNotAnImage):
		utils.RespondWithError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case err != nil:
		h.Log.Error("save upload", zap.String("file", utils.SanitizeFilename(header.Filename)), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to store image")
		return
	}

	h.Log.Info("image stored",
		zap.String("entity", string(entity)),
		zap.String("file", utils.SanitizeFilename(header.Filename)),
		zap.String("name", saved.Name),
		zap.Int("width", saved.Width))

	utils.RespondWithJSON(w, http.StatusCreated, map[string]string{
		"url":       ResolveURL(h.URLPrefix, entity, PicPhoto, saved.Name),
		"thumbnail": ResolveURL(h.URLPrefix, entity, PicThumb, saved.Name),
	})
}

package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kroslabs/quickyshoppy/internal/shopping"
)

const maxImageBytes = 10 << 20

// RecipeHandler runs recipe photo analysis and the ingredient review.
type RecipeHandler struct {
	svc    *shopping.Service
	logger *slog.Logger
}

func NewRecipeHandler(svc *shopping.Service, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{svc: svc, logger: logger}
}

type selectAllRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

// Analyze accepts the photo as a raw body or as the "image" multipart field.
// It responds with the resulting UI state.
func (h *RecipeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.svc.AnalyzeRecipePhoto(r.Context(), image)
	switch {
	case errors.Is(err, shopping.ErrNoAPIKey):
		writeJSON(w, http.StatusPreconditionFailed, h.svc.State())
	case err != nil:
		h.logger.Warn("analyze recipe", "error", err)
		writeJSON(w, http.StatusBadGateway, h.svc.State())
	default:
		writeJSON(w, http.StatusOK, h.svc.State())
	}
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, errors.New("missing image field")
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.New("image too large or unreadable")
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

func (h *RecipeHandler) ToggleIngredient(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	if err := h.svc.ToggleIngredient(index); err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *RecipeHandler) SelectIngredients(w http.ResponseWriter, r *http.Request) {
	var req selectAllRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SelectAllIngredients(*req.Selected); err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *RecipeHandler) CommitIngredients(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CommitIngredients()
	if err != nil {
		if errors.Is(err, shopping.ErrNoReview) {
			writeReviewError(w, err)
			return
		}
		h.logger.Error("commit ingredients", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add ingredients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": n})
}

func (h *RecipeHandler) CancelIngredients(w http.ResponseWriter, r *http.Request) {
	h.svc.CancelIngredients()
	w.WriteHeader(http.StatusNoContent)
}

// writeReviewError maps review sentinel errors to client errors.
func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shopping.ErrNoReview):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, shopping.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "review update failed")
	}
}

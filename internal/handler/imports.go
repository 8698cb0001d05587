package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kroslabs/quickyshoppy/internal/activity"
	"github.com/kroslabs/quickyshoppy/internal/importer"
	"github.com/kroslabs/quickyshoppy/internal/shopping"
)

// ImportHandler detects shared lists and drives the import review.
type ImportHandler struct {
	svc      *shopping.Service
	activity *activity.Log
	logger   *slog.Logger
}

func NewImportHandler(svc *shopping.Service, log *activity.Log, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, activity: log, logger: logger}
}

// Detect looks for import data in the posted sources and opens the review.
// Nothing found is 204. A malformed deep link or shared text is 422 so the
// client can show a notice; the clipboard never produces an error.
func (h *ImportHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req importer.Sources
	if !decodeJSON(w, r, &req) {
		return
	}

	data, source, err := importer.Detect(req)
	switch {
	case errors.Is(err, importer.ErrNoImport):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		h.activity.Warningf("Import", "Invalid import data from %s: %v", source, err)
		writeError(w, http.StatusUnprocessableEntity, "invalid import data")
		return
	}

	h.svc.SetImportItems(data.Items)
	writeJSON(w, http.StatusOK, map[string]any{
		"source": source,
		"state":  h.svc.State(),
	})
}

func (h *ImportHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndexParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	if err := h.svc.ToggleImportItem(index); err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *ImportHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	var req selectAllRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SelectAllImportItems(*req.Selected); err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *ImportHandler) Commit(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CommitImportItems()
	if err != nil {
		if errors.Is(err, shopping.ErrNoReview) {
			writeReviewError(w, err)
			return
		}
		h.logger.Error("commit import", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to import items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": n})
}

func (h *ImportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.svc.CancelImportItems()
	w.WriteHeader(http.StatusNoContent)
}

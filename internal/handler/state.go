package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kroslabs/quickyshoppy/internal/shopping"
)

// StateHandler exposes the orchestrator's UI state and the delete dialog.
type StateHandler struct {
	svc    *shopping.Service
	logger *slog.Logger
}

func NewStateHandler(svc *shopping.Service, logger *slog.Logger) *StateHandler {
	return &StateHandler{svc: svc, logger: logger}
}

type deleteDialogRequest struct {
	Target string `json:"target" validate:"required,oneof=all completed"`
}

func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *StateHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearError()
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *StateHandler) ShowDeleteDialog(w http.ResponseWriter, r *http.Request) {
	var req deleteDialogRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ShowDeleteDialog(shopping.DeleteTarget(req.Target)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *StateHandler) HideDeleteDialog(w http.ResponseWriter, r *http.Request) {
	h.svc.HideDeleteDialog()
	writeJSON(w, http.StatusOK, h.svc.State())
}

func (h *StateHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ConfirmDelete()
	if errors.Is(err, shopping.ErrNoDeleteDialog) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("confirm delete", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

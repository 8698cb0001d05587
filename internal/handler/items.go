package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kroslabs/quickyshoppy/internal/model"
	"github.com/kroslabs/quickyshoppy/internal/shopping"
	"github.com/kroslabs/quickyshoppy/internal/store"
)

type ItemHandler struct {
	svc    *shopping.Service
	items  *store.ItemStore
	logger *slog.Logger
}

func NewItemHandler(svc *shopping.Service, items *store.ItemStore, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{svc: svc, items: items, logger: logger}
}

type createItemRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=200"`
	Quantity string `json:"quantity" validate:"max=100"`
}

type categoryRequest struct {
	Category string `json:"category" validate:"required,notblank"`
}

type linkRequest struct {
	RecipeLink string `json:"recipe_link" validate:"max=2048"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List()
	if err != nil {
		h.logger.Error("list items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.svc.AddItem(req.Name, req.Quantity)
	if err != nil {
		h.logger.Error("add item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}
	item, err := h.items.GetByID(id)
	if err != nil || item == nil {
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Category)
	category := model.CategoryFromDisplayName(name)
	if category == model.Uncategorised && !strings.EqualFold(name, model.Uncategorised.DisplayName()) {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}

	if err := h.svc.MoveItemToCategory(id, category); err != nil {
		h.logger.Error("move item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update category")
		return
	}
	h.writeItem(w, id)
}

func (h *ItemHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req linkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpdateItemLink(id, req.RecipeLink); err != nil {
		h.logger.Error("update link", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update link")
		return
	}
	h.writeItem(w, id)
}

func (h *ItemHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.svc.ToggleItem(id); err != nil {
		h.logger.Error("toggle item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle item")
		return
	}
	h.writeItem(w, id)
}

// Delete is idempotent: unknown ids still return 204.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.svc.DeleteItem(id); err != nil {
		h.logger.Error("delete item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) Export(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.ExportText()
	if err != nil {
		h.logger.Error("export", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export list")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

// writeItem responds with the item, or 404 when the id does not exist.
func (h *ItemHandler) writeItem(w http.ResponseWriter, id int64) {
	item, err := h.items.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

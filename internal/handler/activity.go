package handler

import (
	"net/http"

	"github.com/kroslabs/quickyshoppy/internal/activity"
)

type ActivityHandler struct {
	log *activity.Log
}

func NewActivityHandler(log *activity.Log) *ActivityHandler {
	return &ActivityHandler{log: log}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.log.Entries())
}

// Text serves the log as a downloadable plain-text file.
func (h *ActivityHandler) Text(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="quickyshoppy-activity.txt"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.log.Text()))
}

func (h *ActivityHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	w.WriteHeader(http.StatusNoContent)
}

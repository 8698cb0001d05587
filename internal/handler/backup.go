package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kroslabs/quickyshoppy/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	record, err := h.manager.RunNow(r.Context())
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, backup.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusBadGateway, "backup failed")
	default:
		writeJSON(w, http.StatusCreated, record)
	}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": h.manager.Status()}
	if h.manager.Enabled() {
		backups, err := h.manager.List(20)
		if err != nil {
			h.logger.Error("list backups", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list backups")
			return
		}
		resp["backups"] = backups
	}
	writeJSON(w, http.StatusOK, resp)
}

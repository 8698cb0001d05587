package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kroslabs/quickyshoppy/internal/shopping"
	"github.com/kroslabs/quickyshoppy/internal/store"
)

// SettingsHandler manages the classification API key. The key itself is
// never returned.
type SettingsHandler struct {
	svc      *shopping.Service
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewSettingsHandler(svc *shopping.Service, ss *store.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, settings: ss, logger: logger}
}

type apiKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,notblank,max=512"`
}

type apiKeyStatus struct {
	Configured bool `json:"configured"`
	Sealed     bool `json:"sealed"`
}

func (h *SettingsHandler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	configured, err := h.svc.APIKeyConfigured()
	if errors.Is(err, store.ErrSealed) {
		// Stored but unreadable without the passphrase.
		writeJSON(w, http.StatusOK, apiKeyStatus{Configured: true, Sealed: true})
		return
	}
	if err != nil {
		h.logger.Error("read api key", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, apiKeyStatus{Configured: configured, Sealed: h.settings.Sealed()})
}

func (h *SettingsHandler) PutAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SaveAPIKey(req.APIKey); err != nil {
		if errors.Is(err, shopping.ErrBlankAPIKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("save api key", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save api key")
		return
	}
	writeJSON(w, http.StatusOK, apiKeyStatus{Configured: true, Sealed: h.settings.Sealed()})
}

func (h *SettingsHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAPIKey(); err != nil {
		h.logger.Error("clear api key", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear api key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

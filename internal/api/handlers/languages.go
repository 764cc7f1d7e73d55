package handlers

import (
	"net/http"

	"github.com/video-translate/backend/internal/translate"
)

type LanguagesHandler struct {
	engines *translate.Registry
}

func NewLanguagesHandler(engines *translate.Registry) *LanguagesHandler {
	return &LanguagesHandler{engines: engines}
}

// List returns the fixed supported target-language list and the translation
// engines available to this deployment.
func (h *LanguagesHandler) List(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]interface{}{
		"languages": translate.SupportedLanguages,
		"engines":   h.engines.Names(),
	}, http.StatusOK)
}

// Health is a plain liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

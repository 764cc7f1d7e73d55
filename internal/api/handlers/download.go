package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/video-translate/backend/internal/run"
)

type DownloadHandler struct {
	store *run.Store
}

func NewDownloadHandler(store *run.Store) *DownloadHandler {
	return &DownloadHandler{store: store}
}

// Transcript serves the completed run's transcript as a downloadable
// plain-text file.
func (h *DownloadHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	runObj, ok := h.completedRun(w, r)
	if !ok {
		return
	}

	serveText(w, baseName(runObj.VideoName)+"_transcript.txt", runObj.Transcript)
}

// Translation serves one language's translated text as a downloadable
// plain-text file. A language whose translation failed returns 502 with the
// recorded provider error.
func (h *DownloadHandler) Translation(w http.ResponseWriter, r *http.Request) {
	runObj, ok := h.completedRun(w, r)
	if !ok {
		return
	}

	lang := chi.URLParam(r, "lang")
	tr, found := runObj.Translation(lang)
	if !found {
		jsonError(w, "language was not requested for this run", http.StatusNotFound)
		return
	}
	if tr.Error != "" {
		jsonError(w, tr.Error, http.StatusBadGateway)
		return
	}

	serveText(w, fmt.Sprintf("%s_%s.txt", baseName(runObj.VideoName), lang), tr.Text)
}

func (h *DownloadHandler) completedRun(w http.ResponseWriter, r *http.Request) (*run.Run, bool) {
	id := chi.URLParam(r, "id")

	runObj, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "run not found", http.StatusNotFound)
			return nil, false
		}
		jsonError(w, "failed to load run", http.StatusInternalServerError)
		return nil, false
	}
	if runObj.Status != run.StatusCompleted {
		jsonError(w, fmt.Sprintf("run is %s, outputs are only available once completed", runObj.Status), http.StatusConflict)
		return nil, false
	}
	return runObj, true
}

func serveText(w http.ResponseWriter, filename, content string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(content))
}

func baseName(videoName string) string {
	name := strings.TrimSuffix(videoName, filepath.Ext(videoName))
	if name == "" {
		return "transcript"
	}
	return name
}

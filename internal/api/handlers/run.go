package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/video-translate/backend/internal/auth"
	"github.com/video-translate/backend/internal/logger"
	"github.com/video-translate/backend/internal/run"
	"github.com/video-translate/backend/internal/storage"
	"github.com/video-translate/backend/internal/translate"
	"github.com/video-translate/backend/internal/validation"
)

type RunHandler struct {
	queue   *run.Queue
	store   *run.Store
	uploads *storage.UploadStore
	engines *translate.Registry
	jwt     *auth.JWTService
	log     *logrus.Entry
}

func NewRunHandler(queue *run.Queue, store *run.Store, uploads *storage.UploadStore, engines *translate.Registry, jwt *auth.JWTService) *RunHandler {
	return &RunHandler{
		queue:   queue,
		store:   store,
		uploads: uploads,
		engines: engines,
		jwt:     jwt,
		log:     logger.WithComponent("api"),
	}
}

// Create accepts a multipart upload (video + languages + optional engine),
// stages the video and enqueues a pipeline run. The response carries the run
// and the bearer token that scopes all further access to it.
func (h *RunHandler) Create(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("video")
	if err != nil {
		jsonError(w, "video file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.ValidateVideoName(header.Filename); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	languages, err := validation.ParseLanguages(r.FormValue("languages"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	engine := r.FormValue("engine")
	if _, err := h.engines.Get(engine); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	path, hash, err := h.uploads.Save(file, header.Filename)
	if err != nil {
		h.log.WithError(err).Error("failed to store upload")
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	newRun := &run.Run{
		ID:        uuid.New().String(),
		VideoName: storage.SanitizeFilename(header.Filename),
		VideoPath: path,
		VideoHash: hash,
		Languages: languages,
		Engine:    engine,
	}

	if err := h.queue.Enqueue(newRun); err != nil {
		if rmErr := h.uploads.Remove(path); rmErr != nil {
			h.log.WithField("path", path).WithError(rmErr).Warn("failed to remove uploaded video")
		}
		h.log.WithError(err).Error("failed to enqueue run")
		jsonError(w, "failed to enqueue run", http.StatusInternalServerError)
		return
	}

	token, err := h.jwt.GenerateRunToken(newRun.ID)
	if err != nil {
		h.log.WithError(err).Error("failed to issue run token")
		jsonError(w, "failed to issue run token", http.StatusInternalServerError)
		return
	}

	h.log.WithFields(logrus.Fields{
		"run":       newRun.ID,
		"video":     newRun.VideoName,
		"hash":      hash,
		"languages": languages,
	}).Info("run created")

	jsonResponse(w, map[string]interface{}{
		"run":   newRun,
		"token": token,
	}, http.StatusAccepted)
}

// Get returns one run's status, progress and (when done) its results.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	runObj, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "run not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load run", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, runObj, http.StatusOK)
}

// Cancel aborts a pending or running run.
func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.Get(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "run not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load run", http.StatusInternalServerError)
		return
	}

	if err := h.queue.CancelRun(id); err != nil {
		jsonError(w, "failed to cancel run: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/video-translate/backend/internal/logger"
	"github.com/video-translate/backend/internal/run"
)

// EventsHandler streams run progress over a WebSocket so the presentation
// layer can render a live progress bar instead of polling.
type EventsHandler struct {
	store    *run.Store
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

func NewEventsHandler(store *run.Store) *EventsHandler {
	return &EventsHandler{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Access is controlled by the run token, not the origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.WithComponent("events"),
	}
}

type progressEvent struct {
	Status   run.Status `json:"status"`
	Stage    string     `json:"stage,omitempty"`
	Progress float64    `json:"progress"`
	Error    string     `json:"error,omitempty"`
}

// Stream upgrades to a WebSocket and pushes progress snapshots until the run
// reaches a terminal state or the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.Get(id); err != nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last progressEvent
	for {
		runObj, err := h.store.Get(id)
		if err != nil {
			return
		}

		event := progressEvent{
			Status:   runObj.Status,
			Stage:    runObj.Stage,
			Progress: runObj.Progress,
			Error:    runObj.Error,
		}
		if event != last {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			last = event
		}

		if runObj.Status.Terminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(runObj.Status)))
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/fr3shw3b/tapsync/pkg/rooms"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const viewerCookieName = "viewer_id"

type ServerParams struct {
	StatsPushInterval time.Duration
	Clock             clockwork.Clock
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// No need for strict CORS checking for a development service.
		return true
	},
}

type serverImpl struct {
	params *ServerParams
	clock  clockwork.Clock
	store  rooms.RoomStore
	router *mux.Router
	logger *logrus.Logger
}

// NewDefaultServer serves the counting service contract on top of a room store.
func NewDefaultServer(params *ServerParams, store rooms.RoomStore, logger *logrus.Logger) http.Handler {
	clock := params.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &serverImpl{
		params: params,
		clock:  clock,
		store:  store,
		router: mux.NewRouter(),
		logger: logger,
	}

	s.router.HandleFunc("/get_viewer_id", s.handleGetViewerID).Methods(http.MethodGet)
	s.router.HandleFunc("/api/viewers/{viewerId}/name", s.handleSetViewerName).Methods(http.MethodPost)
	s.router.HandleFunc("/api/rooms/{roomId}/events", s.handlePushEvents).Methods(http.MethodPost)
	s.router.HandleFunc("/api/rooms/{roomId}/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms/{roomId}/stats/ws", s.handleStatsStream).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms/{roomId}/result", s.handleResult).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms/{roomId}/end", s.handleEnd).Methods(http.MethodPost)
	return s
}

func (s *serverImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *serverImpl) handleGetViewerID(w http.ResponseWriter, r *http.Request) {
	var identity protocol.ViewerIdentity
	cookie, err := r.Cookie(viewerCookieName)
	if err == nil {
		identity, err = s.store.Viewer(cookie.Value)
	}
	if err != nil {
		identity = s.store.NewViewer()
		s.logger.WithField("viewerId", identity.ViewerID).Debug("issued viewer id")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     viewerCookieName,
		Value:    identity.ViewerID,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
	})
	s.writeJSON(w, http.StatusOK, identity)
}

func (s *serverImpl) handleSetViewerName(w http.ResponseWriter, r *http.Request) {
	viewerID := mux.Vars(r)["viewerId"]
	request := protocol.SetNameRequest{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	name, err := s.store.SetViewerName(viewerID, request.ViewerName)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, protocol.ViewerIdentity{ViewerID: viewerID, ViewerName: name})
}

func (s *serverImpl) handlePushEvents(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	request := protocol.SubmitRequest{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"roomId":    roomID,
		"viewerId":  request.ViewerID,
		"events":    len(request.PushEvents),
		"requestId": r.Header.Get(protocol.HeaderRequestID),
		"seq":       r.Header.Get(protocol.HeaderSequence),
	}).Debug("received push events")

	resp, err := s.store.Push(roomID, request.ViewerID, request.ViewerName, request.PushEvents)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *serverImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, s.store.Stats(roomID))
}

func (s *serverImpl) handleResult(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	result, err := s.store.Result(roomID, r.URL.Query().Get("viewer_id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *serverImpl) handleEnd(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	result, err := s.store.End(roomID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *serverImpl) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rooms.ErrInvalidEvent):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, rooms.ErrUnknownRoom), errors.Is(err, rooms.ErrUnknownViewer):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, rooms.ErrRoomNotEnded):
		s.writeError(w, http.StatusConflict, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *serverImpl) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: ", err)
	} else {
		s.logger.Debug("rejected request: ", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *serverImpl) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response: ", err)
	}
}

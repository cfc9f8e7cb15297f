package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
	"github.com/scythe504/linkrace-backend/internal/game"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	maxCreateBody = 64 << 10
	qrSize        = 320
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/rooms", s.CreateRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}", s.GetRoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}/qr", s.RoomQRHandler).Methods(http.MethodGet)

	r.HandleFunc("/ws/{roomId}", s.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// websocket origins are checked by the upgrader
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		origin := r.Header.Get("Origin")
		if origin != "" && s.cfg.OriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writeResponse(w, start, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.registry.Count(),
	})
}

// CreateRoomHandler accepts a CreateRoomRequest. Omitted config fields keep
// their defaults.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := game.CreateRoomRequest{Config: internal.DefaultRoomConfig()}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		log.Debug().Err(err).Msg("[CreateRoomHandler] bad request body")
		writeResponse(w, start, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := s.registry.CreateRoom(r.Context(), req)
	switch {
	case errors.Is(err, internal.ErrInvalidConfig):
		writeResponse(w, start, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, game.ErrRoomLimitReached), errors.Is(err, game.ErrIDExhausted):
		writeResponse(w, start, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("[CreateRoomHandler] create room failed")
		writeResponse(w, start, http.StatusInternalServerError, "could not create room")
		return
	}

	summary, err := room.Summary()
	if err != nil {
		writeResponse(w, start, http.StatusGone, err.Error())
		return
	}
	writeResponse(w, start, http.StatusCreated, map[string]any{
		"room":     summary,
		"join_url": s.joinURL(room.ID),
	})
}

func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	room, err := s.registry.GetRoom(mux.Vars(r)["roomId"])
	if err != nil {
		writeResponse(w, start, http.StatusNotFound, err.Error())
		return
	}
	summary, err := room.Summary()
	if err != nil {
		writeResponse(w, start, http.StatusNotFound, err.Error())
		return
	}
	writeResponse(w, start, http.StatusOK, summary)
}

// RoomQRHandler renders the join link of a room as a PNG.
func (s *Server) RoomQRHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	room, err := s.registry.GetRoom(mux.Vars(r)["roomId"])
	if err != nil {
		writeResponse(w, start, http.StatusNotFound, err.Error())
		return
	}

	png, err := qrcode.Encode(s.joinURL(room.ID), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("room", room.ID).Msg("[RoomQRHandler] qr generation failed")
		writeResponse(w, start, http.StatusInternalServerError, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) joinURL(roomID string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/join/" + url.PathEscape(roomID)
}

func writeResponse(w http.ResponseWriter, start time.Time, status int, data any) {
	end := time.Now()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: start.UnixMilli(),
		RespEndTime:   end.UnixMilli(),
		NetRespTime:   end.Sub(start).Milliseconds(),
		Data:          data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("[writeResponse] encoding response")
	}
}

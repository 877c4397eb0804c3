package http

import (
	"net/http"

	"movie-club-service/internal/app"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// NewRouter mounts the health check (with the live session count), the member
// list and the prediction websocket.
func NewRouter(service *app.PredictionService) http.Handler {
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		active, err := service.ActiveSessions(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("count active sessions")
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ActiveSessions: active})
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		users, err := service.Users(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, users)
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	return mux
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"activeSessions"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

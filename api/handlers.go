package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nhoover/coderoom/execution"
	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/persistence"
	"github.com/nhoover/coderoom/types"
	"github.com/nhoover/coderoom/ws"
	"github.com/pkg/errors"
)

// API is the synchronous request/response surface next to the websocket:
// health, version history, restore and the code execution proxy.
type API struct {
	hub   *ws.Hub
	store persistence.Store
	exec  *execution.Client
}

func New(hub *ws.Hub, store persistence.Store, exec *execution.Client) *API {
	return &API{hub: hub, store: store, exec: exec}
}

// SetupRoutes registers all HTTP handlers on the router.
func (a *API) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{room}", a.HistoryHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{room}/restore", a.RestoreHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/execute", a.ExecuteHandler).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		globals.AppLogger.Error("could not write response", "error", err)
	}
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":   a.hub.RoomCount(),
		"clients": a.hub.ClientCount(),
	})
}

func (a *API) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	versions, err := a.store.ListVersions(room)
	if err != nil {
		globals.AppLogger.Error("could not list versions", "room", room, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list versions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

func (a *API) RestoreHandler(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	body := struct {
		Index int `json:"index"`
	}{Index: -1}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	content, err := a.store.Restore(room, body.Index)
	if errors.Is(err, types.ErrVersionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "version not found"})
		return
	}
	if err != nil {
		globals.AppLogger.Error("could not restore version", "room", room, "index", body.Index, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to restore version"})
		return
	}
	// push the restored content to everyone currently in the room
	a.hub.PushContent(room, content)
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (a *API) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	req := execution.Request{Language: "javascript"}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	result, err := a.exec.Run(r.Context(), req)
	if errors.Is(err, execution.ErrUnsupportedLanguage) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "Unsupported language",
			"language": req.Language,
		})
		return
	}
	if err != nil {
		globals.AppLogger.Error("code execution error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Execution failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CORSMiddleware allows any origin, mirroring the permissive setup expected by
// the editor frontend.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

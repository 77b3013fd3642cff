package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/config"
	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/domain"
	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/hub"
	ws "github.com/rohithg/Real-Time-Collaborative-Whiteboard/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New returns the HTTP surface of the relay: the socket endpoint, the
// operational endpoints and, when the directory exists, the static client.
func New(cfg config.Config, broadcaster *hub.Hub, handler domain.MessageHandler) http.Handler {
	limits := ws.Limits{
		SendBuffer:     cfg.SendBufferSize,
		MaxMessageSize: cfg.MaxMessageSize,
	}
	socket := wsHandler(broadcaster, handler, limits)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", socket)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(broadcaster))
	mux.Handle("/", rootHandler(socket, staticHandler(cfg.StaticDir)))
	return mux
}

func wsHandler(broadcaster domain.Broadcaster, handler domain.MessageHandler, limits ws.Limits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		wsConn := ws.NewConn(uuid.New().String(), conn, broadcaster, handler, limits)
		wsConn.Start()
	}
}

// rootHandler lets clients open the socket on the page origin itself.
func rootHandler(socket http.HandlerFunc, static http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			socket(w, r)
			return
		}
		static.ServeHTTP(w, r)
	}
}

func staticHandler(dir string) http.Handler {
	if dir == "" {
		return http.NotFoundHandler()
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		slog.Info("static assets disabled", "dir", dir)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.Dir(dir))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(broadcaster *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(broadcaster.Stats())
	}
}

package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/domain"
)

// Handler routes inbound frames to the broadcaster. Payloads are forwarded
// byte for byte; only the type discriminator is inspected.
type Handler struct {
	broadcaster domain.Broadcaster
}

func NewHandler(b domain.Broadcaster) *Handler {
	return &Handler{broadcaster: b}
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Debug("unparseable message forwarded", "clientId", conn.ID(), "error", err)
		h.broadcaster.Broadcast(conn, data)
		return
	}

	if env.Type == domain.TypeUserCount {
		slog.Warn("client sent server-only message", "clientId", conn.ID(), "type", env.Type)
		return
	}

	h.broadcaster.Broadcast(conn, data)
}

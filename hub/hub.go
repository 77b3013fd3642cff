package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/rohithg/Real-Time-Collaborative-Whiteboard/domain"
)

// Hub relays frames between the participants of a Registry and keeps them
// informed of how many participants are connected.
type Hub struct {
	registry *Registry

	// presenceMu orders presence broadcasts so the last count a participant
	// receives is the size after the last membership change.
	presenceMu sync.Mutex

	relayed atomic.Uint64
	evicted atomic.Uint64
}

func New() *Hub {
	return &Hub{
		registry: NewRegistry(),
	}
}

func (h *Hub) Register(conn domain.Connection) {
	count := h.registry.Add(conn)
	slog.Info("client connected", "clientId", conn.ID(), "participants", count)

	h.broadcastPresence()
}

func (h *Hub) Unregister(conn domain.Connection) {
	if !h.registry.Remove(conn) {
		return
	}
	slog.Info("client disconnected", "clientId", conn.ID(), "participants", h.registry.Size())

	h.broadcastPresence()
}

// Broadcast delivers data unchanged to every participant except sender.
func (h *Hub) Broadcast(sender domain.Connection, data []byte) {
	failed := h.registry.ForEachExcept(sender.ID(), func(conn domain.Connection) error {
		if err := conn.Send(data); err != nil {
			return err
		}
		h.relayed.Add(1)
		return nil
	})
	h.evict(failed)
}

func (h *Hub) Size() int {
	return h.registry.Size()
}

func (h *Hub) Stats() domain.Stats {
	return domain.Stats{
		Participants: h.registry.Size(),
		Relayed:      h.relayed.Load(),
		Evicted:      h.evicted.Load(),
	}
}

// CloseAll closes every live participant. Each connection unregisters
// itself as it tears down.
func (h *Hub) CloseAll() {
	for _, conn := range h.registry.Members() {
		if err := conn.Close(); err != nil {
			slog.Debug("close error", "clientId", conn.ID(), "error", err)
		}
	}
}

func (h *Hub) broadcastPresence() {
	h.presenceMu.Lock()
	count := h.registry.Size()
	data, err := json.Marshal(domain.NewPresenceMessage(count))
	if err != nil {
		h.presenceMu.Unlock()
		slog.Error("presence marshal error", "error", err)
		return
	}
	failed := h.registry.ForEachExcept("", func(conn domain.Connection) error {
		return conn.Send(data)
	})
	h.presenceMu.Unlock()

	h.evict(failed)
}

// evict drops participants whose send failed. Their removal is itself a
// membership change, so it triggers a new presence broadcast.
func (h *Hub) evict(failed []domain.Connection) {
	removed := lo.Filter(failed, func(conn domain.Connection, _ int) bool {
		return h.registry.Remove(conn)
	})
	if len(removed) == 0 {
		return
	}

	for _, conn := range removed {
		h.evicted.Add(1)
		slog.Warn("client evicted", "clientId", conn.ID(), "participants", h.registry.Size())
		if err := conn.Close(); err != nil {
			slog.Debug("close error", "clientId", conn.ID(), "error", err)
		}
	}
	h.broadcastPresence()
}

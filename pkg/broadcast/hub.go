package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fleetmap/fleetmap/pkg/observability"
)

// Hub fans one event out to every currently connected live subscriber.
// Membership is driven by the websocket transport - connections register on
// upgrade and unregister when their read loop exits. There is no queueing
// and no replay; a subscriber whose write fails is skipped.
type Hub struct {
	mutex       sync.RWMutex
	subscribers map[*websocket.Conn]*subscriber
}

type subscriber struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: map[*websocket.Conn]*subscriber{},
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.mutex.Lock()
	h.subscribers[conn] = &subscriber{conn: conn}
	count := len(h.subscribers)
	h.mutex.Unlock()

	observability.LiveSubscribers.Set(float64(count))
	log.Debug().Int("subscribers", count).Msg("Live subscriber connected")
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.subscribers, conn)
	count := len(h.subscribers)
	h.mutex.Unlock()

	observability.LiveSubscribers.Set(float64(count))
	log.Debug().Int("subscribers", count).Msg("Live subscriber disconnected")
}

func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.subscribers)
}

// Broadcast delivers the event to the subscriber set as it exists right
// now. Delivery order across subscribers is unspecified.
func (h *Hub) Broadcast(event interface{}) {
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal broadcast event")
		return
	}

	h.mutex.RLock()
	subscribers := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subscribers = append(subscribers, sub)
	}
	h.mutex.RUnlock()

	for _, sub := range subscribers {
		sub.writeMutex.Lock()
		err := sub.conn.WriteMessage(websocket.TextMessage, jsonBytes)
		sub.writeMutex.Unlock()

		if err != nil {
			// The connection's own read loop will unregister it
			log.Debug().Err(err).Msg("Skipping undeliverable live subscriber")
		}
	}
}

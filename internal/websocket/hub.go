package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Notice is an invalidation to deliver to connected clients.
type Notice struct {
	Reason     string
	RoleID     int
	Generation int64
	// UserIDs restricts delivery. Empty means every connected client.
	UserIDs []int
}

// Hub fans invalidation notices out to connected clients by user.
type Hub struct {
	mu      sync.RWMutex
	clients map[int]map[chan Notice]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[int]map[chan Notice]struct{}),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register adds a client for userID. The returned function unregisters it
// and must be called exactly once.
func (h *Hub) Register(userID int) (<-chan Notice, func()) {
	ch := make(chan Notice, 8)

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan Notice]struct{})
	}
	h.clients[userID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.clients[userID], ch)
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
		h.mu.Unlock()
	}
}

// Broadcast delivers n to its target clients. Slow clients whose buffer is
// full miss the notice; the next one still reaches them.
func (h *Hub) Broadcast(n Notice) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	send := func(userID int) {
		for ch := range h.clients[userID] {
			select {
			case ch <- n:
				delivered++
			default:
				h.log.Warn().Int("user_id", userID).Msg("Dropping notice for slow client")
			}
		}
	}

	if len(n.UserIDs) == 0 {
		for userID := range h.clients {
			send(userID)
		}
	} else {
		for _, userID := range n.UserIDs {
			send(userID)
		}
	}
	return delivered
}

// Connected returns the number of registered clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
